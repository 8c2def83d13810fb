package report

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/couchcryptid/rni-data-etl/internal/domain"
)

// Day summarizes one measurement date.
type Day struct {
	Date         civil.Date    `json:"date"`
	Start        *civil.Time   `json:"start,omitempty"`
	End          *civil.Time   `json:"end,omitempty"`
	Duration     time.Duration `json:"-"`
	DurationText string        `json:"duration"`
	Points       int           `json:"points"`
	Localities   string        `json:"localities"`
}

// DailyBreakdown groups dated records by date, oldest first.
func DailyBreakdown(records []domain.Record) []Day {
	groups := make(map[civil.Date][]domain.Record)
	for _, r := range records {
		if r.Date == nil {
			continue
		}
		groups[*r.Date] = append(groups[*r.Date], r)
	}

	dates := make([]civil.Date, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]Day, 0, len(dates))
	for _, d := range dates {
		g := groups[d]
		day := Day{
			Date:       d,
			Duration:   domain.TotalDuration(g),
			Points:     len(g),
			Localities: localitiesOf(g),
		}
		day.DurationText = domain.FormatDuration(day.Duration)
		if first, last := timestampRange(g); first != nil {
			s, e := civil.TimeOf(*first), civil.TimeOf(*last)
			day.Start, day.End = &s, &e
		}
		out = append(out, day)
	}
	return out
}

// Month summarizes one calendar month of timestamped readings.
type Month struct {
	Month        string        `json:"month"` // YYYY-MM
	First        time.Time     `json:"first"`
	Last         time.Time     `json:"last"`
	Localities   string        `json:"localities"`
	Points       int           `json:"points"` // readings with a numeric result
	Duration     time.Duration `json:"-"`
	DurationText string        `json:"duration"`
}

// MonthlyBreakdown groups records that have both date and time by month,
// oldest first.
func MonthlyBreakdown(records []domain.Record) []Month {
	groups := make(map[string][]domain.Record)
	for _, r := range records {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		k := ts.Format("2006-01")
		groups[k] = append(groups[k], r)
	}

	months := make([]string, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]Month, 0, len(months))
	for _, m := range months {
		g := groups[m]
		first, last := timestampRange(g)
		points := 0
		for _, r := range g {
			if r.Result != nil {
				points++
			}
		}
		dur := domain.TotalDuration(g)
		out = append(out, Month{
			Month:        m,
			First:        *first,
			Last:         *last,
			Localities:   localitiesOf(g),
			Points:       points,
			Duration:     dur,
			DurationText: domain.FormatDuration(dur),
		})
	}
	return out
}

// CaseSummary aggregates the readings filed under one case number.
type CaseSummary struct {
	CaseNumber string   `json:"case_number"`
	Points     int      `json:"points"`
	CCTEs      string   `json:"cctes"`
	Provinces  string   `json:"provinces"`
	Localities string   `json:"localities"`
	MaxResult  *float64 `json:"max_result,omitempty"`
}

// CaseSummaries groups records by case number, highest peak reading first.
// Cases without any numeric result sort last.
func CaseSummaries(records []domain.Record) []CaseSummary {
	groups := make(map[string][]domain.Record)
	var order []string
	for _, r := range records {
		if _, ok := groups[r.CaseNumber]; !ok {
			order = append(order, r.CaseNumber)
		}
		groups[r.CaseNumber] = append(groups[r.CaseNumber], r)
	}

	out := make([]CaseSummary, 0, len(order))
	for _, c := range order {
		g := groups[c]
		cctes, provinces := newStringSet(), newStringSet()
		points := 0
		for _, r := range g {
			cctes.add(r.CCTE)
			provinces.add(r.Province)
			if r.Result != nil {
				points++
			}
		}
		out = append(out, CaseSummary{
			CaseNumber: c,
			Points:     points,
			CCTEs:      cctes.join(),
			Provinces:  provinces.join(),
			Localities: localitiesOf(g),
			MaxResult:  maxResultOf(g),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].MaxResult, out[j].MaxResult
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return out
}

func localitiesOf(records []domain.Record) string {
	s := newStringSet()
	for _, r := range records {
		s.add(r.Locality)
	}
	return s.join()
}
