package report

import (
	"sort"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
)

// LocalitySummary aggregates the readings of one (CCTE, province,
// locality) group.
type LocalitySummary struct {
	CCTE         string        `json:"ccte"`
	Province     string        `json:"province"`
	Locality     string        `json:"locality"`
	Start        *time.Time    `json:"start,omitempty"`
	End          *time.Time    `json:"end,omitempty"`
	Measurements int           `json:"measurements"`
	Duration     time.Duration `json:"-"`
	DurationText string        `json:"duration"`
	MaxResult    *float64      `json:"max_result,omitempty"`
	MaxPercent   *float64      `json:"max_percent,omitempty"`
	CaseNumbers  string        `json:"case_numbers"`
	Probes       string        `json:"probes"`
}

type localityKey struct {
	ccte, province, locality string
}

// LocalitySummaries groups records by (CCTE, province, locality), sorted by
// those keys.
func LocalitySummaries(records []domain.Record) []LocalitySummary {
	groups := make(map[localityKey][]domain.Record)
	for _, r := range records {
		k := localityKey{r.CCTE, r.Province, r.Locality}
		groups[k] = append(groups[k], r)
	}

	keys := make([]localityKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ccte != b.ccte {
			return a.ccte < b.ccte
		}
		if a.province != b.province {
			return a.province < b.province
		}
		return a.locality < b.locality
	})

	out := make([]LocalitySummary, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		start, end := timestampRange(g)
		cases := newStringSet()
		probes := newStringSet()
		for _, r := range g {
			cases.add(r.CaseNumber)
			if r.Probe != nil {
				probes.add(*r.Probe)
			}
		}
		dur := domain.TotalDuration(g)
		maxResult := maxResultOf(g)

		out = append(out, LocalitySummary{
			CCTE:         k.ccte,
			Province:     k.province,
			Locality:     k.locality,
			Start:        start,
			End:          end,
			Measurements: len(g),
			Duration:     dur,
			DurationText: domain.FormatDuration(dur),
			MaxResult:    maxResult,
			MaxPercent:   percentOf(maxResult),
			CaseNumbers:  cases.join(),
			Probes:       probes.join(),
		})
	}
	return out
}

// timestampRange returns the earliest and latest fused timestamps, or nils
// when no record has both date and time.
func timestampRange(records []domain.Record) (first, last *time.Time) {
	for _, r := range records {
		ts, ok := r.Timestamp()
		if !ok {
			continue
		}
		if first == nil || ts.Before(*first) {
			t := ts
			first = &t
		}
		if last == nil || ts.After(*last) {
			t := ts
			last = &t
		}
	}
	return first, last
}

func maxResultOf(records []domain.Record) *float64 {
	var m *float64
	for _, r := range records {
		if r.Result != nil && (m == nil || *r.Result > *m) {
			v := *r.Result
			m = &v
		}
	}
	return m
}

func percentOf(v *float64) *float64 {
	if v == nil {
		return nil
	}
	p := domain.PercentOfLimit(*v)
	return &p
}
