package domain

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

type spanKey struct {
	file string
	date civil.Date
}

// TotalDuration sums the measurement time of records, counted per
// (source file, date) so idle gaps between files or visit days are left out.
//
// Within a group the span is max(time) - min(time) unless the readings sit
// closer together across midnight, in which case the wrapped span is used
// (23:00 and 01:00 give 2h). Groups with a single reading contribute zero.
// Records without a date or time are ignored.
func TotalDuration(records []Record) time.Duration {
	groups := make(map[spanKey][]civil.Time)
	var order []spanKey
	for _, r := range records {
		if r.Date == nil || r.Time == nil {
			continue
		}
		k := spanKey{file: r.SourceFile, date: *r.Date}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], *r.Time)
	}

	var total time.Duration
	for _, k := range order {
		total += span(groups[k])
	}
	return total
}

// span is the shortest arc of the 24h clock covering every reading: 24h
// minus the widest gap between consecutive times, counting the gap that
// wraps past midnight. Row order does not matter.
func span(times []civil.Time) time.Duration {
	if len(times) < 2 {
		return 0
	}
	offs := make([]time.Duration, len(times))
	for i, t := range times {
		offs[i] = sinceMidnight(t)
	}
	slices.Sort(offs)

	widest := offs[0] + 24*time.Hour - offs[len(offs)-1]
	for i := 1; i < len(offs); i++ {
		widest = max(widest, offs[i]-offs[i-1])
	}
	return 24*time.Hour - widest
}

func sinceMidnight(t civil.Time) time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Nanosecond)
}

// FormatDuration renders d as hh:mm:ss. Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
