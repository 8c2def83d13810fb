package report

import (
	"sort"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
)

// Filter narrows records before aggregation. Zero fields match everything.
type Filter struct {
	CCTE     string
	Province string
	Locality string
	Year     int
}

// Match reports whether r passes every set field. When Year is set, records
// without a date never match.
func (f Filter) Match(r domain.Record) bool {
	if f.CCTE != "" && r.CCTE != f.CCTE {
		return false
	}
	if f.Province != "" && r.Province != f.Province {
		return false
	}
	if f.Locality != "" && r.Locality != f.Locality {
		return false
	}
	if f.Year != 0 && (r.Date == nil || r.Date.Year != f.Year) {
		return false
	}
	return true
}

// Apply returns the records matching f, in order.
func (f Filter) Apply(records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Facets lists the distinct values available to each filter field.
type Facets struct {
	CCTEs      []string `json:"cctes"`
	Provinces  []string `json:"provinces"`
	Localities []string `json:"localities"`
	Years      []int    `json:"years"`
}

// FacetsOf collects sorted distinct filter values from records.
func FacetsOf(records []domain.Record) Facets {
	cctes := newStringSet()
	provinces := newStringSet()
	localities := newStringSet()
	years := make(map[int]struct{})
	for _, r := range records {
		cctes.add(r.CCTE)
		provinces.add(r.Province)
		localities.add(r.Locality)
		if r.Date != nil {
			years[r.Date.Year] = struct{}{}
		}
	}

	ys := make([]int, 0, len(years))
	for y := range years {
		ys = append(ys, y)
	}
	sort.Ints(ys)

	return Facets{
		CCTEs:      cctes.sorted(),
		Provinces:  provinces.sorted(),
		Localities: localities.sorted(),
		Years:      ys,
	}
}
