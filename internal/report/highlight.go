package report

import (
	"math"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
)

// Peak is the highest reading in a record set.
type Peak struct {
	Result    float64     `json:"result"`
	Percent   float64     `json:"percent"`
	Band      domain.Band `json:"band"`
	Locality  string      `json:"locality"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

// Highlight returns the first record holding the maximum result. ok is
// false when no record has a numeric result.
func Highlight(records []domain.Record) (p Peak, ok bool) {
	var best *domain.Record
	for i := range records {
		r := &records[i]
		if r.Result != nil && (best == nil || *r.Result > *best.Result) {
			best = r
		}
	}
	if best == nil {
		return Peak{}, false
	}

	pct := domain.PercentOfLimit(*best.Result)
	p = Peak{
		Result:   *best.Result,
		Percent:  pct,
		Band:     domain.ColorBand(&pct),
		Locality: best.Locality,
	}
	if ts, has := best.Timestamp(); has {
		p.Timestamp = &ts
	}
	return p, true
}

// Point is one geolocated reading for map rendering.
type Point struct {
	Lat       float64     `json:"lat"`
	Lon       float64     `json:"lon"`
	Result    *float64    `json:"result,omitempty"`
	Percent   *float64    `json:"percent,omitempty"`
	Band      domain.Band `json:"band"`
	Locality  string      `json:"locality"`
	Probe     string      `json:"probe,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

// MapPoints returns the records that have both coordinates. Only the
// coordinate magnitude is trusted, so every point is placed in the southern
// and western hemispheres. Points are colored by percentage of limit.
func MapPoints(records []domain.Record) []Point {
	out := make([]Point, 0, len(records))
	for _, r := range records {
		if r.Lat == nil || r.Lon == nil {
			continue
		}
		pct := percentOf(r.Result)
		pt := Point{
			Lat:      -math.Abs(*r.Lat),
			Lon:      -math.Abs(*r.Lon),
			Result:   r.Result,
			Percent:  pct,
			Band:     domain.ColorBand(pct),
			Locality: r.Locality,
		}
		if r.Probe != nil {
			pt.Probe = *r.Probe
		}
		if ts, ok := r.Timestamp(); ok {
			pt.Timestamp = &ts
		}
		out = append(out, pt)
	}
	return out
}
