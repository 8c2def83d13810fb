package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Metadata is the submission data supplied at ingestion time. It is constant
// across every record contributed by one file.
type Metadata struct {
	CCTE       string `json:"ccte"`
	Province   string `json:"province"`
	Locality   string `json:"locality"`
	CaseNumber string `json:"case_number"`
}

// Record is one field-strength reading in the master store.
type Record struct {
	CCTE       string `json:"ccte"`
	Province   string `json:"province"`
	Locality   string `json:"locality"`
	CaseNumber string `json:"case_number"`
	SourceFile string `json:"source_file"`

	Date   *civil.Date `json:"date,omitempty"`
	Time   *civil.Time `json:"time,omitempty"`
	Result *float64    `json:"result,omitempty"` // V/m
	Probe  *string     `json:"probe,omitempty"`
	Lat    *float64    `json:"lat,omitempty"`
	Lon    *float64    `json:"lon,omitempty"`

	LoadedAt time.Time `json:"loaded_at"`

	// Extra holds source columns with no canonical field, keyed by header.
	Extra map[string]string `json:"extra,omitempty"`
}

// Timestamp fuses Date and Time into a UTC instant. ok is false when either
// component is missing.
func (r Record) Timestamp() (ts time.Time, ok bool) {
	if r.Date == nil || r.Time == nil {
		return time.Time{}, false
	}
	return civil.DateTime{Date: *r.Date, Time: *r.Time}.In(time.UTC), true
}

// FileSummary is the per-file row reported after normalization.
type FileSummary struct {
	Filename          string   `json:"filename"`
	CaseNumber        string   `json:"case_number"`
	TotalMeasurements int      `json:"total_measurements"`
	MaxResult         *float64 `json:"max_result,omitempty"`
}

// Batch is the normalized output of a single source file.
type Batch struct {
	Records []Record
	Summary FileSummary
}
