package domain

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultHeaderRow is the zero-based row of the column header in the
// standard export template; rows above it are preamble.
const DefaultHeaderRow = 8

// SourceFile is the raw cell grid of a spreadsheet's first sheet.
type SourceFile struct {
	Name string
	Rows [][]string
}

// Normalizer turns raw sheets into record batches.
type Normalizer struct {
	HeaderRow int
}

// Normalize applies column identification and cell coercion to one sheet
// and attaches the submission metadata. It returns an error wrapping
// ErrUnreadableFile when the sheet is too short to hold a header, or a
// *MissingColumnError when a mandatory field cannot be resolved. Individual
// cells that fail to parse become nil and never fail the file.
func (n Normalizer) Normalize(src SourceFile, meta Metadata) (Batch, error) {
	if len(src.Rows) <= n.HeaderRow {
		return Batch{}, fmt.Errorf("%w: %s: no header at row %d (sheet has %d rows)",
			ErrUnreadableFile, src.Name, n.HeaderRow+1, len(src.Rows))
	}

	t := newTable(src.Rows[n.HeaderRow], src.Rows[n.HeaderRow+1:])
	t.dropEmptyColumns()

	total := len(t.rows)
	if idxCol, ok := FindIndexColumn(t.headers); ok {
		if maxIdx, kept := t.filterNumeric(t.col(idxCol)); kept > 0 {
			total = int(maxIdx)
		}
	}

	mapping, err := IdentifyColumns(t.headers)
	if err != nil {
		var mc *MissingColumnError
		if errors.As(err, &mc) {
			mc.File = src.Name
		}
		return Batch{}, err
	}

	caseNumber := strings.TrimSpace(meta.CaseNumber)
	if caseNumber == "" {
		base := filepath.Base(src.Name)
		caseNumber = strings.TrimSuffix(base, filepath.Ext(base))
	}

	mapped := make(map[int]bool, len(mapping))
	for _, h := range mapping {
		mapped[t.col(h)] = true
	}

	records := make([]Record, 0, len(t.rows))
	var maxResult *float64
	for _, row := range t.rows {
		rec := Record{
			CCTE:       meta.CCTE,
			Province:   meta.Province,
			Locality:   meta.Locality,
			CaseNumber: caseNumber,
			SourceFile: src.Name,
			Date:       ParseDate(row[t.col(mapping[FieldDate])]),
			Time:       ParseTimeOfDay(row[t.col(mapping[FieldTime])]),
			Result:     ExtractNumeric(row[t.col(mapping[FieldResult])]),
			Probe:      optionalString(row[t.col(mapping[FieldProbe])]),
		}
		if h, ok := mapping[FieldLat]; ok {
			rec.Lat = ParseDMS(row[t.col(h)])
		}
		if h, ok := mapping[FieldLon]; ok {
			rec.Lon = ParseDMS(row[t.col(h)])
		}
		for i, h := range t.headers {
			if mapped[i] || row[i] == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[h] = row[i]
		}

		if rec.Result != nil && (maxResult == nil || *rec.Result > *maxResult) {
			v := *rec.Result
			maxResult = &v
		}
		records = append(records, rec)
	}

	return Batch{
		Records: records,
		Summary: FileSummary{
			Filename:          src.Name,
			CaseNumber:        caseNumber,
			TotalMeasurements: total,
			MaxResult:         maxResult,
		},
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// table is a rectangular, trimmed view of a sheet below its header.
type table struct {
	headers []string
	index   map[string]int
	rows    [][]string
}

func newTable(header []string, data [][]string) *table {
	width := len(header)
	for _, r := range data {
		width = max(width, len(r))
	}

	t := &table{headers: uniqueHeaders(header, width)}
	for _, r := range data {
		row := make([]string, width)
		blank := true
		for i := range row {
			if i < len(r) {
				row[i] = strings.TrimSpace(r[i])
			}
			if row[i] != "" {
				blank = false
			}
		}
		if !blank {
			t.rows = append(t.rows, row)
		}
	}
	t.reindex()
	return t
}

// uniqueHeaders names blank headers by position and suffixes repeats with
// ".1", ".2", ... so each column has a distinct key.
func uniqueHeaders(header []string, width int) []string {
	out := make([]string, width)
	seen := make(map[string]int, width)
	for i := range out {
		h := ""
		if i < len(header) {
			h = strings.TrimSpace(header[i])
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

func (t *table) reindex() {
	t.index = make(map[string]int, len(t.headers))
	for i, h := range t.headers {
		t.index[h] = i
	}
}

func (t *table) col(header string) int { return t.index[header] }

// dropEmptyColumns removes columns with no non-blank data cell.
func (t *table) dropEmptyColumns() {
	var keep []int
	for c := range t.headers {
		for _, r := range t.rows {
			if r[c] != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	if len(keep) == len(t.headers) {
		return
	}

	headers := make([]string, len(keep))
	for i, c := range keep {
		headers[i] = t.headers[c]
	}
	for ri, r := range t.rows {
		row := make([]string, len(keep))
		for i, c := range keep {
			row[i] = r[c]
		}
		t.rows[ri] = row
	}
	t.headers = headers
	t.reindex()
}

// filterNumeric keeps only rows whose cell in column c is a plain number and
// returns the largest such value with the number of rows kept.
func (t *table) filterNumeric(c int) (maxVal float64, kept int) {
	maxVal = math.Inf(-1)
	rows := t.rows[:0]
	for _, r := range t.rows {
		v, err := strconv.ParseFloat(strings.ReplaceAll(r[c], ",", "."), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		maxVal = math.Max(maxVal, v)
		rows = append(rows, r)
	}
	t.rows = rows
	return maxVal, len(rows)
}
