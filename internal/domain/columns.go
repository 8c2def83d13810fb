package domain

import "strings"

// Field is a canonical semantic column of a measurement sheet.
type Field string

const (
	FieldDate   Field = "date"
	FieldTime   Field = "time"
	FieldResult Field = "result"
	FieldProbe  Field = "probe"
	FieldLat    Field = "lat"
	FieldLon    Field = "lon"
)

type fieldCandidates struct {
	field      Field
	candidates []string
	optional   bool
}

// headerCandidates lists, per canonical field, the lower-case substrings
// accepted in a sheet header. Order matters: mandatory fields are checked in
// this order and the first missing one is reported.
var headerCandidates = []fieldCandidates{
	{field: FieldDate, candidates: []string{"fecha"}},
	{field: FieldTime, candidates: []string{"hora", "time"}},
	{field: FieldResult, candidates: []string{"resultado con incertidumbre", "resultado"}},
	{field: FieldProbe, candidates: []string{"sonda", "sonda utilizada"}},
	{field: FieldLat, candidates: []string{"latitud", "lat"}, optional: true},
	{field: FieldLon, candidates: []string{"longitud", "lon"}, optional: true},
}

// indexCandidates are header substrings that denote a running row number.
var indexCandidates = []string{"índice", "indice", "index", "nro", "nº", "n°", "num", "numero", "#"}

// ColumnMapping maps canonical fields to the sheet header that carries them.
type ColumnMapping map[Field]string

// IdentifyColumns resolves canonical fields against the sheet headers by
// case-insensitive substring match. The first header (in sheet order) that
// contains any candidate wins. Optional fields (lat, lon) may be absent; a
// missing mandatory field returns a *MissingColumnError.
func IdentifyColumns(headers []string) (ColumnMapping, error) {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(h)
	}

	mapping := make(ColumnMapping, len(headerCandidates))
	for _, fc := range headerCandidates {
		idx := firstMatch(lowered, fc.candidates)
		if idx < 0 {
			if fc.optional {
				continue
			}
			return nil, &MissingColumnError{Field: fc.field}
		}
		mapping[fc.field] = headers[idx]
	}
	return mapping, nil
}

// FindIndexColumn returns the first header that looks like a running index
// column ("Nº", "Índice", "#", ...).
func FindIndexColumn(headers []string) (string, bool) {
	for _, h := range headers {
		if containsAny(strings.ToLower(h), indexCandidates) {
			return h, true
		}
	}
	return "", false
}

func firstMatch(lowered []string, candidates []string) int {
	for i, h := range lowered {
		if containsAny(h, candidates) {
			return i
		}
	}
	return -1
}

func containsAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
