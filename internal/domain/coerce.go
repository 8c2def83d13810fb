package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// numericRe matches the first signed decimal, with optional exponent,
	// e.g. "12.3 (± 0.5)" -> "12.3".
	numericRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)

	// dmsRe matches three numeric groups separated by non-digits and an
	// optional trailing hemisphere word, e.g. `34°36'12.5" S` or "58 22 54 Oeste".
	// The hemisphere must be a whole word so notes such as "sin dato" are ignored.
	dmsRe = regexp.MustCompile(`([+-]?\d+(?:\.\d+)?)\D+(\d+(?:\.\d+)?)\D+(\d+(?:\.\d+)?)[^\p{L}\d]*(?i:(norte|sur|este|oeste|[nsewo])\b)?`)
)

// ExtractNumeric returns the first numeric literal found in s after replacing
// decimal commas with points. Returns nil when s holds no digits.
func ExtractNumeric(s string) *float64 {
	s = strings.ReplaceAll(s, ",", ".")
	match := numericRe.FindString(s)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ExtractNumericColumn applies ExtractNumeric to every cell of a column.
func ExtractNumericColumn(cells []string) []*float64 {
	out := make([]*float64, len(cells))
	for i, c := range cells {
		out[i] = ExtractNumeric(c)
	}
	return out
}

// ParseDMS converts a coordinate cell to decimal degrees.
//
// Plain numbers are returned unchanged. Otherwise a degrees/minutes/seconds
// triple is tried, negated for S/Sur, W or O/Oeste hemispheres, or when the
// degree literal itself is negative and no hemisphere is given. As a last
// resort the first bare number in the text is used. Returns nil if nothing
// numeric is found.
func ParseDMS(cell string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(cell, ",", "."))
	if s == "" {
		return nil
	}

	if v, ok := parsePlainFloat(s); ok {
		return &v
	}

	if m := dmsRe.FindStringSubmatch(s); m != nil {
		deg, errD := strconv.ParseFloat(m[1], 64)
		mins, errM := strconv.ParseFloat(m[2], 64)
		secs, errS := strconv.ParseFloat(m[3], 64)
		if errD == nil && errM == nil && errS == nil {
			dec := math.Abs(deg) + mins/60.0 + secs/3600.0
			switch strings.ToUpper(m[4]) {
			case "S", "SUR", "W", "O", "OESTE":
				dec = -dec
			case "":
				if strings.HasPrefix(m[1], "-") {
					dec = -dec
				}
			}
			return &dec
		}
	}

	return ExtractNumeric(s)
}

// parsePlainFloat parses s as a finite float. Text such as "NaN" or "Inf" is
// not accepted.
func parsePlainFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
