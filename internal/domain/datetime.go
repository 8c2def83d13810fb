package domain

import (
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// excelEpoch is day zero of the 1900 date system as used by spreadsheet
// exports (the 1900 leap-year bug is absorbed by starting on Dec 30).
var excelEpoch = civil.Date{Year: 1899, Month: time.December, Day: 30}

// Day-first layouts accepted for textual date cells.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"02/01/06",
	"2/1/06",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"15:04:05.999999999",
	"3:04:05 PM",
	"3:04 PM",
}

// ParseDate converts a date cell to a civil date. Numeric cells are Excel
// serial days; text is read day-first. A trailing time component is
// ignored. Returns nil for blank or unrecognized input.
func ParseDate(cell string) *civil.Date {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}

	if v, ok := parsePlainFloat(strings.ReplaceAll(s, ",", ".")); ok {
		if v < 1 {
			return nil
		}
		d := excelEpoch.AddDays(int(math.Floor(v)))
		return &d
	}

	// "15/03/2024 09:30:00" and ISO "2024-03-15T09:30:00".
	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == 'T' })
	if len(tokens) == 0 {
		return nil
	}
	token := tokens[0]
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	return nil
}

// ParseTimeOfDay converts a time cell to a civil time. Numeric cells are day
// fractions (the integer part of a serial datetime is discarded), rounded to
// the second. Text cells may carry a leading date. Returns nil for blank or
// unrecognized input.
func ParseTimeOfDay(cell string) *civil.Time {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}

	if v, ok := parsePlainFloat(strings.ReplaceAll(s, ",", ".")); ok {
		if v < 0 {
			return nil
		}
		secs := int(math.Round((v - math.Floor(v)) * 86400))
		if secs >= 86400 {
			secs = 0
		}
		t := civil.Time{Hour: secs / 3600, Minute: secs % 3600 / 60, Second: secs % 60}
		return &t
	}

	fields := strings.Fields(s)
	for i, f := range fields {
		if idx := strings.Index(f, "T"); idx >= 0 && strings.Contains(f[idx:], ":") {
			f = f[idx+1:]
		}
		if !strings.Contains(f, ":") {
			continue
		}
		candidates := []string{f}
		if i+1 < len(fields) {
			candidates = append([]string{f + " " + strings.ToUpper(fields[i+1])}, f)
		}
		for _, c := range candidates {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, c); err == nil {
					ct := civil.TimeOf(t)
					return &ct
				}
			}
		}
	}
	return nil
}
