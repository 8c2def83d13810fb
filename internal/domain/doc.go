// Package domain models non-ionizing radiation (RNI) field-strength
// measurement campaigns exported as spreadsheets.
//
// # Source Sheets
//
// Each campaign file is an .xlsx export whose first sheet carries a fixed
// preamble (title, operator, instrument block) above the real column
// header. The header row index is constant for a given export template and
// is configured on the [Normalizer]. Column order and exact naming vary
// between files, so columns are matched by substring against the candidate
// table in [IdentifyColumns] rather than by position.
//
// # Cell Conventions
//
// Result ("Resultado con incertidumbre (V/m)"):
//
//	Free text with a decimal comma and an uncertainty annotation,
//	e.g. "12,3 (± 0,5)" → 12.3. Extracted by [ExtractNumeric].
//
// Coordinates ("Latitud" / "Longitud"):
//
//	Either decimal degrees ("-34.6033") or degrees-minutes-seconds with an
//	optional hemisphere letter ("34°36'12\" S", Spanish "O" for west).
//	Parsed by [ParseDMS]. Consumers that plot points force the sign to the
//	southern/western hemisphere, since only the magnitude is trusted.
//
// Date and time:
//
//	Stored separately. Cells are Excel serial numbers (days since
//	1899-12-30, time as a day fraction) or day-first text. See [ParseDate]
//	and [ParseTimeOfDay].
//
// Running index ("Nº", "Índice", "#"):
//
//	When present its maximum numeric value is the file's total measurement
//	count, which may exceed the surviving row count. Rows whose index cell is
//	not numeric are footers and are dropped.
//
// # Exposure Limit
//
// Percentage of the reference power density is result² / 3770 / 0.20021 × 100
// (see [PercentOfLimit]); the constants are kept verbatim for compatibility
// with previously issued reports.
package domain
