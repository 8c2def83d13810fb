package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/report"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Resumen"

var summaryHeader = []any{
	"CCTE", "Provincia", "Localidad", "Inicio", "Fin", "Mediciones",
	"Tiempo mediciones", "Resultado Max (V/m)", "Resultado Max (%)",
	"N° Expediente", "Sonda utilizada",
}

// WriteLocalitySummaries renders summaries as a single-sheet workbook with
// a bold, centered header row.
func WriteLocalitySummaries(w io.Writer, summaries []report.LocalitySummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	header := summaryHeader
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(summaryHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", lastCol, style); err != nil {
		return fmt.Errorf("xlsx: apply header style: %w", err)
	}

	for i, s := range summaries {
		row := []any{
			s.CCTE,
			s.Province,
			s.Locality,
			formatTime(s.Start),
			formatTime(s.End),
			s.Measurements,
			s.DurationText,
			optional(s.MaxResult),
			optional(s.MaxPercent),
			s.CaseNumbers,
			s.Probes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: write workbook: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
