// Package xlsx reads measurement spreadsheets and writes report workbooks
// with excelize.
package xlsx

import (
	"fmt"
	"io"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Reader extracts the cell grid of a workbook's first sheet.
// It implements pipeline.SheetReader.
type Reader struct{}

// ReadRows returns the raw (unformatted) values of the first sheet, so
// dates and times arrive as serial numbers regardless of cell formatting.
// Any failure is reported as domain.ErrUnreadableFile.
func (Reader) ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrUnreadableFile)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", domain.ErrUnreadableFile, sheets[0], err)
	}
	return rows, nil
}
