// Package csvfile persists the master table as a single CSV snapshot that
// is replaced atomically on every write.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/couchcryptid/rni-data-etl/internal/domain"
)

var loadedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Repository reads and writes the master table at a fixed path.
type Repository struct {
	path   string
	logger *slog.Logger
}

// NewRepository returns a Repository backed by the CSV file at path. The
// file and its directory are created on first write.
func NewRepository(path string, logger *slog.Logger) *Repository {
	return &Repository{path: path, logger: logger}
}

// Load reads every record from the snapshot. A missing file is an empty
// table. Unknown columns are carried in Record.Extra and absent canonical
// columns load as nil.
func (r *Repository) Load(_ context.Context) ([]domain.Record, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("master store file not found, starting empty", "path", r.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", r.path, err)
	}
	defer f.Close()

	return readRecords(f)
}

// Replace writes records to a temporary file next to the snapshot and
// renames it over the old one, so a failed write leaves the previous
// snapshot intact.
func (r *Repository) Replace(_ context.Context, records []domain.Record) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv: create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := writeRecords(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("csv: replace %q: %w", r.path, err)
	}

	r.logger.Debug("master store written", "path", r.path, "records", len(records))
	return nil
}

func writeRecords(w io.Writer, records []domain.Record) error {
	extras := extraColumns(records)

	cw := csv.NewWriter(w)
	header := append(canonicalHeaders[:], extras...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		row[colCCTE] = rec.CCTE
		row[colProvince] = rec.Province
		row[colLocality] = rec.Locality
		row[colResult] = formatFloat(rec.Result)
		row[colDate] = ""
		if rec.Date != nil {
			row[colDate] = rec.Date.String()
		}
		row[colTime] = ""
		if rec.Time != nil {
			row[colTime] = rec.Time.String()
		}
		row[colSourceFile] = rec.SourceFile
		row[colCaseNumber] = rec.CaseNumber
		row[colProbe] = ""
		if rec.Probe != nil {
			row[colProbe] = *rec.Probe
		}
		row[colLat] = formatFloat(rec.Lat)
		row[colLon] = formatFloat(rec.Lon)
		row[colLoadedAt] = ""
		if !rec.LoadedAt.IsZero() {
			row[colLoadedAt] = rec.LoadedAt.Format(time.RFC3339Nano)
		}
		for i, name := range extras {
			row[int(numColumns)+i] = rec.Extra[name]
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

func extraColumns(records []domain.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Extra {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func readRecords(rd io.Reader) ([]domain.Record, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	cols := resolveHeaders(header)

	var records []domain.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}

		var rec domain.Record
		for i, cell := range row {
			if i >= len(cols) {
				break
			}
			if cols[i] < 0 {
				if cell != "" {
					if rec.Extra == nil {
						rec.Extra = make(map[string]string)
					}
					rec.Extra[header[i]] = cell
				}
				continue
			}
			setField(&rec, cols[i], cell)
		}
		records = append(records, rec)
	}
	return records, nil
}

func setField(rec *domain.Record, c column, cell string) {
	cell = strings.TrimSpace(cell)
	switch c {
	case colCCTE:
		rec.CCTE = cell
	case colProvince:
		rec.Province = cell
	case colLocality:
		rec.Locality = cell
	case colSourceFile:
		rec.SourceFile = cell
	case colCaseNumber:
		rec.CaseNumber = cell
	case colResult:
		rec.Result = parseFloat(cell, domain.ExtractNumeric)
	case colLat:
		rec.Lat = parseFloat(cell, domain.ParseDMS)
	case colLon:
		rec.Lon = parseFloat(cell, domain.ParseDMS)
	case colDate:
		if d, err := civil.ParseDate(cell); err == nil {
			rec.Date = &d
		} else {
			rec.Date = domain.ParseDate(cell)
		}
	case colTime:
		if t, err := civil.ParseTime(cell); err == nil {
			rec.Time = &t
		} else {
			rec.Time = domain.ParseTimeOfDay(cell)
		}
	case colProbe:
		if cell != "" {
			rec.Probe = &cell
		}
	case colLoadedAt:
		rec.LoadedAt = parseLoadedAt(cell)
	}
}

func parseFloat(cell string, fallback func(string) *float64) *float64 {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return &v
	}
	return fallback(cell)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func parseLoadedAt(cell string) time.Time {
	for _, layout := range loadedAtLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t
		}
	}
	return time.Time{}
}
