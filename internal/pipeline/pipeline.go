// Package pipeline runs multi-file ingestion: each uploaded spreadsheet is
// read and normalized independently, the accepted batches are appended to
// the master store in one step, and per-file problems are reported as
// warnings rather than failing the whole upload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/couchcryptid/rni-data-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// SheetReader extracts the cell grid of a spreadsheet.
type SheetReader interface {
	ReadRows(r io.Reader) ([][]string, error)
}

// RecordStore appends normalized batches to the master table.
type RecordStore interface {
	Append(ctx context.Context, batches []domain.Batch) (int, error)
}

// SummaryPublisher announces accepted files to downstream consumers.
type SummaryPublisher interface {
	Publish(ctx context.Context, meta domain.Metadata, summaries []domain.FileSummary, at time.Time)
}

// Upload is one spreadsheet submitted for ingestion.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileUpload returns an Upload reading the file at path.
func FileUpload(path string) Upload {
	return Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Outcome labels for per-file processing.
const (
	OutcomeAccepted      = "accepted"
	OutcomeUnreadable    = "unreadable"
	OutcomeMissingColumn = "missing_column"
)

// FileWarning explains why a file was skipped.
type FileWarning struct {
	File   string       `json:"file"`
	Field  domain.Field `json:"field,omitempty"`
	Reason string       `json:"reason"`
}

// Result reports the outcome of one ingestion.
type Result struct {
	Summaries    []domain.FileSummary `json:"summaries"`
	Warnings     []FileWarning        `json:"warnings"`
	RecordsAdded int                  `json:"records_added"`
}

// Pipeline orchestrates read, normalize and append for a set of uploads.
type Pipeline struct {
	reader     SheetReader
	normalizer domain.Normalizer
	store      RecordStore
	publisher  SummaryPublisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	workers    int
}

// New creates a Pipeline. publisher may be nil to disable notifications.
// workers bounds how many files are normalized at once.
func New(reader SheetReader, store RecordStore, publisher SummaryPublisher, logger *slog.Logger, metrics *observability.Metrics, headerRow, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		reader:     reader,
		normalizer: domain.Normalizer{HeaderRow: headerRow},
		store:      store,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
		workers:    workers,
	}
}

type fileResult struct {
	batch   *domain.Batch
	warning *FileWarning
}

// Ingest normalizes every upload and appends the accepted batches, in
// upload order. Unreadable files and files missing a mandatory column are
// skipped with a warning. The returned error is non-nil only when ctx is
// cancelled or the store could not be persisted; in the latter case the
// Result is still populated because the records are kept in memory.
func (p *Pipeline) Ingest(ctx context.Context, uploads []Upload, meta domain.Metadata) (Result, error) {
	start := time.Now()
	results := make([]fileResult, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, u := range uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processFile(u, meta)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	res := Result{
		Summaries: make([]domain.FileSummary, 0, len(uploads)),
		Warnings:  make([]FileWarning, 0),
	}
	var batches []domain.Batch
	for _, fr := range results {
		if fr.warning != nil {
			res.Warnings = append(res.Warnings, *fr.warning)
			continue
		}
		batches = append(batches, *fr.batch)
		res.Summaries = append(res.Summaries, fr.batch.Summary)
	}

	if len(batches) == 0 {
		p.logger.Warn("no usable files in upload", "files", len(uploads))
		return res, nil
	}

	added, err := p.store.Append(ctx, batches)
	res.RecordsAdded = added
	p.metrics.RecordsIngested.Add(float64(added))
	p.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("ingestion complete",
		"files", len(uploads),
		"accepted", len(batches),
		"records", added,
		"locality", meta.Locality,
	)
	if err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}

	if p.publisher != nil {
		p.publisher.Publish(ctx, meta, res.Summaries, time.Now().UTC())
	}
	return res, nil
}

func (p *Pipeline) processFile(u Upload, meta domain.Metadata) fileResult {
	batch, err := p.normalizeFile(u, meta)
	if err == nil {
		p.metrics.FilesProcessed.WithLabelValues(OutcomeAccepted).Inc()
		p.logger.Debug("file normalized", "file", u.Name, "records", len(batch.Records))
		return fileResult{batch: &batch}
	}

	w := &FileWarning{File: u.Name, Reason: err.Error()}
	var mc *domain.MissingColumnError
	if errors.As(err, &mc) {
		w.Field = mc.Field
		p.metrics.FilesProcessed.WithLabelValues(OutcomeMissingColumn).Inc()
		p.logger.Warn("file skipped: missing mandatory column", "file", u.Name, "field", string(mc.Field))
	} else {
		p.metrics.FilesProcessed.WithLabelValues(OutcomeUnreadable).Inc()
		p.logger.Warn("file skipped: unreadable", "file", u.Name, "error", err)
	}
	return fileResult{warning: w}
}

func (p *Pipeline) normalizeFile(u Upload, meta domain.Metadata) (domain.Batch, error) {
	rc, err := u.Open()
	if err != nil {
		return domain.Batch{}, fmt.Errorf("%w: %v", domain.ErrUnreadableFile, err)
	}
	defer rc.Close()

	rows, err := p.reader.ReadRows(rc)
	if err != nil {
		if !errors.Is(err, domain.ErrUnreadableFile) {
			err = fmt.Errorf("%w: %v", domain.ErrUnreadableFile, err)
		}
		return domain.Batch{}, err
	}
	return p.normalizer.Normalize(domain.SourceFile{Name: u.Name, Rows: rows}, meta)
}
