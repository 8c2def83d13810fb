// Package store holds the master table of measurements in memory and keeps
// a repository copy in sync with a full-replace write after every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/couchcryptid/rni-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Repository durably stores the full master table.
type Repository interface {
	// Load returns every stored record in insertion order. An absent store
	// yields no records and no error.
	Load(ctx context.Context) ([]domain.Record, error)
	// Replace atomically overwrites the stored table with records.
	Replace(ctx context.Context, records []domain.Record) error
}

// LocalityUpdate holds the values written by EditLocality.
type LocalityUpdate struct {
	CCTE       string `json:"ccte"`
	Province   string `json:"province"`
	Locality   string `json:"locality"`
	CaseNumber string `json:"case_number"`
}

// Store is the process-wide master table. Mutations are serialized; a
// failed persist leaves the mutation applied in memory and returns a
// *PersistError.
type Store struct {
	mu      sync.RWMutex
	records []domain.Record
	loaded  bool

	repo    Repository
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an empty Store. Call Load to populate it from repo.
func New(repo Repository, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		repo:    repo,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Load replaces the in-memory table with the repository contents.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load master store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.loaded = true
	s.metrics.StoreRecords.Set(float64(len(records)))
	s.logger.Info("master store loaded", "records", len(records))
	return nil
}

// CheckReadiness reports an error until the store has been loaded.
func (s *Store) CheckReadiness(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return errors.New("master store not loaded")
	}
	return nil
}

// Records returns a copy of the table.
func (s *Store) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Append merges batches after the existing rows, stamping them with the
// current time, and persists. It returns the number of rows added.
func (s *Store) Append(ctx context.Context, batches []domain.Batch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.records)
	s.records = Merge(s.records, batches, s.clock.Now())
	added := len(s.records) - before
	if added == 0 {
		return 0, nil
	}
	s.logger.Info("records appended", "added", added, "total", len(s.records))
	return added, s.persist(ctx, "append")
}

// DeleteLocality removes every row whose locality equals locality exactly.
// Nothing is persisted when no row matches.
func (s *Store) DeleteLocality(ctx context.Context, locality string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.Locality != locality {
			kept = append(kept, r)
		}
	}
	removed := len(s.records) - len(kept)
	if removed == 0 {
		s.logger.Info("no records for locality", "locality", locality)
		return 0, nil
	}

	s.records = kept
	s.metrics.LocalityMutations.WithLabelValues("delete").Inc()
	s.logger.Info("locality deleted", "locality", locality, "removed", removed)
	return removed, s.persist(ctx, "delete locality")
}

// EditLocality overwrites ccte, province, locality and case number on every
// row whose locality equals current, and re-stamps their load time. Callers
// should resolve current immediately before the call since matching is on
// the value, not on row identity.
func (s *Store) EditLocality(ctx context.Context, current string, upd LocalityUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for i := range s.records {
		r := &s.records[i]
		if r.Locality != current {
			continue
		}
		r.CCTE = upd.CCTE
		r.Province = upd.Province
		r.Locality = upd.Locality
		r.CaseNumber = upd.CaseNumber
		r.LoadedAt = now
		n++
	}
	if n == 0 {
		s.logger.Info("no records for locality", "locality", current)
		return 0, nil
	}

	s.metrics.LocalityMutations.WithLabelValues("edit").Inc()
	s.logger.Info("locality edited", "locality", current, "new_locality", upd.Locality, "updated", n)
	return n, s.persist(ctx, "edit locality")
}

// Localities returns the distinct locality names, sorted.
func (s *Store) Localities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range s.records {
		seen[r.Locality] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// LastModified returns the latest load time among rows of locality.
func (s *Store) LastModified(locality string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	found := false
	for _, r := range s.records {
		if r.Locality != locality {
			continue
		}
		if !found || r.LoadedAt.After(last) {
			last = r.LoadedAt
		}
		found = true
	}
	return last, found
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, op string) error {
	s.metrics.StoreRecords.Set(float64(len(s.records)))

	snapshot := make([]domain.Record, len(s.records))
	copy(snapshot, s.records)
	if err := s.repo.Replace(ctx, snapshot); err != nil {
		s.metrics.PersistFailures.Inc()
		s.logger.Error("master store persist failed, change kept in memory only",
			"op", op, "records", len(snapshot), "error", err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}
