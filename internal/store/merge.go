package store

import (
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
)

// Merge appends the records of each batch, in order, after existing and
// stamps every new record with loadedAt. Rows are never deduplicated, so
// merging the same batch twice yields duplicate rows. existing is not
// modified.
func Merge(existing []domain.Record, batches []domain.Batch, loadedAt time.Time) []domain.Record {
	n := len(existing)
	for _, b := range batches {
		n += len(b.Records)
	}

	out := make([]domain.Record, 0, n)
	out = append(out, existing...)
	for _, b := range batches {
		for _, r := range b.Records {
			r.LoadedAt = loadedAt
			out = append(out, r)
		}
	}
	return out
}
