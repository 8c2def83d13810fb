// Package app assembles the store, pipeline and notification publisher
// from configuration. Both the server and the ingest CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rni-data-etl/internal/adapter/csvfile"
	kafkaadapter "github.com/couchcryptid/rni-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rni-data-etl/internal/adapter/postgres"
	"github.com/couchcryptid/rni-data-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/rni-data-etl/internal/config"
	"github.com/couchcryptid/rni-data-etl/internal/observability"
	"github.com/couchcryptid/rni-data-etl/internal/pipeline"
	"github.com/couchcryptid/rni-data-etl/internal/store"
	"github.com/jonboulle/clockwork"
)

// App holds the wired components. Call Close when done.
type App struct {
	Store    *store.Store
	Pipeline *pipeline.Pipeline

	closers []func()
}

// New opens the configured repository, loads the master store and builds
// the ingestion pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{}

	var repo store.Repository
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, cfg.StoreTable, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		repo = pg
	default:
		repo = csvfile.NewRepository(cfg.StorePath, logger)
	}

	a.Store = store.New(repo, clockwork.NewRealClock(), logger, metrics)
	if err := a.Store.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load master store: %w", err)
	}

	// A typed nil *Publisher would not compare equal to a nil interface.
	var publisher pipeline.SummaryPublisher
	if cfg.NotificationsEnabled() {
		pub := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger, metrics)
		a.closers = append(a.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		})
		publisher = pub
		logger.Info("ingest notifications enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("ingest notifications disabled")
	}

	a.Pipeline = pipeline.New(xlsx.Reader{}, a.Store, publisher, logger, metrics, cfg.HeaderRow, cfg.IngestWorkers)
	return a, nil
}

// Close releases the repository and publisher, in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
