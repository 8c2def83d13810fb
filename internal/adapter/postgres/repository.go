// Package postgres stores the master table in a PostgreSQL table, rewritten
// in a single transaction on every replace.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the table name used when none is configured.
const DefaultTable = "tabla_maestra"

var columns = []string{
	"ord", "ccte", "provincia", "localidad", "expediente", "nombre_archivo",
	"fecha", "hora", "resultado", "sonda", "lat", "lon", "fecha_carga", "extra",
}

// Repository implements the master store repository on a pgx pool.
type Repository struct {
	pool   *pgxpool.Pool
	table  pgx.Identifier
	logger *slog.Logger
}

// New connects to databaseURL and ensures the table exists.
func New(ctx context.Context, databaseURL, table string, logger *slog.Logger) (*Repository, error) {
	if table == "" {
		table = DefaultTable
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	r := &Repository{pool: pool, table: pgx.Identifier{table}, logger: logger}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return r, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.table.Sanitize()+` (
			ord            BIGINT           NOT NULL,
			ccte           TEXT             NOT NULL DEFAULT '',
			provincia      TEXT             NOT NULL DEFAULT '',
			localidad      TEXT             NOT NULL DEFAULT '',
			expediente     TEXT             NOT NULL DEFAULT '',
			nombre_archivo TEXT             NOT NULL DEFAULT '',
			fecha          DATE,
			hora           TIME,
			resultado      DOUBLE PRECISION,
			sonda          TEXT,
			lat            DOUBLE PRECISION,
			lon            DOUBLE PRECISION,
			fecha_carga    TIMESTAMPTZ,
			extra          JSONB
		)`)
	return err
}

// Load returns every row ordered by insertion position.
func (r *Repository) Load(ctx context.Context) ([]domain.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ccte, provincia, localidad, expediente, nombre_archivo,
		       fecha, hora, resultado, sonda, lat, lon, fecha_carga, extra
		FROM `+r.table.Sanitize()+`
		ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		var sr scannedRow
		if err := rows.Scan(
			&sr.CCTE,
			&sr.Province,
			&sr.Locality,
			&sr.CaseNumber,
			&sr.SourceFile,
			&sr.Date,
			&sr.Time,
			&sr.Result,
			&sr.Probe,
			&sr.Lat,
			&sr.Lon,
			&sr.LoadedAt,
			&sr.Extra,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		rec, err := sr.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Replace deletes every row and copies records in, inside one transaction.
// Readers keep seeing the old table until commit.
func (r *Repository) Replace(ctx context.Context, records []domain.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, "DELETE FROM "+r.table.Sanitize()); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	values := make([][]any, len(records))
	for i, rec := range records {
		v, err := toValues(int64(i), rec)
		if err != nil {
			return err
		}
		values[i] = v
	}

	n, err := tx.CopyFrom(ctx, r.table, columns, pgx.CopyFromRows(values))
	if err != nil {
		return fmt.Errorf("postgres: copy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	r.logger.Debug("master table replaced", "table", r.table.Sanitize(), "rows", n)
	return nil
}

// toValues converts a record into a row matching columns.
func toValues(ord int64, rec domain.Record) ([]any, error) {
	date := pgtype.Date{}
	if rec.Date != nil {
		date = pgtype.Date{Time: rec.Date.In(time.UTC), Valid: true}
	}
	tod := pgtype.Time{}
	if rec.Time != nil {
		t := rec.Time
		us := (int64(t.Hour)*3600+int64(t.Minute)*60+int64(t.Second))*1_000_000 + int64(t.Nanosecond)/1000
		tod = pgtype.Time{Microseconds: us, Valid: true}
	}
	loadedAt := pgtype.Timestamptz{}
	if !rec.LoadedAt.IsZero() {
		loadedAt = pgtype.Timestamptz{Time: rec.LoadedAt, Valid: true}
	}

	var extra any
	if len(rec.Extra) > 0 {
		b, err := json.Marshal(rec.Extra)
		if err != nil {
			return nil, fmt.Errorf("postgres: encode extra: %w", err)
		}
		extra = string(b)
	}

	return []any{
		ord,
		rec.CCTE,
		rec.Province,
		rec.Locality,
		rec.CaseNumber,
		rec.SourceFile,
		date,
		tod,
		rec.Result,
		rec.Probe,
		rec.Lat,
		rec.Lon,
		loadedAt,
		extra,
	}, nil
}

type scannedRow struct {
	CCTE       string
	Province   string
	Locality   string
	CaseNumber string
	SourceFile string
	Date       pgtype.Date
	Time       pgtype.Time
	Result     *float64
	Probe      *string
	Lat        *float64
	Lon        *float64
	LoadedAt   pgtype.Timestamptz
	Extra      []byte
}

func (sr scannedRow) record() (domain.Record, error) {
	rec := domain.Record{
		CCTE:       sr.CCTE,
		Province:   sr.Province,
		Locality:   sr.Locality,
		CaseNumber: sr.CaseNumber,
		SourceFile: sr.SourceFile,
		Result:     sr.Result,
		Probe:      sr.Probe,
		Lat:        sr.Lat,
		Lon:        sr.Lon,
	}
	if sr.Date.Valid {
		d := civil.DateOf(sr.Date.Time)
		rec.Date = &d
	}
	if sr.Time.Valid {
		us := sr.Time.Microseconds
		t := civil.Time{
			Hour:       int(us / 3_600_000_000),
			Minute:     int(us / 60_000_000 % 60),
			Second:     int(us / 1_000_000 % 60),
			Nanosecond: int(us % 1_000_000 * 1000),
		}
		rec.Time = &t
	}
	if sr.LoadedAt.Valid {
		rec.LoadedAt = sr.LoadedAt.Time.UTC()
	}
	if len(sr.Extra) > 0 {
		if err := json.Unmarshal(sr.Extra, &rec.Extra); err != nil {
			return domain.Record{}, fmt.Errorf("postgres: decode extra: %w", err)
		}
	}
	return rec, nil
}
