package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"MovieHarvester/internal/domain"
	"MovieHarvester/internal/ports"
)

const insertBatchSize = 200

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresRepository mirrors harvested records into Postgres so enrichment
// jobs can join against them without parsing the CSV outputs.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.RecordRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveRecords inserts the records in batches; identifiers already present are
// left untouched, which keeps the mirror idempotent across resumed runs.
func (r *PostgresRepository) SaveRecords(ctx context.Context, records []domain.Record) error {
	if r.db == nil || len(records) == 0 {
		return nil
	}

	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		if err := r.insertBatch(ctx, records[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (r *PostgresRepository) insertBatch(ctx context.Context, batch []domain.Record) error {
	builder := sq.Insert("movie_records").
		Columns("id", "title", "original_language", "release_date",
			"budget", "revenue", "roi", "vote_average", "vote_count", "runtime", "success").
		PlaceholderFormat(sq.Dollar).
		Suffix("ON CONFLICT (id) DO NOTHING")

	for _, rec := range batch {
		builder = builder.Values(
			rec.ID,
			rec.Title,
			rec.OriginalLanguage,
			rec.ReleaseDate,
			rec.Budget,
			rec.Revenue,
			rec.Ratio,
			rec.VoteAverage,
			rec.VoteCount,
			rec.Runtime,
			rec.Label.Flag(),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}

	return nil
}
