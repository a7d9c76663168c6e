package ports

import (
	"context"
	"time"

	"MovieHarvester/internal/domain"
)

// CatalogSource is the remote movie-catalog boundary: a paginated discover
// query plus a per-identifier detail query.
type CatalogSource interface {
	// VerifyCredentials fails fast on a missing or rejected API key.
	VerifyCredentials(ctx context.Context) error
	Discover(ctx context.Context, year int, sort string, page int) ([]domain.Summary, error)
	Detail(ctx context.Context, id int64) (domain.Detail, error)
}

// DatasetStore persists record snapshots as tabular files. Every write is a
// full replace so a snapshot is always a complete, consistent projection.
type DatasetStore interface {
	Checkpoint(records []domain.Record) error
	WriteFull(records []domain.Record) error
	WriteBalanced(records []domain.Record) error
}

// RecordRepository mirrors harvested records into durable storage for
// downstream enrichment jobs.
type RecordRepository interface {
	SaveRecords(ctx context.Context, records []domain.Record) error
}

// Notifier delivers the end-of-harvest summary to an external channel.
type Notifier interface {
	PublishSummary(ctx context.Context, message string) error
}

// Scheduler controls when harvest runs execute in daemon mode.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
