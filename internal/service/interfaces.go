package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"village_tracker/internal/domain"
)

// Source supplies raw scraped listing rows. How rows are fetched (browser
// automation, HTTP, fixtures) is the source's business; the run coordinator
// only sees the rows.
type Source interface {
	Name() string
	FetchRows(ctx context.Context) ([]domain.RawRow, error)
}

// SnapshotStore is the append-only snapshot time series.
type SnapshotStore interface {
	Append(ctx context.Context, snap *domain.Snapshot) (int64, error)
	Latest(ctx context.Context) (*domain.Snapshot, error)
	Before(ctx context.Context, t time.Time) (*domain.Snapshot, error)
	Range(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, result *domain.RunResult) error
	Close() error
}
