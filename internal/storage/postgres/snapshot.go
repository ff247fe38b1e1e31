package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"village_tracker/internal/domain"
)

// SnapshotStore is the append-only time series of snapshots. Stored rows are
// never updated or deleted; a manual re-run simply appends another snapshot
// and queries pick the most recent.
type SnapshotStore struct {
	db *sqlx.DB
}

func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

type snapshotRow struct {
	ID            int64          `db:"id"`
	CapturedAt    time.Time      `db:"captured_at"`
	Counts        []byte         `db:"counts"`
	TotalActive   int            `db:"total_active"`
	TotalPending  int            `db:"total_pending"`
	TotalRejected int            `db:"total_rejected"`
	Outcome       domain.Outcome `db:"outcome"`
}

func (r snapshotRow) toDomain() (*domain.Snapshot, error) {
	var counts domain.Counts
	if err := json.Unmarshal(r.Counts, &counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	return &domain.Snapshot{
		ID:            r.ID,
		CapturedAt:    r.CapturedAt.UTC(),
		Counts:        counts,
		TotalActive:   r.TotalActive,
		TotalPending:  r.TotalPending,
		TotalRejected: r.TotalRejected,
		Outcome:       r.Outcome,
	}, nil
}

// Append durably writes a snapshot and returns its assigned id. The insert
// joins any transaction carried by the context, so concurrent runs commit
// two distinct rows, never an interleaved one.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.Snapshot) (int64, error) {
	counts, err := json.Marshal(snap.Counts)
	if err != nil {
		return 0, fmt.Errorf("encode counts: %w", err)
	}

	query := `
		INSERT INTO snapshots (
			captured_at, counts, total_active, total_pending, total_rejected, outcome
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err = GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		snap.CapturedAt.UTC(),
		counts,
		snap.TotalActive,
		snap.TotalPending,
		snap.TotalRejected,
		snap.Outcome,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	return id, nil
}

// Latest returns the most recent snapshot by capture time, or nil when the
// store is empty.
func (s *SnapshotStore) Latest(ctx context.Context) (*domain.Snapshot, error) {
	query := `
		SELECT id, captured_at, counts, total_active, total_pending, total_rejected, outcome
		FROM snapshots
		ORDER BY captured_at DESC, id DESC
		LIMIT 1`

	return s.getOne(ctx, query)
}

// Before returns the most recent snapshot captured strictly before t, or
// nil when none exists. Used for diffing against the prior observation.
func (s *SnapshotStore) Before(ctx context.Context, t time.Time) (*domain.Snapshot, error) {
	query := `
		SELECT id, captured_at, counts, total_active, total_pending, total_rejected, outcome
		FROM snapshots
		WHERE captured_at < $1
		ORDER BY captured_at DESC, id DESC
		LIMIT 1`

	return s.getOne(ctx, query, t.UTC())
}

// Range returns every snapshot captured in [from, to], capture time
// ascending.
func (s *SnapshotStore) Range(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error) {
	query := `
		SELECT id, captured_at, counts, total_active, total_pending, total_rejected, outcome
		FROM snapshots
		WHERE captured_at >= $1 AND captured_at <= $2
		ORDER BY captured_at ASC, id ASC`

	var rows []snapshotRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}

	out := make([]domain.Snapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func (s *SnapshotStore) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Snapshot, error) {
	var row snapshotRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return row.toDomain()
}
