//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"village_tracker/internal/domain"
)

type SnapshotStoreIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	store     *SnapshotStore
	txManager *TransactionManager
}

func (s *SnapshotStoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_snapshots.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
	s.store = NewSnapshotStore(db)
	s.txManager = NewTransactionManager(db)
}

func (s *SnapshotStoreIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *SnapshotStoreIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM snapshots")
}

func TestSnapshotStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(SnapshotStoreIntegrationSuite))
}

func (s *SnapshotStoreIntegrationSuite) makeSnapshot(at time.Time, active, pending int) *domain.Snapshot {
	return &domain.Snapshot{
		CapturedAt: at,
		Counts: domain.Counts{
			"North": {
				"Lakeview": {Active: active, Pending: pending},
				"Oakwood":  {},
			},
			"South": {
				"Brownwood": {},
			},
		},
		TotalActive:  active,
		TotalPending: pending,
		Outcome:      domain.OutcomeDone,
	}
}

func (s *SnapshotStoreIntegrationSuite) TestAppendAndLatestRoundTrip() {
	at := time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC)
	snap := s.makeSnapshot(at, 3, 1)
	snap.TotalRejected = 2
	snap.Outcome = domain.OutcomePartial

	id, err := s.store.Append(s.ctx, snap)
	s.Require().NoError(err)
	s.Positive(id)

	got, err := s.store.Latest(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)

	s.Equal(id, got.ID)
	s.True(got.CapturedAt.Equal(at))
	s.Equal(snap.Counts, got.Counts)
	s.Equal(3, got.TotalActive)
	s.Equal(1, got.TotalPending)
	s.Equal(2, got.TotalRejected)
	s.Equal(domain.OutcomePartial, got.Outcome)
}

func (s *SnapshotStoreIntegrationSuite) TestLatestOnEmptyStore() {
	got, err := s.store.Latest(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *SnapshotStoreIntegrationSuite) TestBeforeIsStrict() {
	day1 := time.Date(2026, 8, 21, 6, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 22, 6, 0, 0, 0, time.UTC)

	_, err := s.store.Append(s.ctx, s.makeSnapshot(day1, 1, 0))
	s.Require().NoError(err)
	_, err = s.store.Append(s.ctx, s.makeSnapshot(day2, 2, 0))
	s.Require().NoError(err)

	got, err := s.store.Before(s.ctx, day2)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(got.CapturedAt.Equal(day1))

	got, err = s.store.Before(s.ctx, day1)
	s.Require().NoError(err)
	s.Nil(got)
}

// After N runs, range returns exactly N snapshots in capture order and the
// earlier rows are unchanged by later appends.
func (s *SnapshotStoreIntegrationSuite) TestAppendOnlyHistory() {
	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)

	const runs = 5
	for i := 0; i < runs; i++ {
		_, err := s.store.Append(s.ctx, s.makeSnapshot(base.AddDate(0, 0, i), i+1, i))
		s.Require().NoError(err)
	}

	snaps, err := s.store.Range(s.ctx, base, base.AddDate(0, 0, runs))
	s.Require().NoError(err)
	s.Require().Len(snaps, runs)

	for i, snap := range snaps {
		s.True(snap.CapturedAt.Equal(base.AddDate(0, 0, i)))
		s.Equal(i+1, snap.TotalActive)
		if i > 0 {
			s.True(snaps[i-1].CapturedAt.Before(snap.CapturedAt))
		}
	}
}

func (s *SnapshotStoreIntegrationSuite) TestRangeBounds() {
	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := s.store.Append(s.ctx, s.makeSnapshot(base.AddDate(0, 0, i), 1, 0))
		s.Require().NoError(err)
	}

	snaps, err := s.store.Range(s.ctx, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2))
	s.Require().NoError(err)
	s.Len(snaps, 2)
}

// Two same-timestamp appends both land; latest is decided by the store
// (insertion order breaks the tie), and neither overwrites the other.
func (s *SnapshotStoreIntegrationSuite) TestSameDayRerunCoexists() {
	at := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)

	first, err := s.store.Append(s.ctx, s.makeSnapshot(at, 1, 0))
	s.Require().NoError(err)
	second, err := s.store.Append(s.ctx, s.makeSnapshot(at, 2, 0))
	s.Require().NoError(err)
	s.Greater(second, first)

	got, err := s.store.Latest(s.ctx)
	s.Require().NoError(err)
	s.Equal(second, got.ID)
	s.Equal(2, got.TotalActive)

	snaps, err := s.store.Range(s.ctx, at, at)
	s.Require().NoError(err)
	s.Len(snaps, 2)
}

func (s *SnapshotStoreIntegrationSuite) TestAppendInsideTransactionRollsBack() {
	at := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)

	err := s.txManager.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if _, err := s.store.Append(txCtx, s.makeSnapshot(at, 1, 0)); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	s.Error(err)

	got, err := s.store.Latest(s.ctx)
	s.Require().NoError(err)
	s.Nil(got, "rolled-back append must leave no partial row")
}

func (s *SnapshotStoreIntegrationSuite) TestConcurrentAppends() {
	at := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(n int) {
			_, err := s.store.Append(s.ctx, s.makeSnapshot(at.Add(time.Duration(n)*time.Second), n+1, 0))
			errCh <- err
		}(i)
	}
	s.NoError(<-errCh)
	s.NoError(<-errCh)

	snaps, err := s.store.Range(s.ctx, at, at.Add(time.Minute))
	s.Require().NoError(err)
	s.Len(snaps, 2, "two concurrent runs produce two distinct snapshots")
}
