package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"village_tracker/internal/aggregate"
	"village_tracker/internal/catalog"
	"village_tracker/internal/config"
	"village_tracker/internal/domain"
	"village_tracker/internal/normalize"
)

// ErrNoRows marks a fetch that returned nothing. An empty card list from a
// scripted page is indistinguishable from a broken render, so it is treated
// as a failed fetch rather than a real zero-count observation.
var ErrNoRows = errors.New("fetch returned no rows")

// RunService drives one ingestion run end to end: fetch, normalize,
// aggregate, diff against the previous snapshot, persist, publish. Runs are
// short and atomic from the caller's perspective; there is no resumable
// state and no internal retry.
type RunService struct {
	source     Source
	normalizer *normalize.Normalizer
	aggregator *aggregate.Aggregator
	snapshots  SnapshotStore
	txManager  TransactionManager
	publisher  Publisher
	logger     *slog.Logger
	config     config.RunConfig
}

func NewRunService(
	source Source,
	cat *catalog.Catalog,
	snapshots SnapshotStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.RunConfig,
) *RunService {
	return &RunService{
		source:     source,
		normalizer: normalize.New(cat),
		aggregator: aggregate.New(cat),
		snapshots:  snapshots,
		txManager:  txManager,
		publisher:  publisher,
		logger:     logger.With("source", source.Name()),
		config:     cfg,
	}
}

// RunOnce executes a single run. It always returns a RunResult, failed runs
// included, so callers always have an outcome to report; the error carries
// the cause when the outcome is failed.
func (s *RunService) RunOnce(ctx context.Context) (*domain.RunResult, error) {
	startTime := time.Now()
	result := &domain.RunResult{
		Rejects: make(map[domain.RejectReason]int),
	}

	s.logger.Info("starting run", "reject_threshold", s.config.RejectThreshold)

	// Fetching
	rows, err := s.source.FetchRows(ctx)
	if err != nil {
		return s.fail(result, startTime, domain.StageFetching, err)
	}
	if len(rows) == 0 {
		return s.fail(result, startTime, domain.StageFetching, ErrNoRows)
	}
	result.RowsFetched = len(rows)
	s.logger.Info("fetched rows", "count", len(rows))

	// Normalizing. Rejected rows are counted per reason and excluded; they
	// never abort the run.
	listings := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		listing, err := s.normalizer.Normalize(row)
		if err != nil {
			result.Rejected++
			result.Rejects[normalize.ReasonOf(err)]++
			s.logger.Debug("rejected row",
				"village", row.Village,
				"status", row.Status,
				"reason", normalize.ReasonOf(err),
			)
			continue
		}
		listings = append(listings, listing)
	}

	// Aggregating
	snapshot := s.aggregator.Aggregate(listings, time.Now().UTC())
	snapshot.TotalRejected = result.Rejected

	outcome := domain.OutcomeDone
	if rate := float64(result.Rejected) / float64(len(rows)); rate > s.config.RejectThreshold {
		outcome = domain.OutcomePartial
		s.logger.Warn("reject rate over threshold",
			"rejected", result.Rejected,
			"rows", len(rows),
			"threshold", s.config.RejectThreshold,
		)
	}
	snapshot.Outcome = outcome

	// Diffing
	previous, err := s.snapshots.Latest(ctx)
	if err != nil {
		return s.fail(result, startTime, domain.StageDiffing, err)
	}
	if previous != nil {
		result.Previous = previous
		result.Delta = snapshot.Counts.Diff(previous.Counts)
	}

	// Persisting. The transaction makes the append all-or-nothing with
	// respect to a concurrently triggered run.
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		id, err := s.snapshots.Append(txCtx, &snapshot)
		if err != nil {
			return err
		}
		snapshot.ID = id
		return nil
	})
	if err != nil {
		return s.fail(result, startTime, domain.StagePersisting, err)
	}

	result.Snapshot = &snapshot
	result.Outcome = outcome
	result.Duration = time.Since(startTime)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, result); err != nil {
			s.logger.Warn("publish run result failed", "error", err)
		}
	}

	s.logger.Info("run completed",
		"outcome", result.Outcome,
		"active", snapshot.TotalActive,
		"pending", snapshot.TotalPending,
		"rejected", result.Rejected,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *RunService) fail(result *domain.RunResult, startTime time.Time, stage domain.Stage, err error) (*domain.RunResult, error) {
	result.Outcome = domain.OutcomeFailed
	result.FailedStage = stage
	result.Duration = time.Since(startTime)

	s.logger.Error("run failed", "stage", stage, "error", err)

	return result, fmt.Errorf("%s: %w", stage, err)
}
