package domain

import "time"

// Outcome tags how a run ended.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomePartial Outcome = "partial" // snapshot persisted, reject rate over threshold
	OutcomeFailed  Outcome = "failed"
)

// Stage identifies the step of a run; a failed run records the stage it
// failed in.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageAggregating Stage = "aggregating"
	StageDiffing     Stage = "diffing"
	StagePersisting  Stage = "persisting"
)

// RunResult reports one end-to-end run. Every run produces one, including
// failed runs, so the scheduler and dashboard always have something to show.
type RunResult struct {
	Outcome     Outcome
	FailedStage Stage     // set only when Outcome is failed
	Snapshot    *Snapshot // nil when nothing was persisted
	Previous    *Snapshot // nil on the first ever run
	Delta       Counts    // nil when there is no previous snapshot
	RowsFetched int
	Rejected    int
	Rejects     map[RejectReason]int
	Duration    time.Duration
}
