package storage

import (
	"context"

	"stepsim/internal/model"
	"stepsim/internal/sim"
)

// Store defines persistence operations for simulation runs and their
// outputs. All bulk outputs are keyed by run id; a missing key is reported
// through the bool return, not as an error.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SaveTransferStats(ctx context.Context, runID string, stats []sim.TransferStats) error
	GetTransferStats(ctx context.Context, runID string) ([]sim.TransferStats, bool, error)
	SaveGenerationStats(ctx context.Context, runID string, stats []sim.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]sim.GenerationStats, bool, error)
	SaveTrajectories(ctx context.Context, runID string, trajectories []sim.Trajectory) error
	GetTrajectories(ctx context.Context, runID string) ([]sim.Trajectory, bool, error)
	SaveMutations(ctx context.Context, runID string, mutations []sim.MutationTrace) error
	GetMutations(ctx context.Context, runID string) ([]sim.MutationTrace, bool, error)
}
