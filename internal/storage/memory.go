package storage

import (
	"context"
	"sort"
	"sync"

	"stepsim/internal/model"
	"stepsim/internal/sim"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	transfers    map[string][]sim.TransferStats
	generations  map[string][]sim.GenerationStats
	trajectories map[string][]sim.Trajectory
	mutations    map[string][]sim.MutationTrace
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.transfers = make(map[string][]sim.TransferStats)
	s.generations = make(map[string][]sim.GenerationStats)
	s.trajectories = make(map[string][]sim.Trajectory)
	s.mutations = make(map[string][]sim.MutationTrace)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.transfers, id)
	delete(s.generations, id)
	delete(s.trajectories, id)
	delete(s.mutations, id)
	return nil
}

func (s *MemoryStore) SaveTransferStats(_ context.Context, runID string, stats []sim.TransferStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]sim.TransferStats, len(stats))
	copy(copied, stats)
	s.transfers[runID] = copied
	return nil
}

func (s *MemoryStore) GetTransferStats(_ context.Context, runID string) ([]sim.TransferStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.transfers[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]sim.TransferStats, len(stats))
	copy(copied, stats)
	return copied, true, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, stats []sim.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]sim.GenerationStats, len(stats))
	copy(copied, stats)
	s.generations[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]sim.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]sim.GenerationStats, len(stats))
	copy(copied, stats)
	return copied, true, nil
}

func (s *MemoryStore) SaveTrajectories(_ context.Context, runID string, trajectories []sim.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]sim.Trajectory, 0, len(trajectories))
	for _, trajectory := range trajectories {
		trajectory.Samples = append([]sim.TrajectorySample(nil), trajectory.Samples...)
		copied = append(copied, trajectory)
	}
	s.trajectories[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrajectories(_ context.Context, runID string) ([]sim.Trajectory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trajectories, ok := s.trajectories[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]sim.Trajectory, 0, len(trajectories))
	for _, trajectory := range trajectories {
		trajectory.Samples = append([]sim.TrajectorySample(nil), trajectory.Samples...)
		copied = append(copied, trajectory)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveMutations(_ context.Context, runID string, mutations []sim.MutationTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]sim.MutationTrace, 0, len(mutations))
	for _, mutation := range mutations {
		mutation.Sizes = append([]int64(nil), mutation.Sizes...)
		copied = append(copied, mutation)
	}
	s.mutations[runID] = copied
	return nil
}

func (s *MemoryStore) GetMutations(_ context.Context, runID string) ([]sim.MutationTrace, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mutations, ok := s.mutations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]sim.MutationTrace, 0, len(mutations))
	for _, mutation := range mutations {
		mutation.Sizes = append([]int64(nil), mutation.Sizes...)
		copied = append(copied, mutation)
	}
	return copied, true, nil
}
