//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"stepsim/internal/sim"
)

func TestSQLiteStoreRunAndOutputsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "stepsim.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := testRunRecord("run-1")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loadedRun, ok, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatalf("expected run %s", run.ID)
	}
	if loadedRun.ID != run.ID || loadedRun.Config.Seed != run.Config.Seed {
		t.Fatalf("unexpected run loaded: %+v", loadedRun)
	}

	stats := []sim.TransferStats{
		{Transfer: 0, Population: 100, LineageCount: 2, MeanFitness: 1.0},
		{Transfer: 1, Population: 100, LineageCount: 4, MeanFitness: 1.01},
	}
	if err := store.SaveTransferStats(ctx, run.ID, stats); err != nil {
		t.Fatalf("save transfer stats: %v", err)
	}
	loadedStats, ok, err := store.GetTransferStats(ctx, run.ID)
	if err != nil {
		t.Fatalf("get transfer stats: %v", err)
	}
	if !ok {
		t.Fatal("expected transfer stats")
	}
	if len(loadedStats) != 2 || loadedStats[1].LineageCount != 4 {
		t.Fatalf("unexpected transfer stats loaded: %+v", loadedStats)
	}

	generations := []sim.GenerationStats{
		{Generation: 1, Transfer: 0, Population: 200, LineageCount: 2, MeanFitness: 1.0},
	}
	if err := store.SaveGenerationStats(ctx, run.ID, generations); err != nil {
		t.Fatalf("save generation stats: %v", err)
	}
	loadedGenerations, ok, err := store.GetGenerationStats(ctx, run.ID)
	if err != nil {
		t.Fatalf("get generation stats: %v", err)
	}
	if !ok {
		t.Fatal("expected generation stats")
	}
	if len(loadedGenerations) != 1 || loadedGenerations[0].Population != 200 {
		t.Fatalf("unexpected generation stats loaded: %+v", loadedGenerations)
	}

	trajectories := []sim.Trajectory{{
		LineageID: 3,
		ParentID:  1,
		Marker:    2,
		Samples:   []sim.TrajectorySample{{Generation: 2, Frequency: 0.4}},
	}}
	if err := store.SaveTrajectories(ctx, run.ID, trajectories); err != nil {
		t.Fatalf("save trajectories: %v", err)
	}
	loadedTrajectories, ok, err := store.GetTrajectories(ctx, run.ID)
	if err != nil {
		t.Fatalf("get trajectories: %v", err)
	}
	if !ok {
		t.Fatal("expected trajectories")
	}
	if len(loadedTrajectories) != 1 || loadedTrajectories[0].LineageID != 3 {
		t.Fatalf("unexpected trajectories loaded: %+v", loadedTrajectories)
	}

	mutations := []sim.MutationTrace{
		{ID: 5, BackgroundID: 1, DeltaW: 0.03, FirstTransfer: 1, Sizes: []int64{1, 20}},
	}
	if err := store.SaveMutations(ctx, run.ID, mutations); err != nil {
		t.Fatalf("save mutations: %v", err)
	}
	loadedMutations, ok, err := store.GetMutations(ctx, run.ID)
	if err != nil {
		t.Fatalf("get mutations: %v", err)
	}
	if !ok {
		t.Fatal("expected mutations")
	}
	if len(loadedMutations) != 1 || loadedMutations[0].ID != 5 {
		t.Fatalf("unexpected mutations loaded: %+v", loadedMutations)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, run.ID); ok {
		t.Fatal("run survived deletion")
	}
	if _, ok, _ := store.GetMutations(ctx, run.ID); ok {
		t.Fatal("mutations survived deletion")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "stepsim.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	run := testRunRecord("persisted-run")
	if err := first.SaveRun(ctx, run); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !ok || loaded.ID != run.ID {
		t.Fatalf("expected persisted run, got ok=%t value=%+v", ok, loaded)
	}

	runs, err := second.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("unexpected run listing: %+v", runs)
	}
}
