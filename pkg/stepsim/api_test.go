package stepsim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "artifacts"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func smallRequest() RunRequest {
	return RunRequest{
		MaxPopulationSize:    2000,
		DilutionFactor:       10,
		Transfers:            4,
		Markers:              2,
		Seed:                 606,
		BeneficialRate:       0.002,
		BeneficialMeanEffect: 0.05,
		TrackTrajectories:    true,
		TrajectoryThreshold:  0.1,
		TrackMutations:       true,
	}
}

func TestClientRunRunsAndExport(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, smallRequest())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if summary.Generations <= 0 {
		t.Fatalf("generations = %d, want > 0", summary.Generations)
	}
	if summary.FinalStats.Transfer != 4 {
		t.Fatalf("final transfer = %d, want 4", summary.FinalStats.Transfer)
	}
	if summary.FinalStats.Population != 200 {
		t.Fatalf("final population = %d, want bottleneck 200", summary.FinalStats.Population)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "summary.csv")); err != nil {
		t.Fatalf("expected summary.csv artifact: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected run %s in runs list: %+v", summary.RunID, runs)
	}

	transfers, err := client.TransferStats(ctx, summary.RunID, false)
	if err != nil {
		t.Fatalf("transfer stats: %v", err)
	}
	if len(transfers) != 5 {
		t.Fatalf("transfer stats length = %d, want 5 (transfers+initial)", len(transfers))
	}

	trajectories, err := client.Trajectories(ctx, "", true)
	if err != nil {
		t.Fatalf("trajectories: %v", err)
	}
	if len(trajectories) == 0 {
		t.Fatal("expected marker trajectories")
	}

	mutations, err := client.Mutations(ctx, summary.RunID, false)
	if err != nil {
		t.Fatalf("mutations: %v", err)
	}
	if len(mutations) < 2 {
		t.Fatalf("mutation traces = %d, want at least the marker lineages", len(mutations))
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported run %s, want %s", exported.RunID, summary.RunID)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "transfer_stats.json")); err != nil {
		t.Fatalf("expected exported transfer_stats.json: %v", err)
	}
}

func TestClientRunAppliesExperimentDefaults(t *testing.T) {
	cfg := RunRequest{Seed: 1}.simConfig()
	if cfg.MaxPopulationSize != 500_000_000 {
		t.Fatalf("default max population = %d", cfg.MaxPopulationSize)
	}
	if cfg.DilutionFactor != 100 || cfg.Transfers != 100 {
		t.Fatalf("default regime = D%d x%d", cfg.DilutionFactor, cfg.Transfers)
	}
	if cfg.BeneficialMeanEffect != 0 {
		t.Fatalf("effect default must stay zero without a beneficial rate: %g", cfg.BeneficialMeanEffect)
	}

	withRate := RunRequest{Seed: 1, BeneficialRate: 1e-7}.simConfig()
	if withRate.BeneficialMeanEffect != 1.0/63.0 {
		t.Fatalf("default beneficial effect = %g, want 1/63", withRate.BeneficialMeanEffect)
	}
}

func TestClientBatchProducesEnsemble(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	req := smallRequest()
	req.TrackTrajectories = false
	req.TrackMutations = false
	summary, err := client.Batch(ctx, BatchRequest{
		BatchID:    "batch-1",
		Base:       req,
		Replicates: 3,
		Workers:    2,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if summary.BatchID != "batch-1" || len(summary.RunIDs) != 3 {
		t.Fatalf("unexpected batch summary: %+v", summary)
	}
	for i, runID := range summary.RunIDs {
		if !strings.HasPrefix(runID, "batch-1-r") {
			t.Fatalf("run id %d = %s, want batch prefix", i, runID)
		}
	}
	if summary.Ensemble.ReplicateRuns != 3 {
		t.Fatalf("ensemble replicates = %d, want 3", summary.Ensemble.ReplicateRuns)
	}
	if len(summary.Ensemble.AvgFitness) != 5 {
		t.Fatalf("ensemble length = %d, want transfers+initial", len(summary.Ensemble.AvgFitness))
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 10})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("indexed runs = %d, want 3", len(runs))
	}
}

func TestClientBatchRejectsZeroReplicates(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Batch(context.Background(), BatchRequest{Base: smallRequest()}); err == nil {
		t.Fatal("expected error for zero replicates")
	}
}

func TestClientRunRejectsInvalidConfig(t *testing.T) {
	client := newTestClient(t)
	req := smallRequest()
	req.DilutionFactor = 1
	if _, err := client.Run(context.Background(), req); err == nil {
		t.Fatal("expected config error for dilution factor of 1")
	}
}

func TestResolveRunIDRules(t *testing.T) {
	client := newTestClient(t)

	if _, err := client.resolveRunID("run-1", true); err == nil {
		t.Fatal("expected error for run id with latest")
	}
	if _, err := client.resolveRunID("", false); err == nil {
		t.Fatal("expected error for neither run id nor latest")
	}
	if _, err := client.resolveRunID("", true); err == nil {
		t.Fatal("expected error when no runs exist")
	}
	got, err := client.resolveRunID("run-1", false)
	if err != nil || got != "run-1" {
		t.Fatalf("explicit run id: got=%s err=%v", got, err)
	}
}

func TestClientQueriesForUnknownRun(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.TransferStats(ctx, "run-missing", false); err == nil {
		t.Fatal("expected error for unknown run transfer stats")
	}
	if _, err := client.Trajectories(ctx, "run-missing", false); err == nil {
		t.Fatal("expected error for unknown run trajectories")
	}
	if _, err := client.Mutations(ctx, "run-missing", false); err == nil {
		t.Fatal("expected error for unknown run mutations")
	}
}
