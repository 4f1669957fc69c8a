// Package stepsim is the embedding API for the serial-transfer evolution
// engine: it wires the simulation driver to persistence and on-disk
// artifacts so callers get one-call runs, batches, and queries.
package stepsim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"stepsim/internal/model"
	"stepsim/internal/sim"
	"stepsim/internal/stats"
	"stepsim/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "stepsim.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
	exportsDir   string
}

// RunRequest selects one simulation run. Zero values take defaults mirroring
// a standard 100-fold serial transfer experiment.
type RunRequest struct {
	RunID string
	Label string

	MaxPopulationSize int64
	DilutionFactor    int64
	Transfers         int
	Markers           int
	Seed              int64

	BeneficialRate  float64
	NeutralRate     float64
	DeleteriousRate float64

	BeneficialMeanEffect float64
	DeleteriousMin       float64
	DeleteriousMax       float64
	EpistasisStrength    float64
	FitnessFloor         float64

	TrackTrajectories   bool
	TrajectoryThreshold float64
	TrackMutations      bool
	SamplingFrequency   int
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Generations  int
	ClampEvents  int64
	FinalStats   sim.TransferStats
}

type BatchRequest struct {
	BatchID    string
	Notes      string
	Base       RunRequest
	Replicates int
	Workers    int
}

type BatchSummary struct {
	BatchID    string
	RunIDs     []string
	Replicates int
	Ensemble   stats.EnsembleGraph
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	Label            string
	CreatedAtUTC     string
	Seed             int64
	Transfers        int
	FinalMeanFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// simConfig maps a request onto the engine configuration, applying the
// experiment defaults for any zero field.
func (r RunRequest) simConfig() sim.Config {
	cfg := sim.Config{
		MaxPopulationSize:    r.MaxPopulationSize,
		DilutionFactor:       r.DilutionFactor,
		Transfers:            r.Transfers,
		Markers:              r.Markers,
		Seed:                 r.Seed,
		BeneficialRate:       r.BeneficialRate,
		NeutralRate:          r.NeutralRate,
		DeleteriousRate:      r.DeleteriousRate,
		BeneficialMeanEffect: r.BeneficialMeanEffect,
		DeleteriousMin:       r.DeleteriousMin,
		DeleteriousMax:       r.DeleteriousMax,
		EpistasisStrength:    r.EpistasisStrength,
		FitnessFloor:         r.FitnessFloor,
		TrackTrajectories:    r.TrackTrajectories,
		TrajectoryThreshold:  r.TrajectoryThreshold,
		TrackMutations:       r.TrackMutations,
		SamplingFrequency:    r.SamplingFrequency,
	}
	if cfg.MaxPopulationSize == 0 {
		cfg.MaxPopulationSize = 500_000_000
	}
	if cfg.DilutionFactor == 0 {
		cfg.DilutionFactor = 100
	}
	if cfg.Transfers == 0 {
		cfg.Transfers = 100
	}
	if cfg.BeneficialRate > 0 && cfg.BeneficialMeanEffect == 0 {
		cfg.BeneficialMeanEffect = 1.0 / 63.0
	}
	return cfg
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	cfg := req.simConfig()
	driver, err := sim.NewDriver(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := driver.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := c.persistRun(ctx, runID, req.Label, 0, result)
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Generations:  result.Generations,
		ClampEvents:  result.ClampEvents,
		FinalStats:   result.PerTransfer[len(result.PerTransfer)-1],
	}, nil
}

func (c *Client) Batch(ctx context.Context, req BatchRequest) (BatchSummary, error) {
	if err := c.Init(ctx); err != nil {
		return BatchSummary{}, err
	}
	if req.Replicates <= 0 {
		return BatchSummary{}, errors.New("batch requires at least one replicate")
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	startedAt := time.Now().UTC().Format(time.RFC3339Nano)

	results, err := sim.RunBatch(ctx, sim.BatchConfig{
		Base:       req.Base.simConfig(),
		Replicates: req.Replicates,
		Workers:    req.Workers,
	})
	if err != nil {
		return BatchSummary{}, err
	}

	exp := stats.BatchExperiment{
		ID:           batchID,
		Notes:        req.Notes,
		Replicates:   req.Replicates,
		Workers:      req.Workers,
		BaseSeed:     req.Base.Seed,
		StartedAtUTC: startedAt,
	}
	series := make([][]sim.TransferStats, 0, len(results))
	for i, result := range results {
		runID := fmt.Sprintf("%s-r%d", batchID, i)
		if _, err := c.persistRun(ctx, runID, req.Base.Label, i, result); err != nil {
			return BatchSummary{}, err
		}
		final := result.PerTransfer[len(result.PerTransfer)-1]
		exp.RunIDs = append(exp.RunIDs, runID)
		exp.Summaries = append(exp.Summaries, stats.ReplicateSummary{
			Replicate:        i,
			RunID:            runID,
			Seed:             result.Config.Seed,
			Generations:      result.Generations,
			FinalMeanFitness: final.MeanFitness,
			FinalMaxFitness:  final.MaxFitness,
			FinalDiversity:   final.ShannonDiversity,
			ClampEvents:      result.ClampEvents,
		})
		series = append(series, result.PerTransfer)
	}

	graph, err := stats.BuildEnsembleGraph(series)
	if err != nil {
		return BatchSummary{}, err
	}
	exp.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	if err := stats.WriteBatchExperiment(c.artifactsDir, exp); err != nil {
		return BatchSummary{}, err
	}
	if err := stats.WriteEnsembleGraph(c.artifactsDir, batchID, graph); err != nil {
		return BatchSummary{}, err
	}

	return BatchSummary{
		BatchID:    batchID,
		RunIDs:     exp.RunIDs,
		Replicates: req.Replicates,
		Ensemble:   graph,
	}, nil
}

func (c *Client) persistRun(ctx context.Context, runID, label string, replicate int, result sim.RunResult) (string, error) {
	now := time.Now().UTC()

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:          runID,
		Label:       label,
		Config:      result.Config,
		Generations: result.Generations,
		ClampEvents: result.ClampEvents,
		Replicate:   replicate,
		FinishedAt:  now.Format(time.RFC3339),
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return "", err
	}
	if err := c.store.SaveTransferStats(ctx, runID, result.PerTransfer); err != nil {
		return "", err
	}
	if err := c.store.SaveGenerationStats(ctx, runID, result.PerGeneration); err != nil {
		return "", err
	}
	if result.Trajectories != nil {
		if err := c.store.SaveTrajectories(ctx, runID, result.Trajectories); err != nil {
			return "", err
		}
	}
	if result.Mutations != nil {
		if err := c.store.SaveMutations(ctx, runID, result.Mutations); err != nil {
			return "", err
		}
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:       runID,
			Label:       label,
			Replicate:   replicate,
			Config:      result.Config,
			Generations: result.Generations,
			ClampEvents: result.ClampEvents,
		},
		PerTransfer:   result.PerTransfer,
		PerGeneration: result.PerGeneration,
		Trajectories:  result.Trajectories,
		Mutations:     result.Mutations,
	})
	if err != nil {
		return "", err
	}

	final := result.PerTransfer[len(result.PerTransfer)-1]
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:             runID,
		Label:             label,
		Seed:              result.Config.Seed,
		Transfers:         result.Config.Transfers,
		MaxPopulationSize: result.Config.MaxPopulationSize,
		DilutionFactor:    result.Config.DilutionFactor,
		FinalMeanFitness:  final.MeanFitness,
		CreatedAtUTC:      now.Format(time.RFC3339Nano),
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			Label:            e.Label,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Transfers:        e.Transfers,
			FinalMeanFitness: e.FinalMeanFitness,
		})
	}
	return out, nil
}

func (c *Client) TransferStats(ctx context.Context, runID string, latest bool) ([]sim.TransferStats, error) {
	runID, err := c.resolveRunID(runID, latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	transferStats, ok, err := c.store.GetTransferStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("transfer stats not found for run id: %s", runID)
	}
	return transferStats, nil
}

func (c *Client) Trajectories(ctx context.Context, runID string, latest bool) ([]sim.Trajectory, error) {
	runID, err := c.resolveRunID(runID, latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	trajectories, ok, err := c.store.GetTrajectories(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trajectories not found for run id: %s", runID)
	}
	return trajectories, nil
}

func (c *Client) Mutations(ctx context.Context, runID string, latest bool) ([]sim.MutationTrace, error) {
	runID, err := c.resolveRunID(runID, latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	mutations, ok, err := c.store.GetMutations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("mutations not found for run id: %s", runID)
	}
	return mutations, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
