package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"stepsim/internal/stats"
	"stepsim/internal/storage"
	stepapi "stepsim/pkg/stepsim"
)

const (
	artifactsDir = "artifacts"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "batch":
		return runBatch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "trajectories":
		return runTrajectories(ctx, args[1:])
	case "mutations":
		return runMutations(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	if err := store.Init(ctx); err != nil {
		return err
	}
	records, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := store.DeleteRun(ctx, record.ID); err != nil {
			return err
		}
	}

	fmt.Printf("reset store=%s runs_removed=%d\n", *storeKind, len(records))
	return nil
}

// runFlags binds the shared single-run flags onto fs and returns the request
// they describe once parsed. Flags the user did not set keep the request
// values loaded from -config.
func runFlags(fs *flag.FlagSet) map[string]any {
	values := map[string]any{
		"run-id":               fs.String("run-id", "", "explicit run id (optional)"),
		"label":                fs.String("label", "", "free-form run label"),
		"max-pop":              fs.Int64("max-pop", 0, "population ceiling triggering a transfer (0 uses default)"),
		"dilution":             fs.Int64("dilution", 0, "dilution factor D (0 uses default)"),
		"transfers":            fs.Int("transfers", 0, "number of transfers (0 uses default)"),
		"markers":              fs.Int("markers", 1, "number of neutral marker lineages"),
		"seed":                 fs.Int64("seed", 1, "rng seed"),
		"beneficial-rate":      fs.Float64("beneficial-rate", 0, "beneficial mutation rate per division"),
		"neutral-rate":         fs.Float64("neutral-rate", 0, "neutral mutation rate per division"),
		"deleterious-rate":     fs.Float64("deleterious-rate", 0, "deleterious mutation rate per division"),
		"beneficial-effect":    fs.Float64("beneficial-effect", 0, "mean beneficial effect size (0 uses default)"),
		"deleterious-min":      fs.Float64("deleterious-min", 0, "minimum deleterious fitness reduction"),
		"deleterious-max":      fs.Float64("deleterious-max", 0, "maximum deleterious fitness reduction"),
		"epistasis":            fs.Float64("epistasis", 0, "diminishing-returns epistasis strength (0 disables)"),
		"fitness-floor":        fs.Float64("fitness-floor", 0, "lower clamp on lineage fitness (0 disables)"),
		"track-trajectories":   fs.Bool("track-trajectories", false, "record lineage frequency trajectories"),
		"trajectory-threshold": fs.Float64("trajectory-threshold", 0, "minimum frequency before a lineage is tracked"),
		"track-mutations":      fs.Bool("track-mutations", false, "record metagenomic mutation traces"),
		"sampling-frequency":   fs.Int("sampling-frequency", 1, "metagenome size sampling cadence in transfers"),
	}
	return values
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "run config path, JSON or YAML by extension (optional)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	values := runFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		applyAllFlags(&req, values)
	} else {
		overrideFromFlags(&req, setFlags, values)
	}

	client, err := stepapi.New(stepapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	final := summary.FinalStats
	fmt.Printf("run_id=%s generations=%d transfers=%d mean_fitness=%.6f max_fitness=%.6f lineages=%d clamps=%d\n",
		summary.RunID, summary.Generations, final.Transfer, final.MeanFitness, final.MaxFitness, final.LineageCount, summary.ClampEvents)
	fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	configPath := fs.String("config", "", "base run config path, JSON or YAML by extension (optional)")
	batchID := fs.String("batch-id", "", "explicit batch id (optional)")
	notes := fs.String("notes", "", "free-form experiment notes")
	replicates := fs.Int("replicates", 3, "replicate count")
	workers := fs.Int("workers", 0, "parallel workers (0 uses GOMAXPROCS)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	values := runFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	base, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		applyAllFlags(&base, values)
	} else {
		overrideFromFlags(&base, setFlags, values)
	}

	client, err := stepapi.New(stepapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Batch(ctx, stepapi.BatchRequest{
		BatchID:    *batchID,
		Notes:      *notes,
		Base:       base,
		Replicates: *replicates,
		Workers:    *workers,
	})
	if err != nil {
		return err
	}

	last := len(summary.Ensemble.AvgFitness) - 1
	fmt.Printf("batch_id=%s replicates=%d avg_final_fitness=%.6f fitness_std=%.6f\n",
		summary.BatchID, summary.Replicates, summary.Ensemble.AvgFitness[last], summary.Ensemble.FitnessStd[last])
	for _, runID := range summary.RunIDs {
		fmt.Printf("run_id=%s\n", runID)
	}
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created=%s seed=%d transfers=%d max_pop=%d dilution=%d final_mean_fitness=%.6f label=%q\n",
			e.RunID, e.CreatedAtUTC, e.Seed, e.Transfers, e.MaxPopulationSize, e.DilutionFactor, e.FinalMeanFitness, e.Label)
	}
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show stats for the most recent run from run index")
	limit := fs.Int("limit", 50, "max transfers to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit transfer stats as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stepapi.New(stepapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	transfers, err := client.TransferStats(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if *limit > 0 && len(transfers) > *limit {
		transfers = transfers[len(transfers)-*limit:]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(transfers)
	}

	for _, ts := range transfers {
		fmt.Printf("transfer=%d population=%d lineages=%d mean_fitness=%.6f max_fitness=%.6f mean_mutations=%.3f diversity=%.4f\n",
			ts.Transfer, ts.Population, ts.LineageCount, ts.MeanFitness, ts.MaxFitness, ts.MeanMutations, ts.ShannonDiversity)
	}
	return nil
}

func runTrajectories(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trajectories", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show trajectories for the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit trajectories as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stepapi.New(stepapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	trajectories, err := client.Trajectories(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if len(trajectories) == 0 {
		fmt.Println("no trajectories recorded")
		return nil
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trajectories)
	}

	for _, tr := range trajectories {
		peak := 0.0
		for _, sample := range tr.Samples {
			if sample.Frequency > peak {
				peak = sample.Frequency
			}
		}
		fmt.Printf("lineage=%d marker=%d parent=%d samples=%d peak_frequency=%.4f\n",
			tr.LineageID, tr.Marker, tr.ParentID, len(tr.Samples), peak)
	}
	return nil
}

func runMutations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mutations", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show mutation traces for the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit mutation traces as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "stepsim.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stepapi.New(stepapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	mutations, err := client.Mutations(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if len(mutations) == 0 {
		fmt.Println("no mutations recorded")
		return nil
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mutations)
	}

	for _, trace := range mutations {
		lastSize := int64(0)
		if len(trace.Sizes) > 0 {
			lastSize = trace.Sizes[len(trace.Sizes)-1]
		}
		fmt.Printf("mutation=%d background=%d delta_w=%+.6f first_transfer=%d samples=%d last_size=%d\n",
			trace.ID, trace.BackgroundID, trace.DeltaW, trace.FirstTransfer, len(trace.Sizes), lastSize)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stepapi.New(stepapi.Options{
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, stepapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", summary.RunID, filepath.Clean(summary.Directory))
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: stepsimctl <init|reset|run|batch|runs|stats|trajectories|mutations|export> [flags]", msg)
}
