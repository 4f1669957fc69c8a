// Package stats writes and reads on-disk run artifacts: the JSON and CSV
// files a finished simulation leaves behind for analysis tooling.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"stepsim/internal/sim"
)

const runIndexFile = "run_index.json"

// RunConfig is the config.json payload: the engine configuration plus the
// identifying metadata that does not belong inside the engine itself.
type RunConfig struct {
	RunID       string     `json:"run_id"`
	Label       string     `json:"label,omitempty"`
	Replicate   int        `json:"replicate,omitempty"`
	Config      sim.Config `json:"config"`
	Generations int        `json:"generations"`
	ClampEvents int64      `json:"clamp_events"`
}

// RunArtifacts is everything one run writes under its artifacts directory.
type RunArtifacts struct {
	Config        RunConfig             `json:"config"`
	PerTransfer   []sim.TransferStats   `json:"per_transfer"`
	PerGeneration []sim.GenerationStats `json:"per_generation,omitempty"`
	Trajectories  []sim.Trajectory      `json:"trajectories,omitempty"`
	Mutations     []sim.MutationTrace   `json:"mutations,omitempty"`
}

type RunIndexEntry struct {
	RunID             string  `json:"run_id"`
	Label             string  `json:"label,omitempty"`
	Seed              int64   `json:"seed"`
	Transfers         int     `json:"transfers"`
	MaxPopulationSize int64   `json:"max_population_size"`
	DilutionFactor    int64   `json:"dilution_factor"`
	FinalMeanFitness  float64 `json:"final_mean_fitness"`
	CreatedAtUTC      string  `json:"created_at_utc"`
}

// WriteRunArtifacts lays out one run's directory under baseDir and returns
// its path. The per-transfer summary is written twice: summary.csv for
// plotting tools and transfer_stats.json for lossless read-back.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "transfer_stats.json"), artifacts.PerTransfer); err != nil {
		return "", err
	}
	if err := writeSummaryCSV(filepath.Join(runDir, "summary.csv"), artifacts.PerTransfer); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_stats.json"), artifacts.PerGeneration); err != nil {
		return "", err
	}
	if artifacts.Trajectories != nil {
		if err := writeJSON(filepath.Join(runDir, "trajectories.json"), artifacts.Trajectories); err != nil {
			return "", err
		}
	}
	if artifacts.Mutations != nil {
		if err := writeJSON(filepath.Join(runDir, "mutations.json"), artifacts.Mutations); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies one run's artifacts into outDir; the optional
// trajectory and mutation files are copied only when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{"config.json", "transfer_stats.json", "summary.csv", "generation_stats.json"}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{"trajectories.json", "mutations.json"} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadTransferStats(baseDir, runID string) ([]sim.TransferStats, bool, error) {
	path := filepath.Join(baseDir, runID, "transfer_stats.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var stats []sim.TransferStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, err
	}
	return stats, true, nil
}

func ReadTrajectories(baseDir, runID string) ([]sim.Trajectory, bool, error) {
	path := filepath.Join(baseDir, runID, "trajectories.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var trajectories []sim.Trajectory
	if err := json.Unmarshal(data, &trajectories); err != nil {
		return nil, false, err
	}
	return trajectories, true, nil
}

func ReadMutations(baseDir, runID string) ([]sim.MutationTrace, bool, error) {
	path := filepath.Join(baseDir, runID, "mutations.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var mutations []sim.MutationTrace
	if err := json.Unmarshal(data, &mutations); err != nil {
		return nil, false, err
	}
	return mutations, true, nil
}

var summaryHeader = []string{
	"transfer", "population", "lineage_count",
	"mean_fitness", "max_fitness", "stdev_fitness",
	"mean_mutations", "max_mutations", "min_mutations",
	"shannon_diversity", "marker_ratio",
}

func writeSummaryCSV(path string, stats []sim.TransferStats) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(summaryHeader); err != nil {
		return err
	}
	for _, ts := range stats {
		if err := writer.Write([]string{
			strconv.Itoa(ts.Transfer),
			strconv.FormatInt(ts.Population, 10),
			strconv.Itoa(ts.LineageCount),
			strconv.FormatFloat(ts.MeanFitness, 'f', -1, 64),
			strconv.FormatFloat(ts.MaxFitness, 'f', -1, 64),
			strconv.FormatFloat(ts.StdevFitness, 'f', -1, 64),
			strconv.FormatFloat(ts.MeanMutations, 'f', -1, 64),
			strconv.Itoa(ts.MaxMutations),
			strconv.Itoa(ts.MinMutations),
			strconv.FormatFloat(ts.ShannonDiversity, 'f', -1, 64),
			strconv.FormatFloat(ts.MarkerRatio, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessSeries reads the mean-fitness column from a run's summary.csv.
func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "summary.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	column := -1
	for i, name := range header {
		if name == "mean_fitness" {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, false, fmt.Errorf("summary header is missing a mean_fitness column")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) <= column {
			return nil, false, fmt.Errorf("summary row has %d columns, want at least %d", len(record), column+1)
		}
		value, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
