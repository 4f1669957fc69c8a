package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const batchExperimentsDir = "batches"

// ReplicateSummary is the one-line outcome of a single replicate inside a
// batch experiment.
type ReplicateSummary struct {
	Replicate        int     `json:"replicate"`
	RunID            string  `json:"run_id"`
	Seed             int64   `json:"seed"`
	Generations      int     `json:"generations"`
	FinalMeanFitness float64 `json:"final_mean_fitness"`
	FinalMaxFitness  float64 `json:"final_max_fitness"`
	FinalDiversity   float64 `json:"final_diversity"`
	ClampEvents      int64   `json:"clamp_events"`
}

// BatchExperiment records a replicate batch: which runs it produced and how
// far it got, so an interrupted batch can be inspected after the fact.
type BatchExperiment struct {
	ID             string             `json:"id"`
	Notes          string             `json:"notes,omitempty"`
	Replicates     int                `json:"replicates"`
	Workers        int                `json:"workers"`
	BaseSeed       int64              `json:"base_seed"`
	StartedAtUTC   string             `json:"started_at_utc,omitempty"`
	CompletedAtUTC string             `json:"completed_at_utc,omitempty"`
	RunIDs         []string           `json:"run_ids,omitempty"`
	Summaries      []ReplicateSummary `json:"summaries,omitempty"`
}

func WriteBatchExperiment(baseDir string, exp BatchExperiment) error {
	if exp.ID == "" {
		return fmt.Errorf("batch id is required")
	}
	path := batchExperimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func ReadBatchExperiment(baseDir, id string) (BatchExperiment, bool, error) {
	if id == "" {
		return BatchExperiment{}, false, fmt.Errorf("batch id is required")
	}
	path := batchExperimentPath(baseDir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BatchExperiment{}, false, nil
		}
		return BatchExperiment{}, false, err
	}
	var exp BatchExperiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return BatchExperiment{}, false, err
	}
	return exp, true, nil
}

func ListBatchExperiments(baseDir string) ([]BatchExperiment, error) {
	root := filepath.Join(baseDir, batchExperimentsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []BatchExperiment{}, nil
		}
		return nil, err
	}

	exps := make([]BatchExperiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadBatchExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func batchExperimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, batchExperimentsDir, id, "experiment.json")
}
