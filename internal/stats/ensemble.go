package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"stepsim/internal/sim"
)

// EnsembleGraph aggregates replicate runs transfer by transfer: each slice
// holds one value per transfer index, averaged (or spread) across every
// replicate that reached that transfer.
type EnsembleGraph struct {
	Transfers     []int     `json:"transfers"`
	AvgFitness    []float64 `json:"avg_fitness"`
	FitnessStd    []float64 `json:"fitness_std"`
	MaxFitness    []float64 `json:"max_fitness"`
	MinFitness    []float64 `json:"min_fitness"`
	AvgMutations  []float64 `json:"avg_mutations"`
	AvgDiversity  []float64 `json:"avg_diversity"`
	DiversityStd  []float64 `json:"diversity_std"`
	ReplicateRuns int       `json:"replicate_runs"`
}

// BuildEnsembleGraph folds per-replicate transfer series into one graph.
// Replicates may have different lengths; each transfer index aggregates
// whichever replicates reached it.
func BuildEnsembleGraph(series [][]sim.TransferStats) (EnsembleGraph, error) {
	if len(series) == 0 {
		return EnsembleGraph{}, fmt.Errorf("at least one replicate series is required")
	}

	longest := 0
	for _, s := range series {
		if len(s) > longest {
			longest = len(s)
		}
	}

	graph := EnsembleGraph{ReplicateRuns: len(series)}
	for transfer := 0; transfer < longest; transfer++ {
		fitness := make([]float64, 0, len(series))
		mutations := make([]float64, 0, len(series))
		diversity := make([]float64, 0, len(series))
		maxFitness := math.Inf(-1)
		minFitness := math.Inf(1)
		for _, s := range series {
			if transfer >= len(s) {
				continue
			}
			ts := s[transfer]
			fitness = append(fitness, ts.MeanFitness)
			mutations = append(mutations, ts.MeanMutations)
			diversity = append(diversity, ts.ShannonDiversity)
			if ts.MaxFitness > maxFitness {
				maxFitness = ts.MaxFitness
			}
			if ts.MeanFitness < minFitness {
				minFitness = ts.MeanFitness
			}
		}

		fitnessAvg, fitnessStd := meanStd(fitness)
		mutationsAvg, _ := meanStd(mutations)
		diversityAvg, diversityStd := meanStd(diversity)

		graph.Transfers = append(graph.Transfers, transfer)
		graph.AvgFitness = append(graph.AvgFitness, fitnessAvg)
		graph.FitnessStd = append(graph.FitnessStd, fitnessStd)
		graph.MaxFitness = append(graph.MaxFitness, maxFitness)
		graph.MinFitness = append(graph.MinFitness, minFitness)
		graph.AvgMutations = append(graph.AvgMutations, mutationsAvg)
		graph.AvgDiversity = append(graph.AvgDiversity, diversityAvg)
		graph.DiversityStd = append(graph.DiversityStd, diversityStd)
	}
	return graph, nil
}

// WriteEnsembleGraph stores a batch's aggregate graph next to its
// experiment record.
func WriteEnsembleGraph(baseDir, batchID string, graph EnsembleGraph) error {
	if batchID == "" {
		return fmt.Errorf("batch id is required")
	}
	dir := filepath.Dir(batchExperimentPath(baseDir, batchID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "ensemble.json"), graph)
}

func ReadEnsembleGraph(baseDir, batchID string) (EnsembleGraph, bool, error) {
	if batchID == "" {
		return EnsembleGraph{}, false, fmt.Errorf("batch id is required")
	}
	dir := filepath.Dir(batchExperimentPath(baseDir, batchID))
	data, err := os.ReadFile(filepath.Join(dir, "ensemble.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return EnsembleGraph{}, false, nil
		}
		return EnsembleGraph{}, false, err
	}
	var graph EnsembleGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		return EnsembleGraph{}, false, err
	}
	return graph, true, nil
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	sse := 0.0
	for _, v := range values {
		diff := v - mean
		sse += diff * diff
	}
	return mean, math.Sqrt(sse / float64(len(values)))
}
