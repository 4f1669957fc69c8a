package sim

import "math"

// TransferStats summarizes the population at one transfer boundary, taken
// immediately after the dilution that ends the cycle.
type TransferStats struct {
	Transfer         int     `json:"transfer"`
	Population       int64   `json:"population"`
	LineageCount     int     `json:"lineage_count"`
	MeanFitness      float64 `json:"mean_fitness"`
	MaxFitness       float64 `json:"max_fitness"`
	StdevFitness     float64 `json:"stdev_fitness"`
	MeanMutations    float64 `json:"mean_mutations"`
	MaxMutations     int     `json:"max_mutations"`
	MinMutations     int     `json:"min_mutations"`
	ShannonDiversity float64 `json:"shannon_diversity"`
	// MarkerRatio is the ratio of the marker-1 subpopulation to all other
	// markers combined; zero when fewer than two markers are configured.
	MarkerRatio float64 `json:"marker_ratio"`
}

// GenerationStats is the lighter per-generation summary recorded while a
// cycle is still growing.
type GenerationStats struct {
	Generation    int     `json:"generation"`
	Transfer      int     `json:"transfer"`
	Population    int64   `json:"population"`
	LineageCount  int     `json:"lineage_count"`
	MeanFitness   float64 `json:"mean_fitness"`
	MeanMutations float64 `json:"mean_mutations"`
}

// meanFitness is the population-weighted arithmetic mean lineage fitness.
func (r *Registry) meanFitness() float64 {
	if r.total == 0 {
		return 0
	}
	weighted := 0.0
	for _, l := range r.lineages {
		weighted += float64(l.Count) * l.Fitness
	}
	return weighted / float64(r.total)
}

// meanMutations is the mean number of accumulated mutations per individual.
func (r *Registry) meanMutations() float64 {
	if r.total == 0 {
		return 0
	}
	weighted := 0.0
	for _, l := range r.lineages {
		weighted += float64(l.Count) * float64(l.Mutations)
	}
	return weighted / float64(r.total)
}

func (r *Registry) generationStats(generation, transfer int) GenerationStats {
	return GenerationStats{
		Generation:    generation,
		Transfer:      transfer,
		Population:    r.total,
		LineageCount:  len(r.lineages),
		MeanFitness:   r.meanFitness(),
		MeanMutations: r.meanMutations(),
	}
}

func (r *Registry) transferStats(transfer int, markers int) TransferStats {
	stats := TransferStats{
		Transfer:     transfer,
		Population:   r.total,
		LineageCount: len(r.lineages),
	}
	if r.total == 0 {
		return stats
	}

	mean := r.meanFitness()
	stats.MeanFitness = mean
	stats.MeanMutations = r.meanMutations()

	sse := 0.0
	var marker1 int64
	stats.MinMutations = r.lineages[0].Mutations
	for _, l := range r.lineages {
		if l.Fitness > stats.MaxFitness {
			stats.MaxFitness = l.Fitness
		}
		if l.Mutations > stats.MaxMutations {
			stats.MaxMutations = l.Mutations
		}
		if l.Mutations < stats.MinMutations {
			stats.MinMutations = l.Mutations
		}
		diff := l.Fitness - mean
		sse += float64(l.Count) * diff * diff
		if l.Marker == 1 {
			marker1 += l.Count
		}
	}
	stats.StdevFitness = math.Sqrt(sse / float64(r.total))
	stats.ShannonDiversity = r.shannonDiversity()
	if markers > 1 {
		others := r.total - marker1
		if others > 0 {
			stats.MarkerRatio = float64(marker1) / float64(others)
		}
	}
	return stats
}

// shannonDiversity is sum(-p ln p) over lineage frequencies p.
func (r *Registry) shannonDiversity() float64 {
	if r.total == 0 {
		return 0
	}
	sumN := float64(r.total)
	weightedLog := 0.0
	for _, l := range r.lineages {
		n := float64(l.Count)
		weightedLog += n * math.Log(n)
	}
	return math.Log(sumN) - weightedLog/sumN
}
