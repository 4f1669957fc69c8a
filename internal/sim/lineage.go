// Package sim implements the serial-transfer population evolution engine:
// the lineage registry, growth and mutation mechanics, dilution sampling,
// and the cycle driver that orchestrates them into full runs.
package sim

import "fmt"

// Lineage is one distinct genotype class: every individual counted by it
// shares an identical accumulated mutation history and fitness.
type Lineage struct {
	// ID is assigned at creation and never reused within a run. ID 0 is
	// reserved for the common ancestor of the marker lineages and never
	// appears in the registry itself.
	ID       uint64
	ParentID uint64
	// Marker identifies which initial neutral marker lineage this lineage
	// descends from (1-based).
	Marker int
	// Count is the exact number of individuals carrying this genotype.
	Count   int64
	Fitness float64
	// InvMeanEffect is the reciprocal of the current mean beneficial
	// effect size for this genetic background. Diminishing-returns
	// epistasis grows it as beneficial mutations accumulate.
	InvMeanEffect float64
	// Mutations counts mutations accumulated since the marker ancestor.
	Mutations int
}

// Registry holds the live population as an arena of lineages. Iteration
// order is creation order, which the growth and dilution steps rely on for
// deterministic random draw sequencing.
type Registry struct {
	lineages []Lineage
	total    int64
	nextID   uint64
}

// NewRegistry seeds a registry with the initial bottleneck population split
// evenly across the requested number of marker lineages. When the split is
// not exact, the leading markers absorb the remainder so the sum is exact.
func NewRegistry(bottleneck int64, markers int, invMeanEffect float64) (*Registry, error) {
	if bottleneck <= 0 {
		return nil, fmt.Errorf("%w: bottleneck size must be > 0", ErrConfig)
	}
	if markers <= 0 {
		return nil, fmt.Errorf("%w: marker count must be > 0", ErrConfig)
	}
	if int64(markers) > bottleneck {
		return nil, fmt.Errorf("%w: marker count %d exceeds bottleneck size %d", ErrConfig, markers, bottleneck)
	}

	r := &Registry{lineages: make([]Lineage, 0, markers)}
	base := bottleneck / int64(markers)
	extra := bottleneck % int64(markers)
	for m := 1; m <= markers; m++ {
		count := base
		if int64(m) <= extra {
			count++
		}
		r.push(Lineage{
			ParentID:      0,
			Marker:        m,
			Count:         count,
			Fitness:       1.0,
			InvMeanEffect: invMeanEffect,
			Mutations:     0,
		})
	}
	return r, nil
}

// successor returns an empty registry that continues this registry's id
// sequence. Used by dilution, which rebuilds the arena rather than deleting
// from the middle.
func (r *Registry) successor() *Registry {
	return &Registry{
		lineages: make([]Lineage, 0, len(r.lineages)),
		nextID:   r.nextID,
	}
}

// push appends a lineage, assigning the next id, and updates the total.
func (r *Registry) push(l Lineage) uint64 {
	r.nextID++
	l.ID = r.nextID
	r.lineages = append(r.lineages, l)
	r.total += l.Count
	return l.ID
}

// adopt appends a lineage that already carries a valid id.
func (r *Registry) adopt(l Lineage) {
	r.lineages = append(r.lineages, l)
	r.total += l.Count
}

// Total is the current population size across all lineages.
func (r *Registry) Total() int64 { return r.total }

// Len is the number of distinct live lineages.
func (r *Registry) Len() int { return len(r.lineages) }

// At returns the lineage at index i.
func (r *Registry) At(i int) Lineage { return r.lineages[i] }

// compact removes lineages whose count has dropped to zero.
func (r *Registry) compact() {
	kept := r.lineages[:0]
	for _, l := range r.lineages {
		if l.Count > 0 {
			kept = append(kept, l)
		}
	}
	r.lineages = kept
}

// checkConsistency verifies the count invariants. A violation is a defect,
// not a recoverable condition.
func (r *Registry) checkConsistency() error {
	var sum int64
	for _, l := range r.lineages {
		if l.Count < 0 {
			return fmt.Errorf("%w: lineage %d has negative count %d", ErrStateCorrupt, l.ID, l.Count)
		}
		sum += l.Count
	}
	if sum != r.total {
		return fmt.Errorf("%w: lineage counts sum to %d but total is %d", ErrStateCorrupt, sum, r.total)
	}
	return nil
}
