package sim

import "sort"

// MutationTrace follows one mutation's carrier population over transfers.
// The mutation's id is the id of the first lineage that carried it; the
// background id is that lineage's parent, so traces chain backwards through
// the lineage tree.
type MutationTrace struct {
	ID           uint64 `json:"id"`
	BackgroundID uint64 `json:"background_id"`
	// DeltaW is the multiplicative fitness change introduced by this
	// mutation relative to its background.
	DeltaW        float64 `json:"delta_w"`
	FirstTransfer int     `json:"first_transfer"`
	// Sizes holds the mutation's total carrier count at each transfer
	// starting from FirstTransfer.
	Sizes []int64 `json:"sizes"`

	justUpdated bool
}

// Metagenome tracks the carrier populations of all mutations for the
// metagenomic output. Mutations that fix or go extinct are pruned from the
// active set so per-transfer updates stay proportional to the number of
// segregating mutations; pruned traces are retained for output.
type Metagenome struct {
	active   map[uint64]*MutationTrace
	pruned   []*MutationTrace
	transfer int
}

func NewMetagenome() *Metagenome {
	return &Metagenome{active: make(map[uint64]*MutationTrace)}
}

// SetTransfer must be called before UpdateSizes whenever the transfer
// counter advances.
func (m *Metagenome) SetTransfer(transfer int) { m.transfer = transfer }

// Register records the mutation that separates child from parent.
func (m *Metagenome) Register(child, parent Lineage) {
	m.active[child.ID] = &MutationTrace{
		ID:            child.ID,
		BackgroundID:  parent.ID,
		DeltaW:        child.Fitness/parent.Fitness - 1.0,
		FirstTransfer: m.transfer,
	}
}

// UpdateSizes accumulates every live lineage's count into the trace of each
// mutation on its background chain, then prunes traces that received no
// carriers (extinct) or whose carriers are the whole population (fixed).
func (m *Metagenome) UpdateSizes(reg *Registry) {
	for _, trace := range m.active {
		trace.justUpdated = false
	}

	total := reg.Total()
	for i := 0; i < reg.Len(); i++ {
		l := reg.At(i)
		// Walk background ids until one is no longer tracked, meaning it
		// has been pruned or predates tracking.
		id := l.ID
		for {
			trace, ok := m.active[id]
			if !ok {
				break
			}
			if trace.justUpdated {
				trace.Sizes[len(trace.Sizes)-1] += l.Count
			} else {
				trace.Sizes = append(trace.Sizes, l.Count)
				trace.justUpdated = true
			}
			id = trace.BackgroundID
		}
	}

	for id, trace := range m.active {
		extinct := !trace.justUpdated
		fixed := trace.justUpdated && trace.Sizes[len(trace.Sizes)-1] == total
		if extinct || fixed {
			m.pruned = append(m.pruned, trace)
			delete(m.active, id)
		}
	}
}

// Records returns all traces, pruned and still segregating, ordered by
// mutation id.
func (m *Metagenome) Records() []MutationTrace {
	out := make([]MutationTrace, 0, len(m.active)+len(m.pruned))
	for _, trace := range m.pruned {
		out = append(out, *trace)
	}
	for _, trace := range m.active {
		out = append(out, *trace)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
