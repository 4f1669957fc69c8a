package sim

import "sort"

// TrajectorySample is one frequency observation for a tracked lineage.
type TrajectorySample struct {
	Generation int     `json:"generation"`
	Frequency  float64 `json:"frequency"`
}

// Trajectory is the recorded frequency history of one lineage that crossed
// the tracking threshold at least once. ParentID allows lineage-tree
// reconstruction from the output alone.
type Trajectory struct {
	LineageID uint64             `json:"lineage_id"`
	ParentID  uint64             `json:"parent_id"`
	Marker    int                `json:"marker"`
	Samples   []TrajectorySample `json:"samples"`
	Finalized bool               `json:"finalized"`
}

// TrajectoryTracker keeps bounded-memory frequency histories. Lineages that
// never cross the threshold are never recorded; tracked lineages that go
// extinct have their record finalized and kept for output, so memory is
// bounded by the number of threshold-crossing lineages rather than by all
// lineages ever created.
type TrajectoryTracker struct {
	threshold float64
	active    map[uint64]*Trajectory
	finalized []*Trajectory
}

func NewTrajectoryTracker(threshold float64) *TrajectoryTracker {
	return &TrajectoryTracker{
		threshold: threshold,
		active:    make(map[uint64]*Trajectory),
	}
}

// Observe appends a sample for every lineage at or above the threshold and
// finalizes records of tracked lineages that are no longer alive.
func (t *TrajectoryTracker) Observe(generation int, reg *Registry) {
	total := reg.Total()
	if total == 0 {
		return
	}

	alive := make(map[uint64]struct{}, reg.Len())
	for i := 0; i < reg.Len(); i++ {
		l := reg.At(i)
		alive[l.ID] = struct{}{}
		freq := float64(l.Count) / float64(total)
		if freq < t.threshold {
			continue
		}
		record, ok := t.active[l.ID]
		if !ok {
			record = &Trajectory{LineageID: l.ID, ParentID: l.ParentID, Marker: l.Marker}
			t.active[l.ID] = record
		}
		record.Samples = append(record.Samples, TrajectorySample{Generation: generation, Frequency: freq})
	}

	for id, record := range t.active {
		if _, ok := alive[id]; ok {
			continue
		}
		record.Finalized = true
		t.finalized = append(t.finalized, record)
		delete(t.active, id)
	}
}

// Records returns all trajectories, finalized and still-active, ordered by
// lineage id.
func (t *TrajectoryTracker) Records() []Trajectory {
	out := make([]Trajectory, 0, len(t.active)+len(t.finalized))
	for _, record := range t.finalized {
		out = append(out, *record)
	}
	for _, record := range t.active {
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineageID < out[j].LineageID })
	return out
}
