package sim

import (
	"context"
	"testing"
)

func metaFixture(t *testing.T) (*Metagenome, *Registry) {
	t.Helper()
	reg, err := NewRegistry(100, 1, 1.0)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	meta := NewMetagenome()
	meta.Register(reg.At(0), Lineage{ID: 0, Fitness: 1.0})
	return meta, reg
}

func TestMetagenomeSizesFollowCarriers(t *testing.T) {
	meta, reg := metaFixture(t)
	marker := reg.At(0)

	// A mutant on the marker background: both the marker's trace and the
	// mutant's own trace must count its carriers.
	mutant := Lineage{ParentID: marker.ID, Marker: 1, Count: 30, Fitness: 1.2, InvMeanEffect: 1.0, Mutations: 1}
	reg.total -= 30
	reg.lineages[0].Count -= 30
	mutant.ID = reg.push(mutant)
	meta.Register(mutant, marker)

	meta.SetTransfer(1)
	meta.UpdateSizes(reg)

	records := meta.Records()
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	byID := map[uint64]MutationTrace{}
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	if got := byID[mutant.ID].Sizes; len(got) != 1 || got[0] != 30 {
		t.Fatalf("mutant sizes = %v, want [30]", got)
	}
	if got := byID[marker.ID].Sizes; len(got) == 0 || got[len(got)-1] != 100 {
		t.Fatalf("marker sizes = %v, want last entry 100 (all carriers)", got)
	}
	if byID[mutant.ID].BackgroundID != marker.ID {
		t.Fatalf("mutant background = %d, want %d", byID[mutant.ID].BackgroundID, marker.ID)
	}
	if delta := byID[mutant.ID].DeltaW; delta < 0.199 || delta > 0.201 {
		t.Fatalf("mutant DeltaW = %g, want 0.2", delta)
	}
}

func TestMetagenomePrunesFixedMutations(t *testing.T) {
	meta, reg := metaFixture(t)
	meta.SetTransfer(0)
	meta.UpdateSizes(reg)

	// The marker carries the entire population, so its trace is fixed and
	// must leave the active set while staying in the output.
	if len(meta.active) != 0 {
		t.Fatalf("active traces = %d after fixation, want 0", len(meta.active))
	}
	records := meta.Records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want the fixed trace retained", len(records))
	}
	if got := records[0].Sizes; len(got) != 1 || got[0] != 100 {
		t.Fatalf("fixed trace sizes = %v, want [100]", got)
	}
}

func TestMetagenomePrunesExtinctMutations(t *testing.T) {
	meta, reg := metaFixture(t)
	marker := reg.At(0)

	meta.SetTransfer(1)
	mutant := Lineage{ParentID: marker.ID, Marker: 1, Count: 10, Fitness: 0.9, InvMeanEffect: 1.0, Mutations: 1}
	reg.total -= 10
	reg.lineages[0].Count -= 10
	mutant.ID = reg.push(mutant)
	meta.Register(mutant, marker)

	meta.UpdateSizes(reg)

	// The mutant dies out before the next update.
	reg.total -= 10
	reg.lineages[1].Count = 0
	reg.lineages[0].Count += 10
	reg.total += 10
	reg.compact()

	meta.SetTransfer(2)
	meta.UpdateSizes(reg)

	if _, ok := meta.active[mutant.ID]; ok {
		t.Fatalf("extinct mutation %d still active", mutant.ID)
	}
	records := meta.Records()
	var found bool
	for _, rec := range records {
		if rec.ID == mutant.ID {
			found = true
			if len(rec.Sizes) != 1 || rec.Sizes[0] != 10 {
				t.Fatalf("extinct trace sizes = %v, want [10]", rec.Sizes)
			}
			if rec.FirstTransfer != 1 {
				t.Fatalf("extinct trace first transfer = %d, want 1", rec.FirstTransfer)
			}
		}
	}
	if !found {
		t.Fatalf("extinct mutation %d missing from records", mutant.ID)
	}
}

func TestRunMetagenomeChainsBackgrounds(t *testing.T) {
	cfg := testConfig()
	cfg.TrackMutations = true
	cfg.Transfers = 5
	d, err := NewDriver(cfg)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Mutations) == 0 {
		t.Fatalf("no mutation records")
	}
	ids := map[uint64]bool{0: true}
	for _, rec := range result.Mutations {
		ids[rec.ID] = true
	}
	for _, rec := range result.Mutations {
		if !ids[rec.BackgroundID] {
			t.Fatalf("mutation %d references unknown background %d", rec.ID, rec.BackgroundID)
		}
		if rec.FirstTransfer < 0 || rec.FirstTransfer > cfg.Transfers {
			t.Fatalf("mutation %d first transfer %d out of range", rec.ID, rec.FirstTransfer)
		}
	}
}
