package sim

import (
	"context"
	"errors"
	"testing"
)

func TestRunBatchMatchesSingleRuns(t *testing.T) {
	base := testConfig()
	base.Transfers = 5

	batch, err := RunBatch(context.Background(), BatchConfig{Base: base, Replicates: 4, Workers: 2})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(batch) != 4 {
		t.Fatalf("results = %d, want 4", len(batch))
	}

	for i, got := range batch {
		cfg := base.withDefaults()
		cfg.Seed = base.Seed + int64(i)
		d, err := NewDriver(cfg)
		if err != nil {
			t.Fatalf("NewDriver replicate %d: %v", i, err)
		}
		want, err := d.Run(context.Background())
		if err != nil {
			t.Fatalf("Run replicate %d: %v", i, err)
		}
		if got.Config.Seed != cfg.Seed {
			t.Fatalf("replicate %d ran seed %d, want %d", i, got.Config.Seed, cfg.Seed)
		}
		if got.Generations != want.Generations {
			t.Fatalf("replicate %d generations = %d, want %d", i, got.Generations, want.Generations)
		}
		last := len(want.PerTransfer) - 1
		if got.PerTransfer[last] != want.PerTransfer[last] {
			t.Fatalf("replicate %d final stats diverged:\n%+v\n%+v", i, got.PerTransfer[last], want.PerTransfer[last])
		}
	}
}

func TestRunBatchReplicatesDiffer(t *testing.T) {
	base := testConfig()
	base.Transfers = 5

	batch, err := RunBatch(context.Background(), BatchConfig{Base: base, Replicates: 2, Workers: 2})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	last := len(batch[0].PerTransfer) - 1
	if batch[0].PerTransfer[last] == batch[1].PerTransfer[last] {
		t.Fatalf("distinct replicate seeds produced identical final stats")
	}
}

func TestRunBatchValidation(t *testing.T) {
	base := testConfig()
	if _, err := RunBatch(context.Background(), BatchConfig{Base: base, Replicates: 0}); !errors.Is(err, ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
	bad := base
	bad.DilutionFactor = 0
	if _, err := RunBatch(context.Background(), BatchConfig{Base: bad, Replicates: 2}); !errors.Is(err, ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
}

func TestRunBatchHonorsCancellation(t *testing.T) {
	base := testConfig()
	base.Transfers = 500

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunBatch(ctx, BatchConfig{Base: base, Replicates: 4, Workers: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
