package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// BatchConfig describes a set of independent replicate runs sharing one
// base configuration. Replicate k runs with seed Base.Seed+k, so a batch is
// as reproducible as a single run.
type BatchConfig struct {
	Base       Config `json:"base" yaml:"base"`
	Replicates int    `json:"replicates" yaml:"replicates"`
	// Workers bounds concurrent replicates; zero means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

func (c BatchConfig) Validate() error {
	if c.Replicates <= 0 {
		return fmt.Errorf("%w: replicates must be > 0", ErrConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrConfig)
	}
	return c.Base.Validate()
}

// RunBatch executes all replicates across a bounded worker pool and returns
// their results indexed by replicate number. Each replicate has its own
// driver and random source; nothing is shared between workers. The first
// error cancels the batch.
func RunBatch(ctx context.Context, cfg BatchConfig) ([]RunResult, error) {
	cfg.Base = cfg.Base.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > cfg.Replicates {
		workers = cfg.Replicates
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		index  int
		result RunResult
		err    error
	}

	jobs := make(chan int)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				replicate := cfg.Base
				replicate.Seed = cfg.Base.Seed + int64(index)
				driver, err := NewDriver(replicate)
				if err != nil {
					results <- outcome{index: index, err: err}
					continue
				}
				result, err := driver.Run(ctx)
				results <- outcome{index: index, result: result, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Replicates; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]RunResult, cfg.Replicates)
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		out[res.index] = res.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
