package sim

import (
	"fmt"

	"stepsim/internal/randx"
)

// dilute draws the next cycle's bottleneck population from the registry
// without replacement and replaces the registry contents with the survivors.
//
// The draw is a multivariate hypergeometric realized sequentially: each
// lineage's share is a hypergeometric draw conditioned on the individuals
// and sample slots remaining, walking the registry in creation order. The
// surviving counts therefore always sum to exactly bottleneck, and lineages
// drawn zero times are dropped. This sampling is the engine's only source
// of genetic drift.
func (r *Registry) dilute(bottleneck int64, src *randx.Source) error {
	if bottleneck <= 0 {
		return fmt.Errorf("%w: bottleneck size must be > 0", ErrConfig)
	}
	if r.total < bottleneck {
		return fmt.Errorf("%w: population %d smaller than bottleneck %d", ErrStateCorrupt, r.total, bottleneck)
	}

	next := r.successor()
	remainingPool := r.total
	remainingDraws := bottleneck
	for _, l := range r.lineages {
		if remainingDraws == 0 {
			break
		}
		drawn := src.Hypergeometric(remainingPool, l.Count, remainingDraws)
		remainingPool -= l.Count
		remainingDraws -= drawn
		if drawn > 0 {
			survivor := l
			survivor.Count = drawn
			next.adopt(survivor)
		}
	}

	if next.total != bottleneck {
		return fmt.Errorf("%w: dilution produced %d individuals, want %d", ErrStateCorrupt, next.total, bottleneck)
	}
	*r = *next
	return nil
}
