// Package randx provides the seeded random source used by the simulation
// engine. Every stochastic decision in a run flows through a single Source,
// so identical seeds and identical draw orders produce identical runs.
package randx

import (
	"math"
	"math/rand"
)

// Threshold above which Poisson draws switch from sequential search to
// mode-centered inversion.
const poissonInversionCutoff = 10.0

type Source struct {
	rng *rand.Rand
}

func New(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform variate in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Uniform returns a uniform variate in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// Bernoulli returns true with probability p.
func (s *Source) Bernoulli(p float64) bool {
	return s.rng.Float64() < p
}

// Exponential returns an exponential variate with the given mean.
func (s *Source) Exponential(mean float64) float64 {
	return mean * s.rng.ExpFloat64()
}

// Categorical picks an index weighted by the given non-negative weights.
// If no weight is positive, the last index is returned.
func (s *Source) Categorical(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return len(weights) - 1
	}
	pick := s.rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if pick <= acc && w > 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Poisson returns a Poisson count with the given mean. Small means use
// sequential search; large means use mode-centered inversion. Exactly one
// uniform is consumed per draw in both regimes.
func (s *Source) Poisson(mean float64) int64 {
	if mean <= 0 {
		return 0
	}
	if mean <= poissonInversionCutoff {
		return s.poissonSequential(mean)
	}
	return s.poissonInversion(mean)
}

func (s *Source) poissonSequential(mean float64) int64 {
	var x int64
	p := math.Exp(-mean)
	u := s.rng.Float64()
	for u > p {
		x++
		u -= p
		p *= mean / float64(x)
	}
	return x
}

// poissonInversion inverts the CDF starting from the mode and expanding
// outward, always consuming the larger of the two frontier probabilities
// first so the expected number of steps stays O(sqrt(mean)).
func (s *Source) poissonInversion(mean float64) int64 {
	m := int64(mean)
	lg, _ := math.Lgamma(float64(m) + 1)
	pm := math.Exp(float64(m)*math.Log(mean) - mean - lg)

	u := s.rng.Float64()
	if u < pm {
		return m
	}
	acc := pm
	lo, hi := m, m
	plo, phi := pm, pm
	for {
		up := phi * mean / float64(hi+1)
		down := 0.0
		if lo > 0 {
			down = plo * float64(lo) / mean
		}
		if up <= 0 && down <= 0 {
			// Both tails underflowed; the mass left is numerically zero.
			return hi
		}
		if up >= down {
			hi++
			phi = up
			acc += up
			if u < acc {
				return hi
			}
		} else {
			plo = down
			lo--
			acc += down
			if u < acc {
				return lo
			}
		}
	}
}

// Hypergeometric returns the number of marked individuals in a sample of
// size draws taken without replacement from a population of size population
// containing successes marked individuals. Inversion from the mode, one
// uniform per draw.
func (s *Source) Hypergeometric(population, successes, draws int64) int64 {
	if population < 0 || successes < 0 || draws < 0 || successes > population || draws > population {
		panic("randx: hypergeometric parameters out of domain")
	}
	if draws == 0 || successes == 0 {
		return 0
	}
	if successes == population {
		return draws
	}

	kLo := draws + successes - population
	if kLo < 0 {
		kLo = 0
	}
	kHi := draws
	if successes < kHi {
		kHi = successes
	}
	if kLo == kHi {
		return kLo
	}

	mode := (draws + 1) * (successes + 1) / (population + 2)
	if mode < kLo {
		mode = kLo
	}
	if mode > kHi {
		mode = kHi
	}
	pm := math.Exp(logHypergeometricPMF(population, successes, draws, mode))

	u := s.rng.Float64()
	if u < pm {
		return mode
	}
	acc := pm
	lo, hi := mode, mode
	plo, phi := pm, pm
	for {
		up := 0.0
		if hi < kHi {
			k := float64(hi)
			up = phi * (float64(successes) - k) * (float64(draws) - k) /
				((k + 1) * (float64(population-successes-draws) + k + 1))
		}
		down := 0.0
		if lo > kLo {
			k := float64(lo)
			down = plo * k * (float64(population-successes-draws) + k) /
				((float64(successes) - k + 1) * (float64(draws) - k + 1))
		}
		if up <= 0 && down <= 0 {
			return hi
		}
		if up >= down {
			hi++
			phi = up
			acc += up
			if u < acc {
				return hi
			}
		} else {
			plo = down
			lo--
			acc += down
			if u < acc {
				return lo
			}
		}
	}
}

func logHypergeometricPMF(population, successes, draws, k int64) float64 {
	return logChoose(successes, k) +
		logChoose(population-successes, draws-k) -
		logChoose(population, draws)
}

func logChoose(n, k int64) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(float64(n) + 1)
	b, _ := math.Lgamma(float64(k) + 1)
	c, _ := math.Lgamma(float64(n-k) + 1)
	return a - b - c
}
