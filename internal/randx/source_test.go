package randx

import (
	"math"
	"testing"
)

func TestDeterministicSequences(t *testing.T) {
	a := New(606)
	b := New(606)

	for i := 0; i < 1000; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("uniform sequences diverged at draw %d", i)
		}
	}
	for i := 0; i < 200; i++ {
		if a.Poisson(3.7) != b.Poisson(3.7) {
			t.Fatalf("poisson sequences diverged at draw %d", i)
		}
		if a.Poisson(850.0) != b.Poisson(850.0) {
			t.Fatalf("large-mean poisson sequences diverged at draw %d", i)
		}
		if a.Hypergeometric(100000, 4321, 1000) != b.Hypergeometric(100000, 4321, 1000) {
			t.Fatalf("hypergeometric sequences diverged at draw %d", i)
		}
		if a.Exponential(0.012) != b.Exponential(0.012) {
			t.Fatalf("exponential sequences diverged at draw %d", i)
		}
	}
}

func TestSeedsProduceDifferentStreams(t *testing.T) {
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("different seeds produced identical uniform streams")
	}
}

func TestPoissonEmpiricalMean(t *testing.T) {
	cases := []float64{0.5, 3.0, 9.9, 25.0, 850.0}
	for _, mean := range cases {
		src := New(42)
		const n = 20000
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += float64(src.Poisson(mean))
		}
		got := sum / n
		tolerance := 4 * math.Sqrt(mean/n)
		if math.Abs(got-mean) > tolerance {
			t.Errorf("poisson(%g): empirical mean %g outside tolerance %g", mean, got, tolerance)
		}
	}
}

func TestPoissonZeroMean(t *testing.T) {
	src := New(7)
	for i := 0; i < 10; i++ {
		if got := src.Poisson(0); got != 0 {
			t.Fatalf("poisson(0) = %d, want 0", got)
		}
	}
}

func TestHypergeometricBounds(t *testing.T) {
	src := New(99)
	const (
		population = int64(10000)
		successes  = int64(300)
		draws      = int64(1000)
	)
	for i := 0; i < 5000; i++ {
		k := src.Hypergeometric(population, successes, draws)
		if k < 0 || k > successes || k > draws {
			t.Fatalf("hypergeometric draw %d out of support", k)
		}
	}
}

func TestHypergeometricEmpiricalMean(t *testing.T) {
	src := New(123)
	const (
		population = int64(500000000)
		successes  = int64(250000000)
		draws      = int64(5000)
	)
	want := float64(draws) * float64(successes) / float64(population)
	const n = 3000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(src.Hypergeometric(population, successes, draws))
	}
	got := sum / n
	if math.Abs(got-want) > 0.05*want {
		t.Fatalf("hypergeometric empirical mean %g, want near %g", got, want)
	}
}

func TestHypergeometricDegenerateCases(t *testing.T) {
	src := New(5)
	if got := src.Hypergeometric(100, 0, 50); got != 0 {
		t.Fatalf("no successes: got %d, want 0", got)
	}
	if got := src.Hypergeometric(100, 100, 50); got != 50 {
		t.Fatalf("all successes: got %d, want 50", got)
	}
	if got := src.Hypergeometric(100, 40, 0); got != 0 {
		t.Fatalf("no draws: got %d, want 0", got)
	}
	// Forced lower bound: drawing 90 from 100 with 95 marked must include
	// at least 85 marked individuals.
	for i := 0; i < 100; i++ {
		k := src.Hypergeometric(100, 95, 90)
		if k < 85 || k > 90 {
			t.Fatalf("forced-bound draw %d outside [85, 90]", k)
		}
	}
}

func TestCategoricalRespectsWeights(t *testing.T) {
	src := New(11)
	weights := []float64{0.0, 3.0, 1.0}
	counts := make([]int, len(weights))
	const n = 10000
	for i := 0; i < n; i++ {
		counts[src.Categorical(weights)]++
	}
	if counts[0] != 0 {
		t.Fatalf("zero-weight category chosen %d times", counts[0])
	}
	ratio := float64(counts[1]) / float64(counts[2])
	if ratio < 2.5 || ratio > 3.5 {
		t.Fatalf("weight ratio %g, want near 3.0", ratio)
	}
}

func TestCategoricalAllZeroWeights(t *testing.T) {
	src := New(3)
	if got := src.Categorical([]float64{0, 0, 0}); got != 2 {
		t.Fatalf("all-zero weights: got index %d, want last", got)
	}
}

func TestExponentialEmpiricalMean(t *testing.T) {
	src := New(17)
	const mean = 0.012
	const n = 50000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += src.Exponential(mean)
	}
	got := sum / n
	if math.Abs(got-mean) > 0.05*mean {
		t.Fatalf("exponential empirical mean %g, want near %g", got, mean)
	}
}

func TestUniformRange(t *testing.T) {
	src := New(29)
	for i := 0; i < 1000; i++ {
		v := src.Uniform(0.2, 0.8)
		if v < 0.2 || v >= 0.8 {
			t.Fatalf("uniform draw %g outside [0.2, 0.8)", v)
		}
	}
}
