// Package perturb implements the perturbation engine: the seeded sampler,
// the ground-truth mapping tracker, and the operator pipeline that turns an
// input graph into a perturbed graph plus an exact entity correspondence.
package perturb

import (
	"math/rand"
	"sort"
)

// Sampler is the single pseudo-random source for one run. Candidate sets are
// sorted before every draw, so a fixed seed gives a fixed decision sequence
// regardless of map iteration order upstream. Not safe for concurrent use;
// the engine draws all decisions sequentially.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler seeded once for the run.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Intn returns a uniform draw from [0, n).
func (s *Sampler) Intn(n int) int {
	return s.rng.Intn(n)
}

// Float64 returns a uniform draw from [0, 1).
func (s *Sampler) Float64() float64 {
	return s.rng.Float64()
}

// SampleStrings draws n distinct values without replacement. n is clamped to
// [0, len(candidates)]; callers detect the upper clamp by comparing lengths.
func (s *Sampler) SampleStrings(candidates []string, n int) []string {
	pool := make([]string, len(candidates))
	copy(pool, candidates)
	sort.Strings(pool)

	if n < 0 {
		n = 0
	}
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// Pick draws one value uniformly. Candidates must be non-empty.
func (s *Sampler) Pick(candidates []string) string {
	pool := make([]string, len(candidates))
	copy(pool, candidates)
	sort.Strings(pool)
	return pool[s.rng.Intn(len(pool))]
}

// Shuffle permutes items in place.
func (s *Sampler) Shuffle(items []string) {
	sort.Strings(items)
	s.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
