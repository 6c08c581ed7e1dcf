package opt

import (
	"math/rand"

	"github.com/mohae/deepcopy"
)

// Individual is a chromosome: a permutation of customer IDs with a cached fitness.
// A nil Fitness means the genes changed since the last evaluation.
type Individual struct {
	Genes   []int
	Fitness *float64
}

// NewIndividual returns an unevaluated individual over a copy of genes.
func NewIndividual(genes []int) *Individual {
	return &Individual{Genes: append([]int(nil), genes...)}
}

// RandomIndividual shuffles ids into a new unevaluated individual.
func RandomIndividual(ids []int, rng *rand.Rand) *Individual {
	ind := NewIndividual(ids)
	rng.Shuffle(len(ind.Genes), func(i, j int) { ind.Genes[i], ind.Genes[j] = ind.Genes[j], ind.Genes[i] })
	return ind
}

// Valid reports whether the cached fitness can be used.
func (ind *Individual) Valid() bool { return ind.Fitness != nil }

// Value returns the cached fitness, or 0 when invalid.
func (ind *Individual) Value() float64 {
	if ind.Fitness == nil {
		return 0
	}
	return *ind.Fitness
}

// SetFitness caches an evaluated fitness.
func (ind *Individual) SetFitness(f float64) { ind.Fitness = &f }

// Invalidate drops the cached fitness.
func (ind *Individual) Invalidate() { ind.Fitness = nil }

// Clone deep-copies the individual so later operators do not alias the source.
func (ind *Individual) Clone() *Individual {
	return deepcopy.Copy(ind).(*Individual)
}

// IsPermutation reports whether genes hold every id of want exactly once.
func IsPermutation(genes, want []int) bool {
	if len(genes) != len(want) {
		return false
	}
	count := make(map[int]int, len(want))
	for _, id := range want {
		count[id]++
	}
	for _, g := range genes {
		count[g]--
		if count[g] < 0 {
			return false
		}
	}
	return true
}
