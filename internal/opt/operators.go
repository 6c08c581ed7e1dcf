package opt

import (
	"math/rand"
	"sort"
)

// Selector picks the elite and the breeding pool from an evaluated population.
type Selector interface {
	Select(pop []*Individual, rng *rand.Rand) (elite *Individual, pool []*Individual)
}

// Crossover recombines two chromosomes in place.
type Crossover interface {
	Cross(a, b []int, rng *rand.Rand)
}

// Mutator perturbs one chromosome in place.
type Mutator interface {
	Mutate(genes []int, rng *rand.Rand)
}

// SelectBest returns the k fittest individuals, best first. Ties keep population order.
func SelectBest(pop []*Individual, k int) []*Individual {
	sorted := append([]*Individual(nil), pop...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value() > sorted[j].Value() })
	if k > len(sorted) {
		k = len(sorted)
	}
	if k < 0 {
		k = 0
	}
	return sorted[:k]
}

// SelectRoulette draws k individuals with replacement, each with probability proportional
// to its fitness. Equal (or all-zero) fitness falls back to uniform draws.
func SelectRoulette(pop []*Individual, k int, rng *rand.Rand) []*Individual {
	if k <= 0 || len(pop) == 0 {
		return []*Individual{}
	}
	sorted := SelectBest(pop, len(pop))
	weights := make([]float64, len(sorted))
	uniform := true
	for i, ind := range sorted {
		weights[i] = ind.Value()
		if weights[i] != weights[0] {
			uniform = false
		}
	}
	out := make([]*Individual, 0, k)
	for i := 0; i < k; i++ {
		if uniform {
			out = append(out, sorted[rng.Intn(len(sorted))])
			continue
		}
		out = append(out, sorted[selectOp(weights, rng)])
	}
	return out
}

// selectOp spins the roulette wheel over weights and returns the chosen index.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if acc > r {
			return i
		}
	}
	return len(weights) - 1
}

// ElitistRoulette keeps the single best aside as the elite, then builds the pool from the
// top ceil(10%) verbatim plus floor(90%)-1 roulette draws over the whole population, so
// that pool plus elite has exactly len(pop) members.
type ElitistRoulette struct{}

// Select implements Selector.
func (ElitistRoulette) Select(pop []*Individual, rng *rand.Rand) (*Individual, []*Individual) {
	n := len(pop)
	if n == 0 {
		return nil, nil
	}
	elite := SelectBest(pop, 1)[0]
	top, spins := PoolSizes(n)
	pool := append([]*Individual(nil), SelectBest(pop, top)...)
	pool = append(pool, SelectRoulette(pop, spins, rng)...)
	return elite, pool
}

// PoolSizes returns the elitist slice and roulette counts for a population of n.
func PoolSizes(n int) (top, spins int) {
	top = (n + 9) / 10
	spins = n - top - 1
	if spins < 0 {
		spins = 0
	}
	return top, spins
}

// PartiallyMatched is PMX: a random segment is exchanged between the parents and the
// displaced values are repaired through the parents' value-to-position maps.
type PartiallyMatched struct{}

// Cross implements Crossover.
func (PartiallyMatched) Cross(a, b []int, rng *rand.Rand) {
	size := len(a)
	if len(b) < size {
		size = len(b)
	}
	if size < 2 {
		return
	}
	lo := rng.Intn(size + 1)
	hi := rng.Intn(size)
	if hi >= lo {
		hi++
	} else {
		lo, hi = hi, lo
	}
	PMXAt(a, b, lo, hi)
}

// PMXAt applies PMX over positions [lo, hi). Both slices must be permutations of the
// same values; they stay permutations for any 0 <= lo <= hi <= len.
func PMXAt(a, b []int, lo, hi int) {
	pa := make(map[int]int, len(a))
	pb := make(map[int]int, len(b))
	for i := range a {
		pa[a[i]] = i
		pb[b[i]] = i
	}
	for i := lo; i < hi; i++ {
		va, vb := a[i], b[i]
		// swap the matched values in each parent
		a[i], a[pa[vb]] = vb, va
		b[i], b[pb[va]] = va, vb
		pa[va], pa[vb] = pa[vb], pa[va]
		pb[va], pb[vb] = pb[vb], pb[va]
	}
}

// InverseIndexes reverses the segment between two distinct random positions.
type InverseIndexes struct{}

// Mutate implements Mutator.
func (InverseIndexes) Mutate(genes []int, rng *rand.Rand) {
	n := len(genes)
	if n < 2 {
		return
	}
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	if i > j {
		i, j = j, i
	}
	Reverse(genes, i, j)
}

// Reverse inverts genes[i..j] inclusive.
func Reverse(genes []int, i, j int) {
	for ; i < j; i, j = i+1, j-1 {
		genes[i], genes[j] = genes[j], genes[i]
	}
}
