package opt

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestPMXAtKnownSegment(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := []int{5, 4, 3, 2, 1}
	PMXAt(a, b, 1, 3)
	if !reflect.DeepEqual(a, []int{1, 4, 3, 2, 5}) {
		t.Fatalf("a: %v", a)
	}
	if !reflect.DeepEqual(b, []int{5, 2, 3, 4, 1}) {
		t.Fatalf("b: %v", b)
	}
}

func TestPMXAtKeepsPermutationsForEverySegment(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	want := perm(7)
	for lo := 0; lo <= 7; lo++ {
		for hi := lo; hi <= 7; hi++ {
			a := RandomIndividual(want, rng).Genes
			b := RandomIndividual(want, rng).Genes
			origA := append([]int(nil), a...)
			PMXAt(a, b, lo, hi)
			if !IsPermutation(a, want) || !IsPermutation(b, want) {
				t.Fatalf("lo=%d hi=%d: a=%v b=%v", lo, hi, a, b)
			}
			if lo == hi && !reflect.DeepEqual(a, origA) {
				t.Fatalf("empty segment changed %v to %v", origA, a)
			}
		}
	}
}

func TestPartiallyMatchedRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	want := perm(9)
	for i := 0; i < 500; i++ {
		a := RandomIndividual(want, rng).Genes
		b := RandomIndividual(want, rng).Genes
		PartiallyMatched{}.Cross(a, b, rng)
		if !IsPermutation(a, want) || !IsPermutation(b, want) {
			t.Fatalf("iteration %d: a=%v b=%v", i, a, b)
		}
	}
	one, other := []int{1}, []int{1}
	PartiallyMatched{}.Cross(one, other, rng)
	if one[0] != 1 || other[0] != 1 {
		t.Fatal("size-1 crossover changed genes")
	}
}

func TestReverseInclusive(t *testing.T) {
	g := []int{0, 1, 2, 3, 4, 5}
	Reverse(g, 1, 4)
	if !reflect.DeepEqual(g, []int{0, 4, 3, 2, 1, 5}) {
		t.Fatalf("reverse: %v", g)
	}
}

func TestInverseIndexesAlwaysChanges(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	want := perm(6)
	for i := 0; i < 300; i++ {
		g := RandomIndividual(want, rng).Genes
		before := append([]int(nil), g...)
		InverseIndexes{}.Mutate(g, rng)
		if !IsPermutation(g, want) {
			t.Fatalf("not a permutation: %v", g)
		}
		if reflect.DeepEqual(g, before) {
			t.Fatalf("mutation left %v unchanged", g)
		}
	}
	single := []int{1}
	InverseIndexes{}.Mutate(single, rng)
	if single[0] != 1 {
		t.Fatal("size-1 mutation changed genes")
	}
}

func TestPoolSizes(t *testing.T) {
	cases := map[int][2]int{2: {1, 0}, 10: {1, 8}, 11: {2, 8}, 15: {2, 12}, 100: {10, 89}}
	for n, want := range cases {
		top, spins := PoolSizes(n)
		if top != want[0] || spins != want[1] {
			t.Fatalf("n=%d: got (%d,%d) want %v", n, top, spins, want)
		}
	}
	for n := 2; n <= 200; n++ {
		top, spins := PoolSizes(n)
		if top+spins+1 != n {
			t.Fatalf("n=%d: %d+%d+1 != n", n, top, spins)
		}
	}
}

func withFitness(vals ...float64) []*Individual {
	pop := make([]*Individual, len(vals))
	for i, v := range vals {
		pop[i] = NewIndividual([]int{i + 1})
		pop[i].SetFitness(v)
	}
	return pop
}

func TestElitistRouletteSelect(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	pop := withFitness(0.1, 0.5, 0.3, 0.9, 0.2, 0.4, 0.7, 0.6, 0.8, 0.05, 0.15)
	elite, pool := ElitistRoulette{}.Select(pop, rng)
	if elite.Value() != 0.9 {
		t.Fatalf("elite: %v", elite.Value())
	}
	if len(pool)+1 != len(pop) {
		t.Fatalf("pool size: %d", len(pool))
	}
	if pool[0].Value() != 0.9 || pool[1].Value() != 0.8 {
		t.Fatalf("top slice: %v %v", pool[0].Value(), pool[1].Value())
	}
}

func TestSelectRouletteUniformFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pop := withFitness(0.5, 0.5, 0.5, 0.5)
	seen := map[*Individual]int{}
	for _, ind := range SelectRoulette(pop, 400, rng) {
		seen[ind]++
	}
	if len(seen) != 4 {
		t.Fatalf("uniform draws should reach every member, got %d", len(seen))
	}
	if got := SelectRoulette(pop, 0, rng); len(got) != 0 {
		t.Fatalf("k=0: %v", got)
	}
}

func TestSelectRouletteProportional(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	pop := withFitness(1, 9)
	heavy := 0
	const draws = 5000
	for _, ind := range SelectRoulette(pop, draws, rng) {
		if ind.Value() == 9 {
			heavy++
		}
	}
	if ratio := float64(heavy) / draws; math.Abs(ratio-0.9) > 0.03 {
		t.Fatalf("heavy ratio %v, want about 0.9", ratio)
	}
}

func TestSelectOpZeroWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for i := 0; i < 50; i++ {
		if idx := selectOp([]float64{0, 0, 0}, rng); idx < 0 || idx > 2 {
			t.Fatalf("index out of range: %d", idx)
		}
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	a := NewIndividual([]int{1, 2, 3})
	a.SetFitness(0.5)
	b := a.Clone()
	b.Genes[0] = 9
	b.SetFitness(0.1)
	if a.Genes[0] != 1 || a.Value() != 0.5 {
		t.Fatalf("clone aliases source: %+v", a)
	}
}
