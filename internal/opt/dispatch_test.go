package opt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestParallelMatchesSequential(t *testing.T) {
	inst := fiveCustomers()
	ev := NewEvaluator(inst, CostParams{Unit: 1, Init: 2})
	rng := rand.New(rand.NewSource(2))
	batch := make([][]int, 64)
	for i := range batch {
		batch[i] = RandomIndividual(inst.CustomerIDs(), rng).Genes
	}
	seq, err := Sequential{}.EvaluateBatch(context.Background(), ev.Fitness, batch)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := NewParallel(4).EvaluateBatch(context.Background(), ev.Fitness, batch)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	for i := range seq {
		if math.Float64bits(seq[i]) != math.Float64bits(par[i]) {
			t.Fatalf("index %d: %v != %v", i, seq[i], par[i])
		}
	}
}

func TestBatchErrorFailsWhole(t *testing.T) {
	boom := errors.New("boom")
	fn := func(genes []int) (float64, error) {
		if genes[0] == 3 {
			return 0, boom
		}
		return 1, nil
	}
	batch := [][]int{{1}, {2}, {3}, {4}}
	for name, be := range map[string]BatchEvaluator{"sequential": Sequential{}, "parallel": NewParallel(2)} {
		out, err := be.EvaluateBatch(context.Background(), fn, batch)
		if !errors.Is(err, boom) || out != nil {
			t.Fatalf("%s: got %v %v", name, out, err)
		}
	}
}

func TestBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn := func([]int) (float64, error) { return 1, nil }
	if _, err := (Sequential{}).EvaluateBatch(ctx, fn, [][]int{{1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("sequential: %v", err)
	}
	if _, err := NewParallel(2).EvaluateBatch(ctx, fn, [][]int{{1}, {2}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("parallel: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(3, 2, withFitness(1, 2, 3, 4))
	if s.Generation != 3 || s.Evaluated != 2 {
		t.Fatalf("header: %+v", s)
	}
	if s.Min != 1 || s.Max != 4 || s.Mean != 2.5 {
		t.Fatalf("min/max/mean: %+v", s)
	}
	if math.Abs(s.Std-math.Sqrt(1.25)) > 1e-12 || math.Abs(s.AvgCost-0.4) > 1e-12 {
		t.Fatalf("std/avgCost: %+v", s)
	}
}
