package opt

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// FitnessFunc computes the fitness of one chromosome without side effects.
type FitnessFunc func(genes []int) (float64, error)

// BatchEvaluator maps a fitness function over chromosomes, returning values in input order.
// Any failure fails the whole batch.
type BatchEvaluator interface {
	EvaluateBatch(ctx context.Context, fn FitnessFunc, batch [][]int) ([]float64, error)
}

// Sequential evaluates on the calling goroutine.
type Sequential struct{}

// EvaluateBatch implements BatchEvaluator.
func (Sequential) EvaluateBatch(ctx context.Context, fn FitnessFunc, batch [][]int) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, genes := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := fn(genes)
		if err != nil {
			return nil, fmt.Errorf("evaluate individual %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Parallel evaluates on a bounded worker pool.
type Parallel struct {
	Workers int
}

// NewParallel sizes the pool to workers, or GOMAXPROCS when workers <= 0.
func NewParallel(workers int) Parallel {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return Parallel{Workers: workers}
}

// EvaluateBatch implements BatchEvaluator. Each worker writes only its own slot.
func (p Parallel) EvaluateBatch(ctx context.Context, fn FitnessFunc, batch [][]int) ([]float64, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]float64, len(batch))
	wp := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(workers)
	for i, genes := range batch {
		wp.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := fn(genes)
			if err != nil {
				return fmt.Errorf("evaluate individual %d: %w", i, err)
			}
			out[i] = f
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
