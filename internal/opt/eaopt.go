package opt

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/MaxHalford/eaopt"

	"gavrptw/internal/model"
)

// routeGenome adapts a chromosome to eaopt. eaopt minimises, so Evaluate returns
// the total cost rather than its inverse.
type routeGenome struct {
	genes     []int
	eval      *Evaluator
	crossover Crossover
	mutator   Mutator
}

func (g *routeGenome) Evaluate() (float64, error) {
	b, err := g.eval.Cost(g.eval.Codec.Decode(g.genes))
	if err != nil {
		return 0, err
	}
	if b.Total == 0 {
		return 0, ErrZeroCost
	}
	return b.Total, nil
}

func (g *routeGenome) Mutate(rng *rand.Rand) { g.mutator.Mutate(g.genes, rng) }

func (g *routeGenome) Crossover(other eaopt.Genome, rng *rand.Rand) {
	g.crossover.Cross(g.genes, other.(*routeGenome).genes, rng)
}

func (g *routeGenome) Clone() eaopt.Genome {
	c := *g
	c.genes = append([]int(nil), g.genes...)
	return &c
}

// EAOptConfig tunes the eaopt-backed solver.
type EAOptConfig struct {
	// Contestants is the tournament size; 0 means 3.
	Contestants uint
	// Parallel evaluates each population concurrently inside eaopt.
	Parallel bool
}

func (c EAOptConfig) contestants() uint {
	if c.Contestants == 0 {
		return 3
	}
	return c.Contestants
}

// Check reports whether p's population can feed the tournament: each parent pair
// needs Contestants+1 distinct individuals.
func (c EAOptConfig) Check(p Params) error {
	if need := int(c.contestants()) + 1; p.PopSize < need {
		return fmt.Errorf("%w: popSize must be >= %d for tournament size %d, got %d", ErrInvalidParams, need, c.contestants(), p.PopSize)
	}
	return nil
}

// SolveEAOpt runs the same chromosome, codec, cost model and variation operators on
// eaopt's generational model with tournament selection. It is an alternative backend
// for comparison; only Engine reproduces the elitist roulette loop exactly.
func SolveEAOpt(ctx context.Context, inst *model.Instance, p Params, cfg EAOptConfig, observers ...Observer) (Result, error) {
	if err := inst.Validate(); err != nil {
		return Result{}, fmt.Errorf("eaopt: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("eaopt: %w", err)
	}
	if p.IndSize != inst.Size() {
		return Result{}, fmt.Errorf("eaopt: %w: indSize %d does not match %d customers", ErrInvalidParams, p.IndSize, inst.Size())
	}
	if err := cfg.Check(p); err != nil {
		return Result{}, fmt.Errorf("eaopt: %w", err)
	}
	cfg.Contestants = cfg.contestants()
	eval := NewEvaluator(inst, p.Cost)

	gaConfig := eaopt.GAConfig{
		NPops:        1,
		PopSize:      uint(p.PopSize),
		NGenerations: uint(p.Generations),
		HofSize:      1,
		ParallelEval: cfg.Parallel,
		RNG:          rand.New(rand.NewSource(p.Seed)),
		Model: eaopt.ModGenerational{
			Selector:  eaopt.SelTournament{NContestants: cfg.Contestants},
			MutRate:   p.MutPb,
			CrossRate: p.CxPb,
		},
	}
	ga, err := gaConfig.NewGA()
	if err != nil {
		return Result{}, fmt.Errorf("eaopt: %w", err)
	}

	start := time.Now()
	res := Result{Instance: inst.Name}
	var obsErr error
	ga.Callback = func(g *eaopt.GA) {
		if g.Generations == 0 || obsErr != nil {
			return
		}
		indis := g.Populations[0].Individuals
		fits := make([]float64, 0, len(indis))
		for _, indi := range indis {
			if f, err := FitnessOf(indi.Fitness); err == nil {
				fits = append(fits, f)
			}
		}
		stats := SummarizeFitness(int(g.Generations)-1, len(indis), fits)
		res.History = append(res.History, stats)
		res.Evaluations += len(indis)
		res.Generations = int(g.Generations)
		for _, o := range observers {
			if err := o.OnGeneration(ctx, stats); err != nil {
				obsErr = err
				return
			}
		}
	}
	ga.EarlyStop = func(*eaopt.GA) bool { return obsErr != nil || ctx.Err() != nil }

	ids := inst.CustomerIDs()
	err = ga.Minimize(func(rng *rand.Rand) eaopt.Genome {
		g := &routeGenome{genes: append([]int(nil), ids...), eval: eval, crossover: PartiallyMatched{}, mutator: InverseIndexes{}}
		rng.Shuffle(len(g.genes), func(i, j int) { g.genes[i], g.genes[j] = g.genes[j], g.genes[i] })
		return g
	})
	if err != nil {
		return res, fmt.Errorf("eaopt: %w", err)
	}
	if obsErr != nil {
		return res, fmt.Errorf("eaopt: observer: %w", obsErr)
	}
	res.Evaluations += p.PopSize

	best := ga.HallOfFame[0]
	genome := best.Genome.(*routeGenome)
	res.Best = NewIndividual(genome.genes)
	if f, err := FitnessOf(best.Fitness); err == nil {
		res.Best.SetFitness(f)
		res.Fitness = f
	}
	res.Routes = eval.Codec.Decode(genome.genes)
	if b, err := eval.Cost(res.Routes); err == nil {
		res.Breakdown = b
		res.Cost = b.Total
	}
	res.Anomalies = CountOverloaded(res.Routes)
	res.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	for _, o := range observers {
		if err := o.OnComplete(ctx, res); err != nil {
			return res, fmt.Errorf("eaopt: observer: %w", err)
		}
	}
	return res, nil
}
