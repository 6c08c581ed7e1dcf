package opt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"gavrptw/internal/model"
)

// ErrInvalidParams is returned (wrapped) for out-of-range run parameters.
var ErrInvalidParams = errors.New("invalid parameters")

// Params is the configuration surface of one GA run. All fields are required.
type Params struct {
	InstanceName string     `json:"instanceName" yaml:"instanceName"`
	Cost         CostParams `json:"cost" yaml:"cost"`
	IndSize      int        `json:"indSize" yaml:"indSize"`
	PopSize      int        `json:"popSize" yaml:"popSize"`
	CxPb         float64    `json:"cxPb" yaml:"cxPb"`
	MutPb        float64    `json:"mutPb" yaml:"mutPb"`
	Generations  int        `json:"generations" yaml:"generations"`
	Seed         int64      `json:"seed" yaml:"seed"`
}

// Validate checks ranges before any generation runs.
func (p Params) Validate() error {
	if p.IndSize <= 0 {
		return fmt.Errorf("%w: indSize must be > 0, got %d", ErrInvalidParams, p.IndSize)
	}
	if p.PopSize < 2 {
		return fmt.Errorf("%w: popSize must be >= 2, got %d", ErrInvalidParams, p.PopSize)
	}
	if p.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0, got %d", ErrInvalidParams, p.Generations)
	}
	if !(p.CxPb >= 0 && p.CxPb <= 1) {
		return fmt.Errorf("%w: cxPb must be in [0,1], got %v", ErrInvalidParams, p.CxPb)
	}
	if !(p.MutPb >= 0 && p.MutPb <= 1) {
		return fmt.Errorf("%w: mutPb must be in [0,1], got %v", ErrInvalidParams, p.MutPb)
	}
	return p.Cost.Validate()
}

// State is the position of the engine in its generational cycle.
type State int

const (
	StateNew State = iota
	StateInitialized
	StateEvaluated
	StateSelected
	StateRecombined
	StateMutated
	StateReEvaluated
	StateReplaced
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateEvaluated:
		return "evaluated"
	case StateSelected:
		return "selected"
	case StateRecombined:
		return "recombined"
	case StateMutated:
		return "mutated"
	case StateReEvaluated:
		return "reevaluated"
	case StateReplaced:
		return "replaced"
	case StateTerminated:
		return "terminated"
	default:
		return "new"
	}
}

// Observer receives per-generation statistics and the final result.
type Observer interface {
	OnGeneration(ctx context.Context, s GenerationStats) error
	OnComplete(ctx context.Context, r Result) error
}

// Result is the outcome of a run.
type Result struct {
	Instance    string            `json:"instance"`
	Best        *Individual       `json:"best"`
	Fitness     float64           `json:"fitness"`
	Cost        float64           `json:"cost"`
	Routes      []Route           `json:"routes"`
	Breakdown   Breakdown         `json:"breakdown"`
	History     []GenerationStats `json:"history"`
	Evaluations int               `json:"evaluations"`
	Generations int               `json:"generations"`
	// Anomalies counts over-capacity singleton routes in the best solution.
	Anomalies int           `json:"anomalies"`
	Duration  time.Duration `json:"duration"`
}

// Engine runs the generational loop. It owns its population; only the batch
// evaluator may touch individuals concurrently.
type Engine struct {
	inst      *model.Instance
	params    Params
	eval      *Evaluator
	selector  Selector
	crossover Crossover
	mutator   Mutator
	batch     BatchEvaluator
	observers []Observer
	rng       *rand.Rand

	state State
	pop   []*Individual
}

// Option customises an Engine.
type Option func(*Engine)

func WithSelector(s Selector) Option    { return func(e *Engine) { e.selector = s } }
func WithCrossover(c Crossover) Option  { return func(e *Engine) { e.crossover = c } }
func WithMutator(m Mutator) Option      { return func(e *Engine) { e.mutator = m } }
func WithBatch(b BatchEvaluator) Option { return func(e *Engine) { e.batch = b } }
func WithCodec(c Codec) Option          { return func(e *Engine) { e.eval.Codec = c } }
func WithRand(rng *rand.Rand) Option    { return func(e *Engine) { e.rng = rng } }

// WithObservers appends observers; they run in order after each generation.
func WithObservers(obs ...Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, obs...) }
}

// NewEngine validates the instance and parameters and wires the default operators:
// capacity codec, elitist roulette selection, PMX, inversion and sequential evaluation.
func NewEngine(inst *model.Instance, p Params, opts ...Option) (*Engine, error) {
	if err := inst.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if p.IndSize != inst.Size() {
		return nil, fmt.Errorf("new engine: %w: indSize %d does not match %d customers", ErrInvalidParams, p.IndSize, inst.Size())
	}
	e := &Engine{
		inst:      inst,
		params:    p,
		eval:      NewEvaluator(inst, p.Cost),
		selector:  ElitistRoulette{},
		crossover: PartiallyMatched{},
		mutator:   InverseIndexes{},
		batch:     Sequential{},
		rng:       rand.New(rand.NewSource(p.Seed)),
	}
	for _, o := range opts {
		o(e)
	}
	if ids := inst.Overloaded(); len(ids) > 0 {
		log.Printf("instance=%s warn=demand_exceeds_capacity customers=%v capacity=%v", inst.Name, ids, inst.Capacity)
	}
	return e, nil
}

// State returns the current loop state.
func (e *Engine) State() State { return e.state }

// Population returns the current population (not a copy).
func (e *Engine) Population() []*Individual { return e.pop }

// Evaluator returns the evaluator used by the engine.
func (e *Engine) Evaluator() *Evaluator { return e.eval }

// Run evolves for the configured number of generations. ctx is checked between
// generations and by the batch evaluator; on cancellation the best of the last
// complete generation is returned with an error wrapping ctx.Err().
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{Instance: e.inst.Name}

	ids := e.inst.CustomerIDs()
	e.pop = make([]*Individual, e.params.PopSize)
	for i := range e.pop {
		e.pop[i] = RandomIndividual(ids, e.rng)
	}
	e.state = StateInitialized

	n, err := e.evaluateInvalid(ctx, e.pop)
	if err != nil {
		return res, fmt.Errorf("evaluate initial population: %w", err)
	}
	res.Evaluations += n
	e.state = StateEvaluated

	for g := 0; g < e.params.Generations; g++ {
		if err := ctx.Err(); err != nil {
			return e.finish(res, start), err
		}
		stats, err := e.step(ctx, g)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// e.pop still holds the last fully evaluated generation.
				return e.finish(res, start), fmt.Errorf("generation %d: %w", g, ctxErr)
			}
			return res, fmt.Errorf("generation %d: %w", g, err)
		}
		res.Evaluations += stats.Evaluated
		res.Generations = g + 1
		res.History = append(res.History, stats)
		for _, o := range e.observers {
			if err := o.OnGeneration(ctx, stats); err != nil {
				return res, fmt.Errorf("generation %d: observer: %w", g, err)
			}
		}
	}
	e.state = StateTerminated
	res = e.finish(res, start)
	for _, o := range e.observers {
		if err := o.OnComplete(ctx, res); err != nil {
			return res, fmt.Errorf("complete: observer: %w", err)
		}
	}
	return res, nil
}

// step runs one generation and returns its statistics, taken on the offspring set
// just before it replaces the population.
func (e *Engine) step(ctx context.Context, g int) (GenerationStats, error) {
	elite, pool := e.selector.Select(e.pop, e.rng)
	elite = elite.Clone()
	offspring := make([]*Individual, len(pool))
	for i, ind := range pool {
		offspring[i] = ind.Clone()
	}
	e.state = StateSelected

	for i := 0; i+1 < len(offspring); i += 2 {
		if e.rng.Float64() < e.params.CxPb {
			e.crossover.Cross(offspring[i].Genes, offspring[i+1].Genes, e.rng)
			offspring[i].Invalidate()
			offspring[i+1].Invalidate()
		}
	}
	e.state = StateRecombined

	for _, m := range offspring {
		if e.rng.Float64() < e.params.MutPb {
			e.mutator.Mutate(m.Genes, e.rng)
			m.Invalidate()
		}
	}
	e.state = StateMutated

	n, err := e.evaluateInvalid(ctx, offspring)
	if err != nil {
		return GenerationStats{}, err
	}
	e.state = StateReEvaluated

	offspring = append(offspring, elite)
	stats := Summarize(g, n, offspring)
	e.pop = offspring
	e.state = StateReplaced
	return stats, nil
}

// evaluateInvalid evaluates only individuals without a cached fitness.
func (e *Engine) evaluateInvalid(ctx context.Context, pop []*Individual) (int, error) {
	var invalid []*Individual
	batch := [][]int{}
	for _, ind := range pop {
		if !ind.Valid() {
			invalid = append(invalid, ind)
			batch = append(batch, ind.Genes)
		}
	}
	if len(invalid) == 0 {
		return 0, nil
	}
	fits, err := e.batch.EvaluateBatch(ctx, e.eval.Fitness, batch)
	if err != nil {
		return 0, err
	}
	if len(fits) != len(invalid) {
		return 0, fmt.Errorf("batch evaluator returned %d values for %d individuals", len(fits), len(invalid))
	}
	for i, ind := range invalid {
		if math.IsNaN(fits[i]) || math.IsInf(fits[i], 0) || fits[i] <= 0 {
			return 0, fmt.Errorf("non-positive fitness %v", fits[i])
		}
		ind.SetFitness(fits[i])
	}
	return len(invalid), nil
}

func (e *Engine) finish(res Result, start time.Time) Result {
	res.Duration = time.Since(start)
	if len(e.pop) == 0 || !e.pop[0].Valid() {
		return res
	}
	best := SelectBest(e.pop, 1)[0].Clone()
	res.Best = best
	res.Fitness = best.Value()
	res.Routes = e.eval.Codec.Decode(best.Genes)
	if b, err := e.eval.Cost(res.Routes); err == nil {
		res.Breakdown = b
		res.Cost = b.Total
	}
	res.Anomalies = CountOverloaded(res.Routes)
	return res
}
