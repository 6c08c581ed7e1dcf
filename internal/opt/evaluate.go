package opt

import (
	"errors"
	"fmt"
	"math"

	"gavrptw/internal/model"
)

// ErrZeroCost is returned when a solution costs exactly zero and has no fitness.
var ErrZeroCost = errors.New("total cost is zero")

// CostParams are the coefficients of the four cost terms.
type CostParams struct {
	Unit  float64 `json:"unitCost" yaml:"unitCost"`
	Init  float64 `json:"initCost" yaml:"initCost"`
	Wait  float64 `json:"waitCost" yaml:"waitCost"`
	Delay float64 `json:"delayCost" yaml:"delayCost"`
	// OverloadCost prices each unit of load above capacity. Zero disables it.
	OverloadCost float64 `json:"overloadCost,omitempty" yaml:"overloadCost,omitempty"`
}

// Validate rejects negative or non-finite coefficients.
func (c CostParams) Validate() error {
	for name, v := range map[string]float64{"unitCost": c.Unit, "initCost": c.Init, "waitCost": c.Wait, "delayCost": c.Delay, "overloadCost": c.OverloadCost} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite value >= 0, got %v", ErrInvalidParams, name, v)
		}
	}
	return nil
}

// Breakdown itemises the total cost of a solution.
type Breakdown struct {
	Distance float64 `json:"distance"`
	Travel   float64 `json:"travel"`
	Init     float64 `json:"init"`
	Wait     float64 `json:"wait"`
	Delay    float64 `json:"delay"`
	Overload float64 `json:"overload,omitempty"`
	Total    float64 `json:"total"`
	Routes   int     `json:"routes"`
}

// Evaluator prices decoded solutions against an instance.
type Evaluator struct {
	Instance *model.Instance
	Codec    Codec
	Params   CostParams
}

// NewEvaluator uses the capacity codec for the instance.
func NewEvaluator(inst *model.Instance, p CostParams) *Evaluator {
	return &Evaluator{Instance: inst, Codec: CapacityCodec{Instance: inst}, Params: p}
}

// Cost sums, per route, distance*unit + init, plus per stop wait*max(0, ready-arrival)
// and delay*max(0, arrival-due). Arrival is the previous departure plus travel distance;
// departure is arrival plus service time.
func (e *Evaluator) Cost(routes []Route) (Breakdown, error) {
	inst := e.Instance
	var b Breakdown
	for _, r := range routes {
		elapsed := 0.0
		last := model.DepotID
		dist := 0.0
		for _, id := range r.Customers {
			c := inst.Location(id)
			leg := inst.Distance(last, id)
			dist += leg
			arrival := elapsed + leg
			b.Wait += e.Params.Wait * math.Max(c.ReadyTime-arrival, 0)
			b.Delay += e.Params.Delay * math.Max(arrival-c.DueTime, 0)
			elapsed = arrival + c.ServiceTime
			last = id
		}
		dist += inst.Distance(last, model.DepotID)
		b.Distance += dist
		b.Travel += e.Params.Unit * dist
		b.Init += e.Params.Init
		if e.Params.OverloadCost > 0 && r.Load > inst.Capacity {
			b.Overload += e.Params.OverloadCost * (r.Load - inst.Capacity)
		}
		b.Routes++
	}
	b.Total = b.Travel + b.Init + b.Wait + b.Delay + b.Overload
	if math.IsNaN(b.Total) || math.IsInf(b.Total, 0) || b.Total < 0 {
		return b, fmt.Errorf("evaluate: invalid total cost %v", b.Total)
	}
	return b, nil
}

// Fitness decodes genes and returns 1/cost.
func (e *Evaluator) Fitness(genes []int) (float64, error) {
	b, err := e.Cost(e.Codec.Decode(genes))
	if err != nil {
		return 0, err
	}
	return FitnessOf(b.Total)
}

// FitnessOf inverts a total cost, refusing zero.
func FitnessOf(total float64) (float64, error) {
	if total == 0 {
		return 0, ErrZeroCost
	}
	return 1 / total, nil
}
