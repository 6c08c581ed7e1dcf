// Package model holds the VRPTW problem instance shared read-only by the solver.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidInstance is returned (wrapped) for any instance the solver cannot run on.
var ErrInvalidInstance = errors.New("invalid instance")

// DepotID is the location index of the depot in the distance matrix.
const DepotID = 0

// Customer is a delivery location. The depot is stored as a Customer with ID 0.
type Customer struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Demand      float64 `json:"demand"`
	ReadyTime   float64 `json:"readyTime"`
	DueTime     float64 `json:"dueTime"`
	ServiceTime float64 `json:"serviceTime"`
}

// Point returns the customer coordinates as a planar point.
func (c Customer) Point() orb.Point { return orb.Point{c.X, c.Y} }

// Instance is a single-depot, single-capacity VRPTW problem.
// Customers[i] has ID i+1. Matrix, when present, is indexed by location ID.
type Instance struct {
	Name        string      `json:"name"`
	MaxVehicles int         `json:"maxVehicles,omitempty"`
	Capacity    float64     `json:"capacity"`
	Depot       Customer    `json:"depot"`
	Customers   []Customer  `json:"customers"`
	Matrix      [][]float64 `json:"distanceMatrix,omitempty"`
}

// Size is the number of customers (the chromosome length).
func (in *Instance) Size() int { return len(in.Customers) }

// Location returns the depot for id 0 and the customer with the given id otherwise.
func (in *Instance) Location(id int) Customer {
	if id == DepotID {
		return in.Depot
	}
	return in.Customers[id-1]
}

// CustomerIDs returns 1..N in order.
func (in *Instance) CustomerIDs() []int {
	ids := make([]int, len(in.Customers))
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// Distance returns the travel distance between two locations. Travel time equals distance.
func (in *Instance) Distance(from, to int) float64 {
	if in.Matrix != nil {
		return in.Matrix[from][to]
	}
	return planar.Distance(in.Location(from).Point(), in.Location(to).Point())
}

// BuildMatrix fills Matrix from the coordinates when it is missing.
func (in *Instance) BuildMatrix() {
	if in.Matrix != nil {
		return
	}
	n := len(in.Customers) + 1
	m := make([][]float64, n)
	for i := 0; i < n; i++ {
		m[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i != j {
				m[i][j] = planar.Distance(in.Location(i).Point(), in.Location(j).Point())
			}
		}
	}
	in.Matrix = m
}

// TotalDemand sums all customer demands.
func (in *Instance) TotalDemand() float64 {
	total := 0.0
	for _, c := range in.Customers {
		total += c.Demand
	}
	return total
}

// Validate checks the loader contract: non-empty customers, positive capacity,
// consistent distances and due >= ready for every location.
func (in *Instance) Validate() error {
	if in == nil {
		return fmt.Errorf("%w: instance is nil", ErrInvalidInstance)
	}
	if len(in.Customers) == 0 {
		return fmt.Errorf("%w: %q has no customers", ErrInvalidInstance, in.Name)
	}
	if !(in.Capacity > 0) || math.IsInf(in.Capacity, 0) {
		return fmt.Errorf("%w: %q vehicle capacity must be positive, got %v", ErrInvalidInstance, in.Name, in.Capacity)
	}
	if in.Depot.ID != DepotID {
		return fmt.Errorf("%w: depot id must be %d, got %d", ErrInvalidInstance, DepotID, in.Depot.ID)
	}
	if field, ok := in.Depot.finite(); !ok {
		return fmt.Errorf("%w: depot %s is not finite", ErrInvalidInstance, field)
	}
	if in.Depot.DueTime < in.Depot.ReadyTime {
		return fmt.Errorf("%w: depot due time %v before ready time %v", ErrInvalidInstance, in.Depot.DueTime, in.Depot.ReadyTime)
	}
	for i, c := range in.Customers {
		if c.ID != i+1 {
			return fmt.Errorf("%w: customer at position %d has id %d, want %d", ErrInvalidInstance, i, c.ID, i+1)
		}
		if field, ok := c.finite(); !ok {
			return fmt.Errorf("%w: customer %d %s is not finite", ErrInvalidInstance, c.ID, field)
		}
		if c.Demand < 0 {
			return fmt.Errorf("%w: customer %d has negative demand %v", ErrInvalidInstance, c.ID, c.Demand)
		}
		if c.DueTime < c.ReadyTime {
			return fmt.Errorf("%w: customer %d due time %v before ready time %v", ErrInvalidInstance, c.ID, c.DueTime, c.ReadyTime)
		}
		if c.ServiceTime < 0 {
			return fmt.Errorf("%w: customer %d has negative service time", ErrInvalidInstance, c.ID)
		}
	}
	if in.Matrix != nil {
		n := len(in.Customers) + 1
		if len(in.Matrix) != n {
			return fmt.Errorf("%w: distance matrix has %d rows, want %d", ErrInvalidInstance, len(in.Matrix), n)
		}
		for i, row := range in.Matrix {
			if len(row) != n {
				return fmt.Errorf("%w: distance matrix row %d has %d columns, want %d", ErrInvalidInstance, i, len(row), n)
			}
			for j, d := range row {
				if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
					return fmt.Errorf("%w: distance[%d][%d] = %v", ErrInvalidInstance, i, j, d)
				}
			}
		}
	}
	return nil
}

// finite reports the first non-finite numeric field, if any.
func (c Customer) finite() (string, bool) {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"x", c.X}, {"y", c.Y}, {"demand", c.Demand},
		{"ready time", c.ReadyTime}, {"due time", c.DueTime}, {"service time", c.ServiceTime},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return f.name, false
		}
	}
	return "", true
}

// Overloaded lists customers whose demand alone exceeds the vehicle capacity.
// Such customers always decode into an over-capacity singleton route.
func (in *Instance) Overloaded() []int {
	var ids []int
	for _, c := range in.Customers {
		if c.Demand > in.Capacity {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
