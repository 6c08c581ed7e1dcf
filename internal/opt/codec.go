package opt

import (
	"gavrptw/internal/model"
)

// Route is the ordered customer list of one vehicle; depot departure and return are implicit.
type Route struct {
	Customers []int   `json:"customers"`
	Load      float64 `json:"load"`
	// Overloaded marks a singleton route whose only customer exceeds capacity.
	Overloaded bool `json:"overloaded,omitempty"`
}

// Codec turns a chromosome into routes.
type Codec interface {
	Decode(genes []int) []Route
}

// CapacityCodec splits the permutation greedily on vehicle capacity.
type CapacityCodec struct {
	Instance *model.Instance
}

// Decode implements Codec.
func (c CapacityCodec) Decode(genes []int) []Route { return Decode(genes, c.Instance) }

// Decode walks genes in order, appending customers to the current route while the running
// demand fits the vehicle capacity, and opening a new route when it would not.
// Time windows are not checked here; the evaluator prices them.
func Decode(genes []int, inst *model.Instance) []Route {
	routes := []Route{}
	var cur Route
	for _, id := range genes {
		demand := inst.Location(id).Demand
		if len(cur.Customers) > 0 && cur.Load+demand > inst.Capacity {
			routes = append(routes, cur)
			cur = Route{}
		}
		cur.Customers = append(cur.Customers, id)
		cur.Load += demand
		if cur.Load > inst.Capacity {
			// only reachable with a single customer on the route
			cur.Overloaded = true
		}
	}
	if len(cur.Customers) > 0 {
		routes = append(routes, cur)
	}
	return routes
}

// Flatten concatenates route contents in order.
func Flatten(routes []Route) []int {
	out := []int{}
	for _, r := range routes {
		out = append(out, r.Customers...)
	}
	return out
}

// CountOverloaded returns how many routes carry the overload warning.
func CountOverloaded(routes []Route) int {
	n := 0
	for _, r := range routes {
		if r.Overloaded {
			n++
		}
	}
	return n
}
