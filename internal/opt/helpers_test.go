package opt

import (
	"gavrptw/internal/model"
)

// fiveCustomers mirrors testdata/P-n5-k1: one vehicle is enough for all demand.
func fiveCustomers() *model.Instance {
	cs := []model.Customer{
		{ID: 1, X: 0, Y: 10, Demand: 5, DueTime: 1000},
		{ID: 2, X: 10, Y: 10, Demand: 5, DueTime: 1000},
		{ID: 3, X: 10, Y: 0, Demand: 5, DueTime: 1000},
		{ID: 4, X: 5, Y: -5, Demand: 5, DueTime: 1000},
		{ID: 5, X: -5, Y: 5, Demand: 5, DueTime: 1000},
	}
	inst := &model.Instance{
		Name:        "P-n5-k1",
		MaxVehicles: 1,
		Capacity:    100,
		Depot:       model.Customer{ID: 0, DueTime: 1000},
		Customers:   cs,
	}
	inst.BuildMatrix()
	return inst
}

// threeCustomers has a tight capacity and time windows that force waiting.
func threeCustomers() *model.Instance {
	inst := &model.Instance{
		Name:        "C-n3",
		MaxVehicles: 2,
		Capacity:    20,
		Depot:       model.Customer{ID: 0, DueTime: 230},
		Customers: []model.Customer{
			{ID: 1, X: 3, Y: 4, Demand: 10, ReadyTime: 0, DueTime: 100, ServiceTime: 10},
			{ID: 2, X: 6, Y: 8, Demand: 10, ReadyTime: 50, DueTime: 120, ServiceTime: 10},
			{ID: 3, X: 0, Y: 5, Demand: 5, ReadyTime: 0, DueTime: 80, ServiceTime: 5},
		},
	}
	inst.BuildMatrix()
	return inst
}

func demoParams() Params {
	return Params{
		InstanceName: "P-n5-k1",
		Cost:         CostParams{Unit: 1},
		IndSize:      5,
		PopSize:      15,
		CxPb:         0.8,
		MutPb:        0.1,
		Generations:  100,
		Seed:         64,
	}
}
