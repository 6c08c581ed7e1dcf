package opt

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats is one row of the per-generation history.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Evaluated  int     `json:"evaluatedIndividuals"`
	Min        float64 `json:"minFitness"`
	Max        float64 `json:"maxFitness"`
	Mean       float64 `json:"avgFitness"`
	Std        float64 `json:"stdFitness"`
	// AvgCost is 1/Mean.
	AvgCost float64 `json:"avgCost"`
}

// Summarize computes min, max, mean and population standard deviation of fitness.
func Summarize(gen, evaluated int, pop []*Individual) GenerationStats {
	fits := make([]float64, len(pop))
	for i, ind := range pop {
		fits[i] = ind.Value()
	}
	return SummarizeFitness(gen, evaluated, fits)
}

// SummarizeFitness is Summarize over raw fitness values.
func SummarizeFitness(gen, evaluated int, fits []float64) GenerationStats {
	s := GenerationStats{Generation: gen, Evaluated: evaluated}
	if len(fits) == 0 {
		return s
	}
	s.Min = floats.Min(fits)
	s.Max = floats.Max(fits)
	s.Mean, s.Std = stat.PopMeanStdDev(fits, nil)
	if s.Mean > 0 {
		s.AvgCost = 1 / s.Mean
	}
	return s
}
