package report

import (
	"context"
	"log"

	"gavrptw/internal/opt"
)

// LogObserver logs generation statistics every Every generations (1 when unset)
// and a summary line on completion.
type LogObserver struct {
	Run   string
	Every int
}

// OnGeneration implements opt.Observer.
func (o LogObserver) OnGeneration(_ context.Context, s opt.GenerationStats) error {
	every := o.Every
	if every <= 0 {
		every = 1
	}
	if s.Generation%every != 0 {
		return nil
	}
	log.Printf("run=%s gen=%d evaluated=%d min=%.6g max=%.6g avg=%.6g std=%.6g avg_cost=%.6g",
		o.Run, s.Generation, s.Evaluated, s.Min, s.Max, s.Mean, s.Std, s.AvgCost)
	return nil
}

// OnComplete implements opt.Observer.
func (o LogObserver) OnComplete(_ context.Context, r opt.Result) error {
	log.Printf("run=%s instance=%s generations=%d evaluations=%d cost=%.6g routes=%d anomalies=%d dur_ms=%d",
		o.Run, r.Instance, r.Generations, r.Evaluations, r.Cost, len(r.Routes), r.Anomalies, r.Duration.Milliseconds())
	return nil
}
