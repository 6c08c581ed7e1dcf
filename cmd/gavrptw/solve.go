package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"gavrptw/internal/config"
	"gavrptw/internal/model"
	"gavrptw/internal/opt"
	"gavrptw/internal/report"
)

// solve runs one seed on the configured engine.
func solve(ctx context.Context, rc config.Run, inst *model.Instance, observers ...opt.Observer) (opt.Result, error) {
	switch rc.Engine {
	case config.EngineEAOpt:
		return opt.SolveEAOpt(ctx, inst, rc.Params, opt.EAOptConfig{Parallel: rc.Workers > 1}, observers...)
	default:
		opts := []opt.Option{opt.WithObservers(observers...)}
		if rc.Workers > 1 {
			opts = append(opts, opt.WithBatch(opt.NewParallel(rc.Workers)))
		}
		eng, err := opt.NewEngine(inst, rc.Params, opts...)
		if err != nil {
			return opt.Result{}, err
		}
		return eng.Run(ctx)
	}
}

func single(ctx context.Context, rc config.Run, inst *model.Instance, o options, w io.Writer) error {
	every := 10
	if o.verbose {
		every = 1
	}
	start := time.Now()
	res, err := solve(ctx, rc, inst, report.LogObserver{Run: rc.InstanceName, Every: every})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		fmt.Fprintf(w, "Interrupted after %d generations\n", res.Generations)
	}
	if err := report.Summary(w, res); err != nil {
		return err
	}
	if err := report.PrintRoutes(w, res.Routes, rc.MergeRoutes); err != nil {
		return err
	}
	if res.Anomalies > 0 {
		fmt.Fprintf(w, "Over-capacity routes: %d\n", res.Anomalies)
	}
	fmt.Fprintf(w, "Computing Time: %.3f s\n", time.Since(start).Seconds())
	return export(rc, inst, res, o, w)
}

// export writes the optional artefacts for one result.
func export(rc config.Run, inst *model.Instance, res opt.Result, o options, w io.Writer) error {
	if rc.ExportCSV {
		path, err := report.ExportCSV(rc.ResultsDir, rc.Params, res.History)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Statistics: %s\n", path)
	}
	if o.xlsx != "" {
		if err := report.ExportXLSX(o.xlsx, res); err != nil {
			return err
		}
	}
	if o.geojson != "" {
		if err := report.ExportGeoJSON(o.geojson, inst, res.Routes); err != nil {
			return err
		}
	}
	if o.dot != "" {
		if err := report.ExportDOT(o.dot, inst, res.Routes); err != nil {
			return err
		}
	}
	return nil
}

// sweep runs Seeds consecutive seeds concurrently, prints one row per seed and
// reports and exports the cheapest.
func sweep(ctx context.Context, rc config.Run, inst *model.Instance, o options, w io.Writer) error {
	start := time.Now()
	results := make([]opt.Result, rc.Seeds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < rc.Seeds; i++ {
		run := rc
		run.Seed = rc.Seed + int64(i)
		g.Go(func() error {
			res, err := solve(gctx, run, inst)
			if err != nil {
				return fmt.Errorf("seed %d: %w", run.Seed, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "seed\tcost\tfitness\troutes\tevaluations\tms")
	for i, res := range results {
		fmt.Fprintf(tw, "%d\t%.4f\t%.6g\t%d\t%d\t%d\n",
			rc.Seed+int64(i), res.Cost, res.Fitness, len(res.Routes), res.Evaluations, res.Duration.Milliseconds())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	bi := 0
	costs := make([]float64, len(results))
	for i, res := range results {
		costs[i] = res.Cost
		if res.Cost < results[bi].Cost {
			bi = i
		}
	}
	sort.Float64s(costs)
	bestRes := results[bi]
	bestSeed := rc.Seed + int64(bi)
	log.Printf("instance=%s seeds=%d best_seed=%d best_cost=%.6g median_cost=%.6g",
		rc.InstanceName, rc.Seeds, bestSeed, bestRes.Cost, stat.Quantile(0.5, stat.Empirical, costs, nil))

	fmt.Fprintf(w, "Best seed: %d\n", bestSeed)
	if err := report.Summary(w, bestRes); err != nil {
		return err
	}
	if err := report.PrintRoutes(w, bestRes.Routes, rc.MergeRoutes); err != nil {
		return err
	}
	fmt.Fprintf(w, "Computing Time: %.3f s\n", time.Since(start).Seconds())
	bestRC := rc
	bestRC.Seed = bestSeed
	return export(bestRC, inst, bestRes, o, w)
}
