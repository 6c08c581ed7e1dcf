// Command gavrptw solves one VRPTW instance with the genetic algorithm and prints
// the best routes, optionally exporting per-generation statistics and route maps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gavrptw/internal/buildinfo"
	"gavrptw/internal/config"
	"gavrptw/internal/model"
)

// options are the CLI-only settings that have no place in an experiment file.
type options struct {
	configPath string
	xlsx       string
	geojson    string
	dot        string
	verbose    bool
	list       bool
	version    bool
}

func main() {
	config.LoadDotEnv(".env")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("gavrptw: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rc, o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}
	if o.list {
		names, err := model.List(rc.InstanceDir())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return nil
	}

	inst, err := model.Resolve(rc.InstanceDir(), rc.InstanceName)
	if err != nil {
		return err
	}
	if rc.IndSize == 0 {
		rc.IndSize = inst.Size()
	}
	if err := rc.Validate(); err != nil {
		return err
	}
	if rc.Seeds > 1 {
		return sweep(ctx, rc, inst, o, stdout)
	}
	return single(ctx, rc, inst, o, stdout)
}

// parseArgs layers flags over the experiment file (or the built-in sample) and the environment.
func parseArgs(args []string, stderr io.Writer) (config.Run, options, error) {
	var o options
	def := config.DefaultRun()
	fs := flag.NewFlagSet("gavrptw", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "YAML experiment file")
	fs.StringVar(&o.xlsx, "xlsx", "", "write statistics and routes workbook to this path")
	fs.StringVar(&o.geojson, "geojson", "", "write routes as GeoJSON to this path")
	fs.StringVar(&o.dot, "dot", "", "write routes as a Graphviz DOT graph to this path")
	fs.BoolVar(&o.verbose, "v", false, "log statistics for every generation")
	fs.BoolVar(&o.list, "list", false, "list instances in the data directory and exit")
	fs.BoolVar(&o.version, "version", false, "print version and exit")

	instance := fs.String("instance", def.InstanceName, "instance name")
	dataDir := fs.String("data", def.DataDir, "data directory")
	customize := fs.Bool("customize", def.Customize, "read from json_customize instead of json")
	engine := fs.String("engine", def.Engine, "solver engine: ga or eaopt")
	workers := fs.Int("workers", def.Workers, "parallel fitness evaluators (0 or 1 is sequential)")
	results := fs.String("results", def.ResultsDir, "directory for CSV exports")
	exportCSV := fs.Bool("csv", def.ExportCSV, "export per-generation statistics as CSV")
	merge := fs.Bool("merge", def.MergeRoutes, "print all routes on one line")
	seeds := fs.Int("seeds", def.Seeds, "run this many consecutive seeds and report each")

	unit := fs.Float64("unit-cost", def.Cost.Unit, "cost per unit of distance")
	initC := fs.Float64("init-cost", def.Cost.Init, "fixed cost per vehicle")
	wait := fs.Float64("wait-cost", def.Cost.Wait, "cost per unit of early arrival")
	delay := fs.Float64("delay-cost", def.Cost.Delay, "cost per unit of late arrival")
	overload := fs.Float64("overload-cost", def.Cost.OverloadCost, "cost per unit of demand over capacity")
	indSize := fs.Int("ind-size", def.IndSize, "chromosome length; follows the instance when -instance is given alone")
	pop := fs.Int("pop", def.PopSize, "population size")
	cx := fs.Float64("cxpb", def.CxPb, "crossover probability")
	mut := fs.Float64("mutpb", def.MutPb, "mutation probability")
	gens := fs.Int("generations", def.Generations, "number of generations")
	seed := fs.Int64("seed", def.Seed, "random seed")

	if err := fs.Parse(args); err != nil {
		return config.Run{}, o, err
	}

	rc := def
	if o.configPath != "" {
		var err error
		if rc, err = config.LoadRun(o.configPath); err != nil {
			return config.Run{}, o, err
		}
	}
	if err := rc.ApplyEnv(); err != nil {
		return config.Run{}, o, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply := map[string]func(){
		"instance":      func() { rc.InstanceName = *instance },
		"data":          func() { rc.DataDir = *dataDir },
		"customize":     func() { rc.Customize = *customize },
		"engine":        func() { rc.Engine = *engine },
		"workers":       func() { rc.Workers = *workers },
		"results":       func() { rc.ResultsDir = *results },
		"csv":           func() { rc.ExportCSV = *exportCSV },
		"merge":         func() { rc.MergeRoutes = *merge },
		"seeds":         func() { rc.Seeds = *seeds },
		"unit-cost":     func() { rc.Cost.Unit = *unit },
		"init-cost":     func() { rc.Cost.Init = *initC },
		"wait-cost":     func() { rc.Cost.Wait = *wait },
		"delay-cost":    func() { rc.Cost.Delay = *delay },
		"overload-cost": func() { rc.Cost.OverloadCost = *overload },
		"ind-size":      func() { rc.IndSize = *indSize },
		"pop":           func() { rc.PopSize = *pop },
		"cxpb":          func() { rc.CxPb = *cx },
		"mutpb":         func() { rc.MutPb = *mut },
		"generations":   func() { rc.Generations = *gens },
		"seed":          func() { rc.Seed = *seed },
	}
	for name, fn := range apply {
		if set[name] {
			fn()
		}
	}
	if set["instance"] && !set["ind-size"] {
		rc.IndSize = 0
	}
	return rc, o, nil
}
