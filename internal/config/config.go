// Package config resolves run and server settings from YAML experiment files,
// environment variables and an optional .env file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gavrptw/internal/opt"
)

// ErrInvalidConfig is returned (wrapped) for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

const (
	EngineGA    = "ga"
	EngineEAOpt = "eaopt"
)

// Run describes one experiment. The embedded Params are the solver inputs; the
// remaining fields control where data comes from and where results go.
type Run struct {
	opt.Params `yaml:",inline"`

	DataDir     string `yaml:"dataDir"`
	Customize   bool   `yaml:"customizeData"`
	Engine      string `yaml:"engine"`
	Workers     int    `yaml:"workers"`
	ResultsDir  string `yaml:"resultsDir"`
	ExportCSV   bool   `yaml:"exportCsv"`
	MergeRoutes bool   `yaml:"mergeRoutes"`
	// Seeds > 1 runs a sweep over Seed, Seed+1, ... and reports each.
	Seeds int `yaml:"seeds"`
}

// DefaultRun reproduces the five-customer sample experiment.
func DefaultRun() Run {
	return Run{
		Params: opt.Params{
			InstanceName: "P-n5-k1",
			Cost:         opt.CostParams{Unit: 1},
			IndSize:      5,
			PopSize:      15,
			CxPb:         0.8,
			MutPb:        0.1,
			Generations:  100,
			Seed:         64,
		},
		DataDir:    "data",
		Customize:  true,
		Engine:     EngineGA,
		ResultsDir: "results",
		ExportCSV:  true,
		Seeds:      1,
	}
}

// InstanceDir is the directory instances are resolved from.
func (r Run) InstanceDir() string {
	if r.Customize {
		return filepath.Join(r.DataDir, "json_customize")
	}
	return filepath.Join(r.DataDir, "json")
}

// Validate checks run settings and the solver parameters.
func (r Run) Validate() error {
	if r.InstanceName == "" {
		return fmt.Errorf("%w: instanceName is required", ErrInvalidConfig)
	}
	if r.Engine != EngineGA && r.Engine != EngineEAOpt {
		return fmt.Errorf("%w: engine must be %q or %q, got %q", ErrInvalidConfig, EngineGA, EngineEAOpt, r.Engine)
	}
	if r.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if r.Seeds < 1 {
		return fmt.Errorf("%w: seeds must be >= 1", ErrInvalidConfig)
	}
	if err := r.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// DecodeRun reads YAML over DefaultRun. Unknown keys are rejected. A file that names
// an instance without indSize leaves IndSize 0 so it follows the loaded instance.
func DecodeRun(rd io.Reader) (Run, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return Run{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	r := DefaultRun()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return Run{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var given struct {
		InstanceName *string `yaml:"instanceName"`
		IndSize      *int    `yaml:"indSize"`
	}
	if err := yaml.Unmarshal(data, &given); err == nil && given.InstanceName != nil && given.IndSize == nil {
		r.IndSize = 0
	}
	return r, nil
}

// LoadRun reads an experiment file.
func LoadRun(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("load run config: %w", err)
	}
	r, err := DecodeRun(bytes.NewReader(data))
	if err != nil {
		return Run{}, fmt.Errorf("load run config %s: %w", path, err)
	}
	return r, nil
}

// ApplyEnv overrides DataDir and Workers from DATA_DIR and EVAL_WORKERS.
func (r *Run) ApplyEnv() error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		r.DataDir = v
	}
	if v := os.Getenv("EVAL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: EVAL_WORKERS: %v", ErrInvalidConfig, err)
		}
		r.Workers = n
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. A missing file is
// not an error; existing variables win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			log.Printf("dotenv path=%s err=%v", p, err)
		}
	}
}
