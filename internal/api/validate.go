package api

import (
	"fmt"

	"gavrptw/internal/runs"
)

// Upper bounds for requests accepted over HTTP; the CLI has none.
const (
	maxPopSize     = 10_000
	maxGenerations = 100_000
	maxWorkers     = 64
)

func validateRunRequest(req *runs.Request) error {
	if req.Instance == "" && req.Inline == nil {
		return fmt.Errorf("%w: instance or inlineInstance is required", runs.ErrInvalidRequest)
	}
	if req.Params.PopSize > maxPopSize {
		return fmt.Errorf("%w: popSize must be <= %d", runs.ErrInvalidRequest, maxPopSize)
	}
	if req.Params.Generations > maxGenerations {
		return fmt.Errorf("%w: generations must be <= %d", runs.ErrInvalidRequest, maxGenerations)
	}
	if req.Workers > maxWorkers {
		return fmt.Errorf("%w: workers must be <= %d", runs.ErrInvalidRequest, maxWorkers)
	}
	return nil
}
