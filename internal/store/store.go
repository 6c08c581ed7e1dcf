package store

import (
	"context"
	"errors"
	"time"

	"gavrptw/internal/opt"
)

// Store is the persistence interface used by the run service and the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, r Run) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, instance, cursor string, limit int) (items []Run, nextCursor string, err error)
	MarkRunRunning(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, out Outcome) error

	// Generation statistics
	AppendGenerationStats(ctx context.Context, runID string, s opt.GenerationStats) error
	ListGenerationStats(ctx context.Context, runID string, from, limit int) ([]opt.GenerationStats, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// Status of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether the status is final.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Run is the persisted record of one solver run.
type Run struct {
	ID          string     `json:"id"`
	Instance    string     `json:"instance"`
	Engine      string     `json:"engine"`
	Params      opt.Params `json:"params"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Cost        float64    `json:"cost,omitempty"`
	Fitness     float64    `json:"fitness,omitempty"`
	Best        []int      `json:"best,omitempty"`
	Routes      [][]int    `json:"routes,omitempty"`
	Evaluations int        `json:"evaluations"`
	Generations int        `json:"generations"`
	DurationMs  int64      `json:"durationMs"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Outcome is what FinishRun records. Result may be partial (cancelled) or nil (failed early).
type Outcome struct {
	Status Status
	Error  string
	Result *opt.Result
}

// apply copies the outcome onto r.
func (o Outcome) apply(r *Run, at time.Time) {
	r.Status = o.Status
	r.Error = o.Error
	r.FinishedAt = &at
	if o.Result == nil {
		return
	}
	res := o.Result
	r.Cost = res.Cost
	r.Fitness = res.Fitness
	if res.Best != nil {
		r.Best = append([]int(nil), res.Best.Genes...)
	}
	r.Routes = routeIDs(res.Routes)
	r.Evaluations = res.Evaluations
	r.Generations = res.Generations
	r.DurationMs = res.Duration.Milliseconds()
}

func routeIDs(routes []opt.Route) [][]int {
	if len(routes) == 0 {
		return nil
	}
	out := make([][]int, len(routes))
	for i, r := range routes {
		out[i] = append([]int(nil), r.Customers...)
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
