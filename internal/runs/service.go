// Package runs executes solver runs asynchronously on behalf of the API.
// Each run persists its statistics, streams progress through the event broker
// and enqueues a webhook when it finishes.
package runs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gavrptw/internal/config"
	"gavrptw/internal/events"
	"gavrptw/internal/metrics"
	"gavrptw/internal/model"
	"gavrptw/internal/opt"
	"gavrptw/internal/report"
	"gavrptw/internal/store"
	"gavrptw/internal/webhooks"
)

var (
	// ErrInvalidRequest is returned (wrapped) when a run request cannot be started.
	ErrInvalidRequest = errors.New("invalid run request")
	// ErrFinished is returned when cancelling a run that already ended.
	ErrFinished = errors.New("run already finished")
)

// Request describes a run to start. Either Instance names a file in the catalog
// or Inline carries the instance itself.
type Request struct {
	Instance string          `json:"instance"`
	Inline   *model.Instance `json:"inlineInstance,omitempty"`
	Engine   string          `json:"engine,omitempty"`
	Params   opt.Params      `json:"params"`
	Workers  int             `json:"workers,omitempty"`
}

// Service starts, tracks and cancels runs.
type Service struct {
	Store    store.Store
	Broker   events.EventBroker
	Webhooks *webhooks.Publisher
	Catalog  Catalog
	// Workers is the default evaluation parallelism when a request leaves it at 0.
	Workers int

	slots *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService builds a service that runs at most maxRuns runs concurrently.
// Further runs stay queued until a slot frees up.
func NewService(s store.Store, b events.EventBroker, wh *webhooks.Publisher, catalog Catalog, workers, maxRuns int) *Service {
	if maxRuns <= 0 {
		maxRuns = 1
	}
	return &Service{
		Store:    s,
		Broker:   b,
		Webhooks: wh,
		Catalog:  catalog,
		Workers:  workers,
		slots:    semaphore.NewWeighted(int64(maxRuns)),
		cancels:  map[string]context.CancelFunc{},
	}
}

// prepare resolves the instance and fills parameters the caller may omit.
func (s *Service) prepare(req *Request) (*model.Instance, error) {
	var inst *model.Instance
	if req.Inline != nil {
		inst = req.Inline
		if inst.Name == "" {
			inst.Name = req.Instance
		}
	} else {
		if req.Instance == "" {
			return nil, fmt.Errorf("%w: instance is required", ErrInvalidRequest)
		}
		var err error
		inst, err = s.Catalog.Resolve(req.Instance)
		if err != nil {
			return nil, err
		}
	}
	if req.Engine == "" {
		req.Engine = config.EngineGA
	}
	if req.Engine != config.EngineGA && req.Engine != config.EngineEAOpt {
		return nil, fmt.Errorf("%w: unknown engine %q", ErrInvalidRequest, req.Engine)
	}
	if req.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0", ErrInvalidRequest)
	}
	if req.Params.InstanceName == "" {
		req.Params.InstanceName = inst.Name
	}
	if req.Params.IndSize == 0 {
		req.Params.IndSize = inst.Size()
	}
	// NewEngine performs every instance and parameter check without evolving anything.
	if _, err := opt.NewEngine(inst, req.Params); err != nil {
		return nil, err
	}
	if req.Engine == config.EngineEAOpt {
		if err := eaoptConfig(req.Workers).Check(req.Params); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Start validates req, records a queued run and evolves it in the background.
func (s *Service) Start(ctx context.Context, req Request) (store.Run, error) {
	inst, err := s.prepare(&req)
	if err != nil {
		return store.Run{}, err
	}
	run, err := s.Store.CreateRun(ctx, store.Run{
		Instance: inst.Name,
		Engine:   req.Engine,
		Params:   req.Params,
		Status:   store.StatusQueued,
	})
	if err != nil {
		return store.Run{}, fmt.Errorf("create run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[run.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(run.ID)
		s.execute(runCtx, run, inst, req)
	}()
	log.Printf("run=%s instance=%s engine=%s status=queued", run.ID, inst.Name, req.Engine)
	return run, nil
}

// Cancel stops a queued or running run. Cancellation takes effect at the next
// generation boundary.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	run, err := s.Store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Status.Done() {
		return ErrFinished
	}
	// Persisted as active but not owned by this process (e.g. after a restart).
	return s.Store.FinishRun(ctx, id, store.Outcome{Status: store.StatusCancelled, Error: "cancelled"})
}

// Active returns the number of runs this process is tracking.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

// Wait blocks until every started run has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Shutdown cancels all runs and waits for them, or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

func (s *Service) execute(ctx context.Context, run store.Run, inst *model.Instance, req Request) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.finish(run, opt.Result{Instance: inst.Name}, err)
		return
	}
	defer s.slots.Release(1)

	if err := s.Store.MarkRunRunning(ctx, run.ID); err != nil {
		s.finish(run, opt.Result{Instance: inst.Name}, fmt.Errorf("mark running: %w", err))
		return
	}
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	log.Printf("run=%s instance=%s engine=%s status=running", run.ID, inst.Name, req.Engine)

	workers := req.Workers
	if workers == 0 {
		workers = s.Workers
	}
	observers := []opt.Observer{
		&progress{svc: s, runID: run.ID, instance: inst.Name},
		report.LogObserver{Run: run.ID, Every: 10},
	}

	var (
		res opt.Result
		err error
	)
	switch req.Engine {
	case config.EngineEAOpt:
		res, err = opt.SolveEAOpt(ctx, inst, req.Params, eaoptConfig(workers), observers...)
	default:
		opts := []opt.Option{opt.WithObservers(observers...)}
		if workers > 1 {
			opts = append(opts, opt.WithBatch(opt.NewParallel(workers)))
		}
		var eng *opt.Engine
		eng, err = opt.NewEngine(inst, req.Params, opts...)
		if err == nil {
			res, err = eng.Run(ctx)
		}
	}
	s.finish(run, res, err)
}

// finish persists the outcome, publishes the terminal event and enqueues the webhook.
func (s *Service) finish(run store.Run, res opt.Result, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := store.Outcome{Status: store.StatusSucceeded, Result: &res}
	evtType := events.TypeCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		out.Status = store.StatusCancelled
		out.Error = "cancelled"
		evtType = events.TypeCancelled
	default:
		out.Status = store.StatusFailed
		out.Error = runErr.Error()
		evtType = events.TypeFailed
	}
	if err := s.Store.FinishRun(ctx, run.ID, out); err != nil {
		log.Printf("run=%s err=finish_run %v", run.ID, err)
	}

	data := map[string]any{
		"status":      string(out.Status),
		"instance":    res.Instance,
		"cost":        res.Cost,
		"fitness":     res.Fitness,
		"generations": res.Generations,
		"evaluations": res.Evaluations,
		"routes":      len(res.Routes),
		"durationMs":  res.Duration.Milliseconds(),
	}
	if out.Error != "" {
		data["error"] = out.Error
	}
	s.Broker.Publish(run.ID, events.Event{Type: evtType, RunID: run.ID, Data: data})

	metrics.Runs.WithLabelValues(run.Engine, string(out.Status)).Inc()
	metrics.RunDuration.WithLabelValues(run.Engine).Observe(res.Duration.Seconds())
	if out.Status == store.StatusSucceeded && res.Best != nil {
		if opt.RecordBest(run.Instance, run.Engine, res.Summarize(run.ID, run.Params.Seed)) {
			metrics.BestCost.WithLabelValues(run.Instance).Set(res.Cost)
		}
	}

	hook := events.TypeCompleted
	if out.Status != store.StatusSucceeded {
		hook = events.TypeFailed
	}
	data["runId"] = run.ID
	if _, err := s.Webhooks.Emit(ctx, hook+":"+run.ID, hook, data); err != nil {
		log.Printf("run=%s err=webhook_enqueue %v", run.ID, err)
	}

	log.Printf("run=%s instance=%s engine=%s status=%s cost=%.6g generations=%d dur_ms=%d",
		run.ID, run.Instance, run.Engine, out.Status, res.Cost, res.Generations, res.Duration.Milliseconds())
}

// progress persists and publishes each generation.
type progress struct {
	svc      *Service
	runID    string
	instance string
}

func (p *progress) OnGeneration(ctx context.Context, st opt.GenerationStats) error {
	if err := p.svc.Store.AppendGenerationStats(ctx, p.runID, st); err != nil {
		return fmt.Errorf("append stats: %w", err)
	}
	metrics.Generations.WithLabelValues(p.instance).Inc()
	metrics.Evaluations.WithLabelValues(p.instance).Add(float64(st.Evaluated))
	p.svc.Broker.Publish(p.runID, events.Event{
		Type:  events.TypeGeneration,
		RunID: p.runID,
		Data: map[string]any{
			"generation":           st.Generation,
			"evaluatedIndividuals": st.Evaluated,
			"minFitness":           st.Min,
			"maxFitness":           st.Max,
			"avgFitness":           st.Mean,
			"stdFitness":           st.Std,
			"avgCost":              st.AvgCost,
		},
	})
	return nil
}

func (p *progress) OnComplete(context.Context, opt.Result) error { return nil }

func eaoptConfig(workers int) opt.EAOptConfig {
	return opt.EAOptConfig{Parallel: workers > 1}
}
