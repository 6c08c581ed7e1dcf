package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"gavrptw/internal/config"
	"gavrptw/internal/events"
	"gavrptw/internal/model"
	"gavrptw/internal/opt"
	"gavrptw/internal/store"
	"gavrptw/internal/webhooks"
)

func newTestService(t *testing.T, maxRuns int) (*Service, *store.Memory, *events.Broker) {
	t.Helper()
	st := store.NewMemory()
	b := events.NewBroker()
	pub := webhooks.NewPublisher(st, "http://hooks.invalid/ga", "s3cret")
	return NewService(st, b, pub, NewCatalog("../../data"), 1, maxRuns), st, b
}

func sampleRequest(gens int) Request {
	return Request{
		Instance: "P-n5-k1",
		Params: opt.Params{
			Cost:        opt.CostParams{Unit: 1},
			PopSize:     15,
			CxPb:        0.8,
			MutPb:       0.1,
			Generations: gens,
			Seed:        64,
		},
	}
}

func TestCatalogResolveAndList(t *testing.T) {
	c := NewCatalog("../../data")
	inst, err := c.Resolve("P-n5-k1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inst.Size() != 5 {
		t.Fatalf("customers = %d, want 5", inst.Size())
	}
	if _, err := c.Resolve("C-n3"); err != nil {
		t.Fatalf("resolve solomon text: %v", err)
	}
	if _, err := c.Resolve("nope"); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("want ErrUnknownInstance, got %v", err)
	}
	names, err := c.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) < 2 {
		t.Fatalf("names = %v", names)
	}
}

func TestStartCompletesRun(t *testing.T) {
	opt.ResetBest()
	svc, st, _ := newTestService(t, 2)
	ctx := context.Background()

	run, err := svc.Start(ctx, sampleRequest(20))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.Status != store.StatusQueued || run.Engine != config.EngineGA {
		t.Fatalf("unexpected initial run %+v", run)
	}
	if run.Params.IndSize != 5 || run.Params.InstanceName != "P-n5-k1" {
		t.Fatalf("params not defaulted from instance: %+v", run.Params)
	}
	svc.Wait()

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != store.StatusSucceeded {
		t.Fatalf("status = %s (%s)", got.Status, got.Error)
	}
	if got.Generations != 20 || got.Cost <= 0 || len(got.Best) != 5 {
		t.Fatalf("unexpected finished run %+v", got)
	}
	stats, err := st.ListGenerationStats(ctx, run.ID, 0, 0)
	if err != nil || len(stats) != 20 {
		t.Fatalf("stats = %d err=%v", len(stats), err)
	}
	if stats[0].Generation != 0 || stats[19].Generation != 19 {
		t.Fatalf("generation indices %d..%d", stats[0].Generation, stats[19].Generation)
	}

	hooks, _ := st.ListWebhookDeliveries(ctx, "", 10)
	if len(hooks) != 1 || hooks[0].EventType != events.TypeCompleted {
		t.Fatalf("webhook deliveries = %+v", hooks)
	}
	if best := opt.BestByBackend("P-n5-k1"); best[config.EngineGA].RunID != run.ID {
		t.Fatalf("best not recorded: %+v", best)
	}
	if svc.Active() != 0 {
		t.Fatalf("active = %d", svc.Active())
	}
}

func TestStartEAOptEngine(t *testing.T) {
	svc, st, _ := newTestService(t, 1)
	req := sampleRequest(10)
	req.Engine = config.EngineEAOpt
	run, err := svc.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	got, _ := st.GetRun(context.Background(), run.ID)
	if got.Status != store.StatusSucceeded || got.Engine != config.EngineEAOpt {
		t.Fatalf("unexpected run %+v", got)
	}
}

func TestStartInlineInstance(t *testing.T) {
	svc, st, _ := newTestService(t, 1)
	inst := &model.Instance{
		Name:        "inline",
		MaxVehicles: 1,
		Capacity:    10,
		Depot:       model.Customer{DueTime: 100},
		Customers:   []model.Customer{{ID: 1, X: 3, Y: 4, Demand: 1, DueTime: 100}},
	}
	inst.BuildMatrix()
	req := sampleRequest(3)
	req.Instance = ""
	req.Inline = inst
	run, err := svc.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	got, _ := st.GetRun(context.Background(), run.ID)
	if got.Status != store.StatusSucceeded || got.Cost != 10 {
		t.Fatalf("unexpected run %+v", got)
	}
}

func TestStartRejectsBadRequests(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	ctx := context.Background()

	req := sampleRequest(5)
	req.Instance = ""
	if _, err := svc.Start(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing instance: %v", err)
	}
	req = sampleRequest(5)
	req.Engine = "tabu"
	if _, err := svc.Start(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("unknown engine: %v", err)
	}
	req = sampleRequest(5)
	req.Params.PopSize = 1
	if _, err := svc.Start(ctx, req); !errors.Is(err, opt.ErrInvalidParams) {
		t.Fatalf("bad pop size: %v", err)
	}
	req = sampleRequest(5)
	req.Params.IndSize = 4
	if _, err := svc.Start(ctx, req); !errors.Is(err, opt.ErrInvalidParams) {
		t.Fatalf("ind size mismatch: %v", err)
	}
	req = sampleRequest(5)
	req.Engine = config.EngineEAOpt
	req.Params.PopSize = 3
	if _, err := svc.Start(ctx, req); !errors.Is(err, opt.ErrInvalidParams) {
		t.Fatalf("eaopt pop below tournament: %v", err)
	}
	req = sampleRequest(5)
	req.Instance = "missing"
	if _, err := svc.Start(ctx, req); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("unknown instance: %v", err)
	}
}

func TestCancelQueuedAndRunning(t *testing.T) {
	svc, st, b := newTestService(t, 1)
	ctx := context.Background()

	// Hold the only slot so the second run stays queued.
	if err := svc.slots.Acquire(ctx, 1); err != nil {
		t.Fatal(err)
	}
	queued, err := svc.Start(ctx, sampleRequest(5))
	if err != nil {
		t.Fatalf("start queued: %v", err)
	}
	sub := b.Subscribe(queued.ID)
	if err := svc.Cancel(ctx, queued.ID); err != nil {
		t.Fatalf("cancel queued: %v", err)
	}
	svc.Wait()
	svc.slots.Release(1)

	got, _ := st.GetRun(ctx, queued.ID)
	if got.Status != store.StatusCancelled || got.StartedAt != nil {
		t.Fatalf("queued run = %+v", got)
	}
	select {
	case evt := <-sub:
		if evt.Type != events.TypeCancelled {
			t.Fatalf("event type = %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no terminal event")
	}

	long, err := svc.Start(ctx, sampleRequest(1_000_000))
	if err != nil {
		t.Fatalf("start long: %v", err)
	}
	if err := svc.Cancel(ctx, long.ID); err != nil {
		t.Fatalf("cancel long: %v", err)
	}
	svc.Wait()
	got, _ = st.GetRun(ctx, long.ID)
	if got.Status != store.StatusCancelled {
		t.Fatalf("long run status = %s", got.Status)
	}

	if err := svc.Cancel(ctx, long.ID); !errors.Is(err, ErrFinished) {
		t.Fatalf("cancel finished: %v", err)
	}
	if err := svc.Cancel(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cancel missing: %v", err)
	}
	hooks, _ := st.ListWebhookDeliveries(ctx, "", 10)
	if len(hooks) != 2 || hooks[0].EventType != events.TypeFailed {
		t.Fatalf("webhook deliveries = %+v", hooks)
	}
}

func TestProgressEventsStream(t *testing.T) {
	svc, _, b := newTestService(t, 1)
	ctx := context.Background()

	if err := svc.slots.Acquire(ctx, 1); err != nil {
		t.Fatal(err)
	}
	run, err := svc.Start(ctx, sampleRequest(5))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sub := b.Subscribe(run.ID)
	svc.slots.Release(1)

	var gens int
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt := <-sub:
			if evt.Type == events.TypeGeneration {
				gens++
				continue
			}
			if evt.Type != events.TypeCompleted {
				t.Fatalf("terminal event = %s", evt.Type)
			}
			if gens != 5 {
				t.Fatalf("generation events = %d, want 5", gens)
			}
			svc.Wait()
			return
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestShutdownCancelsRuns(t *testing.T) {
	svc, st, _ := newTestService(t, 2)
	ctx := context.Background()
	run, err := svc.Start(ctx, sampleRequest(1_000_000))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(sctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	got, _ := st.GetRun(ctx, run.ID)
	if got.Status != store.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
}
