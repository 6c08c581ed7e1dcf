package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gavrptw/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]*Run                    // id -> run
	order []string                           // run ids in creation order
	stats map[string][]opt.GenerationStats   // run id -> history
	// Webhooks queue state
	deliveries map[string]*WebhookDelivery // id -> delivery state
	dorder     []string
	dedup      map[string]string // eventType|url|key -> delivery id
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]*Run{},
		stats:      map[string][]opt.GenerationStats{},
		deliveries: map[string]*WebhookDelivery{},
		dedup:      map[string]string{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateRun(ctx context.Context, r Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if _, exists := m.runs[r.ID]; exists {
		return Run{}, fmt.Errorf("create run: id %s already exists", r.ID)
	}
	if r.Status == "" {
		r.Status = StatusQueued
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := r
	m.runs[r.ID] = &cp
	m.order = append(m.order, r.ID)
	return r, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return *r, nil
}

func (m *Memory) ListRuns(ctx context.Context, instance, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []Run{}
	var next string
	for i := start; i < len(m.order) && len(out) < limit; i++ {
		r := m.runs[m.order[i]]
		if instance == "" || r.Instance == instance {
			out = append(out, *r)
		}
		next = m.order[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) MarkRunRunning(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	r.Status = StatusRunning
	r.StartedAt = &now
	return nil
}

func (m *Memory) FinishRun(ctx context.Context, id string, out Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	out.apply(r, time.Now().UTC())
	return nil
}

func (m *Memory) AppendGenerationStats(ctx context.Context, runID string, s opt.GenerationStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	m.stats[runID] = append(m.stats[runID], s)
	if r := m.runs[runID]; s.Generation+1 > r.Generations {
		r.Generations = s.Generation + 1
	}
	return nil
}

func (m *Memory) ListGenerationStats(ctx context.Context, runID string, from, limit int) ([]opt.GenerationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	all := m.stats[runID]
	i := sort.Search(len(all), func(i int) bool { return all[i].Generation >= from })
	out := []opt.GenerationStats{}
	for ; i < len(all) && (limit <= 0 || len(out) < limit); i++ {
		out = append(out, all[i])
	}
	return out, nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dk := computeDedupKey(payload)
	key := eventType + "|" + url + "|" + dk
	if id, ok := m.dedup[key]; ok {
		return id, nil
	}
	id := uuid.New().String()
	now := time.Now()
	m.deliveries[id] = &WebhookDelivery{ID: id, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", NextAttemptAt: &now, DedupKey: dk}
	m.dorder = append(m.dorder, id)
	m.dedup[key] = id
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.dorder {
		d := m.deliveries[id]
		if (d.Status == "pending" || d.Status == "retry") && (d.NextAttemptAt == nil || !d.NextAttemptAt.After(now)) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
		d.NextAttemptAt = nil
		return nil
	}
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt == nil {
		t := time.Now().Add(1 * time.Minute)
		nextAttemptAt = &t
	}
	d.NextAttemptAt = nextAttemptAt
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.NextAttemptAt = nil
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	out := []WebhookDelivery{}
	for _, id := range m.dorder {
		d := m.deliveries[id]
		if status == "" || d.Status == status {
			out = append(out, *d)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
