package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gavrptw/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType, gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotKey = r.Header.Get("Idempotency-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	pub := NewPublisher(rs, srv.URL, "secret")
	id, err := pub.Emit(context.Background(), "run.completed:r1", "run.completed", map[string]any{"runId": "r1", "cost": 42.0})
	if err != nil || id == "" {
		t.Fatalf("emit failed: %v", err)
	}

	w.processOnce()

	if gotType != "run.completed" || gotKey != "run.completed:r1" {
		t.Fatalf("headers: type=%q key=%q", gotType, gotKey)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil || payload["type"] != "run.completed" {
		t.Fatalf("payload: %s %v", gotBody, err)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "run.failed", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].Code != 500 {
		t.Fatalf("expected retry mark, got %+v", rs.marks)
	}
	// force the retry to be due now
	due, _ := rs.Memory.ListWebhookDeliveries(context.Background(), "retry", 1)
	now := time.Now().Add(-time.Second)
	_ = rs.Memory.MarkWebhookDelivery(context.Background(), due[0].ID, false, &now, "", 500, 0)
	w.processOnce()
	if len(rs.fails) != 1 {
		t.Fatalf("expected fail recorded, got %+v", rs.fails)
	}
}

func TestPublisherDisabled(t *testing.T) {
	p := NewPublisher(store.NewMemory(), "", "")
	if id, err := p.Emit(context.Background(), "x", "run.completed", nil); id != "" || err != nil {
		t.Fatalf("disabled publisher enqueued %q %v", id, err)
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second || nextBackoff(3) != 8*time.Second || nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff: %v %v %v", nextBackoff(0), nextBackoff(3), nextBackoff(50))
	}
}

func TestSignVerify(t *testing.T) {
	sig := SignHMAC("k", []byte("body"))
	if !VerifyHMAC("k", []byte("body"), sig) || VerifyHMAC("k", []byte("other"), sig) || VerifyHMAC("k", []byte("body"), "zz") {
		t.Fatal("hmac round trip")
	}
}
