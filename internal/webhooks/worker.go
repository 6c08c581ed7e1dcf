package webhooks

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"gavrptw/internal/metrics"
	"gavrptw/internal/store"
)

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	Interval    time.Duration
}

func NewWorker(s store.Store, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Interval: time.Second}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		log.Printf("webhooks fetch err=%v", err)
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	success := false
	next := time.Now().Add(nextBackoff(it.Attempts))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventTypeHeader, it.EventType)
	req.Header.Set(IdempotencyHeader, it.DedupKey)
	if it.Secret != "" {
		req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := int(time.Since(start).Milliseconds())
	code := 0
	if err == nil && resp != nil {
		code = resp.StatusCode
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		if code >= 200 && code < 300 {
			success = true
		}
	}
	lastErr := ""
	if !success {
		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = "status " + strconv.Itoa(code)
		}
	}
	status := "delivered"
	switch {
	case success:
	case it.Attempts+1 >= w.MaxAttempts:
		status = "failed"
	default:
		status = "retry"
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
	if status == "failed" {
		log.Printf("webhook id=%s type=%s status=failed attempts=%d code=%d err=%q", it.ID, it.EventType, it.Attempts+1, code, lastErr)
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
		return
	}
	_ = w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
