package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"gavrptw/internal/store"
)

// Publisher enqueues events for the configured endpoint; the Worker delivers them.
type Publisher struct {
	Store  store.Store
	URL    string
	Secret string
}

func NewPublisher(s store.Store, url, secret string) *Publisher {
	return &Publisher{Store: s, URL: url, Secret: secret}
}

// Enabled reports whether an endpoint is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.URL != "" }

// Emit enqueues one event. The id doubles as the dedup key, so emitting the same
// id twice produces a single delivery.
func (p *Publisher) Emit(ctx context.Context, id, eventType string, data any) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	payload := map[string]any{
		"id":   id,
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueWebhook(ctx, eventType, p.URL, p.Secret, body)
}
