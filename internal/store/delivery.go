package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

type WebhookDelivery struct {
	ID            string     `json:"id"`
	EventType     string     `json:"eventType"`
	URL           string     `json:"url"`
	Secret        string     `json:"-"`
	Payload       []byte     `json:"-"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
	ResponseCode  int        `json:"responseCode,omitempty"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	DedupKey      string     `json:"dedupKey"`
}

// computeDedupKey uses the payload's "id" when present, otherwise a short content hash.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
