package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header names set on every delivery.
const (
	SignatureHeader   = "X-Signature"
	EventTypeHeader   = "X-Event-Type"
	IdempotencyHeader = "Idempotency-Key"
)

// SignHMAC returns lowercase hex of HMAC-SHA256 over body.
func SignHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a hex signature produced by SignHMAC in constant time.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	got, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
