package config

import (
	"fmt"
	"os"
	"strconv"
)

// Server holds the HTTP service settings. All values come from the environment.
type Server struct {
	Port               string
	DatabaseURL        string
	RedisURL           string
	RateRPS            float64
	RateBurst          int
	WebhookURL         string
	WebhookSecret      string
	WebhookMaxAttempts int
	DataDir            string
	EvalWorkers        int
	MaxRuns            int
	AuthMode           string
	AuthToken          string
	AuthHMACSecret     string
}

// ServerFromEnv reads PORT, DATABASE_URL, REDIS_URL, RATE_RPS, RATE_BURST,
// WEBHOOK_URL, WEBHOOK_SECRET, WEBHOOK_MAX_ATTEMPTS, DATA_DIR, EVAL_WORKERS, MAX_RUNS
// and the AUTH_MODE, AUTH_TOKEN, AUTH_HMAC_SECRET operator credentials.
func ServerFromEnv() (Server, error) {
	s := Server{
		Port:               "8080",
		RateRPS:            10,
		RateBurst:          20,
		WebhookMaxAttempts: 5,
		DataDir:            "data",
		MaxRuns:            4,
	}
	if v := os.Getenv("PORT"); v != "" {
		s.Port = v
	}
	s.DatabaseURL = os.Getenv("DATABASE_URL")
	s.RedisURL = os.Getenv("REDIS_URL")
	s.WebhookURL = os.Getenv("WEBHOOK_URL")
	s.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	s.AuthMode = os.Getenv("AUTH_MODE")
	s.AuthToken = os.Getenv("AUTH_TOKEN")
	s.AuthHMACSecret = os.Getenv("AUTH_HMAC_SECRET")
	if v := os.Getenv("DATA_DIR"); v != "" {
		s.DataDir = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return s, fmt.Errorf("%w: RATE_RPS=%q", ErrInvalidConfig, v)
		}
		s.RateRPS = f
	}
	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"RATE_BURST", &s.RateBurst, 1},
		{"WEBHOOK_MAX_ATTEMPTS", &s.WebhookMaxAttempts, 1},
		{"EVAL_WORKERS", &s.EvalWorkers, 0},
		{"MAX_RUNS", &s.MaxRuns, 1},
	}
	for _, iv := range ints {
		v := os.Getenv(iv.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < iv.min {
			return s, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, iv.name, v)
		}
		*iv.dst = n
	}
	return s, nil
}

// Addr is the listen address.
func (s Server) Addr() string { return ":" + s.Port }
