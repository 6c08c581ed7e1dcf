package api

import (
	"net/http"
	"time"

	"gavrptw/internal/buildinfo"
)

// DebugJSON reports build information and the effective (non-secret) configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 s.Cfg.Port,
			"AUTH_MODE":            s.Auth.Mode,
			"DATA_DIR":             s.Cfg.DataDir,
			"RATE_RPS":             s.Cfg.RateRPS,
			"RATE_BURST":           s.Cfg.RateBurst,
			"EVAL_WORKERS":         s.Cfg.EvalWorkers,
			"MAX_RUNS":             s.Cfg.MaxRuns,
			"WEBHOOK_MAX_ATTEMPTS": s.Cfg.WebhookMaxAttempts,
			"HAS_WEBHOOK_URL":      s.Cfg.WebhookURL != "",
			"HAS_DATABASE_URL":     s.Cfg.DatabaseURL != "",
			"HAS_REDIS_URL":        s.Cfg.RedisURL != "",
		},
		"activeRuns": s.Runs.Active(),
	})
}
