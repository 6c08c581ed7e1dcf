package api

import (
	"context"
	"net/http"
	"time"

	"gavrptw/internal/opt"
	"gavrptw/internal/runs"
)

// CreateRunHandler handles POST /v1/runs. The run is accepted and evolves in the background.
func (s *Server) CreateRunHandler(w http.ResponseWriter, r *http.Request) {
	var req runs.Request
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateRunRequest(&req); err != nil {
		writeError(w, r, "Invalid run request", err)
		return
	}
	run, err := s.Runs.Start(r.Context(), req)
	if err != nil {
		writeError(w, r, "Start run failed", err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

// ListRunsHandler handles GET /v1/runs?instance=&cursor=&limit=.
func (s *Server) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, next, err := s.Store.ListRuns(r.Context(), q.Get("instance"), q.Get("cursor"), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, r, "List runs failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Run not found", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// CancelRunHandler handles DELETE /v1/runs/{id}.
func (s *Server) CancelRunHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Runs.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, "Cancel run failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": r.PathValue("id"), "status": "cancelling"})
}

// RunStatsHandler handles GET /v1/runs/{id}/stats?from=&limit=.
func (s *Server) RunStatsHandler(w http.ResponseWriter, r *http.Request) {
	from := queryInt(r, "from", 0)
	items, err := s.Store.ListGenerationStats(r.Context(), r.PathValue("id"), from, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, "List stats failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.Catalog.List()
	if err != nil {
		writeError(w, r, "List instances failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": names})
}

// InstanceHandler returns the parsed instance, without the distance matrix.
func (s *Server) InstanceHandler(w http.ResponseWriter, r *http.Request) {
	inst, err := s.Catalog.Resolve(r.PathValue("name"))
	if err != nil {
		writeError(w, r, "Instance not found", err)
		return
	}
	out := *inst
	out.Matrix = nil
	writeJSON(w, http.StatusOK, map[string]any{
		"instance":    out,
		"totalDemand": inst.TotalDemand(),
		"overloaded":  inst.Overloaded(),
	})
}

// InstanceBestHandler reports the cheapest finished run per engine for an instance.
func (s *Server) InstanceBestHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	best := opt.BestByBackend(name)
	if len(best) == 0 {
		writeProblem(w, http.StatusNotFound, "No finished runs", name, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instance": name, "best": best})
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries?status=&limit=.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListWebhookDeliveries(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, r, "List deliveries failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	type pinger interface{ Ping(ctx context.Context) error }
	if p, ok := s.Broker.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "activeRuns": s.Runs.Active()})
}
