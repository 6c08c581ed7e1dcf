package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"gavrptw/internal/model"
	"gavrptw/internal/opt"
	"gavrptw/internal/runs"
	"gavrptw/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, runs.ErrUnknownInstance):
		status = http.StatusNotFound
	case errors.Is(err, runs.ErrFinished):
		status = http.StatusConflict
	case errors.Is(err, runs.ErrInvalidRequest),
		errors.Is(err, opt.ErrInvalidParams),
		errors.Is(err, opt.ErrZeroCost),
		errors.Is(err, model.ErrInvalidInstance):
		status = http.StatusUnprocessableEntity
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryInt returns the integer query parameter name, or def when absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
