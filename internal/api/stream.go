package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gavrptw/internal/events"
	"gavrptw/internal/store"
)

// heartbeatInterval also bounds how long a stream outlives a run whose terminal
// event it missed.
var heartbeatInterval = 15 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// snapshot is the first event on every stream: the run as currently persisted.
func snapshot(run store.Run) events.Event {
	return events.Event{Type: "run.snapshot", RunID: run.ID, Data: map[string]any{
		"status":      string(run.Status),
		"generations": run.Generations,
		"cost":        run.Cost,
	}}
}

// RunEventsStreamHandler handles GET /v1/runs/{id}/events/stream as server-sent events.
// The stream ends after the terminal event of the run.
func (s *Server) RunEventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	// Subscribe before reading the run so no event between the two is lost.
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, "Run not found", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	send := func(evt events.Event) {
		b, _ := json.Marshal(evt.Data)
		fmt.Fprintf(w, "event: %s\n", evt.Type)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
	send(snapshot(run))
	if run.Status.Done() {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			if evt.Terminal() {
				return
			}
		case <-ticker.C:
			if cur, err := s.Store.GetRun(r.Context(), id); err == nil && cur.Status.Done() {
				send(snapshot(cur))
				return
			}
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"runId\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// RunEventsWSHandler handles GET /v1/runs/{id}/ws. Each event is one JSON text message.
func (s *Server) RunEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, "Run not found", err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Reader: only control frames are expected; it notices the client going away.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(snapshot(run)); err != nil || run.Status.Done() {
		closeWS(conn)
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Terminal() {
				closeWS(conn)
				return
			}
		case <-ticker.C:
			if cur, err := s.Store.GetRun(r.Context(), id); err == nil && cur.Status.Done() {
				_ = conn.WriteJSON(snapshot(cur))
				closeWS(conn)
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func closeWS(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
