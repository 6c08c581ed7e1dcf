// Package main runs a demo WebSocket client that starts a run and prints its progress.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type event struct {
	Type  string         `json:"type"`
	RunID string         `json:"runId"`
	Data  map[string]any `json:"data"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	instance := "P-n5-k1"
	if len(os.Args) > 1 {
		instance = os.Args[1]
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	body, _ := json.Marshal(map[string]any{
		"instance": instance,
		"params": map[string]any{
			"cost":        map[string]any{"unitCost": 1},
			"popSize":     15,
			"cxPb":        0.8,
			"mutPb":       0.1,
			"generations": 100,
			"seed":        64,
		},
	})
	resp, err := http.Post(base+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("create run: status %d", resp.StatusCode)
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	for {
		var evt event
		if err := c.ReadJSON(&evt); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("read: %v", err)
			}
			return
		}
		switch evt.Type {
		case "run.generation":
			log.Printf("gen=%v min=%v max=%v avg_cost=%v", evt.Data["generation"], evt.Data["minFitness"], evt.Data["maxFitness"], evt.Data["avgCost"])
		default:
			log.Printf("WS <- %s: %v", evt.Type, evt.Data)
		}
	}
}
