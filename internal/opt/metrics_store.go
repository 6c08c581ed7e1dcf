package opt

import "sync"

// Summary is the compact outcome of a finished run kept for comparison across runs.
type Summary struct {
	RunID       string  `json:"runId,omitempty"`
	Seed        int64   `json:"seed"`
	Cost        float64 `json:"cost"`
	Fitness     float64 `json:"fitness"`
	Routes      int     `json:"routes"`
	Evaluations int     `json:"evaluations"`
	DurationMs  int64   `json:"durationMs"`
}

// Summarize reduces a result to a Summary.
func (r Result) Summarize(runID string, seed int64) Summary {
	return Summary{
		RunID:       runID,
		Seed:        seed,
		Cost:        r.Cost,
		Fitness:     r.Fitness,
		Routes:      len(r.Routes),
		Evaluations: r.Evaluations,
		DurationMs:  r.Duration.Milliseconds(),
	}
}

type key struct {
	Instance string
	Backend  string
}

var (
	mu    sync.Mutex
	store = map[key]Summary{}
)

// RecordBest keeps s for (instance, backend) when it is cheaper than the stored one.
// It reports whether s was kept.
func RecordBest(instance, backend string, s Summary) bool {
	mu.Lock()
	defer mu.Unlock()
	k := key{Instance: instance, Backend: backend}
	if cur, ok := store[k]; ok && cur.Cost <= s.Cost {
		return false
	}
	store[k] = s
	return true
}

// BestByBackend returns the best recorded summary per backend for an instance.
func BestByBackend(instance string) map[string]Summary {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]Summary{}
	for k, v := range store {
		if k.Instance == instance {
			out[k.Backend] = v
		}
	}
	return out
}

// ResetBest clears all recorded summaries.
func ResetBest() {
	mu.Lock()
	store = map[key]Summary{}
	mu.Unlock()
}
