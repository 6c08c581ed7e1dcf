package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Runs counts finished runs by engine and outcome
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ga_runs_total", Help: "Finished GA runs by engine and status."},
		[]string{"engine", "status"},
	)
	// ActiveRuns is the number of runs currently evolving
	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ga_runs_active", Help: "Runs currently evolving."},
	)
	// Generations counts completed generations per instance
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ga_generations_total", Help: "Completed generations."},
		[]string{"instance"},
	)
	// Evaluations counts fitness evaluations per instance
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ga_evaluations_total", Help: "Fitness evaluations performed."},
		[]string{"instance"},
	)
	// BestCost is the best total cost seen per instance
	BestCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ga_best_cost", Help: "Lowest total cost found per instance."},
		[]string{"instance"},
	)
	// RunDuration records wall-clock run time in seconds
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "ga_run_duration_seconds", Help: "GA run duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}},
		[]string{"engine"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Runs, ActiveRuns, Generations, Evaluations, BestCost, RunDuration)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
