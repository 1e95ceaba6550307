// Package metrics exposes Prometheus collectors for the watcher.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	edges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispmon",
			Subsystem: "watcher",
			Name:      "edges_total",
			Help:      "Process state transitions observed by the watcher.",
		}, []string{"direction"},
	)
	strategyActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispmon",
			Subsystem: "strategy",
			Name:      "actions_total",
			Help:      "Edge actions run by a reconfiguration strategy, by outcome.",
		}, []string{"strategy", "action", "result"},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dispmon",
			Subsystem: "watcher",
			Name:      "poll_duration_seconds",
			Help:      "Time spent sampling the process table per tick.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
	pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispmon",
			Subsystem: "watcher",
			Name:      "poll_errors_total",
			Help:      "Process table samples that failed.",
		},
	)
	watching = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dispmon",
			Subsystem: "watcher",
			Name:      "watching",
			Help:      "1 while a polling task is active.",
		},
	)
	gameRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dispmon",
			Subsystem: "watcher",
			Name:      "game_running",
			Help:      "1 while the watched process is present.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{edges, strategyActions, pollDuration, pollErrors, watching, gameRunning}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncEdge(direction string) {
	if regOK.Load() {
		edges.WithLabelValues(direction).Inc()
	}
}

// RecordAction counts one strategy action; err decides the result label.
func RecordAction(strategy, action string, err error) {
	if !regOK.Load() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	strategyActions.WithLabelValues(strategy, action, result).Inc()
}

func ObservePoll(seconds float64) {
	if regOK.Load() {
		pollDuration.Observe(seconds)
	}
}

func IncPollError() {
	if regOK.Load() {
		pollErrors.Inc()
	}
}

func SetWatching(on bool) {
	if regOK.Load() {
		watching.Set(boolValue(on))
	}
}

func SetGameRunning(on bool) {
	if regOK.Load() {
		gameRunning.Set(boolValue(on))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
