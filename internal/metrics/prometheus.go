// Package metrics records pipeline activity (task runs, watch events,
// reloads) in a Prometheus registry exposed by the dev server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder with a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	watchEvents  *prometheus.CounterVec
	reloads      *prometheus.CounterVec
	coalesced    *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry, so
// several pipelines in one process (or test) never collide.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusRecorder{
		registry: registry,
		taskRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ginger_task_runs_total",
				Help: "Total number of task runs by task and final status",
			},
			[]string{"task", "status"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ginger_task_duration_seconds",
				Help:    "Duration of task actions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		watchEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ginger_watch_events_total",
				Help: "File system events seen by the watcher",
			},
			[]string{"kind", "ext"},
		),
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ginger_reloads_total",
				Help: "Reload notifications broadcast per channel",
			},
			[]string{"channel"},
		),
		coalesced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ginger_task_triggers_coalesced_total",
				Help: "Triggers folded into a pending follow-up run",
			},
			[]string{"task"},
		),
	}
}

// ObserveTask records one finished (or skipped) task.
func (p *PrometheusRecorder) ObserveTask(task, status string, duration time.Duration) {
	p.taskRuns.WithLabelValues(task, status).Inc()
	if duration > 0 {
		p.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
	}
}

// IncWatchEvent counts a classified watch event.
func (p *PrometheusRecorder) IncWatchEvent(kind, ext string) {
	p.watchEvents.WithLabelValues(kind, ext).Inc()
}

// IncReload counts a reload broadcast.
func (p *PrometheusRecorder) IncReload(channel string) {
	p.reloads.WithLabelValues(channel).Inc()
}

// IncCoalesced counts a trigger absorbed by a pending follow-up run.
func (p *PrometheusRecorder) IncCoalesced(task string) {
	p.coalesced.WithLabelValues(task).Inc()
}

// Registry exposes the registry for tests and custom collectors.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveTask(string, string, time.Duration) {}
func (Nop) IncWatchEvent(string, string)              {}
func (Nop) IncReload(string)                          {}
func (Nop) IncCoalesced(string)                       {}
