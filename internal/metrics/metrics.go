// Package metrics exposes prometheus instrumentation for pipeline activity.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
)

// Metrics holds the pipeline collectors on a private registry so tests can
// build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	RecordsProcessed *prometheus.CounterVec
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_pipeline_runs_total",
				Help: "Total pipeline runs by overall status",
			},
			[]string{"status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "etl_task_duration_seconds",
				Help: "Duration of individual pipeline tasks",
			},
			[]string{"task"},
		),
		RecordsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_records_processed_total",
				Help: "Records seen per pipeline stage",
			},
			[]string{"stage"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.RunsTotal,
		m.TaskDuration,
		m.RecordsProcessed,
	)
	return m
}

// ObserveRun records one run summary: overall status plus per-task timings.
func (m *Metrics) ObserveRun(summary *dag.Summary) {
	m.RunsTotal.WithLabelValues(string(summary.Status)).Inc()
	for name, task := range summary.Tasks {
		if task.DurationMS != nil {
			m.TaskDuration.WithLabelValues(name).Observe(*task.DurationMS / 1000)
		}
	}
}

// ObserveRecords adds the per-stage record counts of one run. Keys follow
// the "<stage>_count" convention the pipeline stages emit.
func (m *Metrics) ObserveRecords(counts map[string]int) {
	for key, count := range counts {
		stage := strings.TrimSuffix(key, "_count")
		m.RecordsProcessed.WithLabelValues(stage).Add(float64(count))
	}
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
