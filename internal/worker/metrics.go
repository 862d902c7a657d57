package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts task runs by outcome and jobs settled. A nil *Metrics
// records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	settled  prometheus.Counter
}

// NewMetrics registers the task collectors on reg, usually the registry
// served at /metrics. A nil reg yields a nil *Metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldops_tasks_total",
			Help: "Task runs by task type and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldops_task_duration_seconds",
			Help:    "Task run duration by task type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		settled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldops_jobs_settled_total",
			Help: "Jobs moved to PAID by the settlement task.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.settled)
	return m
}

// Start times one run of task. The returned func records the outcome of err
// and hands err back, so handlers can wrap their named result with it.
func (m *Metrics) Start(task string) func(error) error {
	began := time.Now()
	return func(err error) error {
		if m == nil {
			return err
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.runs.WithLabelValues(task, outcome).Inc()
		m.duration.WithLabelValues(task).Observe(time.Since(began).Seconds())
		return err
	}
}

// AddSettled counts jobs moved to PAID.
func (m *Metrics) AddSettled(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.settled.Add(float64(count))
}
