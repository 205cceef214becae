package taskqueue

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "hrvibe"
	metricsSubsystem = "task_queue"

	statusSuccess   = "success"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

type metrics struct {
	enqueued  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	size      prometheus.GaugeFunc
	capacity  prometheus.GaugeFunc
}

func newMetrics(name string, q *Queue) *metrics {
	labels := prometheus.Labels{"queue": name}

	return &metrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "jobs_enqueued_total",
			Help:        "Jobs accepted by the queue.",
			ConstLabels: labels,
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "jobs_rejected_total",
			Help:        "Jobs discarded by a non-blocking put on a full queue.",
			ConstLabels: labels,
		}, []string{"kind"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "jobs_processed_total",
			Help:        "Jobs taken by the worker, by outcome.",
			ConstLabels: labels,
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "job_duration_seconds",
			Help:        "Job execution time.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		size: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "size",
			Help:        "Jobs waiting in the queue.",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Size()) }),
		capacity: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "capacity",
			Help:        "Maximum number of waiting jobs.",
			ConstLabels: labels,
		}, func() float64 { return float64(q.Capacity()) }),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.enqueued, m.rejected, m.processed, m.duration, m.size, m.capacity} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *metrics) jobEnqueued(kind string) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(kind).Inc()
}

func (m *metrics) jobRejected(kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(kind).Inc()
}

func (m *metrics) jobProcessed(kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(seconds)
}
