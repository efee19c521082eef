package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/researchly/marketscout/models"
)

// Metrics aggregates the service's Prometheus instruments.
type Metrics struct {
	JobsCreated       *prometheus.CounterVec
	JobsCompleted     *prometheus.CounterVec
	JobsFailed        *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	QuestionsAnswered prometheus.Counter
}

// NewMetrics registers the service instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketscout_jobs_created_total",
			Help: "Jobs created, by kind.",
		}, []string{"kind"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketscout_jobs_completed_total",
			Help: "Jobs that reached the completed state, by kind.",
		}, []string{"kind"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketscout_jobs_failed_total",
			Help: "Jobs that reached the failed state, by kind.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketscout_cache_hits_total",
			Help: "Result cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketscout_cache_misses_total",
			Help: "Result cache misses.",
		}),
		QuestionsAnswered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketscout_questions_answered_total",
			Help: "Follow-up questions answered.",
		}),
	}
	reg.MustRegister(m.JobsCreated, m.JobsCompleted, m.JobsFailed, m.CacheHits, m.CacheMisses, m.QuestionsAnswered)
	return m
}

// JobCompleted and JobFailed are hook adapters for the pipeline engine.
func (m *Metrics) JobCompleted(kind models.JobKind) { m.JobsCompleted.WithLabelValues(string(kind)).Inc() }
func (m *Metrics) JobFailed(kind models.JobKind)    { m.JobsFailed.WithLabelValues(string(kind)).Inc() }
