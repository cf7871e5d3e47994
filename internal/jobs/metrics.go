package jobs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/optionrank/internal/contracts"
)

// Metrics holds the ranking pipeline's Prometheus collectors
// ⭐ SSOT: 랭킹 파이프라인 메트릭은 여기서만 정의
type Metrics struct {
	JobsEnqueued      *prometheus.CounterVec
	JobsCompleted     prometheus.Counter
	JobsFailed        *prometheus.CounterVec
	JobsLost          prometheus.Counter
	JobsReclaimed     prometheus.Counter
	JobDuration       *prometheus.HistogramVec
	ContractsRanked   prometheus.Counter
	ContractsExcluded *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg (nil = unregistered)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionrank_jobs_enqueued_total",
				Help: "Enqueue requests by outcome (created or deduplicated)",
			},
			[]string{"outcome"},
		),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionrank_jobs_completed_total",
			Help: "Ranking jobs committed successfully",
		}),
		JobsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionrank_jobs_failed_total",
				Help: "Ranking job failures by error kind and whether the job was re-queued",
			},
			[]string{"kind", "outcome"},
		),
		JobsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionrank_jobs_lost_total",
			Help: "Results discarded because the job was reclaimed before commit",
		}),
		JobsReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionrank_jobs_reclaimed_total",
			Help: "Running jobs reclaimed after exceeding the job timeout",
		}),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optionrank_job_duration_seconds",
				Help:    "Wall time from claim to commit or failure",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"result"},
		),
		ContractsRanked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionrank_contracts_ranked_total",
			Help: "Contracts written to committed rank sets",
		}),
		ContractsExcluded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionrank_contracts_excluded_total",
				Help: "Contracts filtered out of a run by reason",
			},
			[]string{"reason"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "optionrank_queue_jobs",
				Help: "Jobs by status at the last stats refresh",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.JobsEnqueued,
			m.JobsCompleted,
			m.JobsFailed,
			m.JobsLost,
			m.JobsReclaimed,
			m.JobDuration,
			m.ContractsRanked,
			m.ContractsExcluded,
			m.QueueDepth,
		)
	}

	return m
}

// observeStats refreshes the queue depth gauges
func (m *Metrics) observeStats(s *contracts.QueueStats) {
	m.QueueDepth.WithLabelValues(string(contracts.JobPending)).Set(float64(s.Pending))
	m.QueueDepth.WithLabelValues(string(contracts.JobRunning)).Set(float64(s.Running))
	m.QueueDepth.WithLabelValues(string(contracts.JobCompleted)).Set(float64(s.Completed))
	m.QueueDepth.WithLabelValues(string(contracts.JobFailed)).Set(float64(s.Failed))
}
