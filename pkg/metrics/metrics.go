package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

// Outcome label values of the jobs counter.
const (
	OutcomeDeleted  = "deleted"
	OutcomeReleased = "released"
	OutcomeBuried   = "buried"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Metrics turns queue events into Prometheus metrics.
type Metrics struct {
	reservedCounter     prometheus.Counter
	jobsCounter         *prometheus.CounterVec
	handleDuration      *prometheus.HistogramVec
	inFlightGauge       prometheus.Gauge
	readyGauge          prometheus.Gauge
	startErrorCounter   prometheus.Counter
	reserveErrorCounter prometheus.Counter
}

// New creates the collectors under namespace. They are not registered yet.
func New(namespace string) *Metrics {
	return &Metrics{
		reservedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "reserved_total",
			Help:      "Counter of jobs reserved by all workers.",
		}),
		jobsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Counter of jobs by job type and outcome.",
		}, []string{"job_type", "outcome"}),
		handleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "handle_duration_seconds",
			Help:      "Time spent in handlers per job type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_type"}),
		inFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of jobs currently being handled.",
		}),
		readyGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workers",
			Name:      "ready",
			Help:      "Number of workers running their loop.",
		}),
		startErrorCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workers",
			Name:      "start_errors_total",
			Help:      "Counter of worker start failures.",
		}),
		reserveErrorCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "reserve_errors_total",
			Help:      "Counter of failed reserve commands.",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.reservedCounter,
		m.jobsCounter,
		m.handleDuration,
		m.inFlightGauge,
		m.readyGauge,
		m.startErrorCounter,
		m.reserveErrorCounter,
	}
}

// Observe implements queue.Observer. It is safe for concurrent use.
func (m *Metrics) Observe(e queue.Event) {
	if e.Source != queue.SourceWorker {
		return
	}

	switch e.Name {
	case queue.EventReady:
		m.readyGauge.Inc()
	case queue.EventStopping:
		m.readyGauge.Dec()
	case queue.EventStartError:
		m.startErrorCounter.Inc()
	case queue.EventJobReserved:
		m.reservedCounter.Inc()
	case queue.EventJobHandling:
		m.inFlightGauge.Inc()
	case queue.EventJobHandled:
		m.inFlightGauge.Dec()
		m.handleDuration.WithLabelValues(e.JobType).Observe(e.Duration.Seconds())
	case queue.EventJobInvalid:
		m.jobsCounter.WithLabelValues(e.JobType, OutcomeInvalid).Inc()
	case queue.EventJobDeleted:
		m.jobsCounter.WithLabelValues(e.JobType, OutcomeDeleted).Inc()
	case queue.EventJobReleased:
		m.jobsCounter.WithLabelValues(e.JobType, OutcomeReleased).Inc()
	case queue.EventJobBuried:
		m.jobsCounter.WithLabelValues(e.JobType, OutcomeBuried).Inc()
	case queue.EventJobFailed:
		if e.JobID == 0 {
			m.reserveErrorCounter.Inc()
			return
		}
		m.jobsCounter.WithLabelValues(e.JobType, OutcomeFailed).Inc()
	}
}
