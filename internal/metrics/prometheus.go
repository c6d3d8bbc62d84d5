package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signalhub/internal/domain"
)

// Recorder implements domain.Metrics using Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	deliveries       *prometheus.CounterVec
	signalsCreated   *prometheus.CounterVec
	candidatesDenied *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	jobRuns          *prometheus.CounterVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalhub_deliveries_total",
				Help: "Bot messages sent, by audience and outcome",
			},
			[]string{"audience", "outcome"},
		),
		signalsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalhub_signals_created_total",
				Help: "Signals stored, by kind and source",
			},
			[]string{"kind", "source"},
		),
		candidatesDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalhub_candidates_rejected_total",
				Help: "Futures candidates rejected by the signal policy",
			},
			[]string{"reason"},
		),
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalhub_provider_calls_total",
				Help: "Calls to external market-data providers",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalhub_provider_call_duration_seconds",
				Help:    "Duration of external provider calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalhub_job_runs_total",
				Help: "Scheduled job runs, by job and outcome",
			},
			[]string{"job", "outcome"},
		),
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordDelivery counts one bot send.
func (r *Recorder) RecordDelivery(audience string, delivered bool) {
	label := "delivered"
	if !delivered {
		label = "failed"
	}
	r.deliveries.WithLabelValues(audience, label).Inc()
}

// RecordSignalCreated counts a stored signal.
func (r *Recorder) RecordSignalCreated(kind domain.SignalKind, source string) {
	r.signalsCreated.WithLabelValues(string(kind), source).Inc()
}

// RecordCandidateRejected counts a policy rejection by reason.
func (r *Recorder) RecordCandidateRejected(reason domain.ErrorKind) {
	r.candidatesDenied.WithLabelValues(string(reason)).Inc()
}

// RecordProviderCall records latency and outcome of a provider call.
func (r *Recorder) RecordProviderCall(provider string, seconds float64, err error) {
	r.providerCalls.WithLabelValues(provider, outcome(err == nil)).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordJobRun counts a scheduled job execution.
func (r *Recorder) RecordJobRun(job string, err error) {
	r.jobRuns.WithLabelValues(job, outcome(err == nil)).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var _ domain.Metrics = (*Recorder)(nil)
