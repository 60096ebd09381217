// Package metrics exports use case telemetry to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements usecase.Metrics.
type Recorder struct {
	promoted      prometheus.Counter
	rejected      prometheus.Counter
	scheduled     prometheus.Counter
	dispatched    *prometheus.CounterVec
	reconciled    *prometheus.CounterVec
	leaseContends *prometheus.CounterVec
	operator      *prometheus.CounterVec
	integration   *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg; pass
// prometheus.DefaultRegisterer in production.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		promoted: f.NewCounter(prometheus.CounterOpts{
			Name: "outreach_prospects_promoted_total",
			Help: "Staged rows promoted into pending prospects",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "outreach_prospects_rejected_total",
			Help: "Staged rows rejected by validation at promotion",
		}),
		scheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "outreach_prospects_scheduled_total",
			Help: "Prospects handed a send slot and queued",
		}),
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_dispatch_prospects_total",
			Help: "Prospects in dispatch batches by result",
		}, []string{"result"}),
		reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_outcomes_total",
			Help: "Provider outcomes processed by outcome and result",
		}, []string{"outcome", "result"}),
		leaseContends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_lease_contended_total",
			Help: "Lease acquisitions that gave up because another instance held the lease",
		}, []string{"kind"}),
		operator: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_operator_prospects_total",
			Help: "Prospects moved by operator actions",
		}, []string{"action"}),
		integration: f.NewCounterVec(prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		}, []string{"service"}),
	}
}

func (r *Recorder) ProspectsPromoted(count int) {
	r.promoted.Add(float64(count))
}

func (r *Recorder) ProspectsRejected(count int) {
	r.rejected.Add(float64(count))
}

func (r *Recorder) ProspectsScheduled(count int) {
	r.scheduled.Add(float64(count))
}

func (r *Recorder) DispatchBatch(result string, prospects int) {
	r.dispatched.WithLabelValues(result).Add(float64(prospects))
	// unmarked is a local storage failure after the engine accepted
	if result != "accepted" && result != "unmarked" {
		r.integration.WithLabelValues("automation_engine").Inc()
	}
}

func (r *Recorder) OutcomeReconciled(outcome, result string) {
	if outcome == "" {
		outcome = "unknown"
	}
	r.reconciled.WithLabelValues(outcome, result).Inc()
}

func (r *Recorder) LeaseContended(kind string) {
	r.leaseContends.WithLabelValues(kind).Inc()
}

func (r *Recorder) OperatorAction(action string, count int) {
	r.operator.WithLabelValues(action).Add(float64(count))
}
