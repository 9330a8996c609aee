package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for settlement, the mirror and audits.
type Metrics struct {
	// Settlement outcomes by result (committed, resumed, rejected reason)
	SettlementOutcome *prometheus.CounterVec

	// Commit attempts lost to a concurrent writer
	CommitRetries prometheus.Counter

	// Mirror call latency by operation and outcome
	MirrorLatency *prometheus.HistogramVec

	// Audit verdicts
	AuditVerdict *prometheus.CounterVec

	// Reconcile results by outcome (published, skipped, failed)
	ReconcileEntries *prometheus.CounterVec

	// Multi-sig proposals by event (created, signed, executed)
	ProposalEvents *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg.
// A nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SettlementOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_settlement_outcomes_total",
			Help: "Total settlement outcomes by result",
		}, []string{"result"}),

		CommitRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_settlement_commit_retries_total",
			Help: "Commit attempts retried after an optimistic concurrency conflict",
		}),

		MirrorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_mirror_request_duration_seconds",
			Help:    "Duration of mirror requests by operation and outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op", "outcome"}),

		AuditVerdict: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_audit_verdicts_total",
			Help: "Total audit verdicts",
		}, []string{"verdict"}),

		ReconcileEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reconcile_entries_total",
			Help: "Entries handled by mirror reconciliation by outcome",
		}, []string{"outcome"}),

		ProposalEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_multisig_proposal_events_total",
			Help: "Multi-sig proposal lifecycle events",
		}, []string{"event"}),
	}
}

// IncrementSettlement records a settlement outcome.
func (m *Metrics) IncrementSettlement(result string) {
	if m != nil {
		m.SettlementOutcome.WithLabelValues(result).Inc()
	}
}

// IncrementCommitRetry records a commit retried after a conflict.
func (m *Metrics) IncrementCommitRetry() {
	if m != nil {
		m.CommitRetries.Inc()
	}
}

// ObserveMirror records the duration of a mirror request.
func (m *Metrics) ObserveMirror(op string, err error, d time.Duration) {
	if m != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.MirrorLatency.WithLabelValues(op, outcome).Observe(d.Seconds())
	}
}

// IncrementAudit records an audit verdict.
func (m *Metrics) IncrementAudit(verdict string) {
	if m != nil {
		m.AuditVerdict.WithLabelValues(verdict).Inc()
	}
}

// AddReconciled records reconcile results.
func (m *Metrics) AddReconciled(published, skipped, failed int) {
	if m != nil {
		m.ReconcileEntries.WithLabelValues("published").Add(float64(published))
		m.ReconcileEntries.WithLabelValues("skipped").Add(float64(skipped))
		m.ReconcileEntries.WithLabelValues("failed").Add(float64(failed))
	}
}

// IncrementProposal records a proposal lifecycle event.
func (m *Metrics) IncrementProposal(event string) {
	if m != nil {
		m.ProposalEvents.WithLabelValues(event).Inc()
	}
}
