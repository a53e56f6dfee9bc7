package governance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the governance decision counters.
// Pass to components that need to record metrics.
type Metrics struct {
	DecisionsTotal        *prometheus.CounterVec
	ScannerEscalations    prometheus.Counter
	AutoApprovalsTotal    prometheus.Counter
	AppendFailuresTotal   prometheus.Counter
	DescriptorChecksTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "decisions_total",
				Help:      "Total governance decisions by policy outcome",
			},
			[]string{"decision"}, // decision=allow/deny/require_approval
		),
		ScannerEscalations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "scanner_escalations_total",
				Help:      "Decisions where scanner findings raised the effective risk",
			},
		),
		AutoApprovalsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "auto_approvals_total",
				Help:      "Actions approved automatically under the low-risk rule",
			},
		),
		AppendFailuresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "append_failures_total",
				Help:      "Audit event appends that failed",
			},
		),
		DescriptorChecksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "actiongate",
				Name:      "descriptor_checks_total",
				Help:      "Descriptor integrity evaluations by outcome",
			},
			[]string{"outcome"}, // outcome=allowed/rejected
		),
	}
}
