package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded per inbound envelope.
const (
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomeStale     = "stale"
	OutcomeIgnored   = "ignored"
	OutcomeInvalid   = "invalid"
	OutcomeFocused   = "focused"
	OutcomeNotified  = "notified"
)

// Metrics holds the reconciliation counters.
//
// Metrics:
//   - servedeck_envelopes_total{channel,outcome} - inbound envelopes by result
//   - servedeck_registry_writes_total{group} - applied registry writes
type Metrics struct {
	EnvelopesTotal *prometheus.CounterVec
	WritesTotal    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// creates unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EnvelopesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servedeck_envelopes_total",
				Help: "Total number of inbound envelopes handled, by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		WritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servedeck_registry_writes_total",
				Help: "Total number of registry writes applied, by field group",
			},
			[]string{"group"},
		),
	}
}
