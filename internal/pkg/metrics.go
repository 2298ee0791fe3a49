package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 各组件共享的一组 collector，注册到调用方给出的 Registerer
type Metrics struct {
	HTTPRequestsTotal        *prometheus.CounterVec
	HTTPRequestDuration      *prometheus.HistogramVec
	MembershipReconciliation *prometheus.CounterVec
	WebhookEvents            *prometheus.CounterVec
	OutboxRelayed            *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		MembershipReconciliation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_reconciliations_total",
				Help: "Membership reconciliations by entry point and outcome",
			},
			[]string{"source", "outcome"},
		),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_webhook_events_total",
				Help: "Stripe webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		OutboxRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "membership_outbox_relayed_total",
				Help: "Membership outbox rows relayed by outcome",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.MembershipReconciliation,
			m.WebhookEvents,
			m.OutboxRelayed,
		)
	}
	return m
}
