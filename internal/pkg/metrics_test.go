package pkg

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.MembershipReconciliation.WithLabelValues("webhook", "created").Inc()
	m.WebhookEvents.WithLabelValues("checkout.session.completed", "processed").Inc()

	n, err := testutil.GatherAndCount(reg, "membership_reconciliations_total", "stripe_webhook_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MembershipReconciliation.WithLabelValues("webhook", "created")))
}

func TestNewMetricsWithoutRegistry(t *testing.T) {
	m := NewMetrics(nil)
	assert.NotPanics(t, func() { m.OutboxRelayed.WithLabelValues("sent").Inc() })
}
