// Package metrics holds the mirror's Prometheus instruments. Everything
// registers on the default registry and is served by /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookDeliveries counts accepted webhook notifications by event
	// name, whether or not they resulted in a write.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmirror_webhook_deliveries_total",
		Help: "Webhook notifications received, by event name.",
	}, []string{"event"})

	// ReplicationWrites counts processor calls that wrote their primary
	// row, by provenance channel.
	ReplicationWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmirror_replication_writes_total",
		Help: "Replicated rows written, by provenance channel.",
	}, []string{"via"})

	// ReplicationSkips counts processor calls that skipped (stale or
	// nothing to do), by provenance channel.
	ReplicationSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmirror_replication_skips_total",
		Help: "Replication no-ops, by provenance channel.",
	}, []string{"via"})

	// RateLimitHits counts upstream responses that arrived with an
	// exhausted request budget.
	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubmirror_upstream_rate_limit_hits_total",
		Help: "Upstream responses with zero rate-limit budget remaining.",
	})

	// ReapedRows counts rows deleted by scan finalizers, by scan name.
	ReapedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubmirror_scan_reaped_rows_total",
		Help: "Stale rows deleted by scan finalizers, by scan name.",
	}, []string{"scan"})
)
