// Package metrics provides Prometheus metrics for the bot. Scrape
// these at /metrics for dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook Metrics
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gagstock_webhook_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"type"}, // "message", "postback", "other"
	)

	WebhookEventErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gagstock_webhook_event_errors_total",
			Help: "Webhook events that failed during processing",
		},
	)

	// Dispatch Metrics
	CommandsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gagstock_commands_dispatched_total",
			Help: "Commands dispatched by name",
		},
		[]string{"command"},
	)

	DispatchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gagstock_dispatch_errors_total",
			Help: "Handler failures caught at the dispatcher boundary",
		},
	)

	// Session Engine Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gagstock_active_sessions",
			Help: "Number of active polling sessions across all users",
		},
	)

	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gagstock_notifications_sent_total",
			Help: "Total stock notifications delivered",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gagstock_tick_duration_seconds",
			Help:    "Time taken for one full polling cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	// Upstream Fetcher Metrics
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gagstock_fetch_errors_total",
			Help: "Upstream fetch failures by kind",
		},
		[]string{"kind"}, // "timeout", "upstream", "fatal"
	)

	// Graph API Metrics
	GraphSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gagstock_graph_sends_total",
			Help: "Outbound Graph API message sends by result",
		},
		[]string{"result"}, // "success", "failed"
	)
)
