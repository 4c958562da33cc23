package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksTotal counts inbound webhook deliveries by gateway and outcome
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Total number of inbound webhook deliveries",
		},
		[]string{"gateway", "outcome"},
	)

	// WebhookDuration observes end-to-end webhook handling time; providers
	// treat slow responses as failures and retry
	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)

	// SettlementsTotal counts settlement engine outcomes
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total number of settlement attempts by result",
		},
		[]string{"gateway", "result"},
	)

	// SideEffectRetries counts post-settlement side effect delivery attempts
	SideEffectRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_effect_retries_total",
			Help: "Total number of post-settlement side effect attempts",
		},
		[]string{"effect", "outcome"},
	)
)

// Webhook outcome label values
const (
	OutcomeSettled      = "settled"
	OutcomeProcessed    = "processed"
	OutcomeReplay       = "replay"
	OutcomeSigMismatch  = "signature_mismatch"
	OutcomeNotFound     = "not_found"
	OutcomeAmountFlag   = "amount_mismatch"
	OutcomeBadRequest   = "bad_request"
	OutcomeInternalFail = "internal_error"
)
