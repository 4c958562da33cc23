package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gateway identifies one of the supported payment providers
type Gateway string

const (
	GatewayUnitpay   Gateway = "unitpay"
	GatewayFreeKassa Gateway = "freekassa"
	GatewayRobokassa Gateway = "robokassa"
	GatewayPayeer    Gateway = "payeer"
)

// IsValid reports whether the gateway name is one of the supported providers
func (g Gateway) IsValid() bool {
	switch g {
	case GatewayUnitpay, GatewayFreeKassa, GatewayRobokassa, GatewayPayeer:
		return true
	}
	return false
}

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "created"
	StatusPending    PaymentStatus = "pending"
	StatusAuthorized PaymentStatus = "authorized"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"

	// Terminal alternates - a payment never leaves these states
	StatusFailed            PaymentStatus = "failed"
	StatusCancelled         PaymentStatus = "cancelled"
	StatusRefunded          PaymentStatus = "refunded"
	StatusPartiallyRefunded PaymentStatus = "partially_refunded"
	StatusDispute           PaymentStatus = "dispute"
	StatusExpired           PaymentStatus = "expired"
)

// IsTerminal reports whether the status is final
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded,
		StatusPartiallyRefunded, StatusDispute, StatusExpired:
		return true
	}
	return false
}

// CanAcceptCredit reports whether a payment in this status may still be settled
func (s PaymentStatus) CanAcceptCredit() bool {
	switch s {
	case StatusCreated, StatusPending, StatusAuthorized, StatusProcessing:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to target is a legal transition.
// Transitions are monotonic: terminal states are never left.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusCreated:
		return target != StatusCreated
	case StatusPending:
		return target != StatusCreated && target != StatusPending
	case StatusAuthorized:
		return target == StatusProcessing || target == StatusCompleted || target.IsTerminal()
	case StatusProcessing:
		return target == StatusCompleted || target.IsTerminal()
	}
	return false
}

// Purpose describes what a top-up pays for
type Purpose string

const (
	PurposeDeposit      Purpose = "deposit"
	PurposeSubscription Purpose = "subscription"
	PurposeOther        Purpose = "other"
)

// MetadataCreditAmount is the metadata key carrying a credited-amount override.
// When present, the user is credited this value instead of the paid amount
// (used when the paid currency differs from the virtual-currency unit).
const MetadataCreditAmount = "credit_amount"

// MetadataReconcile is set on a payment that received a validly-signed webhook
// whose amount disagreed with the stored amount; such payments are left
// non-terminal and wait for an operator.
const MetadataReconcile = "reconcile"

// Payment is a persisted top-up intent keyed by its internal id and the
// externally visible invoice number
type Payment struct {
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	CompletedAt        *time.Time        `json:"completed_at"`
	Metadata           map[string]string `json:"metadata"`
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	Currency           string            `json:"currency"`
	ExternalTxID       string            `json:"external_tx_id"`
	LastWebhookPayload string            `json:"last_webhook_payload"`
	Gateway            Gateway           `json:"gateway"`
	Status             PaymentStatus     `json:"status"`
	Purpose            Purpose           `json:"purpose"`
	Amount             decimal.Decimal   `json:"amount"`
	InvoiceNumber      int64             `json:"invoice_number"`
	WebhookReceived    bool              `json:"webhook_received"`
	IsTest             bool              `json:"is_test"`
}

// CreditAmount resolves the amount applied to the user balance: the metadata
// override when present and parseable, else the paid amount.
func (p *Payment) CreditAmount() decimal.Decimal {
	if raw, ok := p.Metadata[MetadataCreditAmount]; ok && raw != "" {
		if override, err := decimal.NewFromString(raw); err == nil && override.IsPositive() {
			return override
		}
	}
	return p.Amount
}

// NeedsReconciliation reports whether the payment was flagged for manual review
func (p *Payment) NeedsReconciliation() bool {
	return p.Metadata[MetadataReconcile] != ""
}
