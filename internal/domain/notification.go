package domain

import (
	"github.com/shopspring/decimal"
)

// EventType classifies an inbound webhook event after normalization
type EventType string

const (
	// EventCheck is a pre-payment probe: answer "processed" without settling
	EventCheck EventType = "check"
	// EventPay confirms money was received and triggers settlement
	EventPay EventType = "pay"
	// EventError reports a failed payment on the provider side
	EventError EventType = "error"
	// EventManual marks a notification synthesized by an operator through
	// the recovery tooling; it settles through the same path as EventPay
	EventManual EventType = "manual"
)

// Notification is the gateway-agnostic shape every inbound webhook is
// normalized into before verification and settlement
type Notification struct {
	RawFields     map[string]string `json:"raw_fields"`
	Gateway       Gateway           `json:"gateway"`
	Event         EventType         `json:"event"`
	Currency      string            `json:"currency"`
	ExternalTxID  string            `json:"external_tx_id"`
	RawPayload    string            `json:"raw_payload"`
	Amount        decimal.Decimal   `json:"amount"`
	InvoiceNumber int64             `json:"invoice_number"`
}
