package domain_test

import (
	"testing"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_IsTerminal(t *testing.T) {
	terminal := []domain.PaymentStatus{
		domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled,
		domain.StatusRefunded, domain.StatusPartiallyRefunded,
		domain.StatusDispute, domain.StatusExpired,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	open := []domain.PaymentStatus{
		domain.StatusCreated, domain.StatusPending,
		domain.StatusAuthorized, domain.StatusProcessing,
	}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestPaymentStatus_CanAcceptCredit(t *testing.T) {
	assert.True(t, domain.StatusCreated.CanAcceptCredit())
	assert.True(t, domain.StatusPending.CanAcceptCredit())
	assert.True(t, domain.StatusAuthorized.CanAcceptCredit())
	assert.True(t, domain.StatusProcessing.CanAcceptCredit())

	assert.False(t, domain.StatusCompleted.CanAcceptCredit())
	assert.False(t, domain.StatusFailed.CanAcceptCredit())
	assert.False(t, domain.StatusRefunded.CanAcceptCredit())
}

func TestPaymentStatus_TerminalStatesAreNeverLeft(t *testing.T) {
	all := []domain.PaymentStatus{
		domain.StatusCreated, domain.StatusPending, domain.StatusAuthorized,
		domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed,
		domain.StatusCancelled, domain.StatusRefunded,
		domain.StatusPartiallyRefunded, domain.StatusDispute, domain.StatusExpired,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestPaymentStatus_ForwardTransitions(t *testing.T) {
	assert.True(t, domain.StatusPending.CanTransitionTo(domain.StatusCompleted))
	assert.True(t, domain.StatusPending.CanTransitionTo(domain.StatusFailed))
	assert.True(t, domain.StatusAuthorized.CanTransitionTo(domain.StatusProcessing))
	assert.True(t, domain.StatusProcessing.CanTransitionTo(domain.StatusCompleted))

	// No going backwards
	assert.False(t, domain.StatusPending.CanTransitionTo(domain.StatusCreated))
	assert.False(t, domain.StatusAuthorized.CanTransitionTo(domain.StatusPending))
	assert.False(t, domain.StatusProcessing.CanTransitionTo(domain.StatusAuthorized))
}

func TestGateway_IsValid(t *testing.T) {
	assert.True(t, domain.GatewayUnitpay.IsValid())
	assert.True(t, domain.GatewayPayeer.IsValid())
	assert.False(t, domain.Gateway("paypal").IsValid())
	assert.False(t, domain.Gateway("").IsValid())
}

func TestPayment_CreditAmount(t *testing.T) {
	p := &domain.Payment{
		Amount:   decimal.RequireFromString("299.00"),
		Metadata: map[string]string{},
	}
	assert.True(t, p.CreditAmount().Equal(decimal.RequireFromString("299.00")))

	p.Metadata[domain.MetadataCreditAmount] = "1500"
	assert.True(t, p.CreditAmount().Equal(decimal.NewFromInt(1500)))

	// Unparseable or non-positive overrides fall back to the paid amount
	p.Metadata[domain.MetadataCreditAmount] = "lots"
	assert.True(t, p.CreditAmount().Equal(decimal.RequireFromString("299.00")))
	p.Metadata[domain.MetadataCreditAmount] = "-5"
	assert.True(t, p.CreditAmount().Equal(decimal.RequireFromString("299.00")))
}

func TestPayment_NeedsReconciliation(t *testing.T) {
	p := &domain.Payment{Metadata: map[string]string{}}
	assert.False(t, p.NeedsReconciliation())

	p.Metadata[domain.MetadataReconcile] = "amount mismatch: notified 99.00, stored 100.00"
	assert.True(t, p.NeedsReconciliation())
}
