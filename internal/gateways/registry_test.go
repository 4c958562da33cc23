package gateways_test

import (
	"sync"
	"testing"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/gateways"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvoice(t *testing.T) {
	got, err := gateways.ParseInvoice("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = gateways.ParseInvoice("  1007 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1007), got)

	// Provider probes with junk order ids are unknown invoices, not
	// malformed requests
	for _, raw := range []string{"0", "-1", "abc", "", "12.5", "99999999999999999999"} {
		_, err := gateways.ParseInvoice(raw)
		require.Error(t, err, "raw %q", raw)
		assert.True(t, domain.IsNotFoundError(err), "raw %q", raw)
	}
}

func TestParseInvoice_ConcurrentInvalidInput(t *testing.T) {
	// Junk order ids arrive from many deliveries at once; the shared error
	// sentinels must stay untouched under that load
	const goroutines = 64
	const iterations = 200

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_, err := gateways.ParseInvoice("not-a-number")
				if !assert.True(t, domain.IsNotFoundError(err)) {
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, domain.ErrInvalidInvoice.Details)
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"100":     "100.00",
		"100.5":   "100.50",
		"100.50":  "100.50",
		"0.1":     "0.10",
		"1234.56": "1234.56",
	}
	for in, want := range cases {
		assert.Equal(t, want, gateways.FormatAmount(decimal.RequireFromString(in)))
	}
}

func TestNewPendingPayment(t *testing.T) {
	payment := gateways.NewPendingPayment(domain.GatewayRobokassa, ports.CreateIntentRequest{
		UserID:   "user-1",
		Currency: "RUB",
		Purpose:  domain.PurposeSubscription,
		Amount:   decimal.RequireFromString("99.999"),
		Metadata: map[string]string{"plan": "gold"},
	})

	assert.Equal(t, domain.StatusPending, payment.Status)
	assert.Equal(t, domain.GatewayRobokassa, payment.Gateway)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.False(t, payment.IsTest)
	assert.Equal(t, "gold", payment.Metadata["plan"])
}

func TestNewPendingPayment_TestFlag(t *testing.T) {
	payment := gateways.NewPendingPayment(domain.GatewayUnitpay, ports.CreateIntentRequest{
		UserID:   "user-1",
		Currency: "RUB",
		Amount:   decimal.NewFromInt(10),
		Metadata: map[string]string{"test": "1"},
	})
	assert.True(t, payment.IsTest)
}
