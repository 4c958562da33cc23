package gateways

import (
	"strconv"
	"strings"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// Registry maps gateway names to their adapter instances
type Registry struct {
	adapters map[domain.Gateway]ports.GatewayAdapter
}

// NewRegistry creates a registry from the given adapters
func NewRegistry(adapters ...ports.GatewayAdapter) *Registry {
	m := make(map[domain.Gateway]ports.GatewayAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter for a gateway
func (r *Registry) Get(g domain.Gateway) (ports.GatewayAdapter, bool) {
	a, ok := r.adapters[g]
	return a, ok
}

// ParseInvoice parses the invoice number a provider echoes back as its
// order/account identifier. Providers routinely probe with test values;
// non-numeric input or anything below 1 is an unknown invoice, not a
// malformed request.
func ParseInvoice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, domain.ErrInvalidInvoice.WithDetail("raw", raw)
	}
	return n, nil
}

// FormatAmount renders a monetary amount with exactly two fraction digits,
// independent of locale. Every provider's signature chain depends on this
// rendering.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// NewPendingPayment builds the pending payment every adapter persists before
// constructing its provider-specific redirect URL
func NewPendingPayment(gateway domain.Gateway, req ports.CreateIntentRequest) *domain.Payment {
	return &domain.Payment{
		UserID:   req.UserID,
		Amount:   req.Amount.Round(2),
		Currency: req.Currency,
		Gateway:  gateway,
		Status:   domain.StatusPending,
		Purpose:  req.Purpose,
		Metadata: req.Metadata,
		IsTest:   req.Metadata["test"] == "1",
	}
}
