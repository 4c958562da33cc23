package ports

import (
	"context"
	"net/http"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateIntentRequest carries the parameters of a client-facing top-up request
type CreateIntentRequest struct {
	Metadata    map[string]string
	UserID      string
	Currency    string
	Description string
	Purpose     domain.Purpose
	Amount      decimal.Decimal
}

// CheckoutIntent is the result of creating a payment intent: the pending
// payment is already persisted and the user is sent to RedirectURL
type CheckoutIntent struct {
	RedirectURL   string
	PaymentID     string
	InvoiceNumber int64
}

// GatewayAdapter is the shared contract implemented once per provider.
// CreateIntent persists a pending payment first (to obtain the invoice
// number), then signs the provider's field set and builds the redirect URL.
// ParseNotification normalizes the provider wire shape into the canonical
// notification; VerifyNotification selects the sign/verify contract for the
// provider and event type.
type GatewayAdapter interface {
	Name() domain.Gateway
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*CheckoutIntent, error)
	ParseNotification(r *http.Request) (*domain.Notification, error)
	VerifyNotification(n *domain.Notification) error
}
