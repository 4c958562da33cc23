// Package payeer implements the Payeer gateway: SHA-256 signatures over
// colon-joined field chains, amounts always rendered with two decimals and a
// base64-encoded description field.
package payeer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kmalyshev/topup-service/internal/config"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/gateways"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const payBaseURL = "https://payeer.com/merchant/"

// Adapter implements ports.GatewayAdapter for Payeer
type Adapter struct {
	db       ports.DBPort
	payments ports.PaymentRepository
	logger   *zap.Logger
	cfg      config.PayeerConfig
}

// New creates a Payeer adapter, failing fast on missing credentials
func New(cfg config.PayeerConfig, db ports.DBPort, payments ports.PaymentRepository, logger *zap.Logger) (*Adapter, error) {
	if cfg.ShopID == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "PAYEER_SHOP_ID")
	}
	if cfg.Secret == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "PAYEER_SECRET")
	}
	return &Adapter{cfg: cfg, db: db, payments: payments, logger: logger}, nil
}

// Name returns the gateway identifier
func (a *Adapter) Name() domain.Gateway {
	return domain.GatewayPayeer
}

// CreateIntent persists a pending payment and builds the signed checkout URL
func (a *Adapter) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (*ports.CheckoutIntent, error) {
	payment := gateways.NewPendingPayment(domain.GatewayPayeer, req)
	if err := a.payments.Create(ctx, a.db.GetDB(), payment); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	orderID := fmt.Sprintf("%d", payment.InvoiceNumber)
	amount := gateways.FormatAmount(payment.Amount)
	desc := base64.StdEncoding.EncodeToString([]byte(req.Description))
	sign := paymentSignature(a.cfg.ShopID, orderID, amount, payment.Currency, desc, a.cfg.Secret)

	query := url.Values{}
	query.Set("m_shop", a.cfg.ShopID)
	query.Set("m_orderid", orderID)
	query.Set("m_amount", amount)
	query.Set("m_curr", payment.Currency)
	query.Set("m_desc", desc)
	query.Set("m_sign", sign)

	a.logger.Info("created payeer checkout intent",
		zap.Int64("invoice_number", payment.InvoiceNumber),
		zap.String("payment_id", payment.ID),
	)

	return &ports.CheckoutIntent{
		RedirectURL:   payBaseURL + "?" + query.Encode(),
		PaymentID:     payment.ID,
		InvoiceNumber: payment.InvoiceNumber,
	}, nil
}

// ParseNotification normalizes the m_* POST form fields. A non-success
// m_status maps to the error event.
func (a *Adapter) ParseNotification(r *http.Request) (*domain.Notification, error) {
	if err := r.ParseForm(); err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("parse_form", err.Error())
	}

	form := r.PostForm
	if form.Get("m_orderid") == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "m_orderid")
	}
	if form.Get("m_sign") == "" {
		return nil, domain.ErrSignatureMissing
	}

	raw := make(map[string]string, len(form))
	for k := range form {
		raw[k] = form.Get(k)
	}

	event := domain.EventError
	if form.Get("m_status") == "success" {
		event = domain.EventPay
	}

	n := &domain.Notification{
		Gateway:      domain.GatewayPayeer,
		Event:        event,
		Currency:     form.Get("m_curr"),
		ExternalTxID: form.Get("m_operation_id"),
		RawFields:    raw,
		RawPayload:   form.Encode(),
	}

	invoice, err := gateways.ParseInvoice(form.Get("m_orderid"))
	if err != nil {
		return n, err
	}
	n.InvoiceNumber = invoice

	if rawAmount := form.Get("m_amount"); rawAmount != "" {
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return n, domain.ErrValidationFailed.WithDetail("m_amount", rawAmount)
		}
		n.Amount = amount
	}

	return n, nil
}

// VerifyNotification recomputes the webhook chain signature
func (a *Adapter) VerifyNotification(n *domain.Notification) error {
	candidate := n.RawFields["m_sign"]
	if candidate == "" {
		return domain.ErrSignatureMissing
	}

	if !verifyNotification(n.RawFields, a.cfg.Secret, candidate) {
		return domain.ErrSignatureMismatch.
			WithDetail("invoice_number", n.InvoiceNumber).
			WithDetail("m_orderid", n.RawFields["m_orderid"])
	}
	return nil
}
