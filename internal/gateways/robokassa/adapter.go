// Package robokassa implements the Robokassa gateway: MD5 signatures with
// separate passwords for checkout and Result webhooks, plus a base64 JSON
// fiscal receipt in the checkout URL.
package robokassa

import (
	"context"
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

const payBaseURL = "https://auth.robokassa.ru/Merchant/Index.aspx"

// Adapter implements ports.GatewayAdapter for Robokassa
type Adapter struct {
	db       ports.DBPort
	payments ports.PaymentRepository
	logger   *zap.Logger
	cfg      config.RobokassaConfig
}

// New creates a Robokassa adapter, failing fast on missing credentials
func New(cfg config.RobokassaConfig, db ports.DBPort, payments ports.PaymentRepository, logger *zap.Logger) (*Adapter, error) {
	if cfg.Login == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "ROBOKASSA_LOGIN")
	}
	if cfg.Password1 == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "ROBOKASSA_PASSWORD_1")
	}
	if cfg.Password2 == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "ROBOKASSA_PASSWORD_2")
	}
	return &Adapter{cfg: cfg, db: db, payments: payments, logger: logger}, nil
}

// Name returns the gateway identifier
func (a *Adapter) Name() domain.Gateway {
	return domain.GatewayRobokassa
}

// CreateIntent persists a pending payment and builds the signed checkout URL
// including the fiscal receipt block
func (a *Adapter) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (*ports.CheckoutIntent, error) {
	payment := gateways.NewPendingPayment(domain.GatewayRobokassa, req)
	if err := a.payments.Create(ctx, a.db.GetDB(), payment); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	invID := fmt.Sprintf("%d", payment.InvoiceNumber)
	outSum := gateways.FormatAmount(payment.Amount)

	encodedReceipt, err := encodeReceipt(req.Description, payment.Amount)
	if err != nil {
		return nil, err
	}

	signature := paymentSignature(a.cfg.Login, outSum, invID, encodedReceipt, a.cfg.Password1)

	query := url.Values{}
	query.Set("MerchantLogin", a.cfg.Login)
	query.Set("OutSum", outSum)
	query.Set("InvId", invID)
	query.Set("Description", req.Description)
	query.Set("Receipt", encodedReceipt)
	query.Set("SignatureValue", signature)

	a.logger.Info("created robokassa checkout intent",
		zap.Int64("invoice_number", payment.InvoiceNumber),
		zap.String("payment_id", payment.ID),
	)

	return &ports.CheckoutIntent{
		RedirectURL:   payBaseURL + "?" + query.Encode(),
		PaymentID:     payment.ID,
		InvoiceNumber: payment.InvoiceNumber,
	}, nil
}

// ParseNotification normalizes the Result webhook POST fields
func (a *Adapter) ParseNotification(r *http.Request) (*domain.Notification, error) {
	if err := r.ParseForm(); err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("parse_form", err.Error())
	}

	form := r.Form
	if form.Get("InvId") == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "InvId")
	}
	if form.Get("SignatureValue") == "" {
		return nil, domain.ErrSignatureMissing
	}

	raw := make(map[string]string, len(form))
	for k := range form {
		raw[k] = form.Get(k)
	}

	n := &domain.Notification{
		Gateway:    domain.GatewayRobokassa,
		Event:      domain.EventPay,
		RawFields:  raw,
		RawPayload: form.Encode(),
	}

	invoice, err := gateways.ParseInvoice(form.Get("InvId"))
	if err != nil {
		return n, err
	}
	n.InvoiceNumber = invoice

	if rawSum := form.Get("OutSum"); rawSum != "" {
		amount, err := decimal.NewFromString(rawSum)
		if err != nil {
			return n, domain.ErrValidationFailed.WithDetail("OutSum", rawSum)
		}
		n.Amount = amount
	}

	return n, nil
}

// VerifyNotification checks the Result webhook MD5 under the second password
func (a *Adapter) VerifyNotification(n *domain.Notification) error {
	candidate := n.RawFields["SignatureValue"]
	if candidate == "" {
		return domain.ErrSignatureMissing
	}

	outSum := n.RawFields["OutSum"]
	invID := n.RawFields["InvId"]

	if !verifyNotification(outSum, invID, a.cfg.Password2, candidate) {
		return domain.ErrSignatureMismatch.
			WithDetail("invoice_number", n.InvoiceNumber).
			WithDetail("inv_id", invID)
	}
	return nil
}
