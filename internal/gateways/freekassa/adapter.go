// Package freekassa implements the FreeKassa gateway: POST webhooks with
// case-exact uppercase field names and two distinct MD5 secrets, one for
// checkout URLs and one for webhook verification.
package freekassa

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

const payBaseURL = "https://pay.freekassa.ru/"

// Adapter implements ports.GatewayAdapter for FreeKassa
type Adapter struct {
	db       ports.DBPort
	payments ports.PaymentRepository
	logger   *zap.Logger
	cfg      config.FreeKassaConfig
}

// New creates a FreeKassa adapter, failing fast on missing credentials
func New(cfg config.FreeKassaConfig, db ports.DBPort, payments ports.PaymentRepository, logger *zap.Logger) (*Adapter, error) {
	if cfg.MerchantID == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "FREEKASSA_MERCHANT_ID")
	}
	if cfg.Secret1 == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "FREEKASSA_SECRET_1")
	}
	if cfg.Secret2 == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "FREEKASSA_SECRET_2")
	}
	return &Adapter{cfg: cfg, db: db, payments: payments, logger: logger}, nil
}

// Name returns the gateway identifier
func (a *Adapter) Name() domain.Gateway {
	return domain.GatewayFreeKassa
}

// CreateIntent persists a pending payment and builds the signed checkout URL
func (a *Adapter) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (*ports.CheckoutIntent, error) {
	payment := gateways.NewPendingPayment(domain.GatewayFreeKassa, req)
	if err := a.payments.Create(ctx, a.db.GetDB(), payment); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	orderID := fmt.Sprintf("%d", payment.InvoiceNumber)
	amount := gateways.FormatAmount(payment.Amount)
	sign := paymentSignature(a.cfg.MerchantID, amount, a.cfg.Secret1, payment.Currency, orderID)

	query := url.Values{}
	query.Set("m", a.cfg.MerchantID)
	query.Set("oa", amount)
	query.Set("o", orderID)
	query.Set("currency", payment.Currency)
	query.Set("s", sign)

	a.logger.Info("created freekassa checkout intent",
		zap.Int64("invoice_number", payment.InvoiceNumber),
		zap.String("payment_id", payment.ID),
	)

	return &ports.CheckoutIntent{
		RedirectURL:   payBaseURL + "?" + query.Encode(),
		PaymentID:     payment.ID,
		InvoiceNumber: payment.InvoiceNumber,
	}, nil
}

// ParseNotification normalizes the uppercase POST form fields
func (a *Adapter) ParseNotification(r *http.Request) (*domain.Notification, error) {
	if err := r.ParseForm(); err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("parse_form", err.Error())
	}

	form := r.PostForm
	if form.Get("MERCHANT_ORDER_ID") == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "MERCHANT_ORDER_ID")
	}
	if form.Get("SIGN") == "" {
		return nil, domain.ErrSignatureMissing
	}

	raw := make(map[string]string, len(form))
	for k := range form {
		raw[k] = form.Get(k)
	}

	// CUR_ID is the provider's payment-method id, not a currency; it stays
	// in RawFields only so settlement does not misread it as a currency
	n := &domain.Notification{
		Gateway:      domain.GatewayFreeKassa,
		Event:        domain.EventPay,
		ExternalTxID: form.Get("intid"),
		RawFields:    raw,
		RawPayload:   form.Encode(),
	}

	invoice, err := gateways.ParseInvoice(form.Get("MERCHANT_ORDER_ID"))
	if err != nil {
		return n, err
	}
	n.InvoiceNumber = invoice

	if rawAmount := form.Get("AMOUNT"); rawAmount != "" {
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return n, domain.ErrValidationFailed.WithDetail("AMOUNT", rawAmount)
		}
		n.Amount = amount
	}

	return n, nil
}

// VerifyNotification checks the webhook MD5 under the second secret
func (a *Adapter) VerifyNotification(n *domain.Notification) error {
	candidate := n.RawFields["SIGN"]
	if candidate == "" {
		return domain.ErrSignatureMissing
	}

	orderID := n.RawFields["MERCHANT_ORDER_ID"]
	rawAmount := n.RawFields["AMOUNT"]

	if !verifyNotification(a.cfg.MerchantID, rawAmount, a.cfg.Secret2, orderID, candidate) {
		return domain.ErrSignatureMismatch.
			WithDetail("invoice_number", n.InvoiceNumber).
			WithDetail("merchant_order_id", orderID)
	}
	return nil
}
