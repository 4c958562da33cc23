// Package unitpay implements the Unitpay gateway: a single GET webhook
// endpoint multiplexing check, pay and error events through bracketed
// params[...] query fields.
package unitpay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kmalyshev/topup-service/internal/config"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/gateways"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const payBaseURL = "https://unitpay.ru/pay/"

// Adapter implements ports.GatewayAdapter for Unitpay
type Adapter struct {
	db       ports.DBPort
	payments ports.PaymentRepository
	logger   *zap.Logger
	cfg      config.UnitpayConfig
}

// New creates a Unitpay adapter. Missing credentials fail fast here rather
// than surfacing as unverifiable webhooks later.
func New(cfg config.UnitpayConfig, db ports.DBPort, payments ports.PaymentRepository, logger *zap.Logger) (*Adapter, error) {
	if cfg.PublicKey == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "UNITPAY_PUBLIC_KEY")
	}
	if cfg.SecretKey == "" {
		return nil, domain.ErrConfigMissing.WithDetail("field", "UNITPAY_SECRET_KEY")
	}
	return &Adapter{cfg: cfg, db: db, payments: payments, logger: logger}, nil
}

// Name returns the gateway identifier
func (a *Adapter) Name() domain.Gateway {
	return domain.GatewayUnitpay
}

// CreateIntent persists a pending payment, then builds the signed pay URL.
// The payment is persisted first so the invoice number exists before the
// user ever reaches the provider.
func (a *Adapter) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (*ports.CheckoutIntent, error) {
	payment := gateways.NewPendingPayment(domain.GatewayUnitpay, req)
	if err := a.payments.Create(ctx, a.db.GetDB(), payment); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	account := fmt.Sprintf("%d", payment.InvoiceNumber)
	sum := gateways.FormatAmount(payment.Amount)
	signature := paymentSignature(account, payment.Currency, req.Description, sum, a.cfg.SecretKey)

	query := url.Values{}
	query.Set("sum", sum)
	query.Set("account", account)
	query.Set("currency", payment.Currency)
	query.Set("desc", req.Description)
	query.Set("signature", signature)

	a.logger.Info("created unitpay checkout intent",
		zap.Int64("invoice_number", payment.InvoiceNumber),
		zap.String("payment_id", payment.ID),
	)

	return &ports.CheckoutIntent{
		RedirectURL:   payBaseURL + a.cfg.PublicKey + "?" + query.Encode(),
		PaymentID:     payment.ID,
		InvoiceNumber: payment.InvoiceNumber,
	}, nil
}

// ParseNotification normalizes the bracketed params[x] query shape into the
// canonical notification
func (a *Adapter) ParseNotification(r *http.Request) (*domain.Notification, error) {
	query := r.URL.Query()

	method := query.Get("method")
	if method == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "method")
	}

	var event domain.EventType
	switch method {
	case "check":
		event = domain.EventCheck
	case "pay":
		event = domain.EventPay
	case "error":
		event = domain.EventError
	default:
		return nil, domain.ErrValidationFailed.WithDetail("method", method)
	}

	params := extractParams(query)
	if params["signature"] == "" {
		return nil, domain.ErrSignatureMissing
	}

	n := &domain.Notification{
		Gateway:      domain.GatewayUnitpay,
		Event:        event,
		Currency:     params["orderCurrency"],
		ExternalTxID: params["unitpayId"],
		RawFields:    params,
		RawPayload:   r.URL.RawQuery,
	}
	n.RawFields["method"] = method

	invoice, err := gateways.ParseInvoice(params["account"])
	if err != nil {
		// Unknown/test account probes get the provider's "not found"
		// envelope; the router must not attempt a lookup
		return n, err
	}
	n.InvoiceNumber = invoice

	if raw := params["orderSum"]; raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return n, domain.ErrValidationFailed.WithDetail("orderSum", raw)
		}
		n.Amount = amount
	}

	return n, nil
}

// VerifyNotification recomputes the event signature over every params[]
// value and compares in constant time
func (a *Adapter) VerifyNotification(n *domain.Notification) error {
	params := make(map[string]string, len(n.RawFields))
	for k, v := range n.RawFields {
		if k == "method" {
			continue
		}
		params[k] = v
	}

	method := n.RawFields["method"]
	candidate := params["signature"]
	if candidate == "" {
		return domain.ErrSignatureMissing
	}

	if !verifyNotification(method, params, a.cfg.SecretKey, candidate) {
		return domain.ErrSignatureMismatch.
			WithDetail("invoice_number", n.InvoiceNumber).
			WithDetail("method", method)
	}
	return nil
}

// extractParams collects params[key]=value pairs from the query
func extractParams(query url.Values) map[string]string {
	params := make(map[string]string)
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		if strings.HasPrefix(key, "params[") && strings.HasSuffix(key, "]") {
			inner := key[len("params[") : len(key)-1]
			params[inner] = values[0]
		}
	}
	return params
}

