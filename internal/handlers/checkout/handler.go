// Package checkout exposes the client-facing HTTP surface: creating top-up
// intents, reading payment status, and the browser landing pages gateways
// redirect to after checkout.
package checkout

import (
	"encoding/json"
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

// Handler serves top-up creation and payment status reads
type Handler struct {
	db       ports.DBPort
	registry *gateways.Registry
	payments ports.PaymentRepository
	frontend config.FrontendConfig
	logger   *zap.Logger
}

// NewHandler creates the checkout handler
func NewHandler(db ports.DBPort, registry *gateways.Registry, payments ports.PaymentRepository, frontend config.FrontendConfig, logger *zap.Logger) *Handler {
	return &Handler{db: db, registry: registry, payments: payments, frontend: frontend, logger: logger}
}

type createTopUpRequest struct {
	Metadata    map[string]string `json:"metadata"`
	UserID      string            `json:"user_id"`
	Gateway     string            `json:"gateway"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Purpose     string            `json:"purpose"`
	Amount      string            `json:"amount"`
}

type createTopUpResponse struct {
	PaymentID     string `json:"payment_id"`
	RedirectURL   string `json:"redirect_url"`
	InvoiceNumber int64  `json:"invoice_number"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateTopUp handles POST /api/v1/topup. It persists a pending payment
// through the selected gateway adapter and returns the signed redirect URL.
func (h *Handler) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	var req createTopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", domain.ErrorCodeValidationFailed)
		return
	}

	if req.UserID == "" {
		h.respondError(w, http.StatusBadRequest, "user_id is required", domain.ErrorCodeValidationMissingField)
		return
	}
	gateway := domain.Gateway(strings.ToLower(req.Gateway))
	if !gateway.IsValid() {
		h.respondError(w, http.StatusBadRequest, "unknown gateway", domain.ErrorCodeValidationFailed)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		h.respondError(w, http.StatusBadRequest, "amount must be a positive decimal", domain.ErrorCodeValidationFailed)
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "RUB"
	}
	purpose := domain.Purpose(req.Purpose)
	if purpose == "" {
		purpose = domain.PurposeDeposit
	}

	adapter, ok := h.registry.Get(gateway)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "gateway is not configured", domain.ErrorCodeConfigMissing)
		return
	}

	intent, err := adapter.CreateIntent(r.Context(), ports.CreateIntentRequest{
		Metadata:    req.Metadata,
		UserID:      req.UserID,
		Currency:    currency,
		Description: req.Description,
		Purpose:     purpose,
		Amount:      amount,
	})
	if err != nil {
		h.logger.Error("create top-up intent failed",
			zap.String("gateway", string(gateway)),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to create payment", domain.ErrorCodeInternalError)
		return
	}

	h.logger.Info("top-up intent created",
		zap.String("gateway", string(gateway)),
		zap.String("payment_id", intent.PaymentID),
		zap.Int64("invoice_number", intent.InvoiceNumber),
		zap.String("amount", amount.StringFixed(2)),
	)
	h.respondJSON(w, http.StatusOK, createTopUpResponse{
		PaymentID:     intent.PaymentID,
		RedirectURL:   intent.RedirectURL,
		InvoiceNumber: intent.InvoiceNumber,
	})
}

type paymentStatusResponse struct {
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	Gateway       string `json:"gateway"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	CompletedAt   string `json:"completed_at,omitempty"`
	InvoiceNumber int64  `json:"invoice_number"`
}

// GetPayment handles GET /api/v1/payments/{invoice}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	invoice, err := gateways.ParseInvoice(r.PathValue("invoice"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "payment not found", domain.ErrorCodePaymentNotFound)
		return
	}

	payment, err := h.payments.GetByInvoice(r.Context(), h.db.GetDB(), invoice)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.respondError(w, http.StatusNotFound, "payment not found", domain.ErrorCodePaymentNotFound)
			return
		}
		h.logger.Error("payment lookup failed", zap.Int64("invoice_number", invoice), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "lookup failed", domain.ErrorCodeInternalError)
		return
	}

	resp := paymentStatusResponse{
		PaymentID:     payment.ID,
		Status:        string(payment.Status),
		Gateway:       string(payment.Gateway),
		Currency:      payment.Currency,
		Amount:        payment.Amount.StringFixed(2),
		InvoiceNumber: payment.InvoiceNumber,
	}
	if payment.CompletedAt != nil {
		resp.CompletedAt = payment.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Success handles the browser redirect back from a gateway after a paid
// checkout. It only reads payment state; crediting happens exclusively on
// the webhook path.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	h.land(w, r)
}

// Fail handles the browser redirect back from a gateway after an aborted
// checkout. Like Success it never mutates the payment: an abandoned checkout
// may still settle later through the webhook.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	h.land(w, r)
}

func (h *Handler) land(w http.ResponseWriter, r *http.Request) {
	invoice, err := landingInvoice(r)
	if err != nil {
		h.redirect(w, r, "error")
		return
	}

	payment, err := h.payments.GetByInvoice(r.Context(), h.db.GetDB(), invoice)
	if err != nil {
		h.redirect(w, r, "error")
		return
	}

	switch {
	case payment.Status == domain.StatusCompleted:
		h.redirect(w, r, "success")
	case payment.Status.CanAcceptCredit():
		h.redirect(w, r, "pending")
	default:
		h.redirect(w, r, "failed")
	}
}

// landingInvoice extracts the invoice number from whichever query parameter
// the returning gateway used for its order identifier
func landingInvoice(r *http.Request) (int64, error) {
	q := r.URL.Query()
	for _, key := range []string{"invoice", "account", "InvId", "MERCHANT_ORDER_ID", "m_orderid"} {
		if raw := q.Get(key); raw != "" {
			return gateways.ParseInvoice(raw)
		}
	}
	return 0, domain.ErrInvalidInvoice
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, status string) {
	target, err := url.Parse(h.frontend.BaseURL)
	if err != nil {
		h.logger.Error("invalid frontend base url", zap.String("base_url", h.frontend.BaseURL), zap.Error(err))
		http.Error(w, "misconfigured frontend url", http.StatusInternalServerError)
		return
	}
	q := target.Query()
	q.Set("payment", status)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, code domain.ErrorCode) {
	h.respondJSON(w, status, errorResponse{Error: message, Code: string(code)})
}
