// Package webhook exposes one HTTP entry point per payment provider. Each
// handler owns its provider's exact response envelope: the wrong shape makes
// the provider retry indefinitely or escalate, so rejections answer with
// success-coded error payloads and 5xx is reserved for genuine internal
// failures the provider should retry.
package webhook

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/services/settlement"
	"github.com/kmalyshev/topup-service/pkg/observability"
	"go.uber.org/zap"
)

// UnitpayHandler serves the single Unitpay endpoint multiplexing check, pay
// and error events
type UnitpayHandler struct {
	adapter    ports.GatewayAdapter
	settlement *settlement.Service
	logger     *zap.Logger
}

// NewUnitpayHandler creates the Unitpay webhook handler
func NewUnitpayHandler(adapter ports.GatewayAdapter, svc *settlement.Service, logger *zap.Logger) *UnitpayHandler {
	return &UnitpayHandler{adapter: adapter, settlement: svc, logger: logger}
}

// unitpayEnvelope is the response wire shape Unitpay requires: exactly one of
// result or error, always under HTTP 200 except for malformed requests
type unitpayEnvelope struct {
	Result *unitpayMessage `json:"result,omitempty"`
	Error  *unitpayMessage `json:"error,omitempty"`
}

type unitpayMessage struct {
	Message string `json:"message"`
}

// Handle processes one Unitpay callback
func (h *UnitpayHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.WebhookDuration.WithLabelValues(string(domain.GatewayUnitpay)).Observe(time.Since(start).Seconds())
	}()

	n, err := h.adapter.ParseNotification(r)
	if err != nil {
		h.respondParseError(w, n, err)
		return
	}

	if err := h.adapter.VerifyNotification(n); err != nil {
		h.logger.Warn("unitpay signature rejected",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.String("raw_query", n.RawPayload),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeSigMismatch).Inc()
		h.respond(w, http.StatusOK, errorEnvelope("Invalid signature"))
		return
	}

	switch n.Event {
	case domain.EventCheck:
		h.handleCheck(w, r, n)
	case domain.EventPay:
		h.handlePay(w, r, n)
	case domain.EventError:
		h.handleError(w, r, n)
	}
}

func (h *UnitpayHandler) handleCheck(w http.ResponseWriter, r *http.Request, n *domain.Notification) {
	if _, err := h.settlement.Check(r.Context(), n); err != nil {
		h.respondBusinessError(w, n, err)
		return
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeProcessed).Inc()
	h.respond(w, http.StatusOK, resultEnvelope("Check processed"))
}

func (h *UnitpayHandler) handlePay(w http.ResponseWriter, r *http.Request, n *domain.Notification) {
	outcome, err := h.settlement.Settle(r.Context(), n)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeNotFound).Inc()
			h.respond(w, http.StatusOK, errorEnvelope("Order not found"))
			return
		}
		if domain.GetErrorCode(err) == domain.ErrorCodeInvalidState {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeBadRequest).Inc()
			h.respond(w, http.StatusOK, errorEnvelope("Order is not payable"))
			return
		}
		// Transient internal failure; Unitpay retries on 500
		h.logger.Error("unitpay settlement failed",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeInternalFail).Inc()
		h.respond(w, http.StatusInternalServerError, errorEnvelope("Internal error"))
		return
	}

	if outcome.Result == settlement.ResultFlagged {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeAmountFlag).Inc()
		h.respond(w, http.StatusOK, errorEnvelope("Order sum mismatch"))
		return
	}

	outcomeLabel := observability.OutcomeSettled
	if outcome.Result == settlement.ResultReplay {
		outcomeLabel = observability.OutcomeReplay
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), outcomeLabel).Inc()
	h.respond(w, http.StatusOK, resultEnvelope("Payment processed"))
}

func (h *UnitpayHandler) handleError(w http.ResponseWriter, r *http.Request, n *domain.Notification) {
	if _, err := h.settlement.Fail(r.Context(), n); err != nil {
		h.respondBusinessError(w, n, err)
		return
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeProcessed).Inc()
	h.respond(w, http.StatusOK, resultEnvelope("Error registered"))
}

// respondParseError maps parse failures onto the Unitpay contract: unknown
// invoices get the "not found" envelope at 200 with no lookup attempted,
// missing parameters get the only 400 in the protocol
func (h *UnitpayHandler) respondParseError(w http.ResponseWriter, n *domain.Notification, err error) {
	if domain.IsNotFoundError(err) {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeNotFound).Inc()
		h.respond(w, http.StatusOK, errorEnvelope("Order not found"))
		return
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeBadRequest).Inc()
	h.respond(w, http.StatusBadRequest, errorEnvelope("Missing required parameter"))
}

func (h *UnitpayHandler) respondBusinessError(w http.ResponseWriter, n *domain.Notification, err error) {
	if domain.IsNotFoundError(err) {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeNotFound).Inc()
		h.respond(w, http.StatusOK, errorEnvelope("Order not found"))
		return
	}
	if domain.GetErrorCode(err) == domain.ErrorCodeAmountMismatch {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeAmountFlag).Inc()
		h.respond(w, http.StatusOK, errorEnvelope("Order sum mismatch"))
		return
	}
	h.logger.Error("unitpay webhook failed",
		zap.Int64("invoice_number", n.InvoiceNumber),
		zap.Error(err),
	)
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayUnitpay), observability.OutcomeInternalFail).Inc()
	h.respond(w, http.StatusInternalServerError, errorEnvelope("Internal error"))
}

func (h *UnitpayHandler) respond(w http.ResponseWriter, status int, envelope unitpayEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		h.logger.Error("encode unitpay response", zap.Error(err))
	}
}

func resultEnvelope(message string) unitpayEnvelope {
	return unitpayEnvelope{Result: &unitpayMessage{Message: message}}
}

func errorEnvelope(message string) unitpayEnvelope {
	return unitpayEnvelope{Error: &unitpayMessage{Message: message}}
}
