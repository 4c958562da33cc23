package webhook

import (
	"net/http"
	"time"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/services/settlement"
	"github.com/kmalyshev/topup-service/pkg/observability"
	"go.uber.org/zap"
)

// PayeerHandler serves Payeer merchant notifications. Payeer expects the
// body "<m_orderid>|success" to acknowledge a credit and "<m_orderid>|error"
// for any rejection; both travel under HTTP 200.
type PayeerHandler struct {
	adapter    ports.GatewayAdapter
	settlement *settlement.Service
	logger     *zap.Logger
}

// NewPayeerHandler creates the Payeer webhook handler
func NewPayeerHandler(adapter ports.GatewayAdapter, svc *settlement.Service, logger *zap.Logger) *PayeerHandler {
	return &PayeerHandler{adapter: adapter, settlement: svc, logger: logger}
}

// Handle processes one Payeer callback
func (h *PayeerHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.WebhookDuration.WithLabelValues(string(domain.GatewayPayeer)).Observe(time.Since(start).Seconds())
	}()

	n, err := h.adapter.ParseNotification(r)
	if err != nil {
		orderID := ""
		if n != nil {
			orderID = n.RawFields["m_orderid"]
		}
		if domain.IsNotFoundError(err) {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeNotFound).Inc()
			respondText(w, h.logger, http.StatusOK, orderID+"|error")
			return
		}
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeBadRequest).Inc()
		respondText(w, h.logger, http.StatusBadRequest, orderID+"|error")
		return
	}

	orderID := n.RawFields["m_orderid"]

	if err := h.adapter.VerifyNotification(n); err != nil {
		h.logger.Warn("payeer signature rejected",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeSigMismatch).Inc()
		respondText(w, h.logger, http.StatusOK, orderID+"|error")
		return
	}

	if n.Event == domain.EventError {
		if _, err := h.settlement.Fail(r.Context(), n); err != nil && !domain.IsNotFoundError(err) {
			h.logger.Error("payeer failure registration failed",
				zap.Int64("invoice_number", n.InvoiceNumber),
				zap.Error(err),
			)
		}
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeProcessed).Inc()
		respondText(w, h.logger, http.StatusOK, orderID+"|error")
		return
	}

	outcome, err := h.settlement.Settle(r.Context(), n)
	if err != nil {
		if domain.IsNotFoundError(err) || domain.GetErrorCode(err) == domain.ErrorCodeInvalidState {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeNotFound).Inc()
			respondText(w, h.logger, http.StatusOK, orderID+"|error")
			return
		}
		h.logger.Error("payeer settlement failed",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeInternalFail).Inc()
		respondText(w, h.logger, http.StatusInternalServerError, orderID+"|error")
		return
	}

	if outcome.Result == settlement.ResultFlagged {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), observability.OutcomeAmountFlag).Inc()
		respondText(w, h.logger, http.StatusOK, orderID+"|error")
		return
	}

	outcomeLabel := observability.OutcomeSettled
	if outcome.Result == settlement.ResultReplay {
		outcomeLabel = observability.OutcomeReplay
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayPayeer), outcomeLabel).Inc()
	respondText(w, h.logger, http.StatusOK, orderID+"|success")
}
