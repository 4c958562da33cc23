package webhook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/internal/services/settlement"
	"github.com/kmalyshev/topup-service/pkg/observability"
	"go.uber.org/zap"
)

// RobokassaHandler serves Robokassa result notifications. Robokassa treats
// a body of "OK<InvId>" as acknowledged; anything else is a rejection.
type RobokassaHandler struct {
	adapter    ports.GatewayAdapter
	settlement *settlement.Service
	logger     *zap.Logger
}

// NewRobokassaHandler creates the Robokassa webhook handler
func NewRobokassaHandler(adapter ports.GatewayAdapter, svc *settlement.Service, logger *zap.Logger) *RobokassaHandler {
	return &RobokassaHandler{adapter: adapter, settlement: svc, logger: logger}
}

// Handle processes one Robokassa result callback
func (h *RobokassaHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.WebhookDuration.WithLabelValues(string(domain.GatewayRobokassa)).Observe(time.Since(start).Seconds())
	}()

	n, err := h.adapter.ParseNotification(r)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeNotFound).Inc()
			respondText(w, h.logger, http.StatusOK, "order not found")
			return
		}
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeBadRequest).Inc()
		respondText(w, h.logger, http.StatusBadRequest, "missing parameter")
		return
	}

	if err := h.adapter.VerifyNotification(n); err != nil {
		h.logger.Warn("robokassa signature rejected",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeSigMismatch).Inc()
		respondText(w, h.logger, http.StatusOK, "bad sign")
		return
	}

	outcome, err := h.settlement.Settle(r.Context(), n)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeNotFound).Inc()
			respondText(w, h.logger, http.StatusOK, "order not found")
			return
		}
		if domain.GetErrorCode(err) == domain.ErrorCodeInvalidState {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeBadRequest).Inc()
			respondText(w, h.logger, http.StatusOK, "order not payable")
			return
		}
		h.logger.Error("robokassa settlement failed",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeInternalFail).Inc()
		respondText(w, h.logger, http.StatusInternalServerError, "internal error")
		return
	}

	if outcome.Result == settlement.ResultFlagged {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), observability.OutcomeAmountFlag).Inc()
		respondText(w, h.logger, http.StatusOK, "amount mismatch")
		return
	}

	outcomeLabel := observability.OutcomeSettled
	if outcome.Result == settlement.ResultReplay {
		outcomeLabel = observability.OutcomeReplay
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayRobokassa), outcomeLabel).Inc()
	respondText(w, h.logger, http.StatusOK, fmt.Sprintf("OK%d", n.InvoiceNumber))
}
