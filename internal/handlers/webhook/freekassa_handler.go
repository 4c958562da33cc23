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

// FreeKassaHandler serves FreeKassa payment notifications. FreeKassa keeps
// retrying a notification until the body is exactly "YES", so any other text
// under HTTP 200 is a terminal rejection on their side.
type FreeKassaHandler struct {
	adapter    ports.GatewayAdapter
	settlement *settlement.Service
	logger     *zap.Logger
}

// NewFreeKassaHandler creates the FreeKassa webhook handler
func NewFreeKassaHandler(adapter ports.GatewayAdapter, svc *settlement.Service, logger *zap.Logger) *FreeKassaHandler {
	return &FreeKassaHandler{adapter: adapter, settlement: svc, logger: logger}
}

// Handle processes one FreeKassa callback
func (h *FreeKassaHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.WebhookDuration.WithLabelValues(string(domain.GatewayFreeKassa)).Observe(time.Since(start).Seconds())
	}()

	n, err := h.adapter.ParseNotification(r)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeNotFound).Inc()
			respondText(w, h.logger, http.StatusOK, "order not found")
			return
		}
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeBadRequest).Inc()
		respondText(w, h.logger, http.StatusBadRequest, "missing parameter")
		return
	}

	if err := h.adapter.VerifyNotification(n); err != nil {
		h.logger.Warn("freekassa signature rejected",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeSigMismatch).Inc()
		respondText(w, h.logger, http.StatusOK, "wrong sign")
		return
	}

	outcome, err := h.settlement.Settle(r.Context(), n)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeNotFound).Inc()
			respondText(w, h.logger, http.StatusOK, "order not found")
			return
		}
		if domain.GetErrorCode(err) == domain.ErrorCodeInvalidState {
			observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeBadRequest).Inc()
			respondText(w, h.logger, http.StatusOK, "order not payable")
			return
		}
		h.logger.Error("freekassa settlement failed",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.Error(err),
		)
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeInternalFail).Inc()
		respondText(w, h.logger, http.StatusInternalServerError, "internal error")
		return
	}

	if outcome.Result == settlement.ResultFlagged {
		observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), observability.OutcomeAmountFlag).Inc()
		respondText(w, h.logger, http.StatusOK, "amount mismatch")
		return
	}

	outcomeLabel := observability.OutcomeSettled
	if outcome.Result == settlement.ResultReplay {
		outcomeLabel = observability.OutcomeReplay
	}
	observability.WebhooksTotal.WithLabelValues(string(domain.GatewayFreeKassa), outcomeLabel).Inc()
	respondText(w, h.logger, http.StatusOK, "YES")
}
