// Package settlement implements the idempotent transition that completes a
// payment and credits the user balance exactly once.
package settlement

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/internal/domain/ports"
	"github.com/kmalyshev/topup-service/pkg/observability"
	"github.com/kmalyshev/topup-service/pkg/resilience"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result classifies the outcome of a settle call
type Result string

const (
	// ResultSettled means the balance was credited and the payment completed
	ResultSettled Result = "settled"
	// ResultReplay means the payment was already completed; the call was a
	// safe no-op
	ResultReplay Result = "replay"
	// ResultFlagged means the notification amount disagreed with the stored
	// payment; nothing was credited and the payment awaits an operator
	ResultFlagged Result = "flagged"
)

// Outcome carries the settled payment and what happened to it
type Outcome struct {
	Payment  *domain.Payment
	Credited decimal.Decimal
	Result   Result
}

// Service is the settlement engine. Webhook handlers and the administrative
// recovery tooling both settle through Settle; there is no other path that
// mutates a balance.
type Service struct {
	db       ports.DBPort
	payments ports.PaymentRepository
	ledger   ports.LedgerRepository
	xp       ports.ExperienceAwarder
	subs     ports.SubscriptionActivator
	logger   *zap.Logger
	backoff  resilience.BackoffStrategy

	sideEffects        sync.WaitGroup
	maxEffectAttempts  int
	effectAttemptLimit time.Duration
}

// NewService creates a settlement service. The side effect collaborators may
// be nil; settlement then skips them.
func NewService(
	db ports.DBPort,
	payments ports.PaymentRepository,
	ledger ports.LedgerRepository,
	xp ports.ExperienceAwarder,
	subs ports.SubscriptionActivator,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:                 db,
		payments:           payments,
		ledger:             ledger,
		xp:                 xp,
		subs:               subs,
		logger:             logger,
		backoff:            resilience.SideEffectBackoff(),
		maxEffectAttempts:  5,
		effectAttemptLimit: 10 * time.Second,
	}
}

// Settle runs the settlement state machine for one notification:
//
//  1. Load the payment under a row lock. Already completed means an
//     idempotent replay: success, no side effects.
//  2. Re-validate amount and currency against the stored payment. On
//     mismatch the payment is flagged for manual reconciliation and left
//     non-terminal; nothing is credited.
//  3. Resolve the credited amount (metadata override wins over paid amount).
//  4. Credit the balance, append the ledger row and complete the payment in
//     the same transaction. Any failure rolls the whole step back.
//  5. Post-commit, dispatch best-effort side effects that never block the
//     caller.
func (s *Service) Settle(ctx context.Context, n *domain.Notification) (*Outcome, error) {
	outcome := &Outcome{}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		payment, err := s.payments.GetByInvoiceForUpdate(ctx, tx, n.InvoiceNumber)
		if err != nil {
			return err
		}
		outcome.Payment = payment

		if payment.Status == domain.StatusCompleted {
			outcome.Result = ResultReplay
			return nil
		}

		if !payment.Status.CanTransitionTo(domain.StatusCompleted) {
			return domain.ErrInvalidState.
				WithDetail("invoice_number", payment.InvoiceNumber).
				WithDetail("status", string(payment.Status))
		}

		if mismatch := s.validateNotification(payment, n); mismatch != "" {
			// A validly-signed webhook for the wrong amount must never
			// credit; the flag commits even though nothing transitions
			if err := s.payments.FlagForReconciliation(ctx, tx, payment.ID, mismatch, n.RawPayload); err != nil {
				return err
			}
			outcome.Result = ResultFlagged
			return nil
		}

		credited := payment.CreditAmount()
		before, after, err := s.ledger.Credit(ctx, tx, payment.UserID, credited)
		if err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}

		ledgerRow := &domain.Transaction{
			PaymentID:     payment.ID,
			UserID:        payment.UserID,
			Amount:        credited,
			BalanceBefore: before,
			BalanceAfter:  after,
		}
		if err := s.ledger.CreateTransaction(ctx, tx, ledgerRow); err != nil {
			return fmt.Errorf("append ledger row: %w", err)
		}

		completedAt := time.Now().UTC()
		if err := s.payments.Complete(ctx, tx, payment.ID, n.ExternalTxID, n.RawPayload, completedAt); err != nil {
			return err
		}

		payment.Status = domain.StatusCompleted
		payment.CompletedAt = &completedAt
		outcome.Result = ResultSettled
		outcome.Credited = credited
		return nil
	})

	if err != nil {
		return nil, err
	}

	switch outcome.Result {
	case ResultSettled:
		observability.SettlementsTotal.WithLabelValues(string(n.Gateway), "settled").Inc()
		s.logger.Info("payment settled",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.String("payment_id", outcome.Payment.ID),
			zap.String("user_id", outcome.Payment.UserID),
			zap.String("credited", outcome.Credited.String()),
		)
		s.dispatchSideEffects(outcome.Payment)
	case ResultReplay:
		observability.SettlementsTotal.WithLabelValues(string(n.Gateway), "replay").Inc()
		s.logger.Info("duplicate settlement ignored",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.String("payment_id", outcome.Payment.ID),
		)
	case ResultFlagged:
		observability.SettlementsTotal.WithLabelValues(string(n.Gateway), "flagged").Inc()
		s.logger.Warn("notification flagged for reconciliation",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.String("payment_id", outcome.Payment.ID),
			zap.String("notified_amount", n.Amount.String()),
			zap.String("stored_amount", outcome.Payment.Amount.String()),
		)
	}

	return outcome, nil
}

// Check validates a pre-payment probe against the stored payment without
// mutating anything. Used for providers with a distinct check phase.
func (s *Service) Check(ctx context.Context, n *domain.Notification) (*domain.Payment, error) {
	payment, err := s.payments.GetByInvoice(ctx, s.db.GetDB(), n.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	if mismatch := s.validateNotification(payment, n); mismatch != "" {
		return nil, domain.ErrAmountMismatch.
			WithDetail("invoice_number", n.InvoiceNumber).
			WithDetail("mismatch", mismatch)
	}
	return payment, nil
}

// Fail records a provider-reported failure. Completed and terminal payments
// are left untouched, so a late error event cannot clobber a settled payment.
func (s *Service) Fail(ctx context.Context, n *domain.Notification) (*domain.Payment, error) {
	var payment *domain.Payment
	marked := false
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		payment, err = s.payments.GetByInvoiceForUpdate(ctx, tx, n.InvoiceNumber)
		if err != nil {
			return err
		}
		if !payment.Status.CanTransitionTo(domain.StatusFailed) {
			return nil
		}
		if err := s.payments.SetStatus(ctx, tx, payment.ID, domain.StatusFailed, n.RawPayload); err != nil {
			return err
		}
		payment.Status = domain.StatusFailed
		marked = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if marked {
		s.logger.Info("payment marked failed",
			zap.Int64("invoice_number", n.InvoiceNumber),
			zap.String("payment_id", payment.ID),
		)
	}
	return payment, nil
}

// WaitForSideEffects blocks until in-flight side effect deliveries finish.
// Called on shutdown so retries are not cut off mid-flight.
func (s *Service) WaitForSideEffects() {
	s.sideEffects.Wait()
}

// validateNotification compares the notification against the stored payment;
// a non-empty return value describes the discrepancy
func (s *Service) validateNotification(payment *domain.Payment, n *domain.Notification) string {
	if n.Event == domain.EventManual {
		// Operator-synthesized notifications settle the stored amount
		return ""
	}
	if !n.Amount.Equal(payment.Amount) {
		return fmt.Sprintf("amount mismatch: notified %s, stored %s",
			n.Amount.String(), payment.Amount.String())
	}
	if n.Currency != "" && payment.Currency != "" &&
		!strings.EqualFold(n.Currency, payment.Currency) {
		return fmt.Sprintf("currency mismatch: notified %s, stored %s",
			n.Currency, payment.Currency)
	}
	return ""
}
