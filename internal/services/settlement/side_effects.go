package settlement

import (
	"context"
	"time"

	"github.com/kmalyshev/topup-service/internal/domain"
	"github.com/kmalyshev/topup-service/pkg/observability"
	"go.uber.org/zap"
)

// dispatchSideEffects starts best-effort post-settlement work. The webhook
// response must not wait on any of this: providers time callbacks out in
// seconds and treat slow answers as failures.
func (s *Service) dispatchSideEffects(payment *domain.Payment) {
	switch payment.Purpose {
	case domain.PurposeSubscription:
		if s.subs != nil {
			s.runAsync("subscription_activate", payment, s.subs.Activate)
		}
	case domain.PurposeDeposit:
		if s.xp != nil {
			s.runAsync("experience_award", payment, s.xp.AwardDeposit)
		}
	}
}

// runAsync retries one side effect with backoff on its own goroutine,
// detached from the webhook request context
func (s *Service) runAsync(name string, payment *domain.Payment, fn func(ctx context.Context, userID string, payment *domain.Payment) error) {
	s.sideEffects.Add(1)
	go func() {
		defer s.sideEffects.Done()

		for attempt := 0; attempt < s.maxEffectAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), s.effectAttemptLimit)
			err := fn(ctx, payment.UserID, payment)
			cancel()

			if err == nil {
				observability.SideEffectRetries.WithLabelValues(name, "ok").Inc()
				return
			}

			observability.SideEffectRetries.WithLabelValues(name, "error").Inc()
			s.logger.Warn("side effect failed",
				zap.String("effect", name),
				zap.String("payment_id", payment.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			time.Sleep(s.backoff.NextDelay(attempt))
		}

		s.logger.Error("side effect exhausted retries",
			zap.String("effect", name),
			zap.String("payment_id", payment.ID),
		)
	}()
}
