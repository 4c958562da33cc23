// Package engagement holds the collaborators settlement notifies after a
// credit lands. The real experience and subscription engines live in other
// services; these implementations record the event and succeed so the
// settlement path stays exercised end to end.
package engagement

import (
	"context"

	"github.com/kmalyshev/topup-service/internal/domain"
	"go.uber.org/zap"
)

// ExperienceLogger acknowledges deposit experience awards
type ExperienceLogger struct {
	logger *zap.Logger
}

// NewExperienceLogger creates the experience award collaborator
func NewExperienceLogger(logger *zap.Logger) *ExperienceLogger {
	return &ExperienceLogger{logger: logger}
}

// AwardDeposit records an experience award for a settled deposit
func (e *ExperienceLogger) AwardDeposit(ctx context.Context, userID string, payment *domain.Payment) error {
	e.logger.Info("experience award dispatched",
		zap.String("user_id", userID),
		zap.String("payment_id", payment.ID),
		zap.String("amount", payment.CreditAmount().StringFixed(2)),
	)
	return nil
}

// SubscriptionLogger acknowledges subscription activations
type SubscriptionLogger struct {
	logger *zap.Logger
}

// NewSubscriptionLogger creates the subscription activation collaborator
func NewSubscriptionLogger(logger *zap.Logger) *SubscriptionLogger {
	return &SubscriptionLogger{logger: logger}
}

// Activate records a subscription activation for a settled payment
func (s *SubscriptionLogger) Activate(ctx context.Context, userID string, payment *domain.Payment) error {
	s.logger.Info("subscription activation dispatched",
		zap.String("user_id", userID),
		zap.String("payment_id", payment.ID),
	)
	return nil
}
