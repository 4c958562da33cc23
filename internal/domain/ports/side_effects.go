package ports

import (
	"context"

	"github.com/kmalyshev/topup-service/internal/domain"
)

// ExperienceAwarder grants experience points after a completed deposit.
// The real engine lives outside this service; settlement calls it post-commit,
// best effort, with retries.
type ExperienceAwarder interface {
	AwardDeposit(ctx context.Context, userID string, payment *domain.Payment) error
}

// SubscriptionActivator activates a subscription purchased through a top-up
// with purpose=subscription. Same post-commit, best-effort contract.
type SubscriptionActivator interface {
	Activate(ctx context.Context, userID string, payment *domain.Payment) error
}
