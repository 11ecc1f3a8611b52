package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/domain/entity"
)

// SubscriptionRepository defines the interface for subscription data access
type SubscriptionRepository interface {
	// Create creates a new subscription
	Create(ctx context.Context, sub *entity.Subscription) error

	// GetByID retrieves a subscription by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error)

	// ListDue retrieves active subscriptions with next_billing_date <= now
	// that no renewal attempt currently holds
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Subscription, error)

	// ClaimForCharge takes the renewal lock until lockUntil. It succeeds only
	// for an active, due subscription whose previous lock is absent or expired,
	// and returns the claimed row. claimed is false when another attempt holds
	// it or the subscription is no longer due.
	ClaimForCharge(ctx context.Context, id uuid.UUID, now, lockUntil time.Time) (sub *entity.Subscription, claimed bool, err error)

	// AdvanceBilling moves next_billing_date forward by periodDays, sets
	// last_charge_date, resets failed_attempts and releases the renewal lock. Only active subscriptions are
	// touched; advanced is false otherwise.
	AdvanceBilling(ctx context.Context, id uuid.UUID, periodDays int, chargedAt time.Time) (advanced bool, err error)

	// RecordFailure increments failed_attempts, releases the renewal lock and
	// either reschedules to retryAt or suspends once maxAttempts is reached,
	// leaving next_billing_date as is. It returns ErrSubscriptionNotActive for non-active subscriptions.
	RecordFailure(ctx context.Context, id uuid.UUID, maxAttempts int, retryAt time.Time) (*entity.Subscription, error)

	// Cancel marks the subscription cancelled, leaving next_billing_date untouched
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Subscription, error)
}
