package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
)

const subscriptionColumns = `
	id, user_id, product_code, rebill_token, amount_minor, currency, status,
	next_billing_date, last_charge_date, failed_attempts, cancelled_at, created_at, updated_at,
	charge_locked_until
`

// SubscriptionRepositoryImpl implements SubscriptionRepository using pgxpool
type SubscriptionRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepositoryImpl {
	return &SubscriptionRepositoryImpl{pool: pool}
}

func scanSubscription(row pgx.Row) (*entity.Subscription, error) {
	s := &entity.Subscription{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.ProductCode, &s.RebillToken, &s.AmountMinor, &s.Currency, &s.Status,
		&s.NextBillingDate, &s.LastChargeDate, &s.FailedAttempts, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
		&s.ChargeLockedUntil,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func subscriptionNotFound(id uuid.UUID) error {
	return &domainErrors.NotFoundError{Entity: "subscription", ID: id.String(), Err: domainErrors.ErrSubscriptionNotFound}
}

// Create creates a new subscription
func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, s *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, product_code, rebill_token, amount_minor, currency, status,
			next_billing_date, last_charge_date, failed_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		s.ID, s.UserID, s.ProductCode, s.RebillToken, s.AmountMinor, s.Currency, string(s.Status),
		s.NextBillingDate, s.LastChargeDate, s.FailedAttempts, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID retrieves a subscription by ID
func (r *SubscriptionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	s, err := scanSubscription(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscriptionNotFound(id)
	}
	return s, err
}

// ListDue retrieves unlocked active subscriptions with next_billing_date <= now, oldest first
func (r *SubscriptionRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND next_billing_date <= $1
			AND (charge_locked_until IS NULL OR charge_locked_until <= $1)
		ORDER BY next_billing_date
		LIMIT $2
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*entity.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// ClaimForCharge takes the renewal lock in a single conditional update, so
// concurrent sweeps and manual charges never both reach the gateway.
func (r *SubscriptionRepositoryImpl) ClaimForCharge(ctx context.Context, id uuid.UUID, now, lockUntil time.Time) (*entity.Subscription, bool, error) {
	query := `
		UPDATE subscriptions
		SET charge_locked_until = $3
		WHERE id = $1 AND status = 'active' AND next_billing_date <= $2
			AND (charge_locked_until IS NULL OR charge_locked_until <= $2)
		RETURNING ` + subscriptionColumns

	s, err := scanSubscription(conn(ctx, r.pool).QueryRow(ctx, query, id, now, lockUntil))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// AdvanceBilling moves an active subscription to its next period
func (r *SubscriptionRepositoryImpl) AdvanceBilling(ctx context.Context, id uuid.UUID, periodDays int, chargedAt time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET next_billing_date = GREATEST(next_billing_date, $3) + make_interval(days => $2),
			last_charge_date = $3,
			failed_attempts = 0,
			charge_locked_until = NULL,
			updated_at = $3
		WHERE id = $1 AND status = 'active'
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, periodDays, chargedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordFailure counts a failed renewal. Reaching maxAttempts suspends the
// subscription and freezes next_billing_date.
func (r *SubscriptionRepositoryImpl) RecordFailure(ctx context.Context, id uuid.UUID, maxAttempts int, retryAt time.Time) (*entity.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET failed_attempts = failed_attempts + 1,
			status = CASE WHEN failed_attempts + 1 >= $2 THEN 'suspended' ELSE status END,
			next_billing_date = CASE WHEN failed_attempts + 1 >= $2 THEN next_billing_date ELSE $3 END,
			charge_locked_until = NULL,
			updated_at = now()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + subscriptionColumns

	s, err := scanSubscription(conn(ctx, r.pool).QueryRow(ctx, query, id, maxAttempts, retryAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrSubscriptionNotActive
	}
	return s, err
}

// Cancel marks an active subscription cancelled. Cancelling a subscription
// that is no longer active returns it unchanged.
func (r *SubscriptionRepositoryImpl) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Subscription, error) {
	query := `
		UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING ` + subscriptionColumns

	s, err := scanSubscription(conn(ctx, r.pool).QueryRow(ctx, query, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetByID(ctx, id)
	}
	return s, err
}
