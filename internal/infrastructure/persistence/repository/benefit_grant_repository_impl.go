package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/paygate/internal/domain/entity"
)

// BenefitGrantRepositoryImpl implements BenefitGrantRepository using pgxpool
type BenefitGrantRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewBenefitGrantRepository creates a new benefit grant repository
func NewBenefitGrantRepository(pool *pgxpool.Pool) *BenefitGrantRepositoryImpl {
	return &BenefitGrantRepositoryImpl{pool: pool}
}

// Create inserts the grant unless the transaction was already granted
func (r *BenefitGrantRepositoryImpl) Create(ctx context.Context, g *entity.BenefitGrant) (bool, error) {
	query := `
		INSERT INTO benefit_grants (id, transaction_id, user_id, product_code, credits, subscription_tier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		g.ID, g.TransactionID, g.UserID, g.ProductCode, g.Credits, g.SubscriptionTier, g.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddCredits adds credits to the user's balance
func (r *BenefitGrantRepositoryImpl) AddCredits(ctx context.Context, userID uuid.UUID, credits int) error {
	query := `
		INSERT INTO users (id, credits_balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET credits_balance = users.credits_balance + EXCLUDED.credits_balance,
			updated_at = now()
	`
	_, err := conn(ctx, r.pool).Exec(ctx, query, userID, credits)
	return err
}
