package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
)

// ProductRepositoryImpl implements ProductRepository using pgxpool
type ProductRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewProductRepository creates a new product repository
func NewProductRepository(pool *pgxpool.Pool) *ProductRepositoryImpl {
	return &ProductRepositoryImpl{pool: pool}
}

// GetByCode retrieves a product by its code
func (r *ProductRepositoryImpl) GetByCode(ctx context.Context, code string) (*entity.Product, error) {
	query := `
		SELECT code, name, description, price_minor, credits_amount,
			subscription_period_days, subscription_tier, active
		FROM products
		WHERE code = $1
	`
	p := &entity.Product{}
	err := conn(ctx, r.pool).QueryRow(ctx, query, code).Scan(
		&p.Code, &p.Name, &p.Description, &p.PriceMinor, &p.CreditsAmount,
		&p.SubscriptionPeriodDays, &p.SubscriptionTier, &p.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domainErrors.NotFoundError{Entity: "product", ID: code, Err: domainErrors.ErrProductNotFound}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
