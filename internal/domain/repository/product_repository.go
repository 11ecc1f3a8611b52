package repository

import (
	"context"

	"github.com/bivex/paygate/internal/domain/entity"
)

// ProductRepository defines read access to the product catalog
type ProductRepository interface {
	// GetByCode retrieves a product by its code, active or not
	GetByCode(ctx context.Context, code string) (*entity.Product, error)
}
