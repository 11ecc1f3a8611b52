package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/domain/entity"
)

// BenefitGrantRepository records benefit grants and user credit balances
type BenefitGrantRepository interface {
	// Create inserts the grant. created is false when the transaction was already granted.
	Create(ctx context.Context, grant *entity.BenefitGrant) (created bool, err error)

	// AddCredits adds credits to the user's balance
	AddCredits(ctx context.Context, userID uuid.UUID, credits int) error
}
