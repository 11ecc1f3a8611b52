package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
)

// ChargeSubscriptionCommand charges one subscription outside the sweep
type ChargeSubscriptionCommand struct {
	billing *service.BillingService
}

// NewChargeSubscriptionCommand creates a new charge subscription command
func NewChargeSubscriptionCommand(billing *service.BillingService) *ChargeSubscriptionCommand {
	return &ChargeSubscriptionCommand{billing: billing}
}

// Execute executes the charge subscription command
func (c *ChargeSubscriptionCommand) Execute(ctx context.Context, subscriptionID string) (*service.SubscriptionResult, error) {
	subUUID, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subscription ID", domainErrors.ErrInvalidInput)
	}

	result, err := c.billing.ChargeSubscription(ctx, subUUID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
