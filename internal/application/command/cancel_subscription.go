package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/application/dto"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
)

// CancelSubscriptionCommand handles subscription cancellation
type CancelSubscriptionCommand struct {
	facade *service.GatewayFacade
}

// NewCancelSubscriptionCommand creates a new cancel subscription command
func NewCancelSubscriptionCommand(facade *service.GatewayFacade) *CancelSubscriptionCommand {
	return &CancelSubscriptionCommand{facade: facade}
}

// Execute executes the cancel subscription command
func (c *CancelSubscriptionCommand) Execute(ctx context.Context, userID uuid.UUID, subscriptionID string) (*dto.SubscriptionResponse, error) {
	subUUID, err := uuid.Parse(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subscription ID", domainErrors.ErrInvalidInput)
	}

	sub, err := c.facade.CancelSubscription(ctx, userID, subUUID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubscriptionResponse(sub, sub.HasAccess(time.Now())), nil
}
