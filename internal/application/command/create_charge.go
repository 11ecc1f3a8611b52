package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/application/dto"
	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/service"
)

// CreateChargeCommand starts a purchase through the requested gateway
type CreateChargeCommand struct {
	facade *service.GatewayFacade
}

// NewCreateChargeCommand creates a new create charge command
func NewCreateChargeCommand(facade *service.GatewayFacade) *CreateChargeCommand {
	return &CreateChargeCommand{facade: facade}
}

// Execute executes the create charge command. A gateway rejection is not an
// error: it comes back as a response with Success false.
func (c *CreateChargeCommand) Execute(ctx context.Context, userID uuid.UUID, req *dto.CreateChargeRequest) (*dto.ChargeResponse, error) {
	result, err := c.facade.CreateCharge(ctx, service.ChargeRequest{
		UserID:      userID,
		ProductCode: req.ProductCode,
		Gateway:     entity.Gateway(req.Gateway),
		SuccessURL:  req.SuccessURL,
		FailURL:     req.FailURL,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewChargeResponse(result), nil
}
