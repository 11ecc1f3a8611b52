package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/application/dto"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
)

// RefundChargeCommand returns the money of a completed charge
type RefundChargeCommand struct {
	facade *service.GatewayFacade
}

// NewRefundChargeCommand creates a new refund command
func NewRefundChargeCommand(facade *service.GatewayFacade) *RefundChargeCommand {
	return &RefundChargeCommand{facade: facade}
}

// Execute executes the refund command
func (c *RefundChargeCommand) Execute(ctx context.Context, transactionID string, req *dto.RefundRequest) (*dto.TransactionResponse, error) {
	txnUUID, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid transaction ID", domainErrors.ErrInvalidInput)
	}

	txn, err := c.facade.RefundCharge(ctx, txnUUID, req.Reason)
	if err != nil {
		return nil, err
	}
	return dto.NewTransactionResponse(txn), nil
}
