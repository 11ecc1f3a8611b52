package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/application/dto"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
)

// GetTransactionQuery returns a transaction to the user who owns it
type GetTransactionQuery struct {
	ledger *service.LedgerService
}

// NewGetTransactionQuery creates a new get transaction query
func NewGetTransactionQuery(ledger *service.LedgerService) *GetTransactionQuery {
	return &GetTransactionQuery{ledger: ledger}
}

// Execute executes the get transaction query. Another user's transaction is
// reported as not found.
func (q *GetTransactionQuery) Execute(ctx context.Context, userID uuid.UUID, transactionID string) (*dto.TransactionResponse, error) {
	txnUUID, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid transaction ID", domainErrors.ErrInvalidInput)
	}

	txn, err := q.ledger.GetByID(ctx, txnUUID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, &domainErrors.NotFoundError{Entity: "transaction", ID: transactionID, Err: domainErrors.ErrTransactionNotFound}
	}

	return dto.NewTransactionResponse(txn), nil
}
