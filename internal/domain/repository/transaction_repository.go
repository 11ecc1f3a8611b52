package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/domain/entity"
)

// StatusUpdate describes a compare-and-set status write on a transaction
type StatusUpdate struct {
	TransactionID        uuid.UUID
	From                 []entity.TransactionStatus
	To                   entity.TransactionStatus
	GatewayTransactionID *string
	ErrorMessage         *string
	Metadata             map[string]any
	At                   time.Time
}

// TransactionRepository defines the interface for transaction data access
type TransactionRepository interface {
	// Create creates a new transaction
	Create(ctx context.Context, transaction *entity.Transaction) error

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)

	// GetByGatewayOrderID retrieves a transaction by the order id sent to the gateway
	GetByGatewayOrderID(ctx context.Context, orderID string) (*entity.Transaction, error)

	// CompareAndSetStatus writes the new status only while the stored status is
	// one of update.From. It returns ErrInvalidTransition when no row matched.
	CompareAndSetStatus(ctx context.Context, update StatusUpdate) (*entity.Transaction, error)

	// AttachGatewayPayment records provider identifiers without changing status.
	// Nil arguments leave the stored value as is.
	AttachGatewayPayment(ctx context.Context, id uuid.UUID, gatewayTransactionID, paymentURL *string) error

	// LinkSubscription sets the subscription a recurring transaction belongs to
	LinkSubscription(ctx context.Context, id, subscriptionID uuid.UUID) error

	// HasOpenRecurring reports whether the subscription has a renewal charge
	// that is still pending or processing
	HasOpenRecurring(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
}
