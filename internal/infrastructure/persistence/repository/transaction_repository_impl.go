package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
)

const transactionColumns = `
	id, user_id, gateway, product_code, amount_minor, currency, status,
	gateway_order_id, gateway_transaction_id, payment_url, is_recurrent,
	subscription_id, error_message, metadata, created_at, updated_at, completed_at
`

// TransactionRepositoryImpl implements TransactionRepository using pgxpool
type TransactionRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepositoryImpl {
	return &TransactionRepositoryImpl{pool: pool}
}

func scanTransaction(row pgx.Row) (*entity.Transaction, error) {
	t := &entity.Transaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Gateway, &t.ProductCode, &t.AmountMinor, &t.Currency, &t.Status,
		&t.GatewayOrderID, &t.GatewayTransactionID, &t.PaymentURL, &t.IsRecurrent,
		&t.SubscriptionID, &t.ErrorMessage, &t.Metadata, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	return t, nil
}

// Create creates a new transaction
func (r *TransactionRepositoryImpl) Create(ctx context.Context, t *entity.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, user_id, gateway, product_code, amount_minor, currency, status,
			gateway_order_id, is_recurrent, subscription_id, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	metadata := t.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		t.ID, t.UserID, string(t.Gateway), t.ProductCode, t.AmountMinor, t.Currency, string(t.Status),
		t.GatewayOrderID, t.IsRecurrent, t.SubscriptionID, metadata, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domainErrors.NotFoundError{Entity: "transaction", ID: id.String(), Err: domainErrors.ErrTransactionNotFound}
	}
	return t, err
}

// GetByGatewayOrderID retrieves a transaction by the order id sent to the gateway
func (r *TransactionRepositoryImpl) GetByGatewayOrderID(ctx context.Context, orderID string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_order_id = $1`
	t, err := scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domainErrors.NotFoundError{Entity: "transaction", ID: orderID, Err: domainErrors.ErrTransactionNotFound}
	}
	return t, err
}

// CompareAndSetStatus writes the new status only while the stored status is
// still one of the allowed sources. Check and write are one statement.
func (r *TransactionRepositoryImpl) CompareAndSetStatus(ctx context.Context, u repository.StatusUpdate) (*entity.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $2,
			gateway_transaction_id = COALESCE($3, gateway_transaction_id),
			error_message = COALESCE($4, error_message),
			metadata = metadata || $5::jsonb,
			completed_at = CASE WHEN $2 = 'completed' THEN $6 ELSE completed_at END,
			updated_at = $6
		WHERE id = $1 AND status = ANY($7)
		RETURNING ` + transactionColumns

	from := make([]string, len(u.From))
	for i, s := range u.From {
		from[i] = string(s)
	}
	metadata := u.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	t, err := scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query,
		u.TransactionID, string(u.To), u.GatewayTransactionID, u.ErrorMessage, metadata, u.At, from,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrInvalidTransition
	}
	return t, err
}

// AttachGatewayPayment records provider identifiers without changing status
func (r *TransactionRepositoryImpl) AttachGatewayPayment(ctx context.Context, id uuid.UUID, gatewayTransactionID, paymentURL *string) error {
	query := `
		UPDATE transactions
		SET gateway_transaction_id = COALESCE($2, gateway_transaction_id),
			payment_url = COALESCE($3, payment_url),
			updated_at = now()
		WHERE id = $1
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, gatewayTransactionID, paymentURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domainErrors.NotFoundError{Entity: "transaction", ID: id.String(), Err: domainErrors.ErrTransactionNotFound}
	}
	return nil
}

// LinkSubscription sets the subscription a recurring transaction belongs to
func (r *TransactionRepositoryImpl) LinkSubscription(ctx context.Context, id, subscriptionID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE transactions SET subscription_id = $2, updated_at = now() WHERE id = $1`,
		id, subscriptionID,
	)
	return err
}

// HasOpenRecurring reports whether a renewal charge for the subscription is
// still pending or processing at the gateway
func (r *TransactionRepositoryImpl) HasOpenRecurring(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE subscription_id = $1 AND is_recurrent
				AND status IN ('pending', 'processing')
		)
	`
	var open bool
	err := conn(ctx, r.pool).QueryRow(ctx, query, subscriptionID).Scan(&open)
	return open, err
}
