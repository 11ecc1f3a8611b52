package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/bivex/paygate/internal/domain/errors"
)

// UserRepositoryImpl implements UserRepository using pgxpool
type UserRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryImpl {
	return &UserRepositoryImpl{pool: pool}
}

// GetChatID returns the chat platform id bound to the user
func (r *UserRepositoryImpl) GetChatID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var chatID *int64
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT telegram_chat_id FROM users WHERE id = $1`, userID).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && chatID == nil) {
		return 0, domainErrors.ErrChatIdentityMissing
	}
	if err != nil {
		return 0, err
	}
	return *chatID, nil
}

// GetCredits returns the user's credit balance
func (r *UserRepositoryImpl) GetCredits(ctx context.Context, userID uuid.UUID) (int, error) {
	var credits int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT credits_balance FROM users WHERE id = $1`, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return credits, err
}
