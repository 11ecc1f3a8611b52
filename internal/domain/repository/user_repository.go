package repository

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository resolves the chat identity bound to a user
type UserRepository interface {
	// GetChatID returns the user's chat platform id. It returns
	// ErrChatIdentityMissing when the user never opened the bot.
	GetChatID(ctx context.Context, userID uuid.UUID) (int64, error)
}
