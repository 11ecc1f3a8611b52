package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
)

// MessageSender delivers a chat message
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// NotificationJobHandler delivers queued user notifications through the chat platform
type NotificationJobHandler struct {
	users  repository.UserRepository
	sender MessageSender
	logger *zap.Logger
}

// NewNotificationJobHandler creates a new notification job handler
func NewNotificationJobHandler(users repository.UserRepository, sender MessageSender, logger *zap.Logger) *NotificationJobHandler {
	return &NotificationJobHandler{
		users:  users,
		sender: sender,
		logger: logger,
	}
}

// HandleSendNotification resolves the user's chat and sends the text.
// Users who never opened the bot are skipped without retry.
func (h *NotificationJobHandler) HandleSendNotification(ctx context.Context, t *asynq.Task) error {
	var p SendNotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.UserID == uuid.Nil || p.Text == "" {
		return fmt.Errorf("empty notification: %w", asynq.SkipRetry)
	}

	chatID, err := h.users.GetChatID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrChatIdentityMissing) {
			h.logger.Debug("User has no chat, notification dropped", zap.String("user_id", p.UserID.String()))
			return nil
		}
		return err
	}

	if err := h.sender.SendMessage(ctx, chatID, p.Text); err != nil {
		if errors.Is(err, domainErrors.ErrGatewayRejected) {
			// Blocked bot or deleted chat: retrying cannot help.
			h.logger.Info("Notification rejected by chat platform",
				zap.String("user_id", p.UserID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}
