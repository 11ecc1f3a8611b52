package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/valueobject"
)

// Notifier delivers a text message to a user
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, text string) error
}

// NotificationService tells users about payment outcomes. Delivery is best
// effort and errors are only logged.
type NotificationService struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{notifier: notifier, logger: logger}
}

// PaymentCompleted confirms a completed purchase
func (s *NotificationService) PaymentCompleted(ctx context.Context, txn *entity.Transaction, product *entity.Product) {
	var text string
	switch {
	case product.SubscriptionTier != nil:
		text = fmt.Sprintf("✅ Subscription activated! You now have %s access.", *product.SubscriptionTier)
	case product.Credits() > 0:
		text = fmt.Sprintf("✅ Payment successful! %d credits have been added to your account.", product.Credits())
	default:
		text = fmt.Sprintf("✅ Payment of %s received.", formatAmount(txn))
	}
	s.send(ctx, txn.UserID, text)
}

// PaymentFailed reports a failed charge with the provider message when known
func (s *NotificationService) PaymentFailed(ctx context.Context, txn *entity.Transaction) {
	reason := txn.Error()
	if reason == "" {
		reason = "the payment could not be completed"
	}
	s.send(ctx, txn.UserID, fmt.Sprintf("❌ Payment of %s failed: %s", formatAmount(txn), reason))
}

// SubscriptionSuspended tells the user that renewal gave up
func (s *NotificationService) SubscriptionSuspended(ctx context.Context, sub *entity.Subscription) {
	s.send(ctx, sub.UserID, "Your subscription is inactive because the renewal payment failed several times. Subscribe again to restore access.")
}

// Refunded confirms a refund
func (s *NotificationService) Refunded(ctx context.Context, txn *entity.Transaction) {
	s.send(ctx, txn.UserID, fmt.Sprintf("↩️ %s has been refunded.", formatAmount(txn)))
}

func (s *NotificationService) send(ctx context.Context, userID uuid.UUID, text string) {
	if s == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, text); err != nil {
		s.logger.Warn("Failed to queue user notification",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func formatAmount(txn *entity.Transaction) string {
	return valueobject.Money{AmountMinor: txn.AmountMinor, Currency: txn.Currency}.String()
}
