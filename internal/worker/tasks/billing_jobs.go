package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
)

// BillingJobHandler runs the recurring billing scheduler from the queue
type BillingJobHandler struct {
	billing *service.BillingService
	logger  *zap.Logger
}

// NewBillingJobHandler creates a new billing job handler
func NewBillingJobHandler(billing *service.BillingService, logger *zap.Logger) *BillingJobHandler {
	return &BillingJobHandler{
		billing: billing,
		logger:  logger,
	}
}

// HandleBillingSweep charges every due subscription
func (h *BillingJobHandler) HandleBillingSweep(ctx context.Context, t *asynq.Task) error {
	report := h.billing.RunSweep(ctx)

	h.logger.Info("Billing sweep task finished",
		zap.Int("processed", len(report.Results)),
		zap.Int("charged", report.Count(service.ChargeOutcomeCharged)),
		zap.Int("pending", report.Count(service.ChargeOutcomePending)),
		zap.Int("failed", report.Count(service.ChargeOutcomeFailed)),
		zap.Int("suspended", report.Count(service.ChargeOutcomeSuspended)),
		zap.Int("errors", report.Count(service.ChargeOutcomeError)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	if report.Error != "" {
		return fmt.Errorf("billing sweep: %s", report.Error)
	}
	return nil
}

// HandleChargeSubscription charges one subscription
func (h *BillingJobHandler) HandleChargeSubscription(ctx context.Context, t *asynq.Task) error {
	var p ChargeSubscriptionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := h.billing.ChargeSubscription(ctx, p.SubscriptionID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrSubscriptionNotFound) || errors.Is(err, domainErrors.ErrSubscriptionNotActive) {
			h.logger.Info("Skipping charge", zap.String("subscription_id", p.SubscriptionID.String()), zap.Error(err))
			return nil
		}
		return err
	}

	h.logger.Info("Subscription charge task finished",
		zap.String("subscription_id", p.SubscriptionID.String()),
		zap.String("outcome", string(result.Outcome)),
	)
	return nil
}
