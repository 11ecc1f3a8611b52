package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
	"github.com/bivex/paygate/internal/infrastructure/metrics"
	"github.com/bivex/paygate/internal/infrastructure/monitoring"
)

// ChargeOutcome is the result of one recurring charge attempt
type ChargeOutcome string

const (
	ChargeOutcomeCharged   ChargeOutcome = "charged"
	ChargeOutcomePending   ChargeOutcome = "pending"
	ChargeOutcomeFailed    ChargeOutcome = "failed"
	ChargeOutcomeSuspended ChargeOutcome = "suspended"
	ChargeOutcomeSkipped   ChargeOutcome = "skipped"
	ChargeOutcomeError     ChargeOutcome = "error"
)

// SubscriptionResult reports what the scheduler did with one subscription
type SubscriptionResult struct {
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	TransactionID  *uuid.UUID    `json:"transaction_id,omitempty"`
	Outcome        ChargeOutcome `json:"outcome"`
	Error          string        `json:"error,omitempty"`
}

// BatchReport aggregates a sweep. A sweep never fails as a whole; problems
// show up in Error (selection) or in the per-subscription results.
type BatchReport struct {
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Results    []SubscriptionResult `json:"results"`
	Error      string               `json:"error,omitempty"`
}

// Count returns the number of results with the given outcome
func (r *BatchReport) Count(outcome ChargeOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// BillingService charges due subscriptions without user interaction
type BillingService struct {
	ledger        *LedgerService
	facade        *GatewayFacade
	subscriptions repository.SubscriptionRepository
	products      repository.ProductRepository
	policy        BillingPolicy
	logger        *zap.Logger
	now           func() time.Time
}

// NewBillingService creates a new billing service
func NewBillingService(
	ledger *LedgerService,
	facade *GatewayFacade,
	subscriptions repository.SubscriptionRepository,
	products repository.ProductRepository,
	policy BillingPolicy,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		ledger:        ledger,
		facade:        facade,
		subscriptions: subscriptions,
		products:      products,
		policy:        policy,
		logger:        logger,
		now:           time.Now,
	}
}

// settleTimeout bounds the ledger writes that follow a gateway call
const settleTimeout = 10 * time.Second

// RunSweep charges every active subscription whose billing date has come.
// Due rows are read in pages of BatchSize until none are left. Each
// subscription is handled on its own; one failure never stops the rest.
func (s *BillingService) RunSweep(ctx context.Context) *BatchReport {
	report := &BatchReport{StartedAt: s.now()}
	defer func() {
		report.FinishedAt = s.now()
		metrics.RecordSweepDuration(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	s.logger.Info("Billing sweep started", zap.Int("batch_size", s.policy.BatchSize))

	seen := make(map[uuid.UUID]struct{})
	for {
		page, err := s.subscriptions.ListDue(ctx, report.StartedAt, s.policy.BatchSize)
		if err != nil {
			s.logger.Error("Failed to list due subscriptions", zap.Error(err))
			report.Error = err.Error()
			return report
		}

		fresh := 0
		for _, sub := range page {
			if _, ok := seen[sub.ID]; ok {
				continue
			}
			seen[sub.ID] = struct{}{}
			fresh++

			if ctx.Err() != nil {
				report.Results = append(report.Results, SubscriptionResult{
					SubscriptionID: sub.ID,
					Outcome:        ChargeOutcomeSkipped,
					Error:          ctx.Err().Error(),
				})
				continue
			}
			report.Results = append(report.Results, s.chargeIsolated(ctx, sub))
		}

		// A short page is the last one. A page of rows already handled means
		// they are still selectable, and reading again would loop forever.
		if len(page) < s.policy.BatchSize || fresh == 0 || ctx.Err() != nil {
			break
		}
	}

	s.logger.Info("Billing sweep finished",
		zap.Int("processed", len(report.Results)),
		zap.Int("charged", report.Count(ChargeOutcomeCharged)),
		zap.Int("failed", report.Count(ChargeOutcomeFailed)),
		zap.Int("suspended", report.Count(ChargeOutcomeSuspended)),
		zap.Int("errors", report.Count(ChargeOutcomeError)),
	)
	return report
}

// ChargeSubscription charges a single subscription if it is due
func (s *BillingService) ChargeSubscription(ctx context.Context, subscriptionID uuid.UUID) (SubscriptionResult, error) {
	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return SubscriptionResult{}, err
	}
	if !sub.IsActive() {
		return SubscriptionResult{}, fmt.Errorf("subscription %s: %w", subscriptionID, domainErrors.ErrSubscriptionNotActive)
	}
	if !sub.IsDue(s.now()) {
		return SubscriptionResult{SubscriptionID: sub.ID, Outcome: ChargeOutcomeSkipped, Error: "not due yet"}, nil
	}
	return s.chargeIsolated(ctx, sub), nil
}

// chargeIsolated turns a panic during one charge into an error result
func (s *BillingService) chargeIsolated(ctx context.Context, sub *entity.Subscription) (result SubscriptionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recurring charge panicked",
				zap.String("subscription_id", sub.ID.String()),
				zap.Any("panic", r),
			)
			result = SubscriptionResult{SubscriptionID: sub.ID, Outcome: ChargeOutcomeError, Error: fmt.Sprint(r)}
		}
		metrics.RecordBillingCharge(string(result.Outcome))
	}()
	return s.chargeOne(ctx, sub)
}

// chargeLockTTL is how long a claimed subscription stays out of other sweeps
// when nothing settles it first
func (s *BillingService) chargeLockTTL() time.Duration {
	if s.policy.RetryDelay > 0 {
		return s.policy.RetryDelay
	}
	return time.Hour
}

func (s *BillingService) chargeOne(ctx context.Context, sub *entity.Subscription) SubscriptionResult {
	result := SubscriptionResult{SubscriptionID: sub.ID}
	log := s.logger.With(zap.String("subscription_id", sub.ID.String()))

	now := s.now()
	claimed, ok, err := s.subscriptions.ClaimForCharge(ctx, sub.ID, now, now.Add(s.chargeLockTTL()))
	if err != nil {
		log.Error("Failed to claim subscription for charge", zap.Error(err))
		result.Outcome = ChargeOutcomeError
		result.Error = err.Error()
		return result
	}
	if !ok {
		log.Info("Subscription is already being charged")
		result.Outcome = ChargeOutcomeSkipped
		result.Error = "charge already in progress"
		return result
	}
	sub = claimed

	open, err := s.ledger.HasOpenRecurring(ctx, sub.ID)
	if err != nil {
		log.Error("Failed to check open recurring charges", zap.Error(err))
		result.Outcome = ChargeOutcomeError
		result.Error = err.Error()
		return result
	}
	if open {
		log.Warn("Previous recurring charge is not settled yet")
		result.Outcome = ChargeOutcomeSkipped
		result.Error = "previous charge not settled"
		return result
	}

	product, err := s.products.GetByCode(ctx, sub.ProductCode)
	if err != nil {
		log.Error("Failed to resolve subscription product", zap.Error(err))
		result.Outcome = ChargeOutcomeError
		result.Error = err.Error()
		return result
	}

	txn, err := s.ledger.Create(ctx, CreateTransactionInput{
		UserID:         sub.UserID,
		Gateway:        entity.GatewayCard,
		ProductCode:    sub.ProductCode,
		AmountMinor:    sub.AmountMinor,
		Currency:       sub.Currency,
		IsRecurrent:    true,
		SubscriptionID: &sub.ID,
	})
	if err != nil {
		log.Error("Failed to create recurring transaction", zap.Error(err))
		result.Outcome = ChargeOutcomeError
		result.Error = err.Error()
		return result
	}
	result.TransactionID = &txn.ID

	gatewayCtx := ctx
	if s.policy.ChargeTimeout > 0 {
		var cancel context.CancelFunc
		gatewayCtx, cancel = context.WithTimeout(ctx, s.policy.ChargeTimeout)
		defer cancel()
	}
	payment, chargeErr := s.facade.ChargeRecurring(gatewayCtx, sub, txn, product.Name)

	// The outcome is recorded even when the gateway call ran out of time or
	// the caller went away
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancelSettle()

	var target entity.TransactionStatus
	if chargeErr != nil {
		target = entity.TransactionStatusFailed
	} else {
		target = MapCardStatus(payment.Status)
	}

	switch target {
	case entity.TransactionStatusCompleted:
		in := TransitionInput{TransactionID: txn.ID, Target: target}
		if payment.PaymentID != "" {
			in.GatewayTransactionID = &payment.PaymentID
		}
		if _, err := s.ledger.Transition(settleCtx, in); err != nil {
			log.Error("Failed to complete recurring transaction", zap.Error(err))
			result.Outcome = ChargeOutcomeError
			result.Error = err.Error()
			return result
		}
		result.Outcome = ChargeOutcomeCharged

	case entity.TransactionStatusProcessing:
		// The notification settles it and releases the claim
		result.Outcome = ChargeOutcomePending

	default:
		msg := "recurring charge " + string(target)
		if chargeErr != nil {
			msg = gatewayMessage(chargeErr)
			monitoring.CapturePaymentError(chargeErr, string(entity.GatewayCard), "recurring_charge", map[string]any{
				"subscription_id": sub.ID.String(),
				"transaction_id":  txn.ID.String(),
			})
		}
		result.Error = msg

		if _, err := s.ledger.Transition(settleCtx, TransitionInput{
			TransactionID: txn.ID,
			Target:        entity.TransactionStatusFailed,
			ErrorMessage:  &msg,
		}); err != nil {
			log.Error("Failed to record recurring charge failure", zap.Error(err))
			result.Outcome = ChargeOutcomeError
			result.Error = err.Error()
			return result
		}

		result.Outcome = ChargeOutcomeFailed
		if updated, err := s.subscriptions.GetByID(settleCtx, sub.ID); err == nil && updated.Status == entity.StatusSuspended {
			result.Outcome = ChargeOutcomeSuspended
		}
	}

	log.Info("Recurring charge processed",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("outcome", string(result.Outcome)),
	)
	return result
}
