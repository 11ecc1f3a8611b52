package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
	"github.com/bivex/paygate/internal/infrastructure/metrics"
)

// BillingPolicy holds the recurring billing retry rules
type BillingPolicy struct {
	MaxFailedAttempts int
	RetryDelay        time.Duration
	BatchSize         int
	ChargeTimeout     time.Duration
	RefundWindow      time.Duration
}

// DefaultBillingPolicy returns three attempts one day apart
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		MaxFailedAttempts: 3,
		RetryDelay:        24 * time.Hour,
		BatchSize:         500,
		ChargeTimeout:     30 * time.Second,
		RefundWindow:      24 * time.Hour,
	}
}

// CreateTransactionInput describes a new charge attempt
type CreateTransactionInput struct {
	UserID         uuid.UUID
	Gateway        entity.Gateway
	ProductCode    string
	AmountMinor    int64
	Currency       string
	IsRecurrent    bool
	SubscriptionID *uuid.UUID
	Metadata       map[string]any
}

// TransitionInput describes a requested status change
type TransitionInput struct {
	TransactionID        uuid.UUID
	Target               entity.TransactionStatus
	GatewayTransactionID *string
	ErrorMessage         *string
	// RebillToken creates the subscription when the first recurring charge completes
	RebillToken string
	Metadata    map[string]any
}

// LedgerService owns the transaction lifecycle
type LedgerService struct {
	txManager     repository.TxManager
	transactions  repository.TransactionRepository
	subscriptions repository.SubscriptionRepository
	grants        repository.BenefitGrantRepository
	products      repository.ProductRepository
	notifications *NotificationService
	policy        BillingPolicy
	logger        *zap.Logger
	now           func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	txManager repository.TxManager,
	transactions repository.TransactionRepository,
	subscriptions repository.SubscriptionRepository,
	grants repository.BenefitGrantRepository,
	products repository.ProductRepository,
	notifications *NotificationService,
	policy BillingPolicy,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		txManager:     txManager,
		transactions:  transactions,
		subscriptions: subscriptions,
		grants:        grants,
		products:      products,
		notifications: notifications,
		policy:        policy,
		logger:        logger,
		now:           time.Now,
	}
}

// Create records a pending transaction with a fresh gateway order id
func (s *LedgerService) Create(ctx context.Context, in CreateTransactionInput) (*entity.Transaction, error) {
	if in.AmountMinor <= 0 {
		return nil, &domainErrors.ValidationError{Field: "amount_minor", Err: domainErrors.ErrInvalidAmount}
	}
	if !in.Gateway.IsValid() {
		return nil, &domainErrors.ValidationError{Field: "gateway", Err: domainErrors.ErrUnsupportedGateway}
	}
	if _, err := s.products.GetByCode(ctx, in.ProductCode); err != nil {
		return nil, err
	}

	txn := entity.NewTransaction(in.UserID, in.Gateway, in.ProductCode, in.AmountMinor, in.Currency, in.IsRecurrent, in.SubscriptionID)
	for k, v := range in.Metadata {
		txn.Metadata[k] = v
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return txn, nil
}

// GetByID retrieves a transaction
func (s *LedgerService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return s.transactions.GetByID(ctx, id)
}

// FindByGatewayOrderID resolves the transaction an inbound notification refers to
func (s *LedgerService) FindByGatewayOrderID(ctx context.Context, orderID string) (*entity.Transaction, error) {
	return s.transactions.GetByGatewayOrderID(ctx, orderID)
}

// HasOpenRecurring reports whether a renewal charge for the subscription is
// still waiting for a final gateway status
func (s *LedgerService) HasOpenRecurring(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	return s.transactions.HasOpenRecurring(ctx, subscriptionID)
}

// AttachGatewayPayment records provider identifiers without changing status
func (s *LedgerService) AttachGatewayPayment(ctx context.Context, id uuid.UUID, gatewayTransactionID, paymentURL *string) error {
	return s.transactions.AttachGatewayPayment(ctx, id, gatewayTransactionID, paymentURL)
}

// Transition applies one edge of the lifecycle graph. The status write and its
// side effects (benefit grant, subscription bookkeeping) commit together, so a
// retry after a crash neither grants twice nor skips the grant. Edges missing
// from the graph fail with InvalidTransitionError and change nothing.
func (s *LedgerService) Transition(ctx context.Context, in TransitionInput) (*entity.Transaction, error) {
	sources := entity.SourcesFor(in.Target)
	if len(sources) == 0 {
		return nil, &domainErrors.InvalidTransitionError{From: "*", To: string(in.Target)}
	}

	var (
		updated   *entity.Transaction
		from      entity.TransactionStatus
		product   *entity.Product
		granted   bool
		suspended *entity.Subscription
	)

	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.transactions.GetByID(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(in.Target) {
			return &domainErrors.InvalidTransitionError{From: string(current.Status), To: string(in.Target)}
		}
		from = current.Status

		now := s.now()
		updated, err = s.transactions.CompareAndSetStatus(ctx, repository.StatusUpdate{
			TransactionID:        in.TransactionID,
			From:                 sources,
			To:                   in.Target,
			GatewayTransactionID: in.GatewayTransactionID,
			ErrorMessage:         in.ErrorMessage,
			Metadata:             in.Metadata,
			At:                   now,
		})
		if err != nil {
			if errors.Is(err, domainErrors.ErrInvalidTransition) {
				return &domainErrors.InvalidTransitionError{From: string(current.Status), To: string(in.Target)}
			}
			return err
		}

		switch in.Target {
		case entity.TransactionStatusCompleted:
			product, granted, err = s.applyCompletion(ctx, updated, in.RebillToken, now)
			return err
		case entity.TransactionStatusFailed:
			suspended, err = s.applyRecurringFailure(ctx, updated, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(from), string(in.Target))
	s.logger.Info("Transaction transitioned",
		zap.String("transaction_id", updated.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(in.Target)),
	)

	switch in.Target {
	case entity.TransactionStatusCompleted:
		if granted {
			metrics.RecordBenefitGrant()
			s.notifications.PaymentCompleted(ctx, updated, product)
		}
	case entity.TransactionStatusFailed:
		s.notifications.PaymentFailed(ctx, updated)
		if suspended != nil {
			s.notifications.SubscriptionSuspended(ctx, suspended)
		}
	case entity.TransactionStatusRefunded:
		s.notifications.Refunded(ctx, updated)
	}

	return updated, nil
}

// applyCompletion grants the product benefit once and keeps the subscription in step
func (s *LedgerService) applyCompletion(ctx context.Context, txn *entity.Transaction, rebillToken string, now time.Time) (*entity.Product, bool, error) {
	product, err := s.products.GetByCode(ctx, txn.ProductCode)
	if err != nil {
		return nil, false, err
	}

	grant := entity.NewBenefitGrant(txn, product)
	created, err := s.grants.Create(ctx, grant)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record benefit grant: %w", err)
	}
	if created && grant.Credits > 0 {
		if err := s.grants.AddCredits(ctx, txn.UserID, grant.Credits); err != nil {
			return nil, false, fmt.Errorf("failed to credit balance: %w", err)
		}
	}

	if !txn.IsRecurrent || !product.IsSubscription() {
		return product, created, nil
	}

	if txn.SubscriptionID != nil {
		advanced, err := s.subscriptions.AdvanceBilling(ctx, *txn.SubscriptionID, product.PeriodDays(), now)
		if err != nil {
			return nil, false, fmt.Errorf("failed to advance subscription: %w", err)
		}
		if !advanced {
			// Cancelled while the charge was in flight: the money is kept, the date is not moved.
			s.logger.Info("Subscription no longer active, billing date left unchanged",
				zap.String("subscription_id", txn.SubscriptionID.String()),
				zap.String("transaction_id", txn.ID.String()),
			)
		}
		return product, created, nil
	}

	if rebillToken == "" {
		s.logger.Warn("Recurring charge completed without rebill token",
			zap.String("transaction_id", txn.ID.String()),
		)
		return product, created, nil
	}

	sub := entity.NewSubscription(txn.UserID, product.Code, rebillToken, txn.AmountMinor, txn.Currency, product.PeriodDays(), now)
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, false, fmt.Errorf("failed to create subscription: %w", err)
	}
	if err := s.transactions.LinkSubscription(ctx, txn.ID, sub.ID); err != nil {
		return nil, false, fmt.Errorf("failed to link subscription: %w", err)
	}
	txn.SubscriptionID = &sub.ID

	return product, created, nil
}

// applyRecurringFailure counts a failed renewal against the subscription.
// It returns the subscription when this failure suspended it.
func (s *LedgerService) applyRecurringFailure(ctx context.Context, txn *entity.Transaction, now time.Time) (*entity.Subscription, error) {
	if !txn.IsRecurrent || txn.SubscriptionID == nil {
		return nil, nil
	}
	sub, err := s.subscriptions.RecordFailure(ctx, *txn.SubscriptionID, s.policy.MaxFailedAttempts, now.Add(s.policy.RetryDelay))
	if err != nil {
		if errors.Is(err, domainErrors.ErrSubscriptionNotActive) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to record billing failure: %w", err)
	}
	if sub.Status == entity.StatusSuspended {
		return sub, nil
	}
	return nil, nil
}
