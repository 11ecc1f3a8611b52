package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
	"github.com/bivex/paygate/internal/domain/valueobject"
	"github.com/bivex/paygate/internal/infrastructure/metrics"
	"github.com/bivex/paygate/internal/infrastructure/monitoring"
)

// CardCurrency is the currency of the acquiring terminal
const CardCurrency = "RUB"

// ChargeRequest asks for a new charge through one of the gateways
type ChargeRequest struct {
	UserID      uuid.UUID
	ProductCode string
	Gateway     entity.Gateway
	SuccessURL  string
	FailURL     string
}

// ChargeResult has the same shape whichever gateway served the request
type ChargeResult struct {
	Success       bool
	TransactionID uuid.UUID
	PaymentURL    string
	InvoiceLink   string
	Error         string
}

// CardReturnURLs are used when a card charge request carries no return URLs
type CardReturnURLs struct {
	SuccessURL string
	FailURL    string
}

// GatewayFacade dispatches charges, cancellations and refunds to the gateway adapters
type GatewayFacade struct {
	ledger        *LedgerService
	products      repository.ProductRepository
	subscriptions repository.SubscriptionRepository
	users         repository.UserRepository
	card          CardGateway
	inChat        InChatGateway
	returnURLs    CardReturnURLs
	refundWindow  time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewGatewayFacade creates a new gateway facade
func NewGatewayFacade(
	ledger *LedgerService,
	products repository.ProductRepository,
	subscriptions repository.SubscriptionRepository,
	users repository.UserRepository,
	card CardGateway,
	inChat InChatGateway,
	returnURLs CardReturnURLs,
	refundWindow time.Duration,
	logger *zap.Logger,
) *GatewayFacade {
	return &GatewayFacade{
		ledger:        ledger,
		products:      products,
		subscriptions: subscriptions,
		users:         users,
		card:          card,
		inChat:        inChat,
		returnURLs:    returnURLs,
		refundWindow:  refundWindow,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateCharge records a pending transaction and asks the gateway for a
// payment page or an invoice link. Validation and lookup failures are
// returned as errors; gateway rejections come back as an unsuccessful result.
func (f *GatewayFacade) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.UserID == uuid.Nil {
		return nil, domainErrors.NewValidationError("user_id", "is required")
	}
	if req.ProductCode == "" {
		return nil, domainErrors.NewValidationError("product_code", "is required")
	}

	product, err := f.products.GetByCode(ctx, req.ProductCode)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, &domainErrors.NotFoundError{Entity: "product", ID: req.ProductCode, Err: domainErrors.ErrProductInactive}
	}

	switch req.Gateway {
	case entity.GatewayCard:
		return f.createCardCharge(ctx, req, product)
	case entity.GatewayInChat:
		return f.createInChatCharge(ctx, req, product)
	default:
		return nil, &domainErrors.ValidationError{Field: "gateway", Err: domainErrors.ErrUnsupportedGateway}
	}
}

func (f *GatewayFacade) createCardCharge(ctx context.Context, req ChargeRequest, product *entity.Product) (*ChargeResult, error) {
	successURL, failURL := req.SuccessURL, req.FailURL
	if successURL == "" {
		successURL = f.returnURLs.SuccessURL
	}
	if failURL == "" {
		failURL = f.returnURLs.FailURL
	}
	if successURL == "" || failURL == "" {
		return nil, domainErrors.NewValidationError("success_url", "card charges need success and fail return URLs")
	}

	price, ok := product.PriceIn(CardCurrency)
	if !ok {
		return nil, &domainErrors.ValidationError{Field: "product_code", Message: "product has no card price", Err: domainErrors.ErrInvalidCurrency}
	}

	txn, err := f.ledger.Create(ctx, CreateTransactionInput{
		UserID:      req.UserID,
		Gateway:     entity.GatewayCard,
		ProductCode: product.Code,
		AmountMinor: price,
		Currency:    CardCurrency,
		IsRecurrent: product.IsSubscription(),
	})
	if err != nil {
		return nil, err
	}

	payment, err := f.card.Init(ctx, CardInitRequest{
		OrderID:     txn.GatewayOrderID,
		AmountMinor: price,
		Description: product.Name,
		CustomerKey: req.UserID.String(),
		Recurrent:   product.IsSubscription(),
		SuccessURL:  successURL,
		FailURL:     failURL,
		Data: map[string]string{
			"user_id":        req.UserID.String(),
			"product_code":   product.Code,
			"transaction_id": txn.ID.String(),
		},
	})
	if err != nil {
		return f.failCharge(ctx, txn, "init", err), nil
	}

	paymentURL := payment.PaymentURL
	if err := f.ledger.AttachGatewayPayment(ctx, txn.ID, &payment.PaymentID, &paymentURL); err != nil {
		f.logger.Error("Failed to store gateway payment id",
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err),
		)
	}

	metrics.RecordCharge(string(entity.GatewayCard), true)
	return &ChargeResult{Success: true, TransactionID: txn.ID, PaymentURL: paymentURL}, nil
}

func (f *GatewayFacade) createInChatCharge(ctx context.Context, req ChargeRequest, product *entity.Product) (*ChargeResult, error) {
	chatID, err := f.users.GetChatID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrChatIdentityMissing) {
			return nil, &domainErrors.ValidationError{Field: "user_id", Message: "user is not bound to a chat identity", Err: err}
		}
		return nil, err
	}

	price, ok := product.PriceIn(valueobject.CurrencyStars)
	if !ok {
		return nil, &domainErrors.ValidationError{Field: "product_code", Message: "product has no in-chat price", Err: domainErrors.ErrInvalidCurrency}
	}

	txn, err := f.ledger.Create(ctx, CreateTransactionInput{
		UserID:      req.UserID,
		Gateway:     entity.GatewayInChat,
		ProductCode: product.Code,
		AmountMinor: price,
		Currency:    valueobject.CurrencyStars,
		Metadata:    map[string]any{"telegram_user_id": chatID},
	})
	if err != nil {
		return nil, err
	}

	link, err := f.inChat.CreateInvoiceLink(ctx, InvoiceRequest{
		Title:       product.Name,
		Description: invoiceDescription(product),
		Payload:     EncodeInvoicePayload(txn),
		AmountStars: price,
	})
	if err != nil {
		return f.failCharge(ctx, txn, "create_invoice", err), nil
	}

	if err := f.ledger.AttachGatewayPayment(ctx, txn.ID, nil, &link); err != nil {
		f.logger.Error("Failed to store invoice link",
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err),
		)
	}

	metrics.RecordCharge(string(entity.GatewayInChat), true)
	return &ChargeResult{Success: true, TransactionID: txn.ID, InvoiceLink: link}, nil
}

// failCharge records the adapter failure on the transaction and builds the uniform result
func (f *GatewayFacade) failCharge(ctx context.Context, txn *entity.Transaction, operation string, cause error) *ChargeResult {
	msg := gatewayMessage(cause)
	f.logger.Warn("Gateway rejected charge",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("gateway", string(txn.Gateway)),
		zap.Error(cause),
	)
	monitoring.CapturePaymentError(cause, string(txn.Gateway), operation, map[string]any{
		"transaction_id": txn.ID.String(),
		"product_code":   txn.ProductCode,
	})
	metrics.RecordCharge(string(txn.Gateway), false)

	if _, err := f.ledger.Transition(ctx, TransitionInput{
		TransactionID: txn.ID,
		Target:        entity.TransactionStatusFailed,
		ErrorMessage:  &msg,
	}); err != nil {
		f.logger.Error("Failed to mark transaction failed",
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err),
		)
	}

	return &ChargeResult{Success: false, TransactionID: txn.ID, Error: msg}
}

// ChargeRecurring charges a subscription's saved card for a prepared transaction
func (f *GatewayFacade) ChargeRecurring(ctx context.Context, sub *entity.Subscription, txn *entity.Transaction, description string) (*CardPayment, error) {
	payment, err := f.card.ChargeRecurring(ctx, CardRecurringRequest{
		OrderID:     txn.GatewayOrderID,
		AmountMinor: txn.AmountMinor,
		Description: description,
		CustomerKey: sub.UserID.String(),
		RebillID:    sub.RebillToken,
	})
	if err != nil {
		return nil, err
	}
	if payment.PaymentID != "" {
		if err := f.ledger.AttachGatewayPayment(ctx, txn.ID, &payment.PaymentID, nil); err != nil {
			f.logger.Error("Failed to store gateway payment id",
				zap.String("transaction_id", txn.ID.String()),
				zap.Error(err),
			)
		}
	}
	return payment, nil
}

// CancelSubscription stops future billing for a subscription the user owns.
// Access lasts until the paid period ends. Cancelling twice is not an error.
func (f *GatewayFacade) CancelSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*entity.Subscription, error) {
	sub, err := f.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, &domainErrors.NotFoundError{Entity: "subscription", ID: subscriptionID.String(), Err: domainErrors.ErrSubscriptionNotFound}
	}
	if sub.Status != entity.StatusActive {
		return sub, nil
	}

	cancelled, err := f.subscriptions.Cancel(ctx, subscriptionID, f.now())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	f.logger.Info("Subscription cancelled",
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("user_id", userID.String()),
	)
	return cancelled, nil
}

// RefundCharge returns the money of a completed transaction through its
// gateway and moves it to refunded. In-chat payments can only be refunded
// within the refund window.
func (f *GatewayFacade) RefundCharge(ctx context.Context, transactionID uuid.UUID, reason string) (*entity.Transaction, error) {
	txn, err := f.ledger.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !txn.Status.CanTransitionTo(entity.TransactionStatusRefunded) {
		return nil, &domainErrors.InvalidTransitionError{From: string(txn.Status), To: string(entity.TransactionStatusRefunded)}
	}
	if txn.GatewayTransactionID == nil {
		return nil, domainErrors.NewValidationError("transaction_id", "transaction has no gateway payment id")
	}

	metadata := map[string]any{"refund_reason": reason}

	switch txn.Gateway {
	case entity.GatewayCard:
		payment, err := f.card.Cancel(ctx, *txn.GatewayTransactionID, txn.AmountMinor)
		if err != nil {
			monitoring.CapturePaymentError(err, string(txn.Gateway), "refund", map[string]any{"transaction_id": txn.ID.String()})
			return nil, err
		}
		metadata["provider_status"] = payment.Status

	case entity.GatewayInChat:
		if txn.CompletedAt == nil || f.now().Sub(*txn.CompletedAt) > f.refundWindow {
			return nil, domainErrors.ErrRefundWindowExpired
		}
		chatID, err := f.chatIDFor(ctx, txn)
		if err != nil {
			return nil, err
		}
		if err := f.inChat.RefundStarPayment(ctx, chatID, *txn.GatewayTransactionID); err != nil {
			monitoring.CapturePaymentError(err, string(txn.Gateway), "refund", map[string]any{"transaction_id": txn.ID.String()})
			return nil, err
		}

	default:
		return nil, domainErrors.ErrUnsupportedGateway
	}

	refunded, err := f.ledger.Transition(ctx, TransitionInput{
		TransactionID: txn.ID,
		Target:        entity.TransactionStatusRefunded,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("Transaction refunded",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("reason", reason),
	)
	return refunded, nil
}

// chatIDFor prefers the chat id the payment came from over the user's current binding
func (f *GatewayFacade) chatIDFor(ctx context.Context, txn *entity.Transaction) (int64, error) {
	switch v := txn.Metadata["telegram_user_id"].(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id, nil
		}
	}
	return f.users.GetChatID(ctx, txn.UserID)
}

func invoiceDescription(product *entity.Product) string {
	if product.Description != "" {
		return product.Description
	}
	return product.Name
}

// gatewayMessage keeps the provider's own text when there is one
func gatewayMessage(err error) string {
	var gwErr *domainErrors.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return "payment gateway is unavailable, please try again later"
}
