package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
	"github.com/bivex/paygate/internal/domain/signature"
	"github.com/bivex/paygate/internal/infrastructure/metrics"
	"github.com/bivex/paygate/internal/infrastructure/monitoring"
)

// ReconcileOutcome says what happened to an inbound notification. Every
// outcome is acknowledged to the gateway.
type ReconcileOutcome string

const (
	OutcomeApplied          ReconcileOutcome = "applied"
	OutcomeInvalidSignature ReconcileOutcome = "invalid_signature"
	OutcomeUnknownOrder     ReconcileOutcome = "unknown_order"
	OutcomeDuplicate        ReconcileOutcome = "duplicate"
	OutcomeIgnored          ReconcileOutcome = "ignored"
	OutcomeRejected         ReconcileOutcome = "rejected"
	OutcomeError            ReconcileOutcome = "error"
)

// PreCheckoutQuery is the in-chat platform asking to confirm a payment
type PreCheckoutQuery struct {
	ID             string
	FromUserID     int64
	Currency       string
	TotalAmount    int64
	InvoicePayload string
}

// SuccessfulPayment is the in-chat platform reporting money taken
type SuccessfulPayment struct {
	FromUserID              int64
	Currency                string
	TotalAmount             int64
	InvoicePayload          string
	TelegramPaymentChargeID string
	ProviderPaymentChargeID string
}

// InChatUpdate carries at most one of the payment events of a bot update
type InChatUpdate struct {
	PreCheckout *PreCheckoutQuery
	Payment     *SuccessfulPayment
}

// invoicePayload is attached to every in-chat invoice and comes back with each event
type invoicePayload struct {
	OrderID string `json:"order_id"`
}

// EncodeInvoicePayload builds the invoice payload for a transaction
func EncodeInvoicePayload(txn *entity.Transaction) string {
	b, _ := json.Marshal(invoicePayload{OrderID: txn.GatewayOrderID})
	return string(b)
}

func decodeInvoicePayload(raw string) (string, error) {
	var p invoicePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", err
	}
	if p.OrderID == "" {
		return "", domainErrors.NewValidationError("invoice_payload", "order id is missing")
	}
	return p.OrderID, nil
}

// ReconcilerService turns at-least-once gateway notifications into at most one
// ledger mutation per real-world event. It never reports failure to the caller.
type ReconcilerService struct {
	ledger       *LedgerService
	products     repository.ProductRepository
	inChat       InChatGateway
	cardPassword string
	inChatSecret string
	logger       *zap.Logger
}

// NewReconcilerService creates a new reconciler
func NewReconcilerService(
	ledger *LedgerService,
	products repository.ProductRepository,
	inChat InChatGateway,
	cardPassword string,
	inChatSecret string,
	logger *zap.Logger,
) *ReconcilerService {
	return &ReconcilerService{
		ledger:       ledger,
		products:     products,
		inChat:       inChat,
		cardPassword: cardPassword,
		inChatSecret: inChatSecret,
		logger:       logger,
	}
}

// HandleCardNotification reconciles one card gateway notification
func (s *ReconcilerService) HandleCardNotification(ctx context.Context, payload map[string]any) ReconcileOutcome {
	outcome := s.handleCardNotification(ctx, payload)
	metrics.RecordWebhook(string(entity.GatewayCard), string(outcome))
	return outcome
}

func (s *ReconcilerService) handleCardNotification(ctx context.Context, payload map[string]any) ReconcileOutcome {
	orderID := stringField(payload, "OrderId")
	providerStatus := stringField(payload, "Status")
	log := s.logger.With(
		zap.String("order_id", orderID),
		zap.String("provider_status", providerStatus),
	)

	if !signature.Verify(payload, s.cardPassword) {
		log.Warn("Card notification signature mismatch, dropping")
		return OutcomeInvalidSignature
	}

	txn, err := s.ledger.FindByGatewayOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			log.Warn("Card notification for unknown order")
			return OutcomeUnknownOrder
		}
		log.Error("Failed to resolve transaction", zap.Error(err))
		return OutcomeError
	}

	target := MapCardStatus(providerStatus)
	if skip, outcome := s.shouldSkip(txn, target); skip {
		log.Info("Card notification has no effect",
			zap.String("status", string(txn.Status)),
			zap.String("mapped_status", string(target)),
		)
		return outcome
	}

	in := TransitionInput{
		TransactionID: txn.ID,
		Target:        target,
		RebillToken:   stringField(payload, "RebillId"),
		Metadata: map[string]any{
			"provider_status": providerStatus,
		},
	}
	if paymentID := stringField(payload, "PaymentId"); paymentID != "" {
		in.GatewayTransactionID = &paymentID
	}
	if pan := stringField(payload, "Pan"); pan != "" {
		in.Metadata["card_pan"] = pan
		in.Metadata["card_exp_date"] = stringField(payload, "ExpDate")
	}
	if target == entity.TransactionStatusFailed {
		msg := cardErrorMessage(payload)
		in.ErrorMessage = &msg
	}
	if target == entity.TransactionStatusRefunded && isPartialCardStatus(providerStatus) {
		in.Metadata["partial_refund"] = true
		in.Metadata["refunded_amount_minor"] = stringField(payload, "Amount")
	}

	if _, err := s.ledger.Transition(ctx, in); err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			log.Info("Concurrent update won, notification absorbed", zap.Error(err))
			return OutcomeDuplicate
		}
		log.Error("Failed to apply card notification", zap.Error(err))
		monitoring.CapturePaymentError(err, string(entity.GatewayCard), "webhook", map[string]any{
			"order_id": orderID,
			"status":   providerStatus,
		})
		return OutcomeError
	}

	log.Info("Card notification applied", zap.String("transaction_id", txn.ID.String()))
	return OutcomeApplied
}

// shouldSkip decides whether a mapped status can still change the transaction
func (s *ReconcilerService) shouldSkip(txn *entity.Transaction, target entity.TransactionStatus) (bool, ReconcileOutcome) {
	if txn.Status == target {
		return true, OutcomeDuplicate
	}
	if txn.Status.CanTransitionTo(target) {
		return false, ""
	}
	if txn.Status.IsTerminal() {
		return true, OutcomeDuplicate
	}
	return true, OutcomeIgnored
}

// VerifyInChatSecret checks the secret token header of a bot update.
// An unset secret disables the check.
func (s *ReconcilerService) VerifyInChatSecret(token string) bool {
	if s.inChatSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.inChatSecret)) == 1
}

// HandleInChatUpdate reconciles one bot update carrying a payment event
func (s *ReconcilerService) HandleInChatUpdate(ctx context.Context, secretToken string, update InChatUpdate) ReconcileOutcome {
	var outcome ReconcileOutcome
	switch {
	case !s.VerifyInChatSecret(secretToken):
		s.logger.Warn("Bot update secret token mismatch, dropping")
		outcome = OutcomeInvalidSignature
	case update.PreCheckout != nil:
		outcome = s.handlePreCheckout(ctx, update.PreCheckout)
	case update.Payment != nil:
		outcome = s.handleSuccessfulPayment(ctx, update.Payment)
	default:
		outcome = OutcomeIgnored
	}
	metrics.RecordWebhook(string(entity.GatewayInChat), string(outcome))
	return outcome
}

func (s *ReconcilerService) handlePreCheckout(ctx context.Context, q *PreCheckoutQuery) ReconcileOutcome {
	log := s.logger.With(zap.String("query_id", q.ID), zap.Int64("amount", q.TotalAmount))

	reject := func(reason string) ReconcileOutcome {
		log.Warn("Pre-checkout rejected", zap.String("reason", reason))
		if err := s.inChat.AnswerPreCheckoutQuery(ctx, q.ID, false, reason); err != nil {
			log.Error("Failed to answer pre-checkout query", zap.Error(err))
			return OutcomeError
		}
		return OutcomeRejected
	}

	orderID, err := decodeInvoicePayload(q.InvoicePayload)
	if err != nil {
		return reject("Payment processing error. Please contact support.")
	}

	txn, err := s.ledger.FindByGatewayOrderID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrTransactionNotFound) {
			log.Error("Failed to resolve transaction", zap.Error(err))
		}
		return reject("Transaction not found. Please try again.")
	}
	if txn.Status.IsTerminal() {
		return reject("This payment has already been processed.")
	}

	product, err := s.products.GetByCode(ctx, txn.ProductCode)
	if err != nil || !product.Active {
		return reject("This product is no longer available.")
	}
	if q.TotalAmount != txn.AmountMinor || q.Currency != txn.Currency {
		log.Warn("Pre-checkout amount mismatch", zap.Int64("expected", txn.AmountMinor))
		return reject("Price mismatch. Please try again.")
	}

	if txn.Status == entity.TransactionStatusPending {
		_, err := s.ledger.Transition(ctx, TransitionInput{
			TransactionID: txn.ID,
			Target:        entity.TransactionStatusProcessing,
		})
		if err != nil && !errors.Is(err, domainErrors.ErrInvalidTransition) {
			log.Error("Failed to mark transaction processing", zap.Error(err))
			return reject("Payment processing error. Please contact support.")
		}
	}

	if err := s.inChat.AnswerPreCheckoutQuery(ctx, q.ID, true, ""); err != nil {
		log.Error("Failed to answer pre-checkout query", zap.Error(err))
		return OutcomeError
	}
	log.Info("Pre-checkout approved", zap.String("transaction_id", txn.ID.String()))
	return OutcomeApplied
}

func (s *ReconcilerService) handleSuccessfulPayment(ctx context.Context, p *SuccessfulPayment) ReconcileOutcome {
	log := s.logger.With(zap.String("charge_id", p.TelegramPaymentChargeID))

	orderID, err := decodeInvoicePayload(p.InvoicePayload)
	if err != nil {
		log.Error("Unreadable invoice payload", zap.Error(err))
		return OutcomeIgnored
	}

	txn, err := s.ledger.FindByGatewayOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTransactionNotFound) {
			log.Warn("Payment for unknown order", zap.String("order_id", orderID))
			return OutcomeUnknownOrder
		}
		log.Error("Failed to resolve transaction", zap.Error(err))
		return OutcomeError
	}
	if skip, outcome := s.shouldSkip(txn, entity.TransactionStatusCompleted); skip {
		log.Info("Payment already processed", zap.String("transaction_id", txn.ID.String()))
		return outcome
	}

	chargeID := p.TelegramPaymentChargeID
	_, err = s.ledger.Transition(ctx, TransitionInput{
		TransactionID:        txn.ID,
		Target:               entity.TransactionStatusCompleted,
		GatewayTransactionID: &chargeID,
		Metadata: map[string]any{
			"telegram_user_id":   p.FromUserID,
			"provider_charge_id": p.ProviderPaymentChargeID,
			"paid_amount":        p.TotalAmount,
		},
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidTransition) {
			return OutcomeDuplicate
		}
		log.Error("Failed to apply payment", zap.Error(err))
		monitoring.CapturePaymentError(err, string(entity.GatewayInChat), "successful_payment", map[string]any{
			"order_id":  orderID,
			"charge_id": chargeID,
		})
		return OutcomeError
	}

	log.Info("In-chat payment applied", zap.String("transaction_id", txn.ID.String()))
	return OutcomeApplied
}

// cardErrorMessage picks the most specific rejection text of a notification
func cardErrorMessage(payload map[string]any) string {
	for _, key := range []string{"Details", "Message"} {
		if msg := stringField(payload, key); msg != "" {
			return msg
		}
	}
	if code := stringField(payload, "ErrorCode"); code != "" && code != "0" {
		return "payment rejected, error code " + code
	}
	return "payment rejected"
}

// stringField reads a scalar notification field as text
func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
