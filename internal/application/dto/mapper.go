package dto

import (
	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/service"
	"github.com/bivex/paygate/internal/domain/valueobject"
)

// NewChargeResponse converts a gateway facade result
func NewChargeResponse(r *service.ChargeResult) *ChargeResponse {
	resp := &ChargeResponse{
		Success:     r.Success,
		PaymentURL:  r.PaymentURL,
		InvoiceLink: r.InvoiceLink,
		Error:       r.Error,
	}
	if r.TransactionID != uuid.Nil {
		resp.TransactionID = r.TransactionID.String()
	}
	return resp
}

// NewTransactionResponse converts a transaction
func NewTransactionResponse(t *entity.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:          t.ID.String(),
		Gateway:     string(t.Gateway),
		ProductCode: t.ProductCode,
		Amount:      formatMoney(t.AmountMinor, t.Currency),
		AmountMinor: t.AmountMinor,
		Currency:    t.Currency,
		Status:      string(t.Status),
		IsRecurrent: t.IsRecurrent,
		Error:       t.Error(),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.PaymentURL != nil {
		resp.PaymentURL = *t.PaymentURL
	}
	if t.SubscriptionID != nil {
		resp.SubscriptionID = t.SubscriptionID.String()
	}
	return resp
}

// NewSubscriptionResponse converts a subscription
func NewSubscriptionResponse(s *entity.Subscription, hasAccess bool) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:              s.ID.String(),
		ProductCode:     s.ProductCode,
		Status:          string(s.Status),
		Amount:          formatMoney(s.AmountMinor, s.Currency),
		NextBillingDate: s.NextBillingDate,
		FailedAttempts:  s.FailedAttempts,
		HasAccess:       hasAccess,
		CancelledAt:     s.CancelledAt,
	}
}

// ToDomain extracts the payment event of the update, if any
func (u *TelegramUpdate) ToDomain() service.InChatUpdate {
	var out service.InChatUpdate
	if q := u.PreCheckoutQuery; q != nil {
		out.PreCheckout = &service.PreCheckoutQuery{
			ID:             q.ID,
			FromUserID:     q.From.ID,
			Currency:       q.Currency,
			TotalAmount:    q.TotalAmount,
			InvoicePayload: q.InvoicePayload,
		}
	}
	if m := u.Message; m != nil && m.SuccessfulPayment != nil {
		p := m.SuccessfulPayment
		payment := &service.SuccessfulPayment{
			Currency:                p.Currency,
			TotalAmount:             p.TotalAmount,
			InvoicePayload:          p.InvoicePayload,
			TelegramPaymentChargeID: p.TelegramPaymentChargeID,
			ProviderPaymentChargeID: p.ProviderPaymentChargeID,
		}
		if m.From != nil {
			payment.FromUserID = m.From.ID
		}
		out.Payment = payment
	}
	return out
}

func formatMoney(amountMinor int64, currency string) string {
	money, err := valueobject.NewMoney(amountMinor, currency)
	if err != nil {
		return ""
	}
	return money.String()
}
