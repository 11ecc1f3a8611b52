package dto

import "time"

// ========== CHARGE DTOs ==========

// CreateChargeRequest represents a request to buy a product
type CreateChargeRequest struct {
	ProductCode string `json:"product_code" binding:"required"`
	Gateway     string `json:"gateway" binding:"required,oneof=card in_chat"`
	SuccessURL  string `json:"success_url,omitempty" binding:"omitempty,url"`
	FailURL     string `json:"fail_url,omitempty" binding:"omitempty,url"`
}

// ChargeResponse has the same shape for every gateway
type ChargeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	InvoiceLink   string `json:"invoice_link,omitempty"`
	Error         string `json:"error,omitempty"`
}

// TransactionResponse is the status-polling view of a transaction
type TransactionResponse struct {
	ID             string     `json:"id"`
	Gateway        string     `json:"gateway"`
	ProductCode    string     `json:"product_code"`
	Amount         string     `json:"amount"`
	AmountMinor    int64      `json:"amount_minor"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	PaymentURL     string     `json:"payment_url,omitempty"`
	IsRecurrent    bool       `json:"is_recurrent"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RefundRequest represents an admin refund
type RefundRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ========== SUBSCRIPTION DTOs ==========

// SubscriptionResponse represents a subscription response
type SubscriptionResponse struct {
	ID              string     `json:"id"`
	ProductCode     string     `json:"product_code"`
	Status          string     `json:"status"`
	Amount          string     `json:"amount"`
	NextBillingDate time.Time  `json:"next_billing_date"`
	FailedAttempts  int        `json:"failed_attempts"`
	HasAccess       bool       `json:"has_access"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

// ========== TELEGRAM UPDATE DTOs ==========

// TelegramUser is the sender of an update
type TelegramUser struct {
	ID int64 `json:"id"`
}

// TelegramPreCheckoutQuery mirrors the Bot API pre_checkout_query object
type TelegramPreCheckoutQuery struct {
	ID             string       `json:"id"`
	From           TelegramUser `json:"from"`
	Currency       string       `json:"currency"`
	TotalAmount    int64        `json:"total_amount"`
	InvoicePayload string       `json:"invoice_payload"`
}

// TelegramSuccessfulPayment mirrors the Bot API successful_payment object
type TelegramSuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int64  `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id"`
}

// TelegramMessage carries the fields of a message the payment flow reads
type TelegramMessage struct {
	From              *TelegramUser              `json:"from,omitempty"`
	SuccessfulPayment *TelegramSuccessfulPayment `json:"successful_payment,omitempty"`
}

// TelegramUpdate is an incoming bot update. Non-payment updates are ignored.
type TelegramUpdate struct {
	UpdateID         int64                     `json:"update_id"`
	PreCheckoutQuery *TelegramPreCheckoutQuery `json:"pre_checkout_query,omitempty"`
	Message          *TelegramMessage          `json:"message,omitempty"`
}
