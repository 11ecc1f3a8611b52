package service

import (
	"context"
)

// CardPayment is the acquiring gateway's view of a payment
type CardPayment struct {
	PaymentID  string
	PaymentURL string
	Status     string
	RebillID   string
}

// CardInitRequest opens a hosted payment page
type CardInitRequest struct {
	OrderID     string
	AmountMinor int64
	Description string
	CustomerKey string
	Recurrent   bool
	SuccessURL  string
	FailURL     string
	Data        map[string]string
}

// CardRecurringRequest charges a saved card without user interaction
type CardRecurringRequest struct {
	OrderID     string
	AmountMinor int64
	Description string
	CustomerKey string
	RebillID    string
}

// CardGateway is the card-acquiring adapter. Every request it sends is signed.
type CardGateway interface {
	Init(ctx context.Context, req CardInitRequest) (*CardPayment, error)
	ChargeRecurring(ctx context.Context, req CardRecurringRequest) (*CardPayment, error)
	Cancel(ctx context.Context, paymentID string, amountMinor int64) (*CardPayment, error)
}

// InvoiceRequest describes an in-chat invoice
type InvoiceRequest struct {
	Title       string
	Description string
	Payload     string
	AmountStars int64
}

// InChatGateway is the in-chat micro-payment adapter. The host platform signs
// its own invoices, so nothing here goes through local signing.
type InChatGateway interface {
	CreateInvoiceLink(ctx context.Context, req InvoiceRequest) (string, error)
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
	RefundStarPayment(ctx context.Context, chatUserID int64, chargeID string) error
}
