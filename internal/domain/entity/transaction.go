package entity

import (
	"time"

	"github.com/google/uuid"
)

type Gateway string

const (
	GatewayCard   Gateway = "card"
	GatewayInChat Gateway = "in_chat"
)

// IsValid returns true for a supported gateway
func (g Gateway) IsValid() bool {
	return g == GatewayCard || g == GatewayInChat
}

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

// transitions is the complete lifecycle graph. Any edge missing here is rejected.
var transitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusProcessing,
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusProcessing: {
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusCompleted: {
		TransactionStatusRefunded,
	},
}

// CanTransitionTo reports whether from -> to is an edge of the lifecycle graph
func (s TransactionStatus) CanTransitionTo(to TransactionStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the charge outcome is decided.
// Completed is terminal but still admits the refund edge.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// IsValid returns true for a known status
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// SourcesFor returns every status from which target can be reached
func SourcesFor(target TransactionStatus) []TransactionStatus {
	var sources []TransactionStatus
	for _, from := range []TransactionStatus{
		TransactionStatusPending,
		TransactionStatusProcessing,
		TransactionStatusCompleted,
	} {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// Transaction is one attempted charge
type Transaction struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Gateway              Gateway
	ProductCode          string
	AmountMinor          int64
	Currency             string
	Status               TransactionStatus
	GatewayOrderID       string
	GatewayTransactionID *string
	PaymentURL           *string
	IsRecurrent          bool
	SubscriptionID       *uuid.UUID
	ErrorMessage         *string
	Metadata             map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
}

// NewTransaction creates a pending transaction with a fresh gateway order id
func NewTransaction(userID uuid.UUID, gateway Gateway, productCode string, amountMinor int64, currency string, isRecurrent bool, subscriptionID *uuid.UUID) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:             uuid.New(),
		UserID:         userID,
		Gateway:        gateway,
		ProductCode:    productCode,
		AmountMinor:    amountMinor,
		Currency:       currency,
		Status:         TransactionStatusPending,
		GatewayOrderID: uuid.NewString(),
		IsRecurrent:    isRecurrent,
		SubscriptionID: subscriptionID,
		Metadata:       map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsCompleted returns true if the charge went through
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// Error returns the stored provider message or an empty string
func (t *Transaction) Error() string {
	if t.ErrorMessage == nil {
		return ""
	}
	return *t.ErrorMessage
}
