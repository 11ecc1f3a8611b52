package entity

import (
	"time"

	"github.com/google/uuid"
)

// BenefitGrant records that a completed transaction's credits or subscription
// benefit was handed out. TransactionID is unique, so a grant happens at most once.
type BenefitGrant struct {
	ID               uuid.UUID
	TransactionID    uuid.UUID
	UserID           uuid.UUID
	ProductCode      string
	Credits          int
	SubscriptionTier *string
	CreatedAt        time.Time
}

// NewBenefitGrant creates the grant for a completed transaction
func NewBenefitGrant(txn *Transaction, product *Product) *BenefitGrant {
	return &BenefitGrant{
		ID:               uuid.New(),
		TransactionID:    txn.ID,
		UserID:           txn.UserID,
		ProductCode:      product.Code,
		Credits:          product.Credits(),
		SubscriptionTier: product.SubscriptionTier,
		CreatedAt:        time.Now(),
	}
}
