package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusSuspended SubscriptionStatus = "suspended"
)

// Subscription is a recurring billing agreement backed by a rebill token
type Subscription struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	ProductCode     string
	RebillToken     string
	AmountMinor     int64
	Currency        string
	Status          SubscriptionStatus
	NextBillingDate time.Time
	LastChargeDate  *time.Time
	FailedAttempts  int
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// ChargeLockedUntil is set while a renewal charge holds the subscription
	ChargeLockedUntil *time.Time
}

// NewSubscription creates an active subscription whose first period was paid at paidAt
func NewSubscription(userID uuid.UUID, productCode, rebillToken string, amountMinor int64, currency string, periodDays int, paidAt time.Time) *Subscription {
	return &Subscription{
		ID:              uuid.New(),
		UserID:          userID,
		ProductCode:     productCode,
		RebillToken:     rebillToken,
		AmountMinor:     amountMinor,
		Currency:        currency,
		Status:          StatusActive,
		NextBillingDate: paidAt.AddDate(0, 0, periodDays),
		LastChargeDate:  &paidAt,
		CreatedAt:       paidAt,
		UpdatedAt:       paidAt,
	}
}

// IsActive returns true if the subscription is still being billed
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsDue returns true if the subscription should be charged at now
func (s *Subscription) IsDue(now time.Time) bool {
	return s.IsActive() && !s.NextBillingDate.After(now)
}

// IsChargeLocked returns true while another renewal attempt holds the subscription
func (s *Subscription) IsChargeLocked(now time.Time) bool {
	return s.ChargeLockedUntil != nil && s.ChargeLockedUntil.After(now)
}

// HasAccess returns true while the paid period lasts. Cancelled subscriptions
// keep access until the already paid period elapses; suspended ones lose it.
func (s *Subscription) HasAccess(now time.Time) bool {
	switch s.Status {
	case StatusActive:
		return true
	case StatusCancelled:
		return s.NextBillingDate.After(now)
	default:
		return false
	}
}

// AdvancePeriod records a successful charge
func (s *Subscription) AdvancePeriod(periodDays int, chargedAt time.Time) {
	base := s.NextBillingDate
	if base.Before(chargedAt) {
		base = chargedAt
	}
	s.NextBillingDate = base.AddDate(0, 0, periodDays)
	s.LastChargeDate = &chargedAt
	s.FailedAttempts = 0
	s.UpdatedAt = chargedAt
	s.ChargeLockedUntil = nil
}

// RecordFailure increments the failure counter and either suspends the
// subscription or schedules a retry.
func (s *Subscription) RecordFailure(maxAttempts int, retryDelay time.Duration, now time.Time) {
	s.FailedAttempts++
	s.UpdatedAt = now
	s.ChargeLockedUntil = nil
	if s.FailedAttempts >= maxAttempts {
		s.Status = StatusSuspended
		return
	}
	s.NextBillingDate = now.Add(retryDelay)
}

// Cancel stops future billing but leaves NextBillingDate so access expiry stays computable
func (s *Subscription) Cancel(now time.Time) {
	s.Status = StatusCancelled
	s.CancelledAt = &now
	s.UpdatedAt = now
}
