package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bivex/paygate/internal/domain/entity"
)

func intPtr(v int) *int { return &v }

func TestTransactionStateMachine(t *testing.T) {
	allowed := map[[2]entity.TransactionStatus]bool{
		{entity.TransactionStatusPending, entity.TransactionStatusProcessing}:    true,
		{entity.TransactionStatusPending, entity.TransactionStatusCompleted}:     true,
		{entity.TransactionStatusPending, entity.TransactionStatusFailed}:        true,
		{entity.TransactionStatusPending, entity.TransactionStatusCancelled}:     true,
		{entity.TransactionStatusProcessing, entity.TransactionStatusCompleted}:  true,
		{entity.TransactionStatusProcessing, entity.TransactionStatusFailed}:     true,
		{entity.TransactionStatusProcessing, entity.TransactionStatusCancelled}:  true,
		{entity.TransactionStatusCompleted, entity.TransactionStatusRefunded}:    true,
	}
	all := []entity.TransactionStatus{
		entity.TransactionStatusPending,
		entity.TransactionStatusProcessing,
		entity.TransactionStatusCompleted,
		entity.TransactionStatusFailed,
		entity.TransactionStatusCancelled,
		entity.TransactionStatusRefunded,
	}

	t.Run("only graph edges are allowed", func(t *testing.T) {
		for _, from := range all {
			for _, to := range all {
				assert.Equal(t, allowed[[2]entity.TransactionStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("nothing leads back to pending", func(t *testing.T) {
		assert.Empty(t, entity.SourcesFor(entity.TransactionStatusPending))
	})

	t.Run("sources for completed", func(t *testing.T) {
		assert.ElementsMatch(t,
			[]entity.TransactionStatus{entity.TransactionStatusPending, entity.TransactionStatusProcessing},
			entity.SourcesFor(entity.TransactionStatusCompleted))
	})

	t.Run("refund only from completed", func(t *testing.T) {
		assert.Equal(t,
			[]entity.TransactionStatus{entity.TransactionStatusCompleted},
			entity.SourcesFor(entity.TransactionStatusRefunded))
	})

	t.Run("terminal statuses", func(t *testing.T) {
		assert.False(t, entity.TransactionStatusPending.IsTerminal())
		assert.False(t, entity.TransactionStatusProcessing.IsTerminal())
		assert.True(t, entity.TransactionStatusCompleted.IsTerminal())
		assert.True(t, entity.TransactionStatusFailed.IsTerminal())
		assert.True(t, entity.TransactionStatusCancelled.IsTerminal())
		assert.True(t, entity.TransactionStatusRefunded.IsTerminal())
	})
}

func TestNewTransaction(t *testing.T) {
	userID := uuid.New()
	a := entity.NewTransaction(userID, entity.GatewayCard, "credits_100", 19900, "RUB", false, nil)
	b := entity.NewTransaction(userID, entity.GatewayCard, "credits_100", 19900, "RUB", false, nil)

	assert.Equal(t, entity.TransactionStatusPending, a.Status)
	assert.NotEmpty(t, a.GatewayOrderID)
	assert.NotEqual(t, a.GatewayOrderID, b.GatewayOrderID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Nil(t, a.CompletedAt)
	assert.Empty(t, a.Error())
}

func TestSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	t.Run("NewSubscription schedules the next period", func(t *testing.T) {
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, now)

		assert.Equal(t, entity.StatusActive, sub.Status)
		assert.Equal(t, now.AddDate(0, 0, 30), sub.NextBillingDate)
		assert.Equal(t, 0, sub.FailedAttempts)
		assert.False(t, sub.IsDue(now))
		assert.True(t, sub.IsDue(now.AddDate(0, 0, 30)))
	})

	t.Run("AdvancePeriod strictly increases the billing date and resets failures", func(t *testing.T) {
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, now)
		sub.FailedAttempts = 2
		before := sub.NextBillingDate

		sub.AdvancePeriod(30, before.Add(time.Hour))

		assert.True(t, sub.NextBillingDate.After(before))
		assert.Equal(t, 0, sub.FailedAttempts)
		assert.NotNil(t, sub.LastChargeDate)
	})

	t.Run("RecordFailure retries then suspends", func(t *testing.T) {
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, now)
		sub.FailedAttempts = 1

		sub.RecordFailure(3, 24*time.Hour, now)
		assert.Equal(t, 2, sub.FailedAttempts)
		assert.Equal(t, entity.StatusActive, sub.Status)
		assert.Equal(t, now.Add(24*time.Hour), sub.NextBillingDate)

		frozen := sub.NextBillingDate
		sub.RecordFailure(3, 24*time.Hour, now.Add(24*time.Hour))
		assert.Equal(t, 3, sub.FailedAttempts)
		assert.Equal(t, entity.StatusSuspended, sub.Status)
		assert.Equal(t, frozen, sub.NextBillingDate)
		assert.False(t, sub.HasAccess(now))
	})

	t.Run("charge lock expires and settling releases it", func(t *testing.T) {
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, now)
		until := now.Add(time.Hour)
		sub.ChargeLockedUntil = &until

		assert.True(t, sub.IsChargeLocked(now))
		assert.False(t, sub.IsChargeLocked(until))

		sub.AdvancePeriod(30, now)
		assert.Nil(t, sub.ChargeLockedUntil)

		sub.ChargeLockedUntil = &until
		sub.RecordFailure(3, 24*time.Hour, now)
		assert.Nil(t, sub.ChargeLockedUntil)
	})

	t.Run("cancelled keeps access until period end", func(t *testing.T) {
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, now)
		next := sub.NextBillingDate

		sub.Cancel(now.Add(time.Hour))

		assert.Equal(t, entity.StatusCancelled, sub.Status)
		assert.Equal(t, next, sub.NextBillingDate)
		assert.NotNil(t, sub.CancelledAt)
		assert.True(t, sub.HasAccess(now.Add(2*time.Hour)))
		assert.False(t, sub.HasAccess(next.Add(time.Second)))
		assert.False(t, sub.IsDue(next))
	})
}

func TestProduct(t *testing.T) {
	tier := "premium"
	sub := &entity.Product{Code: "premium_month", SubscriptionPeriodDays: intPtr(30), SubscriptionTier: &tier}
	pack := &entity.Product{Code: "credits_100", CreditsAmount: intPtr(100), PriceMinor: map[string]int64{"RUB": 19900, "XTR": 100}}

	assert.True(t, sub.IsSubscription())
	assert.Equal(t, 30, sub.PeriodDays())
	assert.False(t, pack.IsSubscription())
	assert.Equal(t, 100, pack.Credits())
	assert.Equal(t, 0, sub.Credits())

	price, ok := pack.PriceIn("XTR")
	assert.True(t, ok)
	assert.Equal(t, int64(100), price)
	_, ok = pack.PriceIn("USD")
	assert.False(t, ok)

	txn := entity.NewTransaction(uuid.New(), entity.GatewayCard, pack.Code, 19900, "RUB", false, nil)
	grant := entity.NewBenefitGrant(txn, pack)
	assert.Equal(t, txn.ID, grant.TransactionID)
	assert.Equal(t, 100, grant.Credits)
}
