//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
	"github.com/bivex/paygate/internal/domain/service"
	infrarepo "github.com/bivex/paygate/internal/infrastructure/persistence/repository"
	"github.com/bivex/paygate/internal/testutil"
)

func TestRepositoriesIntegration(t *testing.T) {
	ctx := context.Background()

	dbContainer, err := testutil.SetupTestDBContainer(ctx, t)
	require.NoError(t, err)
	defer dbContainer.Teardown(ctx, t)

	pool := dbContainer.Pool
	txManager := infrarepo.NewTxManager(pool)
	transactions := infrarepo.NewTransactionRepository(pool)
	subscriptions := infrarepo.NewSubscriptionRepository(pool)
	grants := infrarepo.NewBenefitGrantRepository(pool)
	products := infrarepo.NewProductRepository(pool)
	users := infrarepo.NewUserRepository(pool)

	t.Run("Product catalog is seeded", func(t *testing.T) {
		product, err := products.GetByCode(ctx, "premium_month")
		require.NoError(t, err)
		assert.True(t, product.IsSubscription())
		assert.Equal(t, 30, product.PeriodDays())

		price, ok := product.PriceIn("RUB")
		assert.True(t, ok)
		assert.Equal(t, int64(29900), price)

		_, err = products.GetByCode(ctx, "missing")
		assert.ErrorIs(t, err, domainErrors.ErrProductNotFound)
	})

	t.Run("GetChatID distinguishes unbound users", func(t *testing.T) {
		chatID := int64(777001)
		bound := testutil.CreateUser(t, ctx, pool, &chatID)
		unbound := testutil.CreateUser(t, ctx, pool, nil)

		got, err := users.GetChatID(ctx, bound)
		require.NoError(t, err)
		assert.Equal(t, chatID, got)

		_, err = users.GetChatID(ctx, unbound)
		assert.ErrorIs(t, err, domainErrors.ErrChatIdentityMissing)

		_, err = users.GetChatID(ctx, uuid.New())
		assert.ErrorIs(t, err, domainErrors.ErrChatIdentityMissing)
	})

	t.Run("Transaction create and lookups", func(t *testing.T) {
		userID := testutil.CreateUser(t, ctx, pool, nil)
		txn := entity.NewTransaction(userID, entity.GatewayCard, "credits_100", 19900, "RUB", false, nil)
		txn.Metadata["source"] = "test"
		require.NoError(t, transactions.Create(ctx, txn))

		byID, err := transactions.GetByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TransactionStatusPending, byID.Status)
		assert.Equal(t, "test", byID.Metadata["source"])

		byOrder, err := transactions.GetByGatewayOrderID(ctx, txn.GatewayOrderID)
		require.NoError(t, err)
		assert.Equal(t, txn.ID, byOrder.ID)

		_, err = transactions.GetByGatewayOrderID(ctx, "unknown-order")
		assert.ErrorIs(t, err, domainErrors.ErrTransactionNotFound)

		paymentID := "700001"
		url := "https://securepay.example/new/abc"
		require.NoError(t, transactions.AttachGatewayPayment(ctx, txn.ID, &paymentID, &url))
		attached, err := transactions.GetByID(ctx, txn.ID)
		require.NoError(t, err)
		require.NotNil(t, attached.GatewayTransactionID)
		assert.Equal(t, paymentID, *attached.GatewayTransactionID)
		assert.Equal(t, url, *attached.PaymentURL)
	})

	t.Run("CompareAndSetStatus rejects stale sources", func(t *testing.T) {
		userID := testutil.CreateUser(t, ctx, pool, nil)
		txn := entity.NewTransaction(userID, entity.GatewayCard, "credits_100", 19900, "RUB", false, nil)
		require.NoError(t, transactions.Create(ctx, txn))

		updated, err := transactions.CompareAndSetStatus(ctx, repository.StatusUpdate{
			TransactionID: txn.ID,
			From:          entity.SourcesFor(entity.TransactionStatusCompleted),
			To:            entity.TransactionStatusCompleted,
			Metadata:      map[string]any{"provider_status": "CONFIRMED"},
			At:            time.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, entity.TransactionStatusCompleted, updated.Status)
		assert.NotNil(t, updated.CompletedAt)
		assert.Equal(t, "CONFIRMED", updated.Metadata["provider_status"])

		_, err = transactions.CompareAndSetStatus(ctx, repository.StatusUpdate{
			TransactionID: txn.ID,
			From:          entity.SourcesFor(entity.TransactionStatusFailed),
			To:            entity.TransactionStatusFailed,
			At:            time.Now(),
		})
		assert.ErrorIs(t, err, domainErrors.ErrInvalidTransition)
	})

	t.Run("Benefit grant is written once", func(t *testing.T) {
		userID := testutil.CreateUser(t, ctx, pool, nil)
		txn := entity.NewTransaction(userID, entity.GatewayCard, "credits_100", 19900, "RUB", false, nil)
		require.NoError(t, transactions.Create(ctx, txn))
		product, err := products.GetByCode(ctx, "credits_100")
		require.NoError(t, err)

		created, err := grants.Create(ctx, entity.NewBenefitGrant(txn, product))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = grants.Create(ctx, entity.NewBenefitGrant(txn, product))
		require.NoError(t, err)
		assert.False(t, created)

		require.NoError(t, grants.AddCredits(ctx, userID, 100))
		credits, err := users.GetCredits(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 100, credits)
	})

	t.Run("Subscription billing bookkeeping", func(t *testing.T) {
		userID := testutil.CreateUser(t, ctx, pool, nil)
		paidAt := time.Now().Add(-31 * 24 * time.Hour).UTC().Truncate(time.Microsecond)
		sub := entity.NewSubscription(userID, "premium_month", "rebill-1", 29900, "RUB", 30, paidAt)
		require.NoError(t, subscriptions.Create(ctx, sub))

		due, err := subscriptions.ListDue(ctx, time.Now(), 10)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(due))
		for _, d := range due {
			ids = append(ids, d.ID)
		}
		assert.Contains(t, ids, sub.ID)

		retryAt := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond)
		failed, err := subscriptions.RecordFailure(ctx, sub.ID, 2, retryAt)
		require.NoError(t, err)
		assert.Equal(t, 1, failed.FailedAttempts)
		assert.Equal(t, entity.StatusActive, failed.Status)
		assert.True(t, failed.NextBillingDate.Equal(retryAt))

		suspended, err := subscriptions.RecordFailure(ctx, sub.ID, 2, retryAt.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, entity.StatusSuspended, suspended.Status)
		assert.True(t, suspended.NextBillingDate.Equal(retryAt))

		_, err = subscriptions.RecordFailure(ctx, sub.ID, 2, retryAt)
		assert.ErrorIs(t, err, domainErrors.ErrSubscriptionNotActive)

		advanced, err := subscriptions.AdvanceBilling(ctx, sub.ID, 30, time.Now())
		require.NoError(t, err)
		assert.False(t, advanced)
	})

	t.Run("Renewal claim admits one holder until settled", func(t *testing.T) {
		userID := testutil.CreateUser(t, ctx, pool, nil)
		paidAt := time.Now().Add(-31 * 24 * time.Hour).UTC().Truncate(time.Microsecond)
		sub := entity.NewSubscription(userID, "premium_month", "rebill-3", 29900, "RUB", 30, paidAt)
		require.NoError(t, subscriptions.Create(ctx, sub))

		now := time.Now()
		lockUntil := now.Add(time.Hour)

		const workers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		claims := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := subscriptions.ClaimForCharge(ctx, sub.ID, now, lockUntil)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					claims++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, claims)

		due, err := subscriptions.ListDue(ctx, now, 100)
		require.NoError(t, err)
		for _, d := range due {
			assert.NotEqual(t, sub.ID, d.ID)
		}

		txn := entity.NewTransaction(userID, entity.GatewayCard, "premium_month", 29900, "RUB", true, &sub.ID)
		require.NoError(t, transactions.Create(ctx, txn))
		open, err := transactions.HasOpenRecurring(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, open)

		_, ok, err := subscriptions.ClaimForCharge(ctx, sub.ID, lockUntil.Add(time.Second), lockUntil.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, ok, "an expired claim can be taken over")

		advanced, err := subscriptions.AdvanceBilling(ctx, sub.ID, 30, now)
		require.NoError(t, err)
		assert.True(t, advanced)
		got, err := subscriptions.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ChargeLockedUntil)

		_, err = transactions.CompareAndSetStatus(ctx, repository.StatusUpdate{
			TransactionID: txn.ID,
			From:          []entity.TransactionStatus{entity.TransactionStatusPending},
			To:            entity.TransactionStatusCompleted,
			At:            now,
		})
		require.NoError(t, err)
		open, err = transactions.HasOpenRecurring(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, open)
	})

	t.Run("Cancel keeps the paid period", func(t *testing.T) {
		userID := testutil.CreateUser(t, ctx, pool, nil)
		sub := entity.NewSubscription(userID, "premium_month", "rebill-2", 29900, "RUB", 30, time.Now())
		require.NoError(t, subscriptions.Create(ctx, sub))

		cancelled, err := subscriptions.Cancel(ctx, sub.ID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.True(t, cancelled.HasAccess(time.Now()))

		again, err := subscriptions.Cancel(ctx, sub.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, cancelled.CancelledAt.Unix(), again.CancelledAt.Unix())

		_, err = subscriptions.Cancel(ctx, uuid.New(), time.Now())
		assert.ErrorIs(t, err, domainErrors.ErrSubscriptionNotFound)
	})

	t.Run("Concurrent completion grants once", func(t *testing.T) {
		ledger := service.NewLedgerService(txManager, transactions, subscriptions, grants, products,
			nil, service.DefaultBillingPolicy(), zap.NewNop())

		userID := testutil.CreateUser(t, ctx, pool, nil)
		txn, err := ledger.Create(ctx, service.CreateTransactionInput{
			UserID:      userID,
			Gateway:     entity.GatewayCard,
			ProductCode: "credits_100",
			AmountMinor: 19900,
			Currency:    "RUB",
		})
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = ledger.Transition(ctx, service.TransitionInput{
					TransactionID: txn.ID,
					Target:        entity.TransactionStatusCompleted,
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, domainErrors.ErrInvalidTransition), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		credits, err := users.GetCredits(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 100, credits)
	})

	t.Run("First recurring charge creates the subscription", func(t *testing.T) {
		ledger := service.NewLedgerService(txManager, transactions, subscriptions, grants, products,
			nil, service.DefaultBillingPolicy(), zap.NewNop())

		userID := testutil.CreateUser(t, ctx, pool, nil)
		txn, err := ledger.Create(ctx, service.CreateTransactionInput{
			UserID:      userID,
			Gateway:     entity.GatewayCard,
			ProductCode: "premium_month",
			AmountMinor: 29900,
			Currency:    "RUB",
			IsRecurrent: true,
		})
		require.NoError(t, err)

		done, err := ledger.Transition(ctx, service.TransitionInput{
			TransactionID: txn.ID,
			Target:        entity.TransactionStatusCompleted,
			RebillToken:   "rebill-first",
		})
		require.NoError(t, err)
		require.NotNil(t, done.SubscriptionID)

		stored, err := transactions.GetByID(ctx, txn.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.SubscriptionID)

		sub, err := subscriptions.GetByID(ctx, *stored.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, "rebill-first", sub.RebillToken)
		assert.Equal(t, entity.StatusActive, sub.Status)
		assert.True(t, sub.NextBillingDate.After(time.Now().Add(29*24*time.Hour)))
	})
}
