package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
	"github.com/bivex/paygate/internal/mocks"
)

func dueSubscription(h *harness, failedAttempts int) *entity.Subscription {
	sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, time.Now().AddDate(0, 0, -31))
	sub.FailedAttempts = failedAttempts
	h.store.putSubscription(sub)
	return sub
}

func rebill(id string) interface{} {
	return mock.MatchedBy(func(req service.CardRecurringRequest) bool { return req.RebillID == id })
}

func TestBillingService_RunSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("successful charge advances the billing date and resets failures", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 1)
		h.card.On("ChargeRecurring", mock.Anything, rebill("145919")).
			Return(&service.CardPayment{PaymentID: "9001", Status: "CONFIRMED"}, nil).Once()

		report := h.billing.RunSweep(ctx)

		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeCharged, report.Results[0].Outcome)
		stored := h.store.subscription(sub.ID)
		assert.True(t, stored.NextBillingDate.After(sub.NextBillingDate))
		assert.True(t, stored.NextBillingDate.After(time.Now()))
		assert.Equal(t, 0, stored.FailedAttempts)

		txn := h.store.transaction(*report.Results[0].TransactionID)
		assert.Equal(t, entity.TransactionStatusCompleted, txn.Status)
		assert.True(t, txn.IsRecurrent)
		assert.Equal(t, "9001", *txn.GatewayTransactionID)
	})

	t.Run("billed subscription drops out of the next sweep", func(t *testing.T) {
		h := newHarness(t)
		dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(&service.CardPayment{PaymentID: "9002", Status: "CONFIRMED"}, nil).Once()

		first := h.billing.RunSweep(ctx)
		second := h.billing.RunSweep(ctx)

		assert.Len(t, first.Results, 1)
		assert.Empty(t, second.Results)
	})

	t.Run("failure schedules a retry the next day", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(nil, domainErrors.NewGatewayError("card", "1051", "Недостаточно средств")).Once()

		before := time.Now()
		report := h.billing.RunSweep(ctx)

		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeFailed, report.Results[0].Outcome)
		assert.Equal(t, "Недостаточно средств", report.Results[0].Error)

		stored := h.store.subscription(sub.ID)
		assert.Equal(t, 1, stored.FailedAttempts)
		assert.Equal(t, entity.StatusActive, stored.Status)
		assert.WithinDuration(t, before.Add(24*time.Hour), stored.NextBillingDate, time.Minute)

		txn := h.store.transaction(*report.Results[0].TransactionID)
		assert.Equal(t, entity.TransactionStatusFailed, txn.Status)
	})

	t.Run("third consecutive failure suspends without rescheduling", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 2)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(&service.CardPayment{PaymentID: "9003", Status: "REJECTED"}, nil).Once()

		report := h.billing.RunSweep(ctx)

		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeSuspended, report.Results[0].Outcome)
		stored := h.store.subscription(sub.ID)
		assert.Equal(t, 3, stored.FailedAttempts)
		assert.Equal(t, entity.StatusSuspended, stored.Status)
		assert.Equal(t, sub.NextBillingDate, stored.NextBillingDate)
	})

	t.Run("one failing subscription does not stop the others", func(t *testing.T) {
		h := newHarness(t)
		broken := entity.NewSubscription(uuid.New(), "discontinued", "1", 100, "RUB", 30, time.Now().AddDate(0, 0, -31))
		h.store.putSubscription(broken)
		good := dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, rebill(good.RebillToken)).
			Return(&service.CardPayment{PaymentID: "9004", Status: "CONFIRMED"}, nil).Once()

		report := h.billing.RunSweep(ctx)

		require.Len(t, report.Results, 2)
		assert.Equal(t, 1, report.Count(service.ChargeOutcomeCharged))
		assert.Equal(t, 1, report.Count(service.ChargeOutcomeError))
		assert.Empty(t, report.Error)
	})

	t.Run("non-final gateway status waits for the notification", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(&service.CardPayment{PaymentID: "9005", Status: "AUTHORIZING"}, nil).Once()

		report := h.billing.RunSweep(ctx)

		assert.Equal(t, service.ChargeOutcomePending, report.Results[0].Outcome)
		stored := h.store.subscription(sub.ID)
		assert.Equal(t, sub.NextBillingDate, stored.NextBillingDate)
		assert.True(t, stored.IsChargeLocked(time.Now()))
	})

	t.Run("unsettled charge is not sent to the gateway again", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(&service.CardPayment{PaymentID: "9007", Status: "AUTHORIZING"}, nil).Once()

		first := h.billing.RunSweep(ctx)
		require.Len(t, first.Results, 1)
		require.Equal(t, service.ChargeOutcomePending, first.Results[0].Outcome)
		txnID := *first.Results[0].TransactionID

		second := h.billing.RunSweep(ctx)
		assert.Empty(t, second.Results)

		// Once the claim expires the open transaction still blocks a new charge
		stale := h.store.subscription(sub.ID)
		expired := time.Now().Add(-time.Minute)
		stale.ChargeLockedUntil = &expired
		h.store.putSubscription(&stale)

		third := h.billing.RunSweep(ctx)
		require.Len(t, third.Results, 1)
		assert.Equal(t, service.ChargeOutcomeSkipped, third.Results[0].Outcome)
		assert.Equal(t, "previous charge not settled", third.Results[0].Error)
		h.card.AssertNumberOfCalls(t, "ChargeRecurring", 1)

		_, err := h.ledger.Transition(ctx, service.TransitionInput{
			TransactionID: txnID,
			Target:        entity.TransactionStatusCompleted,
		})
		require.NoError(t, err)

		settled := h.store.subscription(sub.ID)
		assert.Nil(t, settled.ChargeLockedUntil)
		assert.True(t, settled.NextBillingDate.After(time.Now()))
		assert.Empty(t, h.billing.RunSweep(ctx).Results)
	})

	t.Run("overlapping sweeps charge a subscription once", func(t *testing.T) {
		h := newHarness(t)
		dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(&service.CardPayment{PaymentID: "9008", Status: "CONFIRMED"}, nil)

		const sweeps = 8
		var wg sync.WaitGroup
		reports := make([]*service.BatchReport, sweeps)
		for i := 0; i < sweeps; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				reports[i] = h.billing.RunSweep(ctx)
			}(i)
		}
		wg.Wait()

		charged := 0
		for _, r := range reports {
			charged += r.Count(service.ChargeOutcomeCharged)
			assert.Zero(t, r.Count(service.ChargeOutcomeError))
		}
		assert.Equal(t, 1, charged)
		h.card.AssertNumberOfCalls(t, "ChargeRecurring", 1)
	})

	t.Run("due rows beyond one batch are charged in the same sweep", func(t *testing.T) {
		policy := service.DefaultBillingPolicy()
		policy.BatchSize = 1
		h := newHarnessWithPolicy(t, policy)
		for i := 0; i < 3; i++ {
			dueSubscription(h, 0)
		}
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Return(&service.CardPayment{PaymentID: "9009", Status: "CONFIRMED"}, nil).Times(3)

		report := h.billing.RunSweep(ctx)

		assert.Len(t, report.Results, 3)
		assert.Equal(t, 3, report.Count(service.ChargeOutcomeCharged))
	})

	t.Run("rows that stay selectable do not loop the sweep", func(t *testing.T) {
		subs := mocks.NewMockSubscriptionRepository()
		products := mocks.NewMockProductRepository()
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, time.Now().AddDate(0, 0, -31))
		subs.On("ListDue", mock.Anything, mock.Anything, 1).Return([]*entity.Subscription{sub}, nil).Twice()
		subs.On("ClaimForCharge", mock.Anything, sub.ID, mock.Anything, mock.Anything).Return(nil, false, nil).Once()

		policy := service.DefaultBillingPolicy()
		policy.BatchSize = 1
		ledger := service.NewLedgerService(mocks.TxManager{}, mocks.NewMockTransactionRepository(), subs,
			mocks.NewMockBenefitGrantRepository(), products, nil, policy, zap.NewNop())
		facade := service.NewGatewayFacade(ledger, products, subs, mocks.NewMockUserRepository(),
			mocks.NewMockCardGateway(), mocks.NewMockInChatGateway(), service.CardReturnURLs{}, 24*time.Hour, zap.NewNop())
		billing := service.NewBillingService(ledger, facade, subs, products, policy, zap.NewNop())

		report := billing.RunSweep(ctx)

		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeSkipped, report.Results[0].Outcome)
		subs.AssertExpectations(t)
	})

	t.Run("gateway timeout still records the failure", func(t *testing.T) {
		policy := service.DefaultBillingPolicy()
		policy.ChargeTimeout = 20 * time.Millisecond
		h := newHarnessWithPolicy(t, policy)
		sub := dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.DeadlineExceeded).Once()

		before := time.Now()
		report := h.billing.RunSweep(ctx)

		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeFailed, report.Results[0].Outcome)

		txn := h.store.transaction(*report.Results[0].TransactionID)
		assert.Equal(t, entity.TransactionStatusFailed, txn.Status)

		stored := h.store.subscription(sub.ID)
		assert.Equal(t, 1, stored.FailedAttempts)
		assert.Nil(t, stored.ChargeLockedUntil)
		assert.WithinDuration(t, before.Add(24*time.Hour), stored.NextBillingDate, time.Minute)
	})

	t.Run("caller going away after the gateway call still settles the charge", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 0)
		sweepCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(&service.CardPayment{PaymentID: "9010", Status: "CONFIRMED"}, nil).Once()

		report := h.billing.RunSweep(sweepCtx)

		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeCharged, report.Results[0].Outcome)
		assert.True(t, h.store.subscription(sub.ID).NextBillingDate.After(time.Now()))
	})
}

func TestBillingService_ChargeSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("skips a subscription that is not due", func(t *testing.T) {
		h := newHarness(t)
		sub := entity.NewSubscription(uuid.New(), "premium_month", "145919", 29900, "RUB", 30, time.Now())
		h.store.putSubscription(sub)

		result, err := h.billing.ChargeSubscription(ctx, sub.ID)

		require.NoError(t, err)
		assert.Equal(t, service.ChargeOutcomeSkipped, result.Outcome)
	})

	t.Run("rejects suspended subscription", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 3)
		sub.Status = entity.StatusSuspended
		h.store.putSubscription(sub)

		_, err := h.billing.ChargeSubscription(ctx, sub.ID)
		assert.True(t, errors.Is(err, domainErrors.ErrSubscriptionNotActive))
	})

	t.Run("unknown subscription", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.billing.ChargeSubscription(ctx, uuid.New())
		assert.True(t, errors.Is(err, domainErrors.ErrSubscriptionNotFound))
	})

	t.Run("manual charge during a running charge is skipped", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 0)
		var overlapping service.SubscriptionResult
		var overlapErr error
		h.card.On("ChargeRecurring", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				overlapping, overlapErr = h.billing.ChargeSubscription(ctx, sub.ID)
			}).
			Return(&service.CardPayment{PaymentID: "9011", Status: "CONFIRMED"}, nil).Once()

		report := h.billing.RunSweep(ctx)

		require.NoError(t, overlapErr)
		assert.Equal(t, service.ChargeOutcomeSkipped, overlapping.Outcome)
		assert.Equal(t, "charge already in progress", overlapping.Error)
		require.Len(t, report.Results, 1)
		assert.Equal(t, service.ChargeOutcomeCharged, report.Results[0].Outcome)
		h.card.AssertNumberOfCalls(t, "ChargeRecurring", 1)
	})

	t.Run("charges a due subscription", func(t *testing.T) {
		h := newHarness(t)
		sub := dueSubscription(h, 0)
		h.card.On("ChargeRecurring", mock.Anything, rebill("145919")).
			Return(&service.CardPayment{PaymentID: "9006", Status: "CONFIRMED"}, nil).Once()

		result, err := h.billing.ChargeSubscription(ctx, sub.ID)

		require.NoError(t, err)
		assert.Equal(t, service.ChargeOutcomeCharged, result.Outcome)
	})
}
