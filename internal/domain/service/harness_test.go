package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/service"
	"github.com/bivex/paygate/internal/mocks"
)

const cardPassword = "terminal-password"

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func creditsProduct() *entity.Product {
	return &entity.Product{
		Code:          "credits_100",
		Name:          "100 credits",
		PriceMinor:    map[string]int64{"RUB": 19900, "XTR": 100},
		CreditsAmount: intPtr(100),
		Active:        true,
	}
}

func monthlyProduct() *entity.Product {
	tier := "premium"
	return &entity.Product{
		Code:                   "premium_month",
		Name:                   "Premium, 1 month",
		PriceMinor:             map[string]int64{"RUB": 29900, "XTR": 150},
		SubscriptionPeriodDays: intPtr(30),
		SubscriptionTier:       &tier,
		Active:                 true,
	}
}

type harness struct {
	store      *memStore
	card       *mocks.MockCardGateway
	inChat     *mocks.MockInChatGateway
	notifier   *mocks.MockNotifier
	ledger     *service.LedgerService
	reconciler *service.ReconcilerService
	facade     *service.GatewayFacade
	billing    *service.BillingService
	policy     service.BillingPolicy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithPolicy(t, service.DefaultBillingPolicy())
}

func newHarnessWithPolicy(t *testing.T, policy service.BillingPolicy) *harness {
	t.Helper()

	store := newMemStore(creditsProduct(), monthlyProduct())
	card := mocks.NewMockCardGateway()
	inChat := mocks.NewMockInChatGateway()
	notifier := mocks.NewMockNotifier()
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	logger := zap.NewNop()
	notifications := service.NewNotificationService(notifier, logger)

	ledger := service.NewLedgerService(
		mocks.TxManager{},
		store.txnRepo(),
		store.subRepo(),
		store.grantRepo(),
		store.productRepo(),
		notifications,
		policy,
		logger,
	)
	reconciler := service.NewReconcilerService(ledger, store.productRepo(), inChat, cardPassword, "bot-secret", logger)
	facade := service.NewGatewayFacade(
		ledger,
		store.productRepo(),
		store.subRepo(),
		store.userRepo(),
		card,
		inChat,
		service.CardReturnURLs{SuccessURL: "https://app.example/ok", FailURL: "https://app.example/fail"},
		24*time.Hour,
		logger,
	)
	billing := service.NewBillingService(ledger, facade, store.subRepo(), store.productRepo(), policy, logger)

	t.Cleanup(func() {
		card.AssertExpectations(t)
		inChat.AssertExpectations(t)
	})

	return &harness{
		store:      store,
		card:       card,
		inChat:     inChat,
		notifier:   notifier,
		ledger:     ledger,
		reconciler: reconciler,
		facade:     facade,
		billing:    billing,
		policy:     policy,
	}
}
