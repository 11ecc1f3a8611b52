package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/repository"
)

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

// NewMockProductRepository creates a new mock product repository
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{}
}

func (m *MockProductRepository) GetByCode(ctx context.Context, code string) (*entity.Product, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

// NewMockTransactionRepository creates a new mock transaction repository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

func (m *MockTransactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*entity.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CompareAndSetStatus(ctx context.Context, update repository.StatusUpdate) (*entity.Transaction, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) AttachGatewayPayment(ctx context.Context, id uuid.UUID, gatewayTransactionID, paymentURL *string) error {
	args := m.Called(ctx, id, gatewayTransactionID, paymentURL)
	return args.Error(0)
}

func (m *MockTransactionRepository) LinkSubscription(ctx context.Context, id, subscriptionID uuid.UUID) error {
	args := m.Called(ctx, id, subscriptionID)
	return args.Error(0)
}

func (m *MockTransactionRepository) HasOpenRecurring(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Bool(0), args.Error(1)
}

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

// NewMockSubscriptionRepository creates a new mock subscription repository
func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{}
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, sub *entity.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Subscription, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ClaimForCharge(ctx context.Context, id uuid.UUID, now, lockUntil time.Time) (*entity.Subscription, bool, error) {
	args := m.Called(ctx, id, now, lockUntil)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.Subscription), args.Bool(1), args.Error(2)
}

func (m *MockSubscriptionRepository) AdvanceBilling(ctx context.Context, id uuid.UUID, periodDays int, chargedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, periodDays, chargedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) RecordFailure(ctx context.Context, id uuid.UUID, maxAttempts int, retryAt time.Time) (*entity.Subscription, error) {
	args := m.Called(ctx, id, maxAttempts, retryAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*entity.Subscription, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Subscription), args.Error(1)
}

// MockBenefitGrantRepository is a mock implementation of BenefitGrantRepository
type MockBenefitGrantRepository struct {
	mock.Mock
}

// NewMockBenefitGrantRepository creates a new mock grant repository
func NewMockBenefitGrantRepository() *MockBenefitGrantRepository {
	return &MockBenefitGrantRepository{}
}

func (m *MockBenefitGrantRepository) Create(ctx context.Context, grant *entity.BenefitGrant) (bool, error) {
	args := m.Called(ctx, grant)
	return args.Bool(0), args.Error(1)
}

func (m *MockBenefitGrantRepository) AddCredits(ctx context.Context, userID uuid.UUID, credits int) error {
	args := m.Called(ctx, userID, credits)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a new mock user repository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) GetChatID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// TxManager runs the callback directly, without a database transaction.
// Like pgx.BeginFunc it refuses to start once ctx is done.
type TxManager struct{}

// WithinTx calls fn with ctx and returns its error
func (TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
