package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bivex/paygate/internal/domain/service"
)

// MockCardGateway is a mock implementation of CardGateway
type MockCardGateway struct {
	mock.Mock
}

// NewMockCardGateway creates a new mock card gateway
func NewMockCardGateway() *MockCardGateway {
	return &MockCardGateway{}
}

func (m *MockCardGateway) Init(ctx context.Context, req service.CardInitRequest) (*service.CardPayment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CardPayment), args.Error(1)
}

func (m *MockCardGateway) ChargeRecurring(ctx context.Context, req service.CardRecurringRequest) (*service.CardPayment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CardPayment), args.Error(1)
}

func (m *MockCardGateway) Cancel(ctx context.Context, paymentID string, amountMinor int64) (*service.CardPayment, error) {
	args := m.Called(ctx, paymentID, amountMinor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CardPayment), args.Error(1)
}

// MockInChatGateway is a mock implementation of InChatGateway
type MockInChatGateway struct {
	mock.Mock
}

// NewMockInChatGateway creates a new mock in-chat gateway
func NewMockInChatGateway() *MockInChatGateway {
	return &MockInChatGateway{}
}

func (m *MockInChatGateway) CreateInvoiceLink(ctx context.Context, req service.InvoiceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockInChatGateway) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	args := m.Called(ctx, queryID, ok, errorMessage)
	return args.Error(0)
}

func (m *MockInChatGateway) RefundStarPayment(ctx context.Context, chatUserID int64, chargeID string) error {
	args := m.Called(ctx, chatUserID, chargeID)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}
