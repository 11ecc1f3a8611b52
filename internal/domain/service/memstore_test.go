package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/repository"
)

// memStore keeps ledger state in memory with the same compare-and-set
// semantics as the postgres repositories.
type memStore struct {
	mu            sync.Mutex
	products      map[string]*entity.Product
	transactions  map[uuid.UUID]*entity.Transaction
	subscriptions map[uuid.UUID]*entity.Subscription
	grants        map[uuid.UUID]*entity.BenefitGrant
	credits       map[uuid.UUID]int
	chatIDs       map[uuid.UUID]int64
}

func newMemStore(products ...*entity.Product) *memStore {
	s := &memStore{
		products:      map[string]*entity.Product{},
		transactions:  map[uuid.UUID]*entity.Transaction{},
		subscriptions: map[uuid.UUID]*entity.Subscription{},
		grants:        map[uuid.UUID]*entity.BenefitGrant{},
		credits:       map[uuid.UUID]int{},
		chatIDs:       map[uuid.UUID]int64{},
	}
	for _, p := range products {
		s.products[p.Code] = p
	}
	return s
}

func (s *memStore) txnRepo() *memTransactions { return &memTransactions{s} }
func (s *memStore) subRepo() *memSubscriptions { return &memSubscriptions{s} }
func (s *memStore) grantRepo() *memGrants { return &memGrants{s} }
func (s *memStore) productRepo() *memProducts { return &memProducts{s} }
func (s *memStore) userRepo() *memUsers { return &memUsers{s} }

func (s *memStore) transaction(id uuid.UUID) entity.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.transactions[id]
}

func (s *memStore) subscription(id uuid.UUID) entity.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.subscriptions[id]
}

func (s *memStore) grantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *memStore) putSubscription(sub *entity.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
}

type memProducts struct{ s *memStore }

func (r *memProducts) GetByCode(_ context.Context, code string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[code]
	if !ok {
		return nil, &domainErrors.NotFoundError{Entity: "product", ID: code, Err: domainErrors.ErrProductNotFound}
	}
	return p, nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) GetChatID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.chatIDs[userID]
	if !ok {
		return 0, domainErrors.ErrChatIdentityMissing
	}
	return id, nil
}

type memTransactions struct{ s *memStore }

func (r *memTransactions) Create(_ context.Context, txn *entity.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *txn
	r.s.transactions[txn.ID] = &cp
	return nil
}

func (r *memTransactions) GetByID(_ context.Context, id uuid.UUID) (*entity.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn, ok := r.s.transactions[id]
	if !ok {
		return nil, &domainErrors.NotFoundError{Entity: "transaction", ID: id.String(), Err: domainErrors.ErrTransactionNotFound}
	}
	cp := *txn
	return &cp, nil
}

func (r *memTransactions) GetByGatewayOrderID(_ context.Context, orderID string) (*entity.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, txn := range r.s.transactions {
		if txn.GatewayOrderID == orderID {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, &domainErrors.NotFoundError{Entity: "transaction", ID: orderID, Err: domainErrors.ErrTransactionNotFound}
}

func (r *memTransactions) CompareAndSetStatus(_ context.Context, u repository.StatusUpdate) (*entity.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn, ok := r.s.transactions[u.TransactionID]
	if !ok {
		return nil, domainErrors.ErrInvalidTransition
	}
	matched := false
	for _, from := range u.From {
		if txn.Status == from {
			matched = true
		}
	}
	if !matched {
		return nil, domainErrors.ErrInvalidTransition
	}
	txn.Status = u.To
	txn.UpdatedAt = u.At
	if u.GatewayTransactionID != nil {
		txn.GatewayTransactionID = u.GatewayTransactionID
	}
	if u.ErrorMessage != nil {
		txn.ErrorMessage = u.ErrorMessage
	}
	for k, v := range u.Metadata {
		txn.Metadata[k] = v
	}
	if u.To == entity.TransactionStatusCompleted {
		at := u.At
		txn.CompletedAt = &at
	}
	cp := *txn
	return &cp, nil
}

func (r *memTransactions) AttachGatewayPayment(_ context.Context, id uuid.UUID, gatewayTransactionID, paymentURL *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn := r.s.transactions[id]
	if gatewayTransactionID != nil {
		txn.GatewayTransactionID = gatewayTransactionID
	}
	if paymentURL != nil {
		txn.PaymentURL = paymentURL
	}
	return nil
}

func (r *memTransactions) LinkSubscription(_ context.Context, id, subscriptionID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transactions[id].SubscriptionID = &subscriptionID
	return nil
}

func (r *memTransactions) HasOpenRecurring(_ context.Context, subscriptionID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, txn := range r.s.transactions {
		if !txn.IsRecurrent || txn.SubscriptionID == nil || *txn.SubscriptionID != subscriptionID {
			continue
		}
		if txn.Status == entity.TransactionStatusPending || txn.Status == entity.TransactionStatusProcessing {
			return true, nil
		}
	}
	return false, nil
}

type memSubscriptions struct{ s *memStore }

func (r *memSubscriptions) Create(_ context.Context, sub *entity.Subscription) error {
	r.s.putSubscription(sub)
	return nil
}

func (r *memSubscriptions) GetByID(_ context.Context, id uuid.UUID) (*entity.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, &domainErrors.NotFoundError{Entity: "subscription", ID: id.String(), Err: domainErrors.ErrSubscriptionNotFound}
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubscriptions) ListDue(_ context.Context, now time.Time, limit int) ([]*entity.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*entity.Subscription
	for _, sub := range r.s.subscriptions {
		if sub.IsDue(now) && !sub.IsChargeLocked(now) {
			cp := *sub
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextBillingDate.Before(due[j].NextBillingDate) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memSubscriptions) ClaimForCharge(_ context.Context, id uuid.UUID, now, lockUntil time.Time) (*entity.Subscription, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub := r.s.subscriptions[id]
	if sub == nil || !sub.IsDue(now) || sub.IsChargeLocked(now) {
		return nil, false, nil
	}
	sub.ChargeLockedUntil = &lockUntil
	cp := *sub
	return &cp, true, nil
}

func (r *memSubscriptions) AdvanceBilling(_ context.Context, id uuid.UUID, periodDays int, chargedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub := r.s.subscriptions[id]
	if sub == nil || !sub.IsActive() {
		return false, nil
	}
	sub.AdvancePeriod(periodDays, chargedAt)
	return true, nil
}

func (r *memSubscriptions) RecordFailure(_ context.Context, id uuid.UUID, maxAttempts int, retryAt time.Time) (*entity.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub := r.s.subscriptions[id]
	if sub == nil || !sub.IsActive() {
		return nil, domainErrors.ErrSubscriptionNotActive
	}
	sub.FailedAttempts++
	sub.ChargeLockedUntil = nil
	if sub.FailedAttempts >= maxAttempts {
		sub.Status = entity.StatusSuspended
	} else {
		sub.NextBillingDate = retryAt
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubscriptions) Cancel(_ context.Context, id uuid.UUID, at time.Time) (*entity.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub := r.s.subscriptions[id]
	sub.Cancel(at)
	cp := *sub
	return &cp, nil
}

type memGrants struct{ s *memStore }

func (r *memGrants) Create(_ context.Context, grant *entity.BenefitGrant) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.grants[grant.TransactionID]; exists {
		return false, nil
	}
	r.s.grants[grant.TransactionID] = grant
	return true, nil
}

func (r *memGrants) AddCredits(_ context.Context, userID uuid.UUID, credits int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.credits[userID] += credits
	return nil
}
