// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/adapter"
	"github.com/leonart92/pronostiX-sub002/internal/domain/ports/repository"
)

// mockTxManager runs the callback directly; unit tests exercise logic, not
// transactional isolation.
type mockTxManager struct {
	beginErr error
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx, repository.NoTX)
}

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.User
	saveErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, _ repository.Tx, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByCustomerID(ctx context.Context, _ repository.Tx, customerID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.StripeCustomerID == customerID && customerID != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// memSubRepo provides in-memory subscriptions keyed by row id.
type memSubRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Subscription
	saveErr error
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubRepo) Save(ctx context.Context, _ repository.Tx, s *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) FindByExternalID(ctx context.Context, _ repository.Tx, externalID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.StripeSubscriptionID == externalID && externalID != "" {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubRepo) FindCurrentByUser(ctx context.Context, _ repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID && s.Status.Entitled() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubRepo) ListLapsed(ctx context.Context, _ repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status.Entitled() && s.CurrentPeriodEnd.Before(asOf) {
			cp := *s
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// memPaymentRepo provides in-memory payments keyed by row id.
type memPaymentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Payment
	saveErr error
	saves   int
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func copyPayment(p *model.Payment) *model.Payment {
	cp := *p
	cp.Refunds = append([]model.Refund(nil), p.Refunds...)
	cp.AppliedEvents = append([]model.AppliedEvent(nil), p.AppliedEvents...)
	return &cp
}

func (m *memPaymentRepo) Save(ctx context.Context, _ repository.Tx, p *model.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[p.ID] = copyPayment(p)
	m.saves++
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyPayment(p), nil
}

func (m *memPaymentRepo) FindByIntentID(ctx context.Context, _ repository.Tx, intentID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.StripePaymentIntentID == intentID && intentID != "" {
			return copyPayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindBySessionID(ctx context.Context, _ repository.Tx, sessionID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.StripeSessionID == sessionID && sessionID != "" {
			return copyPayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// mockGuard remembers marked keys in memory. failErr makes both calls fail so
// tests can prove the guard is only an optimization.
type mockGuard struct {
	mu      sync.Mutex
	seen    map[string]bool
	failErr error
}

func newMockGuard() *mockGuard {
	return &mockGuard{seen: make(map[string]bool)}
}

func (g *mockGuard) Seen(ctx context.Context, key string) (bool, error) {
	if g.failErr != nil {
		return false, g.failErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen[key], nil
}

func (g *mockGuard) Mark(ctx context.Context, key string, _ time.Duration) error {
	if g.failErr != nil {
		return g.failErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[key] = true
	return nil
}

// mockGateway returns canned provider objects.
type mockGateway struct {
	sessions map[string]*adapter.CheckoutSession
	subs     map[string]*model.SubscriptionSnapshot
	err      error
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		sessions: make(map[string]*adapter.CheckoutSession),
		subs:     make(map[string]*model.SubscriptionSnapshot),
	}
}

func (g *mockGateway) RetrieveSession(ctx context.Context, id string) (*adapter.CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (g *mockGateway) RetrieveSubscription(ctx context.Context, id string) (*model.SubscriptionSnapshot, error) {
	if g.err != nil {
		return nil, g.err
	}
	s, ok := g.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}
