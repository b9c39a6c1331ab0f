// Package memory provides an in-process Store for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/subfund"
	"github.com/xraph/subfund/balance"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/payment"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/protocol"
	"github.com/xraph/subfund/provider"
	"github.com/xraph/subfund/stake"
	"github.com/xraph/subfund/subscription"
)

// Store keeps all entities in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	config *protocol.Config

	providers     map[string]*provider.Provider
	plans         map[string]*plan.Plan
	planOrder     []string // insertion order, for deterministic catalogs
	balances      map[string]*balance.Balance
	stakes        map[string]*stake.Position
	subscriptions map[string]*subscription.Subscription
	payments      []*payment.Record
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		providers:     make(map[string]*provider.Provider),
		plans:         make(map[string]*plan.Plan),
		balances:      make(map[string]*balance.Balance),
		stakes:        make(map[string]*stake.Position),
		subscriptions: make(map[string]*subscription.Subscription),
	}
}

func planKey(providerID id.ProviderID, serviceID uint64) string {
	return fmt.Sprintf("%s/%d", providerID, serviceID)
}

// ==================== Protocol config ====================

func (s *Store) CreateConfig(_ context.Context, cfg *protocol.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config != nil {
		return subfund.ErrProtocolInitalized
	}
	s.config = cfg
	return nil
}

func (s *Store) GetConfig(_ context.Context) (*protocol.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, subfund.ErrProtocolNotInit
	}
	return s.config, nil
}

func (s *Store) UpdateConfig(_ context.Context, cfg *protocol.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return subfund.ErrProtocolNotInit
	}
	s.config = cfg
	return nil
}

// ==================== Providers ====================

func (s *Store) CreateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[p.ID.String()]; exists {
		return subfund.ErrAlreadyExists
	}
	s.providers[p.ID.String()] = p
	return nil
}

func (s *Store) GetProvider(_ context.Context, providerID id.ProviderID) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.providers[providerID.String()]; ok {
		return p, nil
	}
	return nil, subfund.ErrProviderNotFound
}

func (s *Store) ListProviders(_ context.Context, opts provider.ListOpts) ([]*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if opts.VerifiedOnly && !p.Verified {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return window(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateProvider(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[p.ID.String()]; !exists {
		return subfund.ErrProviderNotFound
	}
	s.providers[p.ID.String()] = p
	return nil
}

// ==================== Plans ====================

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := planKey(p.ProviderID, p.ServiceID)
	if _, exists := s.plans[key]; exists {
		return subfund.ErrAlreadyExists
	}
	s.plans[key] = p
	s.planOrder = append(s.planOrder, key)
	return nil
}

func (s *Store) GetPlan(_ context.Context, providerID id.ProviderID, serviceID uint64) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[planKey(providerID, serviceID)]; ok {
		return p, nil
	}
	return nil, subfund.ErrPlanNotFound
}

// ListPlans returns plans in insertion order, which keeps affordability
// ranking deterministic for identical catalogs.
func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*plan.Plan, 0, len(s.planOrder))
	for _, key := range s.planOrder {
		p := s.plans[key]
		if opts.ActiveOnly && !p.Active {
			continue
		}
		result = append(result, p)
	}
	return window(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := planKey(p.ProviderID, p.ServiceID)
	if _, exists := s.plans[key]; !exists {
		return subfund.ErrPlanNotFound
	}
	s.plans[key] = p
	return nil
}

// ==================== Balances ====================

func (s *Store) CreateBalance(_ context.Context, b *balance.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[b.UserID.String()]; exists {
		return subfund.ErrAlreadyExists
	}
	s.balances[b.UserID.String()] = b
	return nil
}

func (s *Store) GetBalance(_ context.Context, userID id.UserID) (*balance.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[userID.String()]; ok {
		return b, nil
	}
	return nil, subfund.ErrBalanceNotFound
}

func (s *Store) UpdateBalance(_ context.Context, b *balance.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[b.UserID.String()]; !exists {
		return subfund.ErrBalanceNotFound
	}
	s.balances[b.UserID.String()] = b
	return nil
}

// ==================== Stake positions ====================

func (s *Store) CreateStake(_ context.Context, pos *stake.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stakes[pos.UserID.String()]; exists {
		return subfund.ErrAlreadyExists
	}
	s.stakes[pos.UserID.String()] = pos
	return nil
}

func (s *Store) GetStake(_ context.Context, userID id.UserID) (*stake.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pos, ok := s.stakes[userID.String()]; ok {
		return pos, nil
	}
	return nil, subfund.ErrStakeNotFound
}

func (s *Store) UpdateStake(_ context.Context, pos *stake.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stakes[pos.UserID.String()]; !exists {
		return subfund.ErrStakeNotFound
	}
	s.stakes[pos.UserID.String()] = pos
	return nil
}

// ==================== Subscriptions ====================

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sub.Key().String()
	if _, exists := s.subscriptions[key]; exists {
		return subfund.ErrAlreadyExists
	}
	s.subscriptions[key] = sub
	return nil
}

func (s *Store) GetSubscription(_ context.Context, key subscription.Key) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[key.String()]; ok {
		return sub, nil
	}
	return nil, subfund.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.UserID != userID {
			continue
		}
		if opts.ActiveOnly && !sub.Active {
			continue
		}
		result = append(result, sub)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().String() < result[j].Key().String()
	})
	return window(result, opts.Offset, opts.Limit), nil
}

// ListDueSubscriptions returns active subscriptions with
// next_payment_due <= now, earliest due first. A positive limit bounds the
// slice so batch runs stay chunkable.
func (s *Store) ListDueSubscriptions(_ context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.Due(now) {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].NextPaymentDue.Equal(result[j].NextPaymentDue) {
			return result[i].NextPaymentDue.Before(result[j].NextPaymentDue)
		}
		return result[i].Key().String() < result[j].Key().String()
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sub.Key().String()
	if _, exists := s.subscriptions[key]; !exists {
		return subfund.ErrSubscriptionNotFound
	}
	s.subscriptions[key] = sub
	return nil
}

// ==================== Payments ====================

func (s *Store) AppendPayment(_ context.Context, rec *payment.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments = append(s.payments, rec)
	return nil
}

func (s *Store) ListPayments(_ context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Record, 0)
	for _, rec := range s.payments {
		if rec.UserID != userID {
			continue
		}
		if !opts.Since.IsZero() && rec.PaidAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && rec.PaidAt.After(opts.Until) {
			continue
		}
		result = append(result, rec)
	}
	return window(result, opts.Offset, opts.Limit), nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func window[T any](in []T, offset, limit int) []T {
	start := offset
	if start > len(in) {
		start = len(in)
	}
	end := start + limit
	if limit == 0 || end > len(in) {
		end = len(in)
	}
	return in[start:end]
}
