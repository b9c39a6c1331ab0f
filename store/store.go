// Package store defines the unified storage contract for all Subfund
// entities. The engine only depends on this interface; drivers live in
// the subpackages memory, postgres, sqlite, and mongo.
package store

import (
	"context"
	"time"

	"github.com/xraph/subfund/balance"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/payment"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/protocol"
	"github.com/xraph/subfund/provider"
	"github.com/xraph/subfund/stake"
	"github.com/xraph/subfund/subscription"
)

// Store is the unified storage interface for all Subfund entities.
// Instead of embedding sub-interfaces, all methods are declared explicitly
// to avoid naming conflicts.
type Store interface {
	// Protocol config (singleton)
	CreateConfig(ctx context.Context, cfg *protocol.Config) error
	GetConfig(ctx context.Context) (*protocol.Config, error)
	UpdateConfig(ctx context.Context, cfg *protocol.Config) error

	// Provider methods
	CreateProvider(ctx context.Context, p *provider.Provider) error
	GetProvider(ctx context.Context, providerID id.ProviderID) (*provider.Provider, error)
	ListProviders(ctx context.Context, opts provider.ListOpts) ([]*provider.Provider, error)
	UpdateProvider(ctx context.Context, p *provider.Provider) error

	// Plan methods
	CreatePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, providerID id.ProviderID, serviceID uint64) (*plan.Plan, error)
	ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error)
	UpdatePlan(ctx context.Context, p *plan.Plan) error

	// Balance methods
	CreateBalance(ctx context.Context, b *balance.Balance) error
	GetBalance(ctx context.Context, userID id.UserID) (*balance.Balance, error)
	UpdateBalance(ctx context.Context, b *balance.Balance) error

	// Stake methods
	CreateStake(ctx context.Context, pos *stake.Position) error
	GetStake(ctx context.Context, userID id.UserID) (*stake.Position, error)
	UpdateStake(ctx context.Context, pos *stake.Position) error

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error

	// Payment methods (append-only)
	AppendPayment(ctx context.Context, rec *payment.Record) error
	ListPayments(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
