// Package plugin provides an extensible plugin system for Subfund.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Fund movement hooks
// ──────────────────────────────────────────────────

// OnDeposit is called after a deposit is credited.
type OnDeposit interface {
	Plugin
	OnDeposit(ctx context.Context, bal interface{}, amount uint64) error
}

// OnWithdraw is called after a withdrawal is debited.
type OnWithdraw interface {
	Plugin
	OnWithdraw(ctx context.Context, bal interface{}, amount uint64) error
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnProviderRegistered is called when a provider registers.
type OnProviderRegistered interface {
	Plugin
	OnProviderRegistered(ctx context.Context, prov interface{}) error
}

// OnServiceRegistered is called when a provider lists a new service.
type OnServiceRegistered interface {
	Plugin
	OnServiceRegistered(ctx context.Context, p interface{}) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed is called when a subscription is opened or reactivated.
// Side systems that hand out access artifacts (receipt tokens, API keys)
// mint them here.
type OnSubscribed interface {
	Plugin
	OnSubscribed(ctx context.Context, sub interface{}) error
}

// OnUnsubscribed is called when a subscription is canceled. The artifact
// minted on subscribe should be revoked here.
type OnUnsubscribed interface {
	Plugin
	OnUnsubscribed(ctx context.Context, sub interface{}) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentExecuted is called after a payment settles.
type OnPaymentExecuted interface {
	Plugin
	OnPaymentExecuted(ctx context.Context, rec interface{}) error
}

// OnPaymentFailed is called when a payment attempt fails.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, key interface{}, err error) error
}

// OnBatchCompleted is called after a due-payment batch run finishes.
type OnBatchCompleted interface {
	Plugin
	OnBatchCompleted(ctx context.Context, result interface{}, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStaked is called when funds move into a stake position.
type OnStaked interface {
	Plugin
	OnStaked(ctx context.Context, pos interface{}, amount uint64) error
}

// OnUnstaked is called when funds move out of a stake position.
type OnUnstaked interface {
	Plugin
	OnUnstaked(ctx context.Context, pos interface{}, amount uint64) error
}

// OnYieldClaimed is called when accrued yield is realized to a balance.
type OnYieldClaimed interface {
	Plugin
	OnYieldClaimed(ctx context.Context, pos interface{}, amount uint64) error
}
