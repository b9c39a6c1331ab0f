package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting an event never walks plugins
// that don't implement its hook.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onDeposit            []OnDeposit
	onWithdraw           []OnWithdraw
	onProviderRegistered []OnProviderRegistered
	onServiceRegistered  []OnServiceRegistered
	onSubscribed         []OnSubscribed
	onUnsubscribed       []OnUnsubscribed
	onPaymentExecuted    []OnPaymentExecuted
	onPaymentFailed      []OnPaymentFailed
	onBatchCompleted     []OnBatchCompleted
	onStaked             []OnStaked
	onUnstaked           []OnUnstaked
	onYieldClaimed       []OnYieldClaimed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnDeposit); ok {
		r.onDeposit = append(r.onDeposit, v)
	}
	if v, ok := p.(OnWithdraw); ok {
		r.onWithdraw = append(r.onWithdraw, v)
	}
	if v, ok := p.(OnProviderRegistered); ok {
		r.onProviderRegistered = append(r.onProviderRegistered, v)
	}
	if v, ok := p.(OnServiceRegistered); ok {
		r.onServiceRegistered = append(r.onServiceRegistered, v)
	}
	if v, ok := p.(OnSubscribed); ok {
		r.onSubscribed = append(r.onSubscribed, v)
	}
	if v, ok := p.(OnUnsubscribed); ok {
		r.onUnsubscribed = append(r.onUnsubscribed, v)
	}
	if v, ok := p.(OnPaymentExecuted); ok {
		r.onPaymentExecuted = append(r.onPaymentExecuted, v)
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
	}
	if v, ok := p.(OnBatchCompleted); ok {
		r.onBatchCompleted = append(r.onBatchCompleted, v)
	}
	if v, ok := p.(OnStaked); ok {
		r.onStaked = append(r.onStaked, v)
	}
	if v, ok := p.(OnUnstaked); ok {
		r.onUnstaked = append(r.onUnstaked, v)
	}
	if v, ok := p.(OnYieldClaimed); ok {
		r.onYieldClaimed = append(r.onYieldClaimed, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitDeposit emits a deposit event.
func (r *Registry) EmitDeposit(ctx context.Context, bal interface{}, amount uint64) {
	r.mu.RLock()
	plugins := r.onDeposit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDeposit(ctx, bal, amount)
		}); err != nil {
			r.logger.Warn("plugin OnDeposit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitWithdraw emits a withdrawal event.
func (r *Registry) EmitWithdraw(ctx context.Context, bal interface{}, amount uint64) {
	r.mu.RLock()
	plugins := r.onWithdraw
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWithdraw(ctx, bal, amount)
		}); err != nil {
			r.logger.Warn("plugin OnWithdraw failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitProviderRegistered emits a provider registered event.
func (r *Registry) EmitProviderRegistered(ctx context.Context, prov interface{}) {
	r.mu.RLock()
	plugins := r.onProviderRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnProviderRegistered(ctx, prov)
		}); err != nil {
			r.logger.Warn("plugin OnProviderRegistered failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitServiceRegistered emits a service registered event.
func (r *Registry) EmitServiceRegistered(ctx context.Context, pl interface{}) {
	r.mu.RLock()
	plugins := r.onServiceRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnServiceRegistered(ctx, pl)
		}); err != nil {
			r.logger.Warn("plugin OnServiceRegistered failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSubscribed emits a subscribed event.
func (r *Registry) EmitSubscribed(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscribed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscribed(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscribed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUnsubscribed emits an unsubscribed event.
func (r *Registry) EmitUnsubscribed(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onUnsubscribed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUnsubscribed(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnUnsubscribed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitPaymentExecuted emits a payment executed event.
func (r *Registry) EmitPaymentExecuted(ctx context.Context, rec interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentExecuted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentExecuted(ctx, rec)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentExecuted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitPaymentFailed emits a payment failed event.
func (r *Registry) EmitPaymentFailed(ctx context.Context, key interface{}, payErr error) {
	r.mu.RLock()
	plugins := r.onPaymentFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentFailed(ctx, key, payErr)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentFailed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitBatchCompleted emits a batch completed event.
func (r *Registry) EmitBatchCompleted(ctx context.Context, result interface{}, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onBatchCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBatchCompleted(ctx, result, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnBatchCompleted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitStaked emits a staked event.
func (r *Registry) EmitStaked(ctx context.Context, pos interface{}, amount uint64) {
	r.mu.RLock()
	plugins := r.onStaked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStaked(ctx, pos, amount)
		}); err != nil {
			r.logger.Warn("plugin OnStaked failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUnstaked emits an unstaked event.
func (r *Registry) EmitUnstaked(ctx context.Context, pos interface{}, amount uint64) {
	r.mu.RLock()
	plugins := r.onUnstaked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUnstaked(ctx, pos, amount)
		}); err != nil {
			r.logger.Warn("plugin OnUnstaked failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitYieldClaimed emits a yield claimed event.
func (r *Registry) EmitYieldClaimed(ctx context.Context, pos interface{}, amount uint64) {
	r.mu.RLock()
	plugins := r.onYieldClaimed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnYieldClaimed(ctx, pos, amount)
		}); err != nil {
			r.logger.Warn("plugin OnYieldClaimed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
