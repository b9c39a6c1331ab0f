package subfund

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/subfund/oracle"
	"github.com/xraph/subfund/plugin"
	"github.com/xraph/subfund/store"
	"github.com/xraph/subfund/types"
)

// Engine is the main subscription-funding engine. It owns all fund
// movement: deposits, locks, stakes, and the recurring payment pipeline.
type Engine struct {
	store   store.Store
	oracle  oracle.Adapter
	plugins *plugin.Registry
	logger  *slog.Logger

	// Record-level serialization. Every operation acquires the keys of the
	// records it mutates, in sorted order, before touching the store.
	locks keyedMutex

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	batchLimit      int
	billingInterval time.Duration
	now             func() time.Time
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		oracle:          oracle.Static{Price: 10_000, APYBps: 500},
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		stopChan:        make(chan struct{}),
		batchLimit:      100,
		billingInterval: 0, // disabled unless configured
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithOracle sets the price/yield oracle adapter.
func WithOracle(a oracle.Adapter) Option {
	return func(e *Engine) {
		e.oracle = a
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithBatchLimit caps how many due subscriptions one batch run processes.
func WithBatchLimit(n int) Option {
	return func(e *Engine) {
		e.batchLimit = n
	}
}

// WithBillingInterval enables the background billing worker with the given
// run interval. Zero leaves batch runs caller-driven.
func WithBillingInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.billingInterval = interval
	}
}

// WithClock overrides the time source. Tests use this to pin due dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start billing worker
	if e.billingInterval > 0 {
		e.wg.Add(1)
		go e.billingWorker(ctx)
	}

	e.logger.Info("subfund engine started",
		"batch_limit", e.batchLimit,
		"billing_interval", e.billingInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// billingWorker runs due-payment batches on a fixed interval.
func (e *Engine) billingWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.billingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			result, err := e.ProcessDuePayments(ctx)
			if err != nil {
				e.logger.Error("scheduled payment run failed", "error", err)
				continue
			}
			if result.Processed > 0 {
				e.logger.Info("scheduled payment run",
					"processed", result.Processed,
					"succeeded", result.Succeeded,
					"failed", result.Failed,
				)
			}
		}
	}
}

// feeToBaseUnits converts a USD-cent fee into asset base units at the
// given price, multiplying before dividing to keep precision.
func feeToBaseUnits(fee types.Money, priceCents uint64) (types.Amount, error) {
	if fee.IsNegative() {
		return 0, ErrInvalidAmount
	}
	out, err := types.MulDiv(uint64(fee.Cents), uint64(types.UnitScale), priceCents)
	if err != nil {
		return 0, err
	}
	return types.Amount(out), nil
}

// unitsToCents values base units in USD cents at the given price.
func unitsToCents(amount types.Amount, priceCents uint64) (types.Money, error) {
	out, err := types.MulDiv(uint64(amount), priceCents, uint64(types.UnitScale))
	if err != nil {
		return types.Money{}, err
	}
	return types.USD(int64(out)), nil
}

// ──────────────────────────────────────────────────
// Keyed locks
// ──────────────────────────────────────────────────

// keyedMutex serializes operations touching the same records. Keys are
// acquired in sorted order so two operations spanning the same pair of
// records cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) acquire(keys ...string) func() {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	// Drop duplicates so the same key is never locked twice.
	dedup := sorted[:0]
	for i, key := range sorted {
		if i == 0 || key != sorted[i-1] {
			dedup = append(dedup, key)
		}
	}

	entries := make([]*lockEntry, 0, len(dedup))
	for _, key := range dedup {
		entries = append(entries, k.entry(key))
	}
	for _, entry := range entries {
		entry.mu.Lock()
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		k.release(dedup)
	}
}

func (k *keyedMutex) entry(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (k *keyedMutex) release(keys []string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range keys {
		entry, ok := k.locks[key]
		if !ok {
			continue
		}
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
	}
}
