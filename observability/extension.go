// Package observability provides a metrics extension for Subfund that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/subfund/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnDeposit            = (*MetricsExtension)(nil)
	_ plugin.OnWithdraw           = (*MetricsExtension)(nil)
	_ plugin.OnProviderRegistered = (*MetricsExtension)(nil)
	_ plugin.OnServiceRegistered  = (*MetricsExtension)(nil)
	_ plugin.OnSubscribed         = (*MetricsExtension)(nil)
	_ plugin.OnUnsubscribed       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentExecuted    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed      = (*MetricsExtension)(nil)
	_ plugin.OnBatchCompleted     = (*MetricsExtension)(nil)
	_ plugin.OnStaked             = (*MetricsExtension)(nil)
	_ plugin.OnUnstaked           = (*MetricsExtension)(nil)
	_ plugin.OnYieldClaimed       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Engine plugin to automatically track protocol metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Fund metrics
	Deposits        Counter
	Withdrawals     Counter
	DepositVolume   Histogram
	WithdrawnVolume Histogram

	// Registry metrics
	ProvidersRegistered Counter
	ServicesRegistered  Counter

	// Subscription metrics
	Subscribed   Counter
	Unsubscribed Counter

	// Payment metrics
	PaymentsExecuted Counter
	PaymentsFailed   Counter
	BatchRuns        Counter
	BatchLatency     Histogram

	// Staking metrics
	Stakes       Counter
	Unstakes     Counter
	YieldClaims  Counter
	YieldClaimed Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided
// MetricFactory. Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Fund metrics
		Deposits:        factory.Counter("subfund.deposit.count"),
		Withdrawals:     factory.Counter("subfund.withdraw.count"),
		DepositVolume:   factory.Histogram("subfund.deposit.amount"),
		WithdrawnVolume: factory.Histogram("subfund.withdraw.amount"),

		// Registry metrics
		ProvidersRegistered: factory.Counter("subfund.provider.registered"),
		ServicesRegistered:  factory.Counter("subfund.service.registered"),

		// Subscription metrics
		Subscribed:   factory.Counter("subfund.subscription.opened"),
		Unsubscribed: factory.Counter("subfund.subscription.canceled"),

		// Payment metrics
		PaymentsExecuted: factory.Counter("subfund.payment.executed"),
		PaymentsFailed:   factory.Counter("subfund.payment.failed"),
		BatchRuns:        factory.Counter("subfund.payment.batch.runs"),
		BatchLatency:     factory.Histogram("subfund.payment.batch.latency_ms"),

		// Staking metrics
		Stakes:       factory.Counter("subfund.stake.count"),
		Unstakes:     factory.Counter("subfund.unstake.count"),
		YieldClaims:  factory.Counter("subfund.yield.claims"),
		YieldClaimed: factory.Histogram("subfund.yield.claimed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Fund movement hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (m *MetricsExtension) OnDeposit(_ context.Context, _ interface{}, amount uint64) error {
	m.Deposits.Inc()
	m.DepositVolume.Observe(float64(amount))
	return nil
}

// OnWithdraw implements plugin.OnWithdraw.
func (m *MetricsExtension) OnWithdraw(_ context.Context, _ interface{}, amount uint64) error {
	m.Withdrawals.Inc()
	m.WithdrawnVolume.Observe(float64(amount))
	return nil
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnProviderRegistered implements plugin.OnProviderRegistered.
func (m *MetricsExtension) OnProviderRegistered(_ context.Context, _ interface{}) error {
	m.ProvidersRegistered.Inc()
	return nil
}

// OnServiceRegistered implements plugin.OnServiceRegistered.
func (m *MetricsExtension) OnServiceRegistered(_ context.Context, _ interface{}) error {
	m.ServicesRegistered.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (m *MetricsExtension) OnSubscribed(_ context.Context, _ interface{}) error {
	m.Subscribed.Inc()
	return nil
}

// OnUnsubscribed implements plugin.OnUnsubscribed.
func (m *MetricsExtension) OnUnsubscribed(_ context.Context, _ interface{}) error {
	m.Unsubscribed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (m *MetricsExtension) OnPaymentExecuted(_ context.Context, _ interface{}) error {
	m.PaymentsExecuted.Inc()
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ interface{}, _ error) error {
	m.PaymentsFailed.Inc()
	return nil
}

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (m *MetricsExtension) OnBatchCompleted(_ context.Context, _ interface{}, elapsed time.Duration) error {
	m.BatchRuns.Inc()
	m.BatchLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStaked implements plugin.OnStaked.
func (m *MetricsExtension) OnStaked(_ context.Context, _ interface{}, _ uint64) error {
	m.Stakes.Inc()
	return nil
}

// OnUnstaked implements plugin.OnUnstaked.
func (m *MetricsExtension) OnUnstaked(_ context.Context, _ interface{}, _ uint64) error {
	m.Unstakes.Inc()
	return nil
}

// OnYieldClaimed implements plugin.OnYieldClaimed.
func (m *MetricsExtension) OnYieldClaimed(_ context.Context, _ interface{}, amount uint64) error {
	m.YieldClaims.Inc()
	m.YieldClaimed.Observe(float64(amount))
	return nil
}
