// Package audithook bridges Subfund lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/subfund/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnDeposit            = (*Extension)(nil)
	_ plugin.OnWithdraw           = (*Extension)(nil)
	_ plugin.OnProviderRegistered = (*Extension)(nil)
	_ plugin.OnServiceRegistered  = (*Extension)(nil)
	_ plugin.OnSubscribed         = (*Extension)(nil)
	_ plugin.OnUnsubscribed       = (*Extension)(nil)
	_ plugin.OnPaymentExecuted    = (*Extension)(nil)
	_ plugin.OnPaymentFailed      = (*Extension)(nil)
	_ plugin.OnBatchCompleted     = (*Extension)(nil)
	_ plugin.OnStaked             = (*Extension)(nil)
	_ plugin.OnUnstaked           = (*Extension)(nil)
	_ plugin.OnYieldClaimed       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Subfund lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Fund movement hooks
// ──────────────────────────────────────────────────

// OnDeposit implements plugin.OnDeposit.
func (e *Extension) OnDeposit(ctx context.Context, _ interface{}, amount uint64) error {
	return e.record(ctx, ActionDeposit, SeverityInfo, OutcomeSuccess,
		ResourceBalance, "", CategoryFunds, nil,
		"amount", amount,
	)
}

// OnWithdraw implements plugin.OnWithdraw.
func (e *Extension) OnWithdraw(ctx context.Context, _ interface{}, amount uint64) error {
	return e.record(ctx, ActionWithdraw, SeverityInfo, OutcomeSuccess,
		ResourceBalance, "", CategoryFunds, nil,
		"amount", amount,
	)
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnProviderRegistered implements plugin.OnProviderRegistered.
func (e *Extension) OnProviderRegistered(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionProviderRegistered, SeverityInfo, OutcomeSuccess,
		ResourceProvider, "", CategoryRegistry, nil,
		"event", "provider_registered",
	)
}

// OnServiceRegistered implements plugin.OnServiceRegistered.
func (e *Extension) OnServiceRegistered(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionServiceRegistered, SeverityInfo, OutcomeSuccess,
		ResourceService, "", CategoryRegistry, nil,
		"event", "service_registered",
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (e *Extension) OnSubscribed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscribed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_opened",
	)
}

// OnUnsubscribed implements plugin.OnUnsubscribed.
func (e *Extension) OnUnsubscribed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionUnsubscribed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_canceled",
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (e *Extension) OnPaymentExecuted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPaymentExecuted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, "", CategoryPayment, nil,
		"event", "payment_executed",
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, key interface{}, err error) error {
	return e.record(ctx, ActionPaymentFailed, SeverityError, OutcomeFailure,
		ResourcePayment, fmt.Sprintf("%v", key), CategoryPayment, err,
		"event", "payment_failed",
	)
}

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (e *Extension) OnBatchCompleted(ctx context.Context, _ interface{}, elapsed time.Duration) error {
	return e.record(ctx, ActionBatchCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, "", CategoryPayment, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStaked implements plugin.OnStaked.
func (e *Extension) OnStaked(ctx context.Context, _ interface{}, amount uint64) error {
	return e.record(ctx, ActionStaked, SeverityInfo, OutcomeSuccess,
		ResourceStake, "", CategoryStaking, nil,
		"amount", amount,
	)
}

// OnUnstaked implements plugin.OnUnstaked.
func (e *Extension) OnUnstaked(ctx context.Context, _ interface{}, amount uint64) error {
	return e.record(ctx, ActionUnstaked, SeverityInfo, OutcomeSuccess,
		ResourceStake, "", CategoryStaking, nil,
		"amount", amount,
	)
}

// OnYieldClaimed implements plugin.OnYieldClaimed.
func (e *Extension) OnYieldClaimed(ctx context.Context, _ interface{}, amount uint64) error {
	return e.record(ctx, ActionYieldClaimed, SeverityInfo, OutcomeSuccess,
		ResourceStake, "", CategoryStaking, nil,
		"amount", amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
