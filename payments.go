package subfund

import (
	"context"
	"time"

	"github.com/xraph/subfund/balance"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/payment"
	"github.com/xraph/subfund/stake"
	"github.com/xraph/subfund/subscription"
	"github.com/xraph/subfund/types"
)

// ──────────────────────────────────────────────────
// Payment execution
// ──────────────────────────────────────────────────

// ExecutePayment settles one due payment for the given subscription.
// It fails with ErrPaymentNotDue before the due date; the batch
// processor calls the same settlement path.
func (e *Engine) ExecutePayment(ctx context.Context, userID id.UserID, providerID id.ProviderID, serviceID uint64) (*payment.Record, error) {
	key := subscription.Key{UserID: userID, ProviderID: providerID, ServiceID: serviceID}
	defer e.locks.acquire("config", "balance/"+userID.String(), "stake/"+userID.String(), "sub/"+key.String())()

	sub, err := e.store.GetSubscription(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.settle(ctx, sub, payment.KindManual)
}

// ProcessDuePayments runs one batch over all due subscriptions. Each
// subscription settles independently: a failure is recorded in the batch
// result and the run continues. Because settlement advances the due date
// by exactly one billing period, immediately re-running the batch
// processes nothing.
func (e *Engine) ProcessDuePayments(ctx context.Context) (*payment.BatchResult, error) {
	start := e.now()

	due, err := e.store.ListDueSubscriptions(ctx, start, e.batchLimit)
	if err != nil {
		return nil, err
	}

	result := &payment.BatchResult{RanAt: start}
	for _, candidate := range due {
		key := candidate.Key()
		outcome := e.settleOne(ctx, key)
		result.Processed++
		if outcome.Failed() {
			result.Failed++
			e.plugins.EmitPaymentFailed(ctx, key, outcome.Err)
			e.logger.Warn("payment failed",
				"subscription", key,
				"error", outcome.Err,
			)
		} else {
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	// Record the run even when every step failed.
	if err := e.touchLastRun(ctx, start); err != nil {
		e.logger.Warn("failed to record payment run", "error", err)
	}

	elapsed := time.Since(start)
	e.plugins.EmitBatchCompleted(ctx, result, elapsed)
	e.logger.Info("payment batch completed",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// settleOne locks, re-reads, and settles a single subscription.
func (e *Engine) settleOne(ctx context.Context, key subscription.Key) payment.Outcome {
	defer e.locks.acquire("config", "balance/"+key.UserID.String(), "stake/"+key.UserID.String(), "sub/"+key.String())()

	sub, err := e.store.GetSubscription(ctx, key)
	if err != nil {
		return payment.Outcome{Key: key, Err: err}
	}

	rec, err := e.settle(ctx, sub, payment.KindScheduled)
	if err != nil {
		return payment.Outcome{Key: key, Err: err}
	}
	return payment.Outcome{Key: key, Record: rec}
}

// settle executes one payment against a subscription. Callers hold the
// config, balance, stake, and subscription keys.
func (e *Engine) settle(ctx context.Context, sub *subscription.Subscription, kind payment.Kind) (*payment.Record, error) {
	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrProtocolPaused
	}
	if !sub.Active {
		return nil, ErrSubscriptionNotActive
	}

	now := e.now()
	if now.Before(sub.NextPaymentDue) {
		return nil, ErrPaymentNotDue
	}

	p, err := e.store.GetPlan(ctx, sub.ProviderID, sub.ServiceID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrPlanInactive
	}

	priceCents, err := e.oracle.PriceUSDCentsPerUnit(ctx)
	if err != nil {
		return nil, err
	}

	amount, err := feeToBaseUnits(p.FeeUSD, priceCents)
	if err != nil {
		return nil, err
	}
	fee, err := amount.Bps(uint64(cfg.FeeBps))
	if err != nil {
		return nil, err
	}

	bal, err := e.store.GetBalance(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}

	// Funding priority: the subscription's locked reserve first, then
	// realized staking yield, then the rest of the available pool.
	fromLocked := amount
	if reserve := sub.RemainingReserve(); fromLocked > reserve {
		fromLocked = reserve
	}
	if fromLocked > bal.Locked {
		fromLocked = bal.Locked
	}
	fromAvailable := amount - fromLocked

	nextBal := bal.Clone()
	var (
		nextPos  *stake.Position
		realized types.Amount
	)
	if fromAvailable > nextBal.Available {
		nextPos, realized, err = e.realizeYield(ctx, sub.UserID, nextBal, now)
		if err != nil {
			return nil, err
		}
	}
	if fromAvailable > nextBal.Available {
		return nil, ErrInsufficientFunds
	}

	if fromLocked > 0 {
		if err := nextBal.SpendLocked(fromLocked); err != nil {
			return nil, err
		}
	}
	if fromAvailable > 0 {
		if err := nextBal.SpendAvailable(fromAvailable); err != nil {
			return nil, err
		}
	}

	period := time.Duration(p.BillingPeriodSeconds()) * time.Second
	if kind != payment.KindManual && now.Sub(sub.NextPaymentDue) >= period {
		kind = payment.KindCatchup
	}

	nextSub := sub.Clone()
	nextSub.LockConsumed, err = nextSub.LockConsumed.Add(fromLocked)
	if err != nil {
		return nil, err
	}
	// Anchor the next due date to the previous one, not to execution
	// time, so late runs cannot stretch the billing cadence.
	nextSub.NextPaymentDue = sub.NextPaymentDue.Add(period)
	nextSub.LastPaymentAt = &now
	nextSub.TotalPayments++
	nextSub.Touch()

	nextCfg := *cfg
	nextCfg.TotalFeesCollected, err = nextCfg.TotalFeesCollected.Add(fee)
	if err != nil {
		return nil, err
	}
	nextCfg.Touch()

	rec := &payment.Record{
		Entity:     types.NewEntity(),
		ID:         id.NewPaymentID(),
		UserID:     sub.UserID,
		ProviderID: sub.ProviderID,
		ServiceID:  sub.ServiceID,
		Amount:     amount,
		Fee:        fee,
		PaidAt:     now,
		Kind:       kind,
	}

	if nextPos != nil {
		if err := e.store.UpdateStake(ctx, nextPos); err != nil {
			return nil, err
		}
	}
	if err := e.store.UpdateBalance(ctx, nextBal); err != nil {
		return nil, err
	}
	if err := e.store.UpdateSubscription(ctx, nextSub); err != nil {
		return nil, err
	}
	if err := e.store.UpdateConfig(ctx, &nextCfg); err != nil {
		return nil, err
	}
	if err := e.store.AppendPayment(ctx, rec); err != nil {
		return nil, err
	}

	if nextPos != nil {
		e.plugins.EmitYieldClaimed(ctx, nextPos, uint64(realized))
	}
	e.plugins.EmitPaymentExecuted(ctx, rec)
	e.logger.Debug("payment executed",
		"subscription", sub.Key(),
		"amount", amount,
		"fee", fee,
		"kind", kind,
		"next_due", nextSub.NextPaymentDue,
	)
	return rec, nil
}

// realizeYield converts the accrued staking yield into available funds
// during settlement, crediting the balance in place. A missing or inactive
// position realizes nothing. Settlement-driven realization is not bound by
// the claim interval; the claim timestamp still resets so a later manual
// claim cannot double-count the span.
func (e *Engine) realizeYield(ctx context.Context, userID id.UserID, bal *balance.Balance, now time.Time) (*stake.Position, types.Amount, error) {
	pos, err := e.store.GetStake(ctx, userID)
	switch {
	case err == nil:
	case IsNotFound(err):
		return nil, 0, nil
	default:
		return nil, 0, err
	}
	if !pos.Active {
		return nil, 0, nil
	}

	apyBps, err := e.oracle.APYBasisPoints(ctx)
	if err != nil {
		return nil, 0, err
	}
	accrued, err := pos.AccruedYield(apyBps, now)
	if err != nil {
		return nil, 0, err
	}
	if accrued == 0 {
		return nil, 0, nil
	}

	next := pos.Clone()
	next.LastYieldClaim = now
	next.TotalYieldEarned, err = next.TotalYieldEarned.Add(accrued)
	if err != nil {
		return nil, 0, err
	}
	next.Touch()

	if err := bal.CreditYield(accrued); err != nil {
		return nil, 0, err
	}

	e.logger.Debug("yield realized for settlement", "user", userID, "amount", accrued)
	return next, accrued, nil
}

// touchLastRun stamps the protocol config with the batch run time.
func (e *Engine) touchLastRun(ctx context.Context, ranAt time.Time) error {
	defer e.locks.acquire("config")()

	cfg, err := e.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	next := *cfg
	next.LastPaymentRun = ranAt
	next.Touch()
	return e.store.UpdateConfig(ctx, &next)
}

// PaymentHistory lists a user's payment records.
func (e *Engine) PaymentHistory(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Record, error) {
	return e.store.ListPayments(ctx, userID, opts)
}
