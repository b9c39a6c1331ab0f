package subfund

import (
	"context"
	"time"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/subscription"
	"github.com/xraph/subfund/types"
)

// ──────────────────────────────────────────────────
// Subscription lifecycle
// ──────────────────────────────────────────────────

// Subscribe opens (or reactivates) a subscription to a provider's
// service. A lock covering LockPeriods billing periods of the fee, valued
// at the current oracle price, moves from the user's available pool into
// the locked pool. The first payment falls due one billing period from now.
func (e *Engine) Subscribe(ctx context.Context, userID id.UserID, providerID id.ProviderID, serviceID uint64) (*subscription.Subscription, error) {
	priceCents, err := e.oracle.PriceUSDCentsPerUnit(ctx)
	if err != nil {
		return nil, err
	}

	key := subscription.Key{UserID: userID, ProviderID: providerID, ServiceID: serviceID}
	defer e.locks.acquire(
		"config",
		"balance/"+userID.String(),
		"sub/"+key.String(),
		"plan/"+providerID.String(),
		"provider/"+providerID.String(),
	)()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	prov, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if prov.OwnerID == userID {
		return nil, ErrCannotSubscribeToOwn
	}

	p, err := e.store.GetPlan(ctx, providerID, serviceID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrPlanInactive
	}
	if !p.HasCapacity() {
		return nil, ErrPlanFull
	}

	perPeriod, err := feeToBaseUnits(p.FeeUSD, priceCents)
	if err != nil {
		return nil, err
	}
	lockAmount, err := perPeriod.Mul(subscription.LockPeriods)
	if err != nil {
		return nil, err
	}

	bal, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lockAmount > bal.Available {
		return nil, ErrInsufficientFunds
	}

	existing, err := e.store.GetSubscription(ctx, key)
	switch {
	case err == nil:
		if existing.Active {
			return nil, ErrSubscriptionExists
		}
	case IsNotFound(err):
		existing = nil
	default:
		return nil, err
	}

	now := e.now()
	period := time.Duration(p.BillingPeriodSeconds()) * time.Second

	nextBal := bal.Clone()
	if err := nextBal.Lock(lockAmount); err != nil {
		return nil, err
	}

	var sub *subscription.Subscription
	if existing != nil {
		// Reactivation opens a fresh active period.
		sub = existing.Clone()
		sub.SubscribedAt = now
		sub.NextPaymentDue = now.Add(period)
		sub.LockReserved = lockAmount
		sub.LockConsumed = 0
		sub.Active = true
		sub.UnsubscribedAt = nil
		sub.Touch()
	} else {
		sub = &subscription.Subscription{
			Entity:         types.NewEntity(),
			ID:             id.NewSubscriptionID(),
			UserID:         userID,
			ProviderID:     providerID,
			ServiceID:      serviceID,
			SubscribedAt:   now,
			NextPaymentDue: now.Add(period),
			LockReserved:   lockAmount,
			Active:         true,
		}
	}

	nextPlan := *p
	nextPlan.CurrentSubscribers++
	nextPlan.Touch()

	nextProv := *prov
	nextProv.TotalSubscribers++
	nextProv.Touch()

	if existing != nil {
		if err := e.store.UpdateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	} else {
		if err := e.store.CreateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	}
	if err := e.store.UpdateBalance(ctx, nextBal); err != nil {
		return nil, err
	}
	if err := e.store.UpdatePlan(ctx, &nextPlan); err != nil {
		return nil, err
	}
	if err := e.store.UpdateProvider(ctx, &nextProv); err != nil {
		return nil, err
	}

	e.plugins.EmitSubscribed(ctx, sub)
	e.logger.Info("subscribed",
		"user", userID,
		"provider", providerID,
		"service_id", serviceID,
		"locked", lockAmount,
		"next_due", sub.NextPaymentDue,
	)
	return sub, nil
}

// Unsubscribe cancels an active subscription, releasing whatever remains
// of the lock reserved when the active period opened. The subscription
// record survives for history and can be reactivated later.
func (e *Engine) Unsubscribe(ctx context.Context, userID id.UserID, providerID id.ProviderID, serviceID uint64) (*subscription.Subscription, error) {
	key := subscription.Key{UserID: userID, ProviderID: providerID, ServiceID: serviceID}
	defer e.locks.acquire(
		"config",
		"balance/"+userID.String(),
		"sub/"+key.String(),
		"plan/"+providerID.String(),
		"provider/"+providerID.String(),
	)()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	sub, err := e.store.GetSubscription(ctx, key)
	if err != nil {
		return nil, err
	}
	if !sub.Active {
		return nil, ErrSubscriptionNotActive
	}

	bal, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	release := sub.RemainingReserve()

	nextBal := bal.Clone()
	if err := nextBal.Unlock(release); err != nil {
		return nil, err
	}

	next := sub.Clone()
	next.Active = false
	next.UnsubscribedAt = &now
	next.LockReserved = 0
	next.LockConsumed = 0
	next.Touch()

	if err := e.store.UpdateSubscription(ctx, next); err != nil {
		return nil, err
	}
	if err := e.store.UpdateBalance(ctx, nextBal); err != nil {
		return nil, err
	}

	// Counter decrements saturate; drift must never block cancellation.
	if p, err := e.store.GetPlan(ctx, providerID, serviceID); err == nil {
		nextPlan := *p
		if nextPlan.CurrentSubscribers > 0 {
			nextPlan.CurrentSubscribers--
		}
		nextPlan.Touch()
		if err := e.store.UpdatePlan(ctx, &nextPlan); err != nil {
			e.logger.Warn("subscriber counter update failed", "provider", providerID, "error", err)
		}
	}
	if prov, err := e.store.GetProvider(ctx, providerID); err == nil {
		nextProv := *prov
		if nextProv.TotalSubscribers > 0 {
			nextProv.TotalSubscribers--
		}
		nextProv.Touch()
		if err := e.store.UpdateProvider(ctx, &nextProv); err != nil {
			e.logger.Warn("subscriber counter update failed", "provider", providerID, "error", err)
		}
	}

	e.plugins.EmitUnsubscribed(ctx, next)
	e.logger.Info("unsubscribed",
		"user", userID,
		"provider", providerID,
		"service_id", serviceID,
		"released", release,
	)
	return next, nil
}

// Subscription returns the subscription identified by its key tuple.
func (e *Engine) Subscription(ctx context.Context, userID id.UserID, providerID id.ProviderID, serviceID uint64) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subscription.Key{UserID: userID, ProviderID: providerID, ServiceID: serviceID})
}

// ListSubscriptions lists a user's subscriptions.
func (e *Engine) ListSubscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, userID, opts)
}
