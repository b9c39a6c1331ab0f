package subfund

import (
	"context"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/stake"
	"github.com/xraph/subfund/types"
)

// ──────────────────────────────────────────────────
// Staking
// ──────────────────────────────────────────────────

// Stake moves funds from the user's available pool into their staking
// position, minting yield-bearing units at the current exchange rate.
// Each stake must meet the minimum stake amount.
func (e *Engine) Stake(ctx context.Context, userID id.UserID, amount types.Amount) (*stake.Position, error) {
	if amount < stake.MinStakeAmount {
		return nil, ErrMinStakeNotMet
	}

	apyBps, err := e.oracle.APYBasisPoints(ctx)
	if err != nil {
		return nil, err
	}

	defer e.locks.acquire("config", "balance/"+userID.String(), "stake/"+userID.String())()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	bal, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount > bal.Available {
		return nil, ErrInsufficientFunds
	}

	pos, err := e.store.GetStake(ctx, userID)
	created := false
	switch {
	case err == nil:
	case IsNotFound(err):
		now := e.now()
		pos = &stake.Position{
			Entity:         types.NewEntity(),
			ID:             id.NewStakeID(),
			UserID:         userID,
			StakedAt:       now,
			LastYieldClaim: now,
			Active:         true,
		}
		created = true
	default:
		return nil, err
	}

	units, err := stake.UnitsForPrincipal(amount, apyBps)
	if err != nil {
		return nil, err
	}

	nextPos := pos.Clone()
	nextPos.Principal, err = nextPos.Principal.Add(amount)
	if err != nil {
		return nil, err
	}
	nextPos.YieldUnits, err = nextPos.YieldUnits.Add(units)
	if err != nil {
		return nil, err
	}
	nextPos.Active = true
	nextPos.Touch()

	nextBal := bal.Clone()
	if err := nextBal.MoveToStake(amount); err != nil {
		return nil, err
	}

	if created {
		if err := e.store.CreateStake(ctx, nextPos); err != nil {
			return nil, err
		}
	} else {
		if err := e.store.UpdateStake(ctx, nextPos); err != nil {
			return nil, err
		}
	}
	if err := e.store.UpdateBalance(ctx, nextBal); err != nil {
		return nil, err
	}

	e.plugins.EmitStaked(ctx, nextPos, uint64(amount))
	e.logger.Debug("stake",
		"user", userID,
		"amount", amount,
		"units", units,
		"principal", nextPos.Principal,
	)
	return nextPos, nil
}

// Unstake moves principal back to the available pool, burning
// yield-bearing units at the current exchange rate. The position is
// deactivated when its principal returns to zero.
func (e *Engine) Unstake(ctx context.Context, userID id.UserID, amount types.Amount) (*stake.Position, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	apyBps, err := e.oracle.APYBasisPoints(ctx)
	if err != nil {
		return nil, err
	}

	defer e.locks.acquire("config", "balance/"+userID.String(), "stake/"+userID.String())()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	pos, err := e.store.GetStake(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !pos.Active {
		return nil, ErrStakeInactive
	}
	if amount > pos.Principal {
		return nil, ErrNoStakedFunds
	}

	bal, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	units, err := stake.UnitsForPrincipal(amount, apyBps)
	if err != nil {
		return nil, err
	}
	if units > pos.YieldUnits {
		return nil, ErrInsufficientYieldUnits
	}

	nextPos := pos.Clone()
	nextPos.Principal -= amount
	nextPos.YieldUnits -= units
	if nextPos.Principal == 0 {
		// Residual units from rate drift are burned with the position.
		nextPos.YieldUnits = 0
		nextPos.Active = false
	}
	nextPos.Touch()

	nextBal := bal.Clone()
	if err := nextBal.MoveFromStake(amount); err != nil {
		return nil, err
	}

	if err := e.store.UpdateStake(ctx, nextPos); err != nil {
		return nil, err
	}
	if err := e.store.UpdateBalance(ctx, nextBal); err != nil {
		return nil, err
	}

	e.plugins.EmitUnstaked(ctx, nextPos, uint64(amount))
	e.logger.Debug("unstake",
		"user", userID,
		"amount", amount,
		"units", units,
		"principal", nextPos.Principal,
	)
	return nextPos, nil
}

// ClaimYield realizes accrued staking yield into the user's available
// pool. Claims are rate-limited to one per MinClaimInterval.
func (e *Engine) ClaimYield(ctx context.Context, userID id.UserID) (types.Amount, error) {
	apyBps, err := e.oracle.APYBasisPoints(ctx)
	if err != nil {
		return 0, err
	}

	defer e.locks.acquire("config", "balance/"+userID.String(), "stake/"+userID.String())()

	if err := e.requireUnpaused(ctx); err != nil {
		return 0, err
	}

	pos, err := e.store.GetStake(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !pos.Active {
		return 0, ErrStakeInactive
	}

	now := e.now()
	if now.Sub(pos.LastYieldClaim) < stake.MinClaimInterval {
		return 0, ErrClaimTooSoon
	}

	accrued, err := pos.AccruedYield(apyBps, now)
	if err != nil {
		return 0, err
	}

	bal, err := e.store.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	nextPos := pos.Clone()
	nextPos.LastYieldClaim = now
	nextPos.TotalYieldEarned, err = nextPos.TotalYieldEarned.Add(accrued)
	if err != nil {
		return 0, err
	}
	nextPos.Touch()

	nextBal := bal.Clone()
	if err := nextBal.CreditYield(accrued); err != nil {
		return 0, err
	}

	if err := e.store.UpdateStake(ctx, nextPos); err != nil {
		return 0, err
	}
	if err := e.store.UpdateBalance(ctx, nextBal); err != nil {
		return 0, err
	}

	e.plugins.EmitYieldClaimed(ctx, nextPos, uint64(accrued))
	e.logger.Debug("yield claimed", "user", userID, "amount", accrued)
	return accrued, nil
}

// StakePosition returns the user's staking position.
func (e *Engine) StakePosition(ctx context.Context, userID id.UserID) (*stake.Position, error) {
	return e.store.GetStake(ctx, userID)
}
