// Package balance defines the per-user balance record and its checked
// mutations. A user's funds live in three pools — available, locked, and
// staked — and every movement between pools (or in/out of the protocol)
// goes through a method here that preserves the conservation identity:
//
//	available + locked + staked == deposited + yield credited − withdrawn
//
// Methods never partially apply: on any arithmetic failure the receiver is
// left untouched and an error is returned.
package balance

import (
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// Balance is the per-user balance record.
type Balance struct {
	types.Entity
	UserID             id.UserID    `json:"user_id"`
	Available          types.Amount `json:"available"`
	Locked             types.Amount `json:"locked"`
	Staked             types.Amount `json:"staked"`
	TotalDeposited     types.Amount `json:"total_deposited"`
	TotalWithdrawn     types.Amount `json:"total_withdrawn"`
	TotalYieldCredited types.Amount `json:"total_yield_credited"`
}

// New returns an empty balance for the given user.
func New(userID id.UserID) *Balance {
	return &Balance{
		Entity: types.NewEntity(),
		UserID: userID,
	}
}

// Clone returns a copy; engine operations mutate the copy and persist it
// only after every check has passed.
func (b *Balance) Clone() *Balance {
	c := *b
	return &c
}

// Total returns the sum of the three pools.
func (b *Balance) Total() types.Amount {
	return b.Available + b.Locked + b.Staked
}

// Conserved reports whether the conservation identity holds.
func (b *Balance) Conserved() bool {
	in := uint64(b.TotalDeposited) + uint64(b.TotalYieldCredited)
	return uint64(b.Total())+uint64(b.TotalWithdrawn) == in
}

// Deposit credits the available pool.
func (b *Balance) Deposit(amount types.Amount) error {
	avail, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	dep, err := b.TotalDeposited.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.TotalDeposited = avail, dep
	b.Touch()
	return nil
}

// Withdraw debits the available pool.
func (b *Balance) Withdraw(amount types.Amount) error {
	avail, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	wd, err := b.TotalWithdrawn.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.TotalWithdrawn = avail, wd
	b.Touch()
	return nil
}

// Lock moves funds from available to locked.
func (b *Balance) Lock(amount types.Amount) error {
	avail, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	locked, err := b.Locked.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.Locked = avail, locked
	b.Touch()
	return nil
}

// Unlock moves funds from locked back to available. The locked debit
// saturates at zero so bookkeeping drift can never underflow; the credit
// is capped to what was actually held in the locked pool.
func (b *Balance) Unlock(amount types.Amount) error {
	release := amount
	if release > b.Locked {
		release = b.Locked
	}
	avail, err := b.Available.Add(release)
	if err != nil {
		return err
	}
	b.Locked -= release
	b.Available = avail
	b.Touch()
	return nil
}

// MoveToStake moves funds from available to staked.
func (b *Balance) MoveToStake(amount types.Amount) error {
	avail, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	staked, err := b.Staked.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.Staked = avail, staked
	b.Touch()
	return nil
}

// MoveFromStake moves funds from staked back to available.
func (b *Balance) MoveFromStake(amount types.Amount) error {
	staked, err := b.Staked.Sub(amount)
	if err != nil {
		return err
	}
	avail, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	b.Staked, b.Available = staked, avail
	b.Touch()
	return nil
}

// CreditYield credits realized staking yield to the available pool.
// Yield enters the conservation identity on the inflow side.
func (b *Balance) CreditYield(amount types.Amount) error {
	avail, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	yc, err := b.TotalYieldCredited.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.TotalYieldCredited = avail, yc
	b.Touch()
	return nil
}

// SpendLocked pays out of the locked pool (funds leave the protocol).
func (b *Balance) SpendLocked(amount types.Amount) error {
	locked, err := b.Locked.Sub(amount)
	if err != nil {
		return err
	}
	wd, err := b.TotalWithdrawn.Add(amount)
	if err != nil {
		return err
	}
	b.Locked, b.TotalWithdrawn = locked, wd
	b.Touch()
	return nil
}

// SpendAvailable pays out of the available pool (funds leave the protocol).
func (b *Balance) SpendAvailable(amount types.Amount) error {
	avail, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	wd, err := b.TotalWithdrawn.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.TotalWithdrawn = avail, wd
	b.Touch()
	return nil
}
