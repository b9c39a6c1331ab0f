package subfund

import (
	"context"

	"github.com/xraph/subfund/balance"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// ──────────────────────────────────────────────────
// Deposits and withdrawals
// ──────────────────────────────────────────────────

// Deposit credits the user's available pool. The balance record is
// created on first deposit.
func (e *Engine) Deposit(ctx context.Context, userID id.UserID, amount types.Amount) (*balance.Balance, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	defer e.locks.acquire("config", "balance/"+userID.String())()

	if err := e.requireUnpaused(ctx); err != nil {
		return nil, err
	}

	bal, err := e.store.GetBalance(ctx, userID)
	switch {
	case err == nil:
	case IsNotFound(err):
		bal = balance.New(userID)
		if err := e.store.CreateBalance(ctx, bal); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	next := bal.Clone()
	if err := next.Deposit(amount); err != nil {
		return nil, err
	}
	if err := e.store.UpdateBalance(ctx, next); err != nil {
		return nil, err
	}

	e.plugins.EmitDeposit(ctx, next, uint64(amount))
	e.logger.Debug("deposit", "user", userID, "amount", amount, "available", next.Available)
	return next, nil
}

// Withdraw debits the user's available pool. Locked and staked funds
// cannot be withdrawn directly.
func (e *Engine) Withdraw(ctx context.Context, userID id.UserID, amount types.Amount) (*balance.Balance, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	defer e.locks.acquire("config", "balance/"+userID.String())()

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

	next := bal.Clone()
	if err := next.Withdraw(amount); err != nil {
		return nil, err
	}
	if err := e.store.UpdateBalance(ctx, next); err != nil {
		return nil, err
	}

	e.plugins.EmitWithdraw(ctx, next, uint64(amount))
	e.logger.Debug("withdraw", "user", userID, "amount", amount, "available", next.Available)
	return next, nil
}

// Balance returns the user's balance record.
func (e *Engine) Balance(ctx context.Context, userID id.UserID) (*balance.Balance, error) {
	return e.store.GetBalance(ctx, userID)
}
