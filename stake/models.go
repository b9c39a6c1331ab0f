// Package stake defines the per-user staking position.
//
// Principal is the base-unit value committed to yield generation.
// YieldUnits is the quantity of the yield-bearing representation minted
// against that principal; it converts back to principal-equivalent base
// units through an APY-derived exchange rate. Elapsed-time yield accrues
// against the principal and is realized by claim or unstake.
package stake

import (
	"time"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// MinStakeAmount is the smallest accepted stake, in base units.
const MinStakeAmount types.Amount = 1_000_000_000

// MinClaimInterval is the shortest span between yield claims.
const MinClaimInterval = 24 * time.Hour

// Position is a user's staking position. One per user; deactivated when
// principal returns to zero.
type Position struct {
	types.Entity
	ID               id.StakeID   `json:"id"`
	UserID           id.UserID    `json:"user_id"`
	Principal        types.Amount `json:"principal"`
	YieldUnits       types.Amount `json:"yield_units"`
	StakedAt         time.Time    `json:"staked_at"`
	LastYieldClaim   time.Time    `json:"last_yield_claim"`
	TotalYieldEarned types.Amount `json:"total_yield_earned"`
	Active           bool         `json:"active"`
}

// Clone returns a copy for check-then-commit mutation.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}

// AccruedYield computes the elapsed-time yield on the principal since the
// last claim: principal × apyBps × elapsedSeconds / 10_000 / secondsPerYear,
// floored. A non-positive elapsed span yields zero.
func (p *Position) AccruedYield(apyBps uint32, now time.Time) (types.Amount, error) {
	if !p.Active || p.Principal == 0 {
		return 0, nil
	}
	elapsed := now.Unix() - p.LastYieldClaim.Unix()
	if elapsed <= 0 {
		return 0, nil
	}
	annual, err := p.Principal.Bps(uint64(apyBps))
	if err != nil {
		return 0, err
	}
	out, err := types.MulDiv(uint64(annual), uint64(elapsed), types.SecondsPerYear)
	if err != nil {
		return 0, err
	}
	return types.Amount(out), nil
}

// UnitsForPrincipal converts a principal amount into yield-bearing units
// at the current exchange rate: amount × 10_000 / (10_000 + apyBps).
func UnitsForPrincipal(amount types.Amount, apyBps uint32) (types.Amount, error) {
	out, err := types.MulDiv(uint64(amount), types.BasisPointDenominator, types.BasisPointDenominator+uint64(apyBps))
	if err != nil {
		return 0, err
	}
	return types.Amount(out), nil
}

// PrincipalForUnits converts yield-bearing units back into base units at
// the current exchange rate: units × (10_000 + apyBps) / 10_000.
func PrincipalForUnits(units types.Amount, apyBps uint32) (types.Amount, error) {
	out, err := types.MulDiv(uint64(units), types.BasisPointDenominator+uint64(apyBps), types.BasisPointDenominator)
	if err != nil {
		return 0, err
	}
	return types.Amount(out), nil
}
