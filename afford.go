package subfund

import (
	"context"
	"sort"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/types"
)

// ServiceOption is one catalog entry in an affordability report.
type ServiceOption struct {
	Plan       *plan.Plan  `json:"plan"`
	FeeUSD     types.Money `json:"fee_usd"`
	Affordable bool        `json:"affordable"`
}

// Affordability projects which services a user's staking yield can fund.
type Affordability struct {
	StakedPrincipal types.Amount    `json:"staked_principal"`
	APYBps          uint32          `json:"apy_bps"`
	MonthlyBudget   types.Money     `json:"monthly_budget"`
	Options         []ServiceOption `json:"options"`
}

// CheckSubscribableServices projects the user's monthly yield budget from
// their staked principal at the current oracle APY and price, then ranks
// the active service catalog against it: affordable services first, each
// group in ascending fee order. Equal fees keep catalog order, so the
// ranking is deterministic for a given catalog and budget.
func (e *Engine) CheckSubscribableServices(ctx context.Context, userID id.UserID) (*Affordability, error) {
	apyBps, err := e.oracle.APYBasisPoints(ctx)
	if err != nil {
		return nil, err
	}
	priceCents, err := e.oracle.PriceUSDCentsPerUnit(ctx)
	if err != nil {
		return nil, err
	}

	var principal types.Amount
	pos, err := e.store.GetStake(ctx, userID)
	switch {
	case err == nil:
		if pos.Active {
			principal = pos.Principal
		}
	case IsNotFound(err):
	default:
		return nil, err
	}

	budget, err := monthlyYieldBudget(principal, apyBps, priceCents)
	if err != nil {
		return nil, err
	}

	plans, err := e.store.ListPlans(ctx, plan.ListOpts{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	report := &Affordability{
		StakedPrincipal: principal,
		APYBps:          apyBps,
		MonthlyBudget:   budget,
		Options:         make([]ServiceOption, 0, len(plans)),
	}
	for _, p := range plans {
		report.Options = append(report.Options, ServiceOption{
			Plan:       p,
			FeeUSD:     p.FeeUSD,
			Affordable: budget.GreaterThanOrEqual(p.FeeUSD),
		})
	}

	sort.SliceStable(report.Options, func(i, j int) bool {
		a, b := report.Options[i], report.Options[j]
		if a.Affordable != b.Affordable {
			return a.Affordable
		}
		return a.FeeUSD.LessThan(b.FeeUSD)
	})

	return report, nil
}

// monthlyYieldBudget values one month of yield on the principal in USD
// cents: principal × apyBps / 10_000 / 12, priced at the oracle rate.
func monthlyYieldBudget(principal types.Amount, apyBps uint32, priceCents uint64) (types.Money, error) {
	if principal == 0 {
		return types.ZeroUSD(), nil
	}
	annual, err := principal.Bps(uint64(apyBps))
	if err != nil {
		return types.Money{}, err
	}
	monthly := annual / 12
	return unitsToCents(monthly, priceCents)
}
