package subfund

import "github.com/xraph/subfund/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// UnitScale is the number of base units in one whole asset unit.
const UnitScale = types.UnitScale

// Re-export Money constructors
var (
	USD     = types.USD
	ZeroUSD = types.ZeroUSD
	Sum     = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
