// Package subfund provides a yield-funded subscription engine for Go applications.
//
// Subfund is designed as a library, not a service. Import it directly into your
// Go application and let staking yield cover recurring subscription fees. It
// provides:
//
//   - Custody balances with available, locked, and staked pools
//   - A single-asset staking vault with APY-based yield accrual
//   - Provider and service-plan registration with USD-cent pricing
//   - Subscription lifecycle with an upfront multi-period lock
//   - Idempotent recurring-payment batches driven by due dates
//   - Affordability projection of a service catalog against staking yield
//   - Comprehensive audit trail and production metrics via plugins
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/subfund"
//	    "github.com/xraph/subfund/store/memory"
//	)
//
//	engine := subfund.New(memory.New())
//
//	// Start the engine (runs migrations, begins background billing)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Users deposit funds and stake them to earn yield:
//
//	engine.Deposit(ctx, userID, 10*subfund.UnitScale)
//	engine.Stake(ctx, userID, 8*subfund.UnitScale)
//
// Providers register services priced in USD cents:
//
//	svc, err := engine.RegisterService(ctx, ownerID, providerID, subfund.ServiceSpec{
//	    Name:              "Pro",
//	    FeeUSD:            subfund.USD(1599),
//	    BillingPeriodDays: 30,
//	})
//
// Subscribing locks enough funds to cover twelve billing periods upfront;
// scheduled batches then settle each period as it falls due:
//
//	sub, err := engine.Subscribe(ctx, userID, providerID, svc.ServiceID)
//	result, err := engine.ProcessDuePayments(ctx)
//
// # Arithmetic
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. USD values are cents, asset amounts are base units at
// nine decimals, and conversions between the two go through the oracle
// price with explicit flooring.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	prov_01h2xcejqtf2nbrexx3vqjhp41  // Provider ID
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package subfund
