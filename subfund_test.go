package subfund_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/subfund"
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/oracle"
	"github.com/xraph/subfund/payment"
	"github.com/xraph/subfund/plan"
	"github.com/xraph/subfund/stake"
	"github.com/xraph/subfund/store/memory"
	"github.com/xraph/subfund/subscription"
	"github.com/xraph/subfund/types"
)

// Fixture numbers used throughout: at $100.00 per unit, a $15.99 fee is
// 159_900_000 base units per period and 1_918_800_000 across the twelve
// locked periods. The default 100 bps protocol fee on one payment is
// 1_599_000 base units.
const (
	perPeriodUnits = types.Amount(159_900_000)
	lockUnits      = perPeriodUnits * subscription.LockPeriods
	protocolCut    = types.Amount(1_599_000)
)

// testClock is a settable time source shared with the engine under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// env wires an engine against the in-memory store with a pinned clock and
// an initialized protocol.
type env struct {
	engine    *subfund.Engine
	clock     *testClock
	authority id.UserID
}

func newEnv(t *testing.T, opts ...subfund.Option) *env {
	t.Helper()

	clk := newTestClock()
	authority := id.NewUserID()

	base := []subfund.Option{
		subfund.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		subfund.WithOracle(oracle.Static{Price: 10_000, APYBps: 500}),
		subfund.WithClock(clk.Now),
	}
	engine := subfund.New(memory.New(), append(base, opts...)...)

	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(func() {
		if err := engine.Stop(); err != nil {
			t.Errorf("stop engine: %v", err)
		}
	})

	if _, err := engine.Initialize(ctx, authority); err != nil {
		t.Fatalf("initialize protocol: %v", err)
	}

	return &env{engine: engine, clock: clk, authority: authority}
}

// registerService sets up a provider owned by a fresh user and lists a
// $15.99 plan billed every 30 days under it.
func (e *env) registerService(t *testing.T) (id.UserID, id.ProviderID, *plan.Plan) {
	t.Helper()

	ctx := context.Background()
	owner := id.NewUserID()
	prov, err := e.engine.RegisterProvider(ctx, owner, "Acme Streaming", "video on demand")
	if err != nil {
		t.Fatalf("register provider: %v", err)
	}
	p, err := e.engine.RegisterService(ctx, owner, prov.ID, subfund.ServiceSpec{
		Name:              "Premium",
		FeeUSD:            types.USD(1599),
		BillingPeriodDays: 30,
	})
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	return owner, prov.ID, p
}

// fundedSubscriber deposits the given amount for a fresh user and
// subscribes them to the service.
func (e *env) fundedSubscriber(t *testing.T, providerID id.ProviderID, serviceID uint64, deposit types.Amount) id.UserID {
	t.Helper()

	ctx := context.Background()
	user := id.NewUserID()
	if _, err := e.engine.Deposit(ctx, user, deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := e.engine.Subscribe(ctx, user, providerID, serviceID); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return user
}

func (e *env) checkConserved(t *testing.T, user id.UserID) {
	t.Helper()

	bal, err := e.engine.Balance(context.Background(), user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Conserved() {
		t.Errorf("conservation violated: available=%d locked=%d staked=%d deposited=%d withdrawn=%d yield=%d",
			bal.Available, bal.Locked, bal.Staked, bal.TotalDeposited, bal.TotalWithdrawn, bal.TotalYieldCredited)
	}
}

func TestInitialize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cfg, err := e.engine.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Authority != e.authority {
		t.Errorf("authority = %v, want %v", cfg.Authority, e.authority)
	}
	if cfg.FeeBps != 100 {
		t.Errorf("default fee = %d bps, want 100", cfg.FeeBps)
	}
	if cfg.Paused {
		t.Error("new protocol should not be paused")
	}

	if _, err := e.engine.Initialize(ctx, id.NewUserID()); !errors.Is(err, subfund.ErrProtocolInitalized) {
		t.Errorf("second initialize: got %v, want ErrProtocolInitalized", err)
	}
}

func TestRegisterProvider(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := id.NewUserID()

	prov, err := e.engine.RegisterProvider(ctx, owner, "Acme", "infra tooling")
	if err != nil {
		t.Fatalf("register provider: %v", err)
	}
	if prov.OwnerID != owner {
		t.Errorf("owner = %v, want %v", prov.OwnerID, owner)
	}
	if prov.ServiceCount != 0 {
		t.Errorf("new provider service count = %d, want 0", prov.ServiceCount)
	}

	if _, err := e.engine.RegisterProvider(ctx, owner, "Acme Again", ""); !errors.Is(err, subfund.ErrAlreadyExists) {
		t.Errorf("second provider per owner: got %v, want ErrAlreadyExists", err)
	}
	if _, err := e.engine.RegisterProvider(ctx, id.NewUserID(), "", ""); !errors.Is(err, subfund.ErrNameTooLong) {
		t.Errorf("empty name: got %v, want ErrNameTooLong", err)
	}
}

func TestRegisterService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := id.NewUserID()

	prov, err := e.engine.RegisterProvider(ctx, owner, "Acme", "")
	if err != nil {
		t.Fatalf("register provider: %v", err)
	}

	first, err := e.engine.RegisterService(ctx, owner, prov.ID, subfund.ServiceSpec{
		Name:              "Basic",
		FeeUSD:            types.USD(999),
		BillingPeriodDays: 30,
	})
	if err != nil {
		t.Fatalf("register first service: %v", err)
	}
	second, err := e.engine.RegisterService(ctx, owner, prov.ID, subfund.ServiceSpec{
		Name:              "Premium",
		FeeUSD:            types.USD(1599),
		BillingPeriodDays: 30,
	})
	if err != nil {
		t.Fatalf("register second service: %v", err)
	}
	if first.ServiceID != 1 || second.ServiceID != 2 {
		t.Errorf("service ids = %d, %d, want 1, 2", first.ServiceID, second.ServiceID)
	}

	cases := []struct {
		name    string
		owner   id.UserID
		spec    subfund.ServiceSpec
		wantErr error
	}{
		{
			name:    "ZeroFee",
			owner:   owner,
			spec:    subfund.ServiceSpec{Name: "Free", FeeUSD: types.ZeroUSD(), BillingPeriodDays: 30},
			wantErr: subfund.ErrInvalidAmount,
		},
		{
			name:    "PeriodTooShort",
			owner:   owner,
			spec:    subfund.ServiceSpec{Name: "Daily", FeeUSD: types.USD(100), BillingPeriodDays: 3},
			wantErr: subfund.ErrInvalidBillingPeriod,
		},
		{
			name:    "PeriodTooLong",
			owner:   owner,
			spec:    subfund.ServiceSpec{Name: "Decade", FeeUSD: types.USD(100), BillingPeriodDays: 400},
			wantErr: subfund.ErrInvalidBillingPeriod,
		},
		{
			name:    "NotOwner",
			owner:   id.NewUserID(),
			spec:    subfund.ServiceSpec{Name: "Hijack", FeeUSD: types.USD(100), BillingPeriodDays: 30},
			wantErr: subfund.ErrUnauthorized,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.engine.RegisterService(ctx, tc.owner, prov.ID, tc.spec); !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDepositWithdraw(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := id.NewUserID()

	bal, err := e.engine.Deposit(ctx, user, 5_000_000_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal.Available != 5_000_000_000 {
		t.Errorf("available = %d, want 5_000_000_000", bal.Available)
	}

	bal, err = e.engine.Withdraw(ctx, user, 2_000_000_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if bal.Available != 3_000_000_000 {
		t.Errorf("available after withdraw = %d, want 3_000_000_000", bal.Available)
	}

	if _, err := e.engine.Withdraw(ctx, user, 3_000_000_001); !errors.Is(err, subfund.ErrInsufficientFunds) {
		t.Errorf("over-withdraw: got %v, want ErrInsufficientFunds", err)
	}
	if _, err := e.engine.Deposit(ctx, user, 0); !errors.Is(err, subfund.ErrInvalidAmount) {
		t.Errorf("zero deposit: got %v, want ErrInvalidAmount", err)
	}
	if _, err := e.engine.Withdraw(ctx, id.NewUserID(), 1); !subfund.IsNotFound(err) {
		t.Errorf("withdraw unknown user: got %v, want not-found", err)
	}

	e.checkConserved(t, user)
}

func TestSubscribeLocksTwelvePeriods(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)

	user := id.NewUserID()
	if _, err := e.engine.Deposit(ctx, user, 10_000_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	sub, err := e.engine.Subscribe(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.LockReserved != lockUnits {
		t.Errorf("lock reserved = %d, want %d", sub.LockReserved, lockUnits)
	}
	wantDue := e.clock.Now().Add(30 * 24 * time.Hour)
	if !sub.NextPaymentDue.Equal(wantDue) {
		t.Errorf("next due = %v, want %v", sub.NextPaymentDue, wantDue)
	}

	bal, err := e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Locked != lockUnits {
		t.Errorf("locked = %d, want %d", bal.Locked, lockUnits)
	}
	if bal.Available != 10_000_000_000-lockUnits {
		t.Errorf("available = %d, want %d", bal.Available, 10_000_000_000-lockUnits)
	}

	if _, err := e.engine.Subscribe(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrSubscriptionExists) {
		t.Errorf("double subscribe: got %v, want ErrSubscriptionExists", err)
	}
	e.checkConserved(t, user)
}

func TestSubscribeRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner, providerID, p := e.registerService(t)

	t.Run("OwnService", func(t *testing.T) {
		if _, err := e.engine.Deposit(ctx, owner, 10_000_000_000); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := e.engine.Subscribe(ctx, owner, providerID, p.ServiceID); !errors.Is(err, subfund.ErrCannotSubscribeToOwn) {
			t.Errorf("got %v, want ErrCannotSubscribeToOwn", err)
		}
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		user := id.NewUserID()
		if _, err := e.engine.Deposit(ctx, user, lockUnits-1); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := e.engine.Subscribe(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrInsufficientFunds) {
			t.Errorf("got %v, want ErrInsufficientFunds", err)
		}
	})

	t.Run("InactivePlan", func(t *testing.T) {
		if err := e.engine.SetServiceActive(ctx, owner, providerID, p.ServiceID, false); err != nil {
			t.Fatalf("deactivate plan: %v", err)
		}
		user := id.NewUserID()
		if _, err := e.engine.Deposit(ctx, user, 10_000_000_000); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := e.engine.Subscribe(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrPlanInactive) {
			t.Errorf("got %v, want ErrPlanInactive", err)
		}
		if err := e.engine.SetServiceActive(ctx, owner, providerID, p.ServiceID, true); err != nil {
			t.Fatalf("reactivate plan: %v", err)
		}
	})

	t.Run("PlanFull", func(t *testing.T) {
		capped, err := e.engine.RegisterService(ctx, owner, providerID, subfund.ServiceSpec{
			Name:              "Limited",
			FeeUSD:            types.USD(1599),
			BillingPeriodDays: 30,
			MaxSubscribers:    1,
		})
		if err != nil {
			t.Fatalf("register capped service: %v", err)
		}
		e.fundedSubscriber(t, providerID, capped.ServiceID, 10_000_000_000)

		user := id.NewUserID()
		if _, err := e.engine.Deposit(ctx, user, 10_000_000_000); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := e.engine.Subscribe(ctx, user, providerID, capped.ServiceID); !errors.Is(err, subfund.ErrPlanFull) {
			t.Errorf("got %v, want ErrPlanFull", err)
		}
	})
}

func TestExecutePayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	user := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	if _, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrPaymentNotDue) {
		t.Fatalf("payment before due: got %v, want ErrPaymentNotDue", err)
	}

	e.clock.Advance(30 * 24 * time.Hour)

	rec, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("execute payment: %v", err)
	}
	if rec.Amount != perPeriodUnits {
		t.Errorf("amount = %d, want %d", rec.Amount, perPeriodUnits)
	}
	if rec.Fee != protocolCut {
		t.Errorf("fee = %d, want %d", rec.Fee, protocolCut)
	}
	if rec.Kind != payment.KindManual {
		t.Errorf("kind = %q, want %q", rec.Kind, payment.KindManual)
	}

	sub, err := e.engine.Subscription(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if sub.LockConsumed != perPeriodUnits {
		t.Errorf("lock consumed = %d, want %d", sub.LockConsumed, perPeriodUnits)
	}
	if sub.TotalPayments != 1 {
		t.Errorf("total payments = %d, want 1", sub.TotalPayments)
	}

	bal, err := e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Locked != lockUnits-perPeriodUnits {
		t.Errorf("locked = %d, want %d", bal.Locked, lockUnits-perPeriodUnits)
	}

	cfg, err := e.engine.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.TotalFeesCollected != protocolCut {
		t.Errorf("fees collected = %d, want %d", cfg.TotalFeesCollected, protocolCut)
	}

	history, err := e.engine.PaymentHistory(ctx, user, payment.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
	e.checkConserved(t, user)
}

func TestPaymentFundedByRealizedYield(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)

	// Stake 100 units, then subscribe with nothing left over: once the
	// twelve locked periods are spent, only accrued yield can pay.
	user := id.NewUserID()
	if _, err := e.engine.Deposit(ctx, user, 100_000_000_000+lockUnits); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := e.engine.Stake(ctx, user, 100_000_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := e.engine.Subscribe(ctx, user, providerID, p.ServiceID); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < int(subscription.LockPeriods); i++ {
		e.clock.Advance(30 * 24 * time.Hour)
		if _, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID); err != nil {
			t.Fatalf("payment %d: %v", i+1, err)
		}
	}

	bal, err := e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Available != 0 || bal.Locked != 0 {
		t.Fatalf("pools before yield-funded payment = %d available / %d locked, want 0/0",
			bal.Available, bal.Locked)
	}

	// 390 days of accrual on 100 units at 500 bps:
	// 5e9 * 33_696_000 / 31_536_000 = 5_342_465_753 base units.
	e.clock.Advance(30 * 24 * time.Hour)
	rec, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("yield-funded payment: %v", err)
	}
	if rec.Amount != perPeriodUnits {
		t.Errorf("amount = %d, want %d", rec.Amount, perPeriodUnits)
	}

	const accrued = types.Amount(5_342_465_753)
	bal, err = e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.TotalYieldCredited != accrued {
		t.Errorf("yield credited = %d, want %d", bal.TotalYieldCredited, accrued)
	}
	if bal.Available != accrued-perPeriodUnits {
		t.Errorf("available = %d, want %d", bal.Available, accrued-perPeriodUnits)
	}
	if bal.Staked != 100_000_000_000 {
		t.Errorf("staked = %d, want 100_000_000_000", bal.Staked)
	}

	pos, err := e.engine.StakePosition(ctx, user)
	if err != nil {
		t.Fatalf("stake position: %v", err)
	}
	if pos.TotalYieldEarned != accrued {
		t.Errorf("yield earned = %d, want %d", pos.TotalYieldEarned, accrued)
	}
	if !pos.LastYieldClaim.Equal(e.clock.Now()) {
		t.Errorf("last claim = %v, want %v", pos.LastYieldClaim, e.clock.Now())
	}
	e.checkConserved(t, user)
}

func TestExecutePaymentInactivePlan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner, providerID, p := e.registerService(t)
	user := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	if err := e.engine.SetServiceActive(ctx, owner, providerID, p.ServiceID, false); err != nil {
		t.Fatalf("deactivate plan: %v", err)
	}
	e.clock.Advance(30 * 24 * time.Hour)

	if _, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrPlanInactive) {
		t.Fatalf("charge against inactive plan: got %v, want ErrPlanInactive", err)
	}

	result, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("batch = %d processed / %d failed, want 1/1", result.Processed, result.Failed)
	}
	if !errors.Is(result.Outcomes[0].Err, subfund.ErrPlanInactive) {
		t.Errorf("batch outcome: got %v, want ErrPlanInactive", result.Outcomes[0].Err)
	}

	history, err := e.engine.PaymentHistory(ctx, user, payment.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history length = %d, want 0", len(history))
	}
}

func TestProcessDuePaymentsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	user := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	e.clock.Advance(30 * 24 * time.Hour)

	result, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if result.Processed != 1 || result.Succeeded != 1 {
		t.Errorf("first batch = %d processed / %d succeeded, want 1/1", result.Processed, result.Succeeded)
	}
	if result.Outcomes[0].Record.Kind != payment.KindScheduled {
		t.Errorf("kind = %q, want %q", result.Outcomes[0].Record.Kind, payment.KindScheduled)
	}

	// Settlement advanced the due date one full period, so an immediate
	// re-run has nothing to do.
	again, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if again.Processed != 0 {
		t.Errorf("immediate re-run processed = %d, want 0", again.Processed)
	}

	cfg, err := e.engine.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !cfg.LastPaymentRun.Equal(e.clock.Now()) {
		t.Errorf("last run = %v, want %v", cfg.LastPaymentRun, e.clock.Now())
	}

	sub, err := e.engine.Subscription(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	if sub.TotalPayments != 1 {
		t.Errorf("total payments = %d, want 1", sub.TotalPayments)
	}
}

func TestCatchupClassification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	// Two full periods elapse before anyone runs a batch. The first
	// settlement covers a period that fell a whole period behind.
	e.clock.Advance(2 * 30 * 24 * time.Hour)

	first, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if first.Succeeded != 1 {
		t.Fatalf("first batch succeeded = %d, want 1", first.Succeeded)
	}
	if kind := first.Outcomes[0].Record.Kind; kind != payment.KindCatchup {
		t.Errorf("first kind = %q, want %q", kind, payment.KindCatchup)
	}

	// The due date advanced by one period, landing exactly on the current
	// time, so the next run settles the second period on schedule.
	second, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if second.Succeeded != 1 {
		t.Fatalf("second batch succeeded = %d, want 1", second.Succeeded)
	}
	if kind := second.Outcomes[0].Record.Kind; kind != payment.KindScheduled {
		t.Errorf("second kind = %q, want %q", kind, payment.KindScheduled)
	}

	third, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("third batch: %v", err)
	}
	if third.Processed != 0 {
		t.Errorf("caught-up batch processed = %d, want 0", third.Processed)
	}
}

func TestUnsubscribeReleasesRemainingReserve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	user := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	e.clock.Advance(30 * 24 * time.Hour)
	if _, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID); err != nil {
		t.Fatalf("execute payment: %v", err)
	}

	sub, err := e.engine.Unsubscribe(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if sub.Active {
		t.Error("subscription still active after unsubscribe")
	}
	if sub.UnsubscribedAt == nil {
		t.Error("unsubscribed timestamp not set")
	}

	bal, err := e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// One payment consumed one period of the lock; the remaining eleven
	// periods return to the available pool.
	if bal.Locked != 0 {
		t.Errorf("locked = %d, want 0", bal.Locked)
	}
	wantAvailable := types.Amount(10_000_000_000) - perPeriodUnits
	if bal.Available != wantAvailable {
		t.Errorf("available = %d, want %d", bal.Available, wantAvailable)
	}
	e.checkConserved(t, user)

	if _, err := e.engine.Unsubscribe(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrSubscriptionNotActive) {
		t.Errorf("second unsubscribe: got %v, want ErrSubscriptionNotActive", err)
	}
}

func TestReactivation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	user := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	original, err := e.engine.Subscription(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}

	if _, err := e.engine.Unsubscribe(ctx, user, providerID, p.ServiceID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	e.clock.Advance(90 * 24 * time.Hour)

	sub, err := e.engine.Subscribe(ctx, user, providerID, p.ServiceID)
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if sub.ID != original.ID {
		t.Errorf("reactivation minted a new record: %v != %v", sub.ID, original.ID)
	}
	if !sub.Active {
		t.Error("reactivated subscription not active")
	}
	if sub.UnsubscribedAt != nil {
		t.Error("reactivation kept stale unsubscribe timestamp")
	}
	if sub.LockReserved != lockUnits || sub.LockConsumed != 0 {
		t.Errorf("reactivated lock = %d reserved / %d consumed, want %d/0",
			sub.LockReserved, sub.LockConsumed, lockUnits)
	}
	wantDue := e.clock.Now().Add(30 * 24 * time.Hour)
	if !sub.NextPaymentDue.Equal(wantDue) {
		t.Errorf("next due = %v, want %v", sub.NextPaymentDue, wantDue)
	}
	e.checkConserved(t, user)
}

func TestPauseGating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	user := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	if err := e.engine.SetPaused(ctx, id.NewUserID(), true); !errors.Is(err, subfund.ErrUnauthorized) {
		t.Fatalf("pause by non-authority: got %v, want ErrUnauthorized", err)
	}
	if err := e.engine.SetPaused(ctx, e.authority, true); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if _, err := e.engine.Deposit(ctx, user, 1_000_000); !errors.Is(err, subfund.ErrProtocolPaused) {
		t.Errorf("deposit while paused: got %v, want ErrProtocolPaused", err)
	}
	if _, err := e.engine.Withdraw(ctx, user, 1_000_000); !errors.Is(err, subfund.ErrProtocolPaused) {
		t.Errorf("withdraw while paused: got %v, want ErrProtocolPaused", err)
	}
	if _, err := e.engine.Stake(ctx, user, stake.MinStakeAmount); !errors.Is(err, subfund.ErrProtocolPaused) {
		t.Errorf("stake while paused: got %v, want ErrProtocolPaused", err)
	}
	if _, err := e.engine.Unsubscribe(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrProtocolPaused) {
		t.Errorf("unsubscribe while paused: got %v, want ErrProtocolPaused", err)
	}

	e.clock.Advance(30 * 24 * time.Hour)
	if _, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID); !errors.Is(err, subfund.ErrProtocolPaused) {
		t.Errorf("settle while paused: got %v, want ErrProtocolPaused", err)
	}

	if err := e.engine.SetPaused(ctx, e.authority, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := e.engine.ExecutePayment(ctx, user, providerID, p.ServiceID); err != nil {
		t.Errorf("settle after unpause: %v", err)
	}
}

func TestSetFeeBps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.engine.SetFeeBps(ctx, id.NewUserID(), 200); !errors.Is(err, subfund.ErrUnauthorized) {
		t.Errorf("fee change by non-authority: got %v, want ErrUnauthorized", err)
	}
	if err := e.engine.SetFeeBps(ctx, e.authority, 1001); !errors.Is(err, subfund.ErrInvalidFee) {
		t.Errorf("fee above cap: got %v, want ErrInvalidFee", err)
	}
	if err := e.engine.SetFeeBps(ctx, e.authority, 250); err != nil {
		t.Fatalf("fee change: %v", err)
	}

	cfg, err := e.engine.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.FeeBps != 250 {
		t.Errorf("fee = %d bps, want 250", cfg.FeeBps)
	}
}

func TestStakeLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := id.NewUserID()

	if _, err := e.engine.Deposit(ctx, user, 5_000_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := e.engine.Stake(ctx, user, stake.MinStakeAmount-1); !errors.Is(err, subfund.ErrMinStakeNotMet) {
		t.Fatalf("below minimum: got %v, want ErrMinStakeNotMet", err)
	}

	pos, err := e.engine.Stake(ctx, user, 2_000_000_000)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if pos.Principal != 2_000_000_000 {
		t.Errorf("principal = %d, want 2_000_000_000", pos.Principal)
	}
	// 2e9 principal at 500 bps mints 2e9 * 10000 / 10500 units.
	if pos.YieldUnits != 1_904_761_904 {
		t.Errorf("yield units = %d, want 1_904_761_904", pos.YieldUnits)
	}

	bal, err := e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Staked != 2_000_000_000 || bal.Available != 3_000_000_000 {
		t.Errorf("pools = %d staked / %d available, want 2_000_000_000/3_000_000_000", bal.Staked, bal.Available)
	}

	if _, err := e.engine.ClaimYield(ctx, user); !errors.Is(err, subfund.ErrClaimTooSoon) {
		t.Fatalf("immediate claim: got %v, want ErrClaimTooSoon", err)
	}

	// A full year at 500 bps accrues exactly 5% of principal.
	e.clock.Advance(365 * 24 * time.Hour)
	accrued, err := e.engine.ClaimYield(ctx, user)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if accrued != 100_000_000 {
		t.Errorf("accrued = %d, want 100_000_000", accrued)
	}
	if _, err := e.engine.ClaimYield(ctx, user); !errors.Is(err, subfund.ErrClaimTooSoon) {
		t.Errorf("back-to-back claim: got %v, want ErrClaimTooSoon", err)
	}
	e.checkConserved(t, user)

	if _, err := e.engine.Unstake(ctx, user, 3_000_000_000); !errors.Is(err, subfund.ErrNoStakedFunds) {
		t.Errorf("unstake above principal: got %v, want ErrNoStakedFunds", err)
	}
	pos, err = e.engine.Unstake(ctx, user, 2_000_000_000)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if pos.Active {
		t.Error("emptied position still active")
	}
	if pos.Principal != 0 || pos.YieldUnits != 0 {
		t.Errorf("emptied position holds %d principal / %d units", pos.Principal, pos.YieldUnits)
	}

	bal, err = e.engine.Balance(ctx, user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Staked != 0 {
		t.Errorf("staked = %d, want 0", bal.Staked)
	}
	if bal.Available != 5_000_000_000+100_000_000 {
		t.Errorf("available = %d, want %d", bal.Available, 5_000_000_000+100_000_000)
	}
	e.checkConserved(t, user)
}

func TestCheckSubscribableServices(t *testing.T) {
	e := newEnv(t, subfund.WithOracle(oracle.Static{Price: 10_000, APYBps: 700}))
	ctx := context.Background()
	owner := id.NewUserID()

	prov, err := e.engine.RegisterProvider(ctx, owner, "Acme", "")
	if err != nil {
		t.Fatalf("register provider: %v", err)
	}
	fees := []int64{1599, 99_999, 999}
	names := []string{"Premium", "Enterprise", "Basic"}
	for i, cents := range fees {
		if _, err := e.engine.RegisterService(ctx, owner, prov.ID, subfund.ServiceSpec{
			Name:              names[i],
			FeeUSD:            types.USD(cents),
			BillingPeriodDays: 30,
		}); err != nil {
			t.Fatalf("register service %q: %v", names[i], err)
		}
	}

	// 1000 units staked at 700 bps yields $583.33 a month at $100 a unit.
	user := id.NewUserID()
	if _, err := e.engine.Deposit(ctx, user, 1_500_000_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := e.engine.Stake(ctx, user, 1_000_000_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	report, err := e.engine.CheckSubscribableServices(ctx, user)
	if err != nil {
		t.Fatalf("affordability: %v", err)
	}
	if report.StakedPrincipal != 1_000_000_000_000 {
		t.Errorf("principal = %d, want 1_000_000_000_000", report.StakedPrincipal)
	}
	if report.APYBps != 700 {
		t.Errorf("apy = %d bps, want 700", report.APYBps)
	}
	if report.MonthlyBudget.Cents != 58_333 {
		t.Errorf("budget = %d cents, want 58_333", report.MonthlyBudget.Cents)
	}

	if len(report.Options) != 3 {
		t.Fatalf("options = %d, want 3", len(report.Options))
	}
	wantOrder := []struct {
		name       string
		affordable bool
	}{
		{"Basic", true},
		{"Premium", true},
		{"Enterprise", false},
	}
	for i, want := range wantOrder {
		got := report.Options[i]
		if got.Plan.Name != want.name || got.Affordable != want.affordable {
			t.Errorf("option[%d] = %q affordable=%t, want %q affordable=%t",
				i, got.Plan.Name, got.Affordable, want.name, want.affordable)
		}
	}

	t.Run("NoStake", func(t *testing.T) {
		report, err := e.engine.CheckSubscribableServices(ctx, id.NewUserID())
		if err != nil {
			t.Fatalf("affordability: %v", err)
		}
		if !report.MonthlyBudget.IsZero() {
			t.Errorf("budget without stake = %v, want zero", report.MonthlyBudget)
		}
		for _, opt := range report.Options {
			if opt.Affordable {
				t.Errorf("service %q affordable on zero budget", opt.Plan.Name)
			}
		}
	})
}

func TestBatchPartialFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, providerID, p := e.registerService(t)

	// Funded subscriber: once the lock runs dry, payments fall through to
	// the available pool. Exact subscriber: nothing remains after the lock.
	funded := e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)
	exact := e.fundedSubscriber(t, providerID, p.ServiceID, lockUnits)

	for i := 0; i < int(subscription.LockPeriods); i++ {
		e.clock.Advance(30 * 24 * time.Hour)
		result, err := e.engine.ProcessDuePayments(ctx)
		if err != nil {
			t.Fatalf("batch %d: %v", i+1, err)
		}
		if result.Failed != 0 {
			t.Fatalf("batch %d failed = %d, want 0", i+1, result.Failed)
		}
	}

	// The thirteenth period exhausts both locks. The funded subscriber
	// falls through to their available pool; the exact one cannot pay.
	e.clock.Advance(30 * 24 * time.Hour)
	result, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("thirteenth batch: %v", err)
	}
	if result.Processed != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("thirteenth batch = %d/%d/%d processed/succeeded/failed, want 2/1/1",
			result.Processed, result.Succeeded, result.Failed)
	}
	for _, outcome := range result.Outcomes {
		if outcome.Key.UserID == exact {
			if !errors.Is(outcome.Err, subfund.ErrInsufficientFunds) {
				t.Errorf("exact subscriber: got %v, want ErrInsufficientFunds", outcome.Err)
			}
		} else if outcome.Failed() {
			t.Errorf("funded subscriber failed: %v", outcome.Err)
		}
	}

	bal, err := e.engine.Balance(ctx, funded)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Locked != 0 {
		t.Errorf("funded locked = %d, want 0", bal.Locked)
	}
	wantAvailable := types.Amount(10_000_000_000) - lockUnits - perPeriodUnits
	if bal.Available != wantAvailable {
		t.Errorf("funded available = %d, want %d", bal.Available, wantAvailable)
	}
	e.checkConserved(t, funded)
	e.checkConserved(t, exact)

	// The failed subscription stays due; only it shows up on a re-run.
	again, err := e.engine.ProcessDuePayments(ctx)
	if err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if again.Processed != 1 || again.Failed != 1 {
		t.Errorf("re-run = %d processed / %d failed, want 1/1", again.Processed, again.Failed)
	}
}

// eventLog records plugin callbacks to verify the engine emits them.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) Name() string { return "event_log" }

func (l *eventLog) record(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

func (l *eventLog) OnDeposit(context.Context, interface{}, uint64) error {
	l.record("deposit")
	return nil
}

func (l *eventLog) OnSubscribed(context.Context, interface{}) error {
	l.record("subscribed")
	return nil
}

func (l *eventLog) OnPaymentExecuted(context.Context, interface{}) error {
	l.record("payment")
	return nil
}

func (l *eventLog) OnBatchCompleted(context.Context, interface{}, time.Duration) error {
	l.record("batch")
	return nil
}

func TestPluginEvents(t *testing.T) {
	log := &eventLog{}
	e := newEnv(t, subfund.WithPlugin(log))
	ctx := context.Background()
	_, providerID, p := e.registerService(t)
	e.fundedSubscriber(t, providerID, p.ServiceID, 10_000_000_000)

	e.clock.Advance(30 * 24 * time.Hour)
	if _, err := e.engine.ProcessDuePayments(ctx); err != nil {
		t.Fatalf("batch: %v", err)
	}

	for _, event := range []string{"deposit", "subscribed", "payment", "batch"} {
		if !log.has(event) {
			t.Errorf("event %q never emitted", event)
		}
	}
}
