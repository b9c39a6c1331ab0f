package balance

import (
	"errors"
	"testing"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

func newFunded(t *testing.T, amount types.Amount) *Balance {
	t.Helper()
	b := New(id.NewUserID())
	if err := b.Deposit(amount); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDepositWithdraw(t *testing.T) {
	b := newFunded(t, 1_000)

	if b.Available != 1_000 || b.TotalDeposited != 1_000 {
		t.Fatalf("after deposit: available %d deposited %d", b.Available, b.TotalDeposited)
	}

	if err := b.Withdraw(400); err != nil {
		t.Fatal(err)
	}
	if b.Available != 600 || b.TotalWithdrawn != 400 {
		t.Fatalf("after withdraw: available %d withdrawn %d", b.Available, b.TotalWithdrawn)
	}

	if err := b.Withdraw(601); !errors.Is(err, types.ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	// Failed withdrawal must not touch the record.
	if b.Available != 600 || b.TotalWithdrawn != 400 {
		t.Fatalf("balance mutated by failed withdraw: %+v", b)
	}

	if !b.Conserved() {
		t.Errorf("conservation violated: %+v", b)
	}
}

func TestLockUnlock(t *testing.T) {
	b := newFunded(t, 1_000)

	if err := b.Lock(700); err != nil {
		t.Fatal(err)
	}
	if b.Available != 300 || b.Locked != 700 {
		t.Fatalf("after lock: available %d locked %d", b.Available, b.Locked)
	}

	if err := b.Lock(301); !errors.Is(err, types.ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}

	if err := b.Unlock(700); err != nil {
		t.Fatal(err)
	}
	if b.Available != 1_000 || b.Locked != 0 {
		t.Fatalf("after unlock: available %d locked %d", b.Available, b.Locked)
	}

	if !b.Conserved() {
		t.Errorf("conservation violated: %+v", b)
	}
}

func TestUnlockSaturates(t *testing.T) {
	b := newFunded(t, 1_000)
	if err := b.Lock(200); err != nil {
		t.Fatal(err)
	}

	// Requesting more than is locked releases only what the pool holds.
	if err := b.Unlock(500); err != nil {
		t.Fatal(err)
	}
	if b.Locked != 0 {
		t.Errorf("locked: got %d, want 0", b.Locked)
	}
	if b.Available != 1_000 {
		t.Errorf("available: got %d, want 1000", b.Available)
	}
	if !b.Conserved() {
		t.Errorf("conservation violated: %+v", b)
	}
}

func TestStakeMoves(t *testing.T) {
	b := newFunded(t, 1_000)

	if err := b.MoveToStake(800); err != nil {
		t.Fatal(err)
	}
	if b.Available != 200 || b.Staked != 800 {
		t.Fatalf("after stake: available %d staked %d", b.Available, b.Staked)
	}

	if err := b.MoveFromStake(801); !errors.Is(err, types.ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}

	if err := b.MoveFromStake(800); err != nil {
		t.Fatal(err)
	}
	if b.Available != 1_000 || b.Staked != 0 {
		t.Fatalf("after unstake: available %d staked %d", b.Available, b.Staked)
	}

	if !b.Conserved() {
		t.Errorf("conservation violated: %+v", b)
	}
}

func TestCreditYield(t *testing.T) {
	b := newFunded(t, 1_000)

	if err := b.CreditYield(50); err != nil {
		t.Fatal(err)
	}
	if b.Available != 1_050 || b.TotalYieldCredited != 50 {
		t.Fatalf("after yield: available %d credited %d", b.Available, b.TotalYieldCredited)
	}
	if !b.Conserved() {
		t.Errorf("conservation violated: %+v", b)
	}
}

func TestSpend(t *testing.T) {
	b := newFunded(t, 1_000)
	if err := b.Lock(600); err != nil {
		t.Fatal(err)
	}

	if err := b.SpendLocked(500); err != nil {
		t.Fatal(err)
	}
	if err := b.SpendAvailable(300); err != nil {
		t.Fatal(err)
	}
	if b.Locked != 100 || b.Available != 100 || b.TotalWithdrawn != 800 {
		t.Fatalf("after spends: %+v", b)
	}

	if err := b.SpendLocked(101); !errors.Is(err, types.ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if err := b.SpendAvailable(101); !errors.Is(err, types.ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}

	if !b.Conserved() {
		t.Errorf("conservation violated: %+v", b)
	}
}

func TestConservationAcrossSequence(t *testing.T) {
	b := New(id.NewUserID())

	steps := []func() error{
		func() error { return b.Deposit(10_000) },
		func() error { return b.Lock(3_000) },
		func() error { return b.MoveToStake(4_000) },
		func() error { return b.CreditYield(250) },
		func() error { return b.SpendLocked(1_500) },
		func() error { return b.Unlock(1_500) },
		func() error { return b.MoveFromStake(4_000) },
		func() error { return b.Withdraw(2_000) },
	}

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !b.Conserved() {
			t.Fatalf("conservation violated after step %d: %+v", i, b)
		}
	}
}

func TestClone(t *testing.T) {
	b := newFunded(t, 500)
	c := b.Clone()

	if err := c.Withdraw(200); err != nil {
		t.Fatal(err)
	}
	if b.Available != 500 {
		t.Errorf("clone mutation leaked into original: %d", b.Available)
	}
}
