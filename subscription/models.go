// Package subscription defines the user-subscription record and its
// lifecycle state. A subscription is keyed by (user, provider, service)
// and moves NonExistent → Active → Inactive; an inactive subscription can
// be reactivated, opening a new active period.
package subscription

import (
	"fmt"
	"time"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// LockPeriods is how many billing periods of the plan fee are moved into
// the locked pool when a subscription opens.
const LockPeriods = 12

// Subscription ties a user to a provider's service plan.
//
// LockReserved is the amount moved into the locked pool when the current
// active period opened; LockConsumed is the portion of it spent by executed
// payments since then. The difference is what unsubscribe releases, so a
// price move between payment and cancellation cannot fabricate or destroy
// locked value.
type Subscription struct {
	types.Entity
	ID             id.SubscriptionID `json:"id"`
	UserID         id.UserID         `json:"user_id"`
	ProviderID     id.ProviderID     `json:"provider_id"`
	ServiceID      uint64            `json:"service_id"`
	SubscribedAt   time.Time         `json:"subscribed_at"`
	NextPaymentDue time.Time         `json:"next_payment_due"`
	LastPaymentAt  *time.Time        `json:"last_payment_at,omitempty"`
	TotalPayments  uint64            `json:"total_payments"`
	LockReserved   types.Amount      `json:"lock_reserved"`
	LockConsumed   types.Amount      `json:"lock_consumed"`
	Active         bool              `json:"active"`
	UnsubscribedAt *time.Time        `json:"unsubscribed_at,omitempty"`
}

// Key identifies a subscription by its composite identity tuple.
type Key struct {
	UserID     id.UserID
	ProviderID id.ProviderID
	ServiceID  uint64
}

// Key returns the subscription's composite key.
func (s *Subscription) Key() Key {
	return Key{UserID: s.UserID, ProviderID: s.ProviderID, ServiceID: s.ServiceID}
}

// String renders the key as "user/provider/serviceID".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.UserID, k.ProviderID, k.ServiceID)
}

// Clone returns a copy for check-then-commit mutation.
func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.LastPaymentAt != nil {
		t := *s.LastPaymentAt
		c.LastPaymentAt = &t
	}
	if s.UnsubscribedAt != nil {
		t := *s.UnsubscribedAt
		c.UnsubscribedAt = &t
	}
	return &c
}

// RemainingReserve returns the locked amount still reserved for this
// subscription, saturating at zero.
func (s *Subscription) RemainingReserve() types.Amount {
	return s.LockReserved.SaturatingSub(s.LockConsumed)
}

// Due reports whether a payment is due at the given instant.
func (s *Subscription) Due(now time.Time) bool {
	return s.Active && !now.Before(s.NextPaymentDue)
}

// ListOpts filters subscription listings.
type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
