// Package payment defines the append-only payment record and the batch
// outcome report produced by due-payment processing.
package payment

import (
	"time"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/subscription"
	"github.com/xraph/subfund/types"
)

// Kind classifies how a payment was triggered.
type Kind string

const (
	// KindScheduled is a payment executed by the batch processor on its
	// regular due date.
	KindScheduled Kind = "scheduled"
	// KindManual is a payment executed directly on behalf of a caller.
	KindManual Kind = "manual"
	// KindCatchup is a payment covering a billing period that fell more
	// than one full period behind its due date.
	KindCatchup Kind = "catchup"
)

// Record is one executed subscription payment. Records are never mutated
// after creation; together they form the audit trail.
type Record struct {
	types.Entity
	ID         id.PaymentID  `json:"id"`
	UserID     id.UserID     `json:"user_id"`
	ProviderID id.ProviderID `json:"provider_id"`
	ServiceID  uint64        `json:"service_id"`
	Amount     types.Amount  `json:"amount"`
	Fee        types.Amount  `json:"fee"` // protocol cut, included in Amount
	PaidAt     time.Time     `json:"paid_at"`
	Kind       Kind          `json:"kind"`
}

// Outcome is the per-subscription result of one batch step.
type Outcome struct {
	Key    subscription.Key `json:"key"`
	Record *Record          `json:"record,omitempty"`
	Err    error            `json:"-"`
}

// Failed reports whether this step failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// BatchResult is the mixed success/failure report for one batch run.
type BatchResult struct {
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
	RanAt     time.Time `json:"ran_at"`
}

// ListOpts filters payment record listings.
type ListOpts struct {
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}
