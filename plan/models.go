// Package plan defines the service-plan record: a provider's recurring
// subscription offering with a USD-cent fee and a billing period in days.
package plan

import (
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// Billing period bounds, in days.
const (
	MinBillingPeriodDays uint64 = 7
	MaxBillingPeriodDays uint64 = 365
)

// Field length caps enforced at registration.
const (
	MaxNameLength        = 64
	MaxDescriptionLength = 200
	MaxImageURLLength    = 200
)

// Plan is a subscription service plan. The record is immutable after
// creation except for the subscriber counter and the active flag.
// Plans are uniquely keyed by (ProviderID, ServiceID).
type Plan struct {
	types.Entity
	ID                 id.ServiceID  `json:"id"`
	ProviderID         id.ProviderID `json:"provider_id"`
	ServiceID          uint64        `json:"service_id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	FeeUSD             types.Money   `json:"fee_usd"`
	BillingPeriodDays  uint64        `json:"billing_period_days"`
	ImageURL           string        `json:"image_url,omitempty"`
	CurrentSubscribers uint64        `json:"current_subscribers"`
	MaxSubscribers     uint64        `json:"max_subscribers"` // 0 = unlimited
	Active             bool          `json:"active"`
}

// HasCapacity reports whether the plan can accept another subscriber.
func (p *Plan) HasCapacity() bool {
	return p.MaxSubscribers == 0 || p.CurrentSubscribers < p.MaxSubscribers
}

// BillingPeriodSeconds returns the billing period in seconds.
func (p *Plan) BillingPeriodSeconds() int64 {
	return int64(p.BillingPeriodDays) * 86400
}

// ListOpts filters plan listings.
type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
