// Package provider defines the service-provider record.
package provider

import (
	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// Field length caps enforced at registration.
const (
	MaxNameLength        = 64
	MaxDescriptionLength = 200
)

// Provider is a registered service provider. Providers are never
// destroyed; an unverified provider is soft-disabled. A user owns at most
// one provider record, and ServiceCount hands out sequential service IDs
// for its plans.
type Provider struct {
	types.Entity
	ID               id.ProviderID `json:"id"`
	OwnerID          id.UserID     `json:"owner_id"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	ServiceCount     uint64        `json:"service_count"`
	TotalSubscribers uint64        `json:"total_subscribers"`
	Verified         bool          `json:"verified"`
}

// ListOpts filters provider listings.
type ListOpts struct {
	VerifiedOnly bool
	Limit        int
	Offset       int
}
