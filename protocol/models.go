// Package protocol holds the singleton protocol configuration record.
package protocol

import (
	"time"

	"github.com/xraph/subfund/id"
	"github.com/xraph/subfund/types"
)

// Fee limits, in basis points.
const (
	DefaultFeeBps uint16 = 100  // 1%
	MaxFeeBps     uint16 = 1000 // 10%
)

// Config is the protocol configuration singleton. It is created once at
// bootstrap and mutated only by the authority (fee changes, pause toggle)
// or by the engine's own counters.
type Config struct {
	types.Entity
	Authority          id.UserID    `json:"authority"`
	FeeBps             uint16       `json:"fee_bps"`
	Paused             bool         `json:"paused"`
	TotalServices      uint64       `json:"total_services"`
	TotalFeesCollected types.Amount `json:"total_fees_collected"`
	LastPaymentRun     time.Time    `json:"last_payment_run"`
}

// New returns a Config owned by the given authority with default fee.
func New(authority id.UserID) *Config {
	return &Config{
		Entity:    types.NewEntity(),
		Authority: authority,
		FeeBps:    DefaultFeeBps,
	}
}
