// Package oracle normalizes external yield-rate and price-feed records
// into the two numeric queries the engine consumes: the staking APY in
// basis points and the asset price in USD cents per priced unit.
//
// The adapter validates feed shape and freshness but never mutates
// anything; both queries are pure reads. The staleness bound is a caller
// decision supplied at construction — a zero MaxAge disables the check.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/subfund/types"
)

// Sentinel errors. The root subfund package re-exports these as
// ErrOracleInvalid / ErrOracleStale.
var (
	ErrInvalid = errors.New("subfund: oracle feed invalid")
	ErrStale   = errors.New("subfund: oracle feed stale")
)

// Plausibility bounds on the normalized price, in USD cents per unit
// ($10 – $1000).
const (
	MinPriceUSDCents uint64 = 1_000
	MaxPriceUSDCents uint64 = 100_000
)

// MaxAPYBps caps the accepted yield rate at 100%.
const MaxAPYBps uint32 = 10_000

// Feed is one raw oracle observation: a fixed-point value with a decimal
// exponent and a publish timestamp. Price feeds quote USD per priced unit
// scaled by 10^Exponent; APY feeds quote basis points with Exponent 0.
type Feed struct {
	Value       int64     `json:"value"`
	Exponent    int32     `json:"exponent"`
	PublishedAt time.Time `json:"published_at"`
}

// Source supplies the raw feed records the adapter reads. Implementations
// are opaque to the engine — a keyed record store, an RPC client, or a
// fixture.
type Source interface {
	PriceFeed(ctx context.Context) (*Feed, error)
	APYFeed(ctx context.Context) (*Feed, error)
}

// Adapter is the numeric contract the engine consumes.
type Adapter interface {
	// APYBasisPoints returns the current staking APY in basis points.
	APYBasisPoints(ctx context.Context) (uint32, error)
	// PriceUSDCentsPerUnit returns the current asset price in USD cents
	// per priced unit.
	PriceUSDCentsPerUnit(ctx context.Context) (uint64, error)
}

// FeedAdapter validates and normalizes feeds from a Source.
type FeedAdapter struct {
	source Source
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a FeedAdapter.
type Option func(*FeedAdapter)

// WithMaxAge sets the staleness bound. Feeds older than maxAge are
// rejected with ErrStale. Zero disables the check.
func WithMaxAge(maxAge time.Duration) Option {
	return func(a *FeedAdapter) { a.maxAge = maxAge }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *FeedAdapter) { a.now = now }
}

// NewFeedAdapter wraps a Source in validation and normalization.
func NewFeedAdapter(source Source, opts ...Option) *FeedAdapter {
	a := &FeedAdapter{
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ Adapter = (*FeedAdapter)(nil)

// APYBasisPoints implements Adapter.
func (a *FeedAdapter) APYBasisPoints(ctx context.Context) (uint32, error) {
	feed, err := a.source.APYFeed(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := a.checkFreshness(feed); err != nil {
		return 0, err
	}
	if feed.Value <= 0 || feed.Exponent != 0 {
		return 0, fmt.Errorf("%w: apy value %d exponent %d", ErrInvalid, feed.Value, feed.Exponent)
	}
	if feed.Value > int64(MaxAPYBps) {
		return 0, fmt.Errorf("%w: apy %d bps above cap", ErrInvalid, feed.Value)
	}
	return uint32(feed.Value), nil
}

// PriceUSDCentsPerUnit implements Adapter.
func (a *FeedAdapter) PriceUSDCentsPerUnit(ctx context.Context) (uint64, error) {
	feed, err := a.source.PriceFeed(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := a.checkFreshness(feed); err != nil {
		return 0, err
	}
	cents, err := NormalizePriceCents(feed.Value, feed.Exponent)
	if err != nil {
		return 0, err
	}
	return cents, nil
}

func (a *FeedAdapter) checkFreshness(feed *Feed) error {
	if feed == nil {
		return fmt.Errorf("%w: nil feed", ErrInvalid)
	}
	if a.maxAge <= 0 {
		return nil
	}
	if feed.PublishedAt.IsZero() {
		return fmt.Errorf("%w: feed has no publish time", ErrInvalid)
	}
	if age := a.now().Sub(feed.PublishedAt); age > a.maxAge {
		return fmt.Errorf("%w: published %s ago, bound %s", ErrStale, age, a.maxAge)
	}
	return nil
}

// NormalizePriceCents converts a fixed-point feed value (value × 10^expo
// USD per unit) into whole USD cents. Multiplication happens before
// division so a negative exponent does not truncate prematurely.
func NormalizePriceCents(value int64, expo int32) (uint64, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: non-positive price %d", ErrInvalid, value)
	}

	var cents uint64
	switch {
	case expo >= 0:
		if expo > 16 {
			return 0, fmt.Errorf("%w: exponent %d out of range", ErrInvalid, expo)
		}
		scaled, err := types.MulDiv(uint64(value), pow10(uint32(expo))*100, 1)
		if err != nil {
			return 0, fmt.Errorf("%w: price normalization overflow", ErrInvalid)
		}
		cents = scaled
	default:
		if expo < -18 {
			return 0, fmt.Errorf("%w: exponent %d out of range", ErrInvalid, expo)
		}
		scaled, err := types.MulDiv(uint64(value), 100, pow10(uint32(-expo)))
		if err != nil {
			return 0, fmt.Errorf("%w: price normalization overflow", ErrInvalid)
		}
		cents = scaled
	}

	if cents < MinPriceUSDCents || cents > MaxPriceUSDCents {
		return 0, fmt.Errorf("%w: price %d cents outside plausible bounds", ErrInvalid, cents)
	}
	return cents, nil
}

func pow10(n uint32) uint64 {
	out := uint64(1)
	for i := uint32(0); i < n; i++ {
		out *= 10
	}
	return out
}

// Static is a fixed-value Adapter for tests and bootstrapping.
type Static struct {
	APYBps uint32
	Price  uint64
}

var _ Adapter = Static{}

// APYBasisPoints implements Adapter.
func (s Static) APYBasisPoints(context.Context) (uint32, error) {
	if s.APYBps == 0 || s.APYBps > MaxAPYBps {
		return 0, fmt.Errorf("%w: static apy %d bps", ErrInvalid, s.APYBps)
	}
	return s.APYBps, nil
}

// PriceUSDCentsPerUnit implements Adapter.
func (s Static) PriceUSDCentsPerUnit(context.Context) (uint64, error) {
	if s.Price < MinPriceUSDCents || s.Price > MaxPriceUSDCents {
		return 0, fmt.Errorf("%w: static price %d cents", ErrInvalid, s.Price)
	}
	return s.Price, nil
}
