package oracle

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fixtureSource returns canned feeds for adapter tests.
type fixtureSource struct {
	price *Feed
	apy   *Feed
	err   error
}

func (f fixtureSource) PriceFeed(context.Context) (*Feed, error) { return f.price, f.err }
func (f fixtureSource) APYFeed(context.Context) (*Feed, error)   { return f.apy, f.err }

func TestNormalizePriceCents(t *testing.T) {
	tests := []struct {
		name    string
		value   int64
		expo    int32
		want    uint64
		wantErr error
	}{
		// $100.00 expressed at different exponents.
		{"WholeDollars", 100, 0, 10_000, nil},
		{"NegativeExpo", 100_000_000, -6, 10_000, nil},
		{"PositiveExpo", 10, 1, 10_000, nil},
		// Truncation happens after scaling, not before.
		{"SubCentPrecision", 123_456_789, -6, 12_345, nil},
		{"LowerBound", 10, 0, 1_000, nil},
		{"UpperBound", 1_000, 0, 100_000, nil},
		{"BelowBound", 9, 0, 0, ErrInvalid},
		{"AboveBound", 1_001, 0, 0, ErrInvalid},
		{"ZeroValue", 0, 0, 0, ErrInvalid},
		{"NegativeValue", -100, 0, 0, ErrInvalid},
		{"ExponentTooLarge", 1, 17, 0, ErrInvalid},
		{"ExponentTooSmall", 1, -19, 0, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePriceCents(tt.value, tt.expo)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFeedAdapterPrice(t *testing.T) {
	published := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := fixtureSource{
		price: &Feed{Value: 100_000_000, Exponent: -6, PublishedAt: published},
	}

	a := NewFeedAdapter(src,
		WithMaxAge(time.Minute),
		WithClock(func() time.Time { return published.Add(30 * time.Second) }),
	)

	cents, err := a.PriceUSDCentsPerUnit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cents != 10_000 {
		t.Errorf("got %d cents, want 10000", cents)
	}
}

func TestFeedAdapterStaleness(t *testing.T) {
	published := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := fixtureSource{
		price: &Feed{Value: 100, Exponent: 0, PublishedAt: published},
	}

	a := NewFeedAdapter(src,
		WithMaxAge(time.Minute),
		WithClock(func() time.Time { return published.Add(2 * time.Minute) }),
	)

	_, err := a.PriceUSDCentsPerUnit(context.Background())
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	// A zero MaxAge disables the freshness check entirely.
	relaxed := NewFeedAdapter(src,
		WithClock(func() time.Time { return published.Add(24 * time.Hour) }),
	)
	if _, err := relaxed.PriceUSDCentsPerUnit(context.Background()); err != nil {
		t.Fatalf("expected stale feed accepted without MaxAge, got %v", err)
	}
}

func TestFeedAdapterAPY(t *testing.T) {
	published := time.Now().UTC()

	tests := []struct {
		name    string
		feed    *Feed
		want    uint32
		wantErr error
	}{
		{"Valid", &Feed{Value: 700, Exponent: 0, PublishedAt: published}, 700, nil},
		{"AtCap", &Feed{Value: 10_000, Exponent: 0, PublishedAt: published}, 10_000, nil},
		{"AboveCap", &Feed{Value: 10_001, Exponent: 0, PublishedAt: published}, 0, ErrInvalid},
		{"Zero", &Feed{Value: 0, Exponent: 0, PublishedAt: published}, 0, ErrInvalid},
		{"WrongExponent", &Feed{Value: 700, Exponent: -2, PublishedAt: published}, 0, ErrInvalid},
		{"NilFeed", nil, 0, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewFeedAdapter(fixtureSource{apy: tt.feed}, WithMaxAge(time.Hour))
			got, err := a.APYBasisPoints(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStaticAdapter(t *testing.T) {
	ctx := context.Background()

	good := Static{Price: 10_000, APYBps: 500}
	if cents, err := good.PriceUSDCentsPerUnit(ctx); err != nil || cents != 10_000 {
		t.Errorf("price: got %d, %v", cents, err)
	}
	if apy, err := good.APYBasisPoints(ctx); err != nil || apy != 500 {
		t.Errorf("apy: got %d, %v", apy, err)
	}

	bad := Static{Price: 1, APYBps: 20_000}
	if _, err := bad.PriceUSDCentsPerUnit(ctx); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for implausible price, got %v", err)
	}
	if _, err := bad.APYBasisPoints(ctx); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for capped apy, got %v", err)
	}
}
