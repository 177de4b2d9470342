package pricing

import (
	"context"
	"errors"
	"testing"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

type fakeSpots map[string]decimal.Decimal

func (f fakeSpots) SpotPrice(_ context.Context, asset string) (decimal.Decimal, error) {
	price, ok := f[asset]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return price, nil
}

func newTestQuoter(spots fakeSpots) *Quoter {
	registry := models.NewAssetRegistry(models.DefaultAssets())
	source, _ := newTestSource(&fakeConfigStore{})
	return NewQuoter(spots, source, NewEngine(registry), DefaultSpreadPolicy(), registry)
}

func TestQuoter_ExecutionPrice(t *testing.T) {
	q := newTestQuoter(fakeSpots{"AUXG": decimal.NewFromInt(100)})

	price, err := q.ExecutionPrice(context.Background(), "auxg", decimal.Zero)
	if err != nil {
		t.Fatalf("ExecutionPrice failed: %v", err)
	}
	if !price.ExecutionAsk.Equal(decimal.RequireFromString("100.50")) || !price.ExecutionBid.Equal(decimal.RequireFromString("99.60")) {
		t.Fatalf("unexpected price: ask %s bid %s", price.ExecutionAsk, price.ExecutionBid)
	}

	whale, err := q.ExecutionPrice(context.Background(), "AUXG", decimal.NewFromInt(200000))
	if err != nil {
		t.Fatalf("ExecutionPrice failed: %v", err)
	}
	if !whale.ExecutionAsk.Equal(decimal.RequireFromString("100.38")) {
		t.Fatalf("expected whale ask 100.38, got %s", whale.ExecutionAsk)
	}

	if _, err := q.ExecutionPrice(context.Background(), "AUXS", decimal.Zero); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestQuoter_ExecutionPricesReportsFailures(t *testing.T) {
	q := newTestQuoter(fakeSpots{"AUXG": decimal.NewFromInt(100), "AUXPT": decimal.Zero})

	prices, failures := q.ExecutionPrices(context.Background())
	if len(prices) != 1 || prices["AUXG"] == nil {
		t.Fatalf("expected only AUXG priced, got %v", prices)
	}
	for _, asset := range []string{"AUXS", "AUXPT", "AUXPD"} {
		if !errors.Is(failures[asset], ErrPriceUnavailable) {
			t.Fatalf("expected %s unavailable, got %v", asset, failures[asset])
		}
	}
}

func TestQuoter_MatchingPricesNeverBetterThanEngine(t *testing.T) {
	q := newTestQuoter(fakeSpots{"AUXG": decimal.NewFromInt(100)})
	cfg := q.Config(context.Background())

	ask, bid, err := q.MatchingPrices(context.Background(), "AUXG", cfg)
	if err != nil {
		t.Fatalf("MatchingPrices failed: %v", err)
	}
	if !ask.Equal(decimal.RequireFromString("100.50")) || !bid.Equal(decimal.RequireFromString("99.60")) {
		t.Fatalf("unexpected matching prices: ask %s bid %s", ask, bid)
	}

	// a floor below the spread lets the spread dominate
	cfg.MetalMarkup["AUXG"] = models.MetalMarkup{BaseMargin: decimal.RequireFromString("0.1"), AbsoluteFloor: decimal.RequireFromString("0.1")}
	ask, bid, err = q.MatchingPrices(context.Background(), "AUXG", cfg)
	if err != nil {
		t.Fatalf("MatchingPrices failed: %v", err)
	}
	if !ask.Equal(decimal.RequireFromString("100.25")) || !bid.Equal(decimal.RequireFromString("99.75")) {
		t.Fatalf("expected spread prices 100.25/99.75, got %s/%s", ask, bid)
	}
}
