package pricing

import (
	"context"
	"strings"

	"metal-trade-core/internal/metrics"
	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

// SpotSource returns the spot price per gram of one asset.
type SpotSource interface {
	SpotPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Quoter joins the spot feed, the live config and the engine. Every call reads the
// config afresh from the source.
type Quoter struct {
	spots    SpotSource
	configs  *ConfigSource
	engine   *Engine
	spread   *SpreadPolicy
	registry *models.AssetRegistry
}

func NewQuoter(spots SpotSource, configs *ConfigSource, engine *Engine, spread *SpreadPolicy, registry *models.AssetRegistry) *Quoter {
	return &Quoter{spots: spots, configs: configs, engine: engine, spread: spread, registry: registry}
}

// ExecutionPrice prices asset for a trade of notional USD; zero skips size modulation.
func (q *Quoter) ExecutionPrice(ctx context.Context, asset string, notional decimal.Decimal) (*models.ExecutionPrice, error) {
	asset = strings.ToUpper(asset)
	spot, err := q.spots.SpotPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	price, err := q.engine.ComputeExecutionPriceForNotional(asset, spot, notional, q.configs.Current(ctx))
	if err != nil {
		return nil, err
	}
	metrics.IncQuote(asset)
	return price, nil
}

// ExecutionPrices prices every metal under one config snapshot.
func (q *Quoter) ExecutionPrices(ctx context.Context) (map[string]*models.ExecutionPrice, map[string]error) {
	cfg := q.configs.Current(ctx)
	spots := make(map[string]decimal.Decimal)
	failures := make(map[string]error)
	for _, asset := range q.registry.Metals() {
		spot, err := q.spots.SpotPrice(ctx, asset)
		if err != nil {
			failures[asset] = err
			continue
		}
		spots[asset] = spot
	}

	prices, errs := q.engine.ComputeAllExecutionPrices(spots, cfg)
	for asset, err := range errs {
		failures[asset] = err
	}
	for asset := range prices {
		metrics.IncQuote(asset)
	}
	return prices, failures
}

// MatchingPrices returns the ask and bid the fill scan compares resting orders against.
func (q *Quoter) MatchingPrices(ctx context.Context, asset string, cfg *models.PricingConfig) (ask, bid decimal.Decimal, err error) {
	asset = strings.ToUpper(asset)
	spot, err := q.spots.SpotPrice(ctx, asset)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	price, err := q.engine.ComputeExecutionPrice(asset, spot, cfg)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	ask, bid = q.spread.MatchingPrices(price, q.registry.PriceDecimals(asset))
	return ask, bid, nil
}

// Config returns the current pricing config snapshot.
func (q *Quoter) Config(ctx context.Context) *models.PricingConfig {
	return q.configs.Current(ctx)
}
