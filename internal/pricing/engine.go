/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pricing

import (
	"errors"
	"fmt"
	"time"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrPriceUnavailable = errors.New("execution price unavailable")

var hundred = decimal.NewFromInt(100)

// Engine turns spot prices into execution prices. It holds no mutable state; the
// pricing config is passed into every call.
type Engine struct {
	registry *models.AssetRegistry
	now      func() time.Time
}

func NewEngine(registry *models.AssetRegistry) *Engine {
	return &Engine{registry: registry, now: time.Now}
}

// ComputeExecutionPrice prices asset without order-size modulation.
func (e *Engine) ComputeExecutionPrice(asset string, spotPerGram decimal.Decimal, cfg *models.PricingConfig) (*models.ExecutionPrice, error) {
	return e.ComputeExecutionPriceForNotional(asset, spotPerGram, decimal.Zero, cfg)
}

// ComputeExecutionPriceForNotional prices asset for a trade of the given notional
// (spot value in USD). A zero notional disables whale and micro modulation.
func (e *Engine) ComputeExecutionPriceForNotional(asset string, spotPerGram, notional decimal.Decimal, cfg *models.PricingConfig) (*models.ExecutionPrice, error) {
	if !e.registry.IsMetal(asset) {
		return nil, fmt.Errorf("%w: %s is not a tradable metal", store.ErrInvalidAsset, asset)
	}
	if !spotPerGram.IsPositive() {
		return nil, fmt.Errorf("%w: spot price for %s is %s", ErrPriceUnavailable, asset, spotPerGram)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	policy, ok := cfg.MetalMarkup[asset]
	if !ok {
		zap.L().Warn("No markup policy for asset, using fallback", zap.String("asset", asset))
		policy = fallbackMarkup
	}
	regime, err := regimeAdjustment(cfg)
	if err != nil {
		return nil, err
	}

	floor := policy.AbsoluteFloor
	markup := decimal.Max(policy.BaseMargin.Add(regime), floor)

	switch {
	case notional.IsPositive() && cfg.WhaleNotional.IsPositive() && notional.GreaterThanOrEqual(cfg.WhaleNotional):
		// Large trades give up a share of the margin above the floor.
		keep := decimal.NewFromInt(1).Sub(cfg.WhaleFloorPercent.Div(hundred))
		markup = floor.Add(markup.Sub(floor).Mul(keep))
	case notional.IsPositive() && notional.LessThan(cfg.MicroNotional):
		markup = markup.Add(cfg.MicroOptimizationPercent)
	}
	markup = decimal.Max(markup, floor)

	ratio := cfg.BidMarkupRatio
	if ratio.IsZero() {
		ratio = decimal.NewFromInt(1)
	}
	bidMarkup := decimal.Max(markup.Mul(ratio), floor)

	decimals := e.registry.PriceDecimals(asset)
	one := decimal.NewFromInt(1)
	ask := spotPerGram.Mul(one.Add(markup.Div(hundred))).RoundCeil(decimals)
	bid := spotPerGram.Mul(one.Sub(bidMarkup.Div(hundred))).RoundFloor(decimals)
	if !bid.IsPositive() {
		return nil, fmt.Errorf("%w: bid for %s is not positive", ErrPriceUnavailable, asset)
	}

	return &models.ExecutionPrice{
		Asset:                asset,
		SpotPerGram:          spotPerGram,
		ExecutionAsk:         ask,
		ExecutionBid:         bid,
		AppliedMarkupPercent: markup,
		BidMarkupPercent:     bidMarkup,
		ConfigVersion:        cfg.Version,
		ComputedAt:           e.now().UTC(),
	}, nil
}

// ComputeAllExecutionPrices prices every asset in spots. Assets that cannot be priced
// are reported in the error map and left out of the result.
func (e *Engine) ComputeAllExecutionPrices(spots map[string]decimal.Decimal, cfg *models.PricingConfig) (map[string]*models.ExecutionPrice, map[string]error) {
	prices := make(map[string]*models.ExecutionPrice, len(spots))
	var failures map[string]error
	for asset, spot := range spots {
		price, err := e.ComputeExecutionPrice(asset, spot, cfg)
		if err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[asset] = err
			continue
		}
		prices[asset] = price
	}
	return prices, failures
}
