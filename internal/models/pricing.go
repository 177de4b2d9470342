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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolatilityMode scales markup upward as market volatility rises
type VolatilityMode string

const (
	VolatilityCalm     VolatilityMode = "calm"
	VolatilityElevated VolatilityMode = "elevated"
	VolatilityHigh     VolatilityMode = "high"
	VolatilityExtreme  VolatilityMode = "extreme"
)

// MarketHoursMode reflects expected liquidity of the current trading session
type MarketHoursMode string

const (
	MarketHoursLondonNY MarketHoursMode = "london_ny"
	MarketHoursAsia     MarketHoursMode = "asia"
	MarketHoursWeekend  MarketHoursMode = "weekend"
)

// DepthMode reflects order-book depth assumptions
type DepthMode string

const (
	DepthDeep   DepthMode = "deep"
	DepthNormal DepthMode = "normal"
	DepthThin   DepthMode = "thin"
	DepthShock  DepthMode = "shock"
)

// MetalMarkup is the per-asset markup policy, in percent.
// AbsoluteFloor is a hard lower bound no regime or size adjustment may undercut.
type MetalMarkup struct {
	BaseMargin    decimal.Decimal `json:"baseMargin"`
	AbsoluteFloor decimal.Decimal `json:"absoluteFloor"`
}

// PricingConfig is the externally mutable pricing configuration. It is fetched at the
// start of each pricing computation and passed explicitly into the engine.
type PricingConfig struct {
	Version         int64                  `json:"version"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	VolatilityMode  VolatilityMode         `json:"volatilityMode"`
	MarketHoursMode MarketHoursMode        `json:"marketHoursMode"`
	DepthMode       DepthMode              `json:"depthMode"`
	MetalMarkup     map[string]MetalMarkup `json:"metalMarkup"`

	// WhaleFloorPercent is the share (0-100) of the over-floor margin removed for
	// trades with notional at or above WhaleNotional.
	WhaleFloorPercent decimal.Decimal `json:"whaleFloorPercent"`
	WhaleNotional     decimal.Decimal `json:"whaleNotional"`

	// MicroOptimizationPercent is added (in percentage points) to trades with
	// notional below MicroNotional to cover fixed costs.
	MicroOptimizationPercent decimal.Decimal `json:"microOptimizationPercent"`
	MicroNotional            decimal.Decimal `json:"microNotional"`

	// BidMarkupRatio scales the ask markup into the bid markup; 1 is symmetric.
	BidMarkupRatio decimal.Decimal `json:"bidMarkupRatio"`
}

// Clone returns a deep copy so cached configs are never mutated by callers
func (c *PricingConfig) Clone() *PricingConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.MetalMarkup = make(map[string]MetalMarkup, len(c.MetalMarkup))
	for k, v := range c.MetalMarkup {
		out.MetalMarkup[k] = v
	}
	return &out
}

// ExecutionPrice is derived on demand and never persisted
type ExecutionPrice struct {
	Asset                string          `json:"asset"`
	SpotPerGram          decimal.Decimal `json:"spotPerGram"`
	ExecutionAsk         decimal.Decimal `json:"executionAsk"`
	ExecutionBid         decimal.Decimal `json:"executionBid"`
	AppliedMarkupPercent decimal.Decimal `json:"appliedMarkupPercent"`
	BidMarkupPercent     decimal.Decimal `json:"bidMarkupPercent"`
	ConfigVersion        int64           `json:"configVersion"`
	ComputedAt           time.Time       `json:"computedAt"`
}

// Spread is the matching spread for resting orders, in basis points
type Spread struct {
	BuyBps  decimal.Decimal `json:"buyBps"`
	SellBps decimal.Decimal `json:"sellBps"`
}
