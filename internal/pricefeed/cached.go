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

package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"metal-trade-core/internal/metrics"
	"metal-trade-core/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedFeed bounds upstream calls. Prices are reused for ttl and concurrent refreshes
// collapse into one request that may take at most timeout. A failed or partial refresh
// falls back to the last good price per asset, and after a failure the upstream is not
// asked again until ttl has passed.
type CachedFeed struct {
	feed    Feed
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu         sync.RWMutex
	last       map[string]decimal.Decimal
	fetchedAt  time.Time
	retryAfter time.Time
	lastErr    error
}

func NewCachedFeed(feed Feed, ttl, timeout time.Duration) *CachedFeed {
	return &CachedFeed{
		feed:    feed,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
		last:    make(map[string]decimal.Decimal),
	}
}

func (c *CachedFeed) SpotPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	if prices, ok, err := c.cached(); ok {
		return prices, err
	}

	_, err, _ := c.group.Do("spot", func() (interface{}, error) {
		return nil, c.refresh(ctx)
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	if err != nil && len(c.last) == 0 {
		return nil, fmt.Errorf("%w: %v", pricing.ErrPriceUnavailable, err)
	}
	return copyPrices(c.last), nil
}

// SpotPrice returns the spot price per gram of one asset.
func (c *CachedFeed) SpotPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	prices, err := c.SpotPrices(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := prices[asset]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no spot price for %s", pricing.ErrPriceUnavailable, asset)
	}
	return price, nil
}

// cached answers without going upstream while prices are fresh or a failed refresh
// is still backing off.
func (c *CachedFeed) cached() (map[string]decimal.Decimal, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	if now.Before(c.retryAfter) {
		if len(c.last) == 0 {
			return nil, true, fmt.Errorf("%w: %v", pricing.ErrPriceUnavailable, c.lastErr)
		}
		return copyPrices(c.last), true, nil
	}
	if len(c.last) == 0 || now.Sub(c.fetchedAt) >= c.ttl {
		return nil, false, nil
	}
	return copyPrices(c.last), true, nil
}

func (c *CachedFeed) refresh(ctx context.Context) error {
	// The fetch is shared by every waiting caller, so it must not die with the
	// first caller's context.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	prices, err := c.feed.SpotPrices(fetchCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		zap.L().Warn("Spot price refresh failed, serving last known prices",
			zap.Int("cached_assets", len(c.last)), zap.Error(err))
		for asset := range c.last {
			metrics.IncSpotFallback(asset)
		}
		c.retryAfter = c.now().Add(c.ttl)
		c.lastErr = err
		return err
	}

	for asset := range c.last {
		if _, ok := prices[asset]; !ok {
			zap.L().Warn("Spot price missing from feed, keeping last known", zap.String("asset", asset))
			metrics.IncSpotFallback(asset)
		}
	}
	for asset, price := range prices {
		c.last[asset] = price
		f, _ := price.Float64()
		metrics.SetSpotPrice(asset, f)
	}
	c.fetchedAt = c.now()
	c.retryAfter = time.Time{}
	c.lastErr = nil
	return nil
}

func copyPrices(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
