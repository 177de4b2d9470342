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

package scheduler

import (
	"context"
	"fmt"
	"time"

	"metal-trade-core/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const ReasonPriceUnavailable = "price_unavailable"

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// RunOnce scans every metal concurrently under one pricing config snapshot. A metal
// that cannot be priced gets a result carrying the error; the others still scan.
func (s *Scheduler) RunOnce(ctx context.Context) []models.FillScanResult {
	cfg := s.pricer.Config(ctx)
	results := make([]models.FillScanResult, len(s.metals))

	if s.console {
		fmt.Printf("\n%s[%s] Scanning %d metals (config v%d)%s\n",
			colorCyan, time.Now().Format("15:04:05"), len(s.metals), cfg.Version, colorReset)
	}

	var g errgroup.Group
	for i, asset := range s.metals {
		i, asset := i, asset
		g.Go(func() error {
			results[i] = s.scanAsset(ctx, asset, cfg)
			return nil
		})
	}
	_ = g.Wait()

	if s.console {
		for _, r := range results {
			s.printResult(r)
		}
	}
	return results
}

func (s *Scheduler) scanAsset(ctx context.Context, asset string, cfg *models.PricingConfig) (result models.FillScanResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Fill scan panicked", zap.String("asset", asset), zap.Any("panic", r))
			result = models.FillScanResult{
				Asset:  asset,
				Errors: []models.FillError{{Reason: "panic", Err: fmt.Errorf("%v", r)}},
			}
		}
	}()

	ask, bid, err := s.pricer.MatchingPrices(ctx, asset, cfg)
	if err != nil {
		zap.L().Warn("Skipping fill scan, no price", zap.String("asset", asset), zap.Error(err))
		return models.FillScanResult{
			Asset:  asset,
			Errors: []models.FillError{{Reason: ReasonPriceUnavailable, Err: err}},
		}
	}
	return *s.matcher.CheckAndFillMatchingOrders(ctx, asset, ask, bid)
}

func (s *Scheduler) printResult(r models.FillScanResult) {
	switch {
	case len(r.Errors) > 0:
		fmt.Printf("  %s✗ %-6s ask %s bid %s | scanned %d filled %d expired %d errors %d%s\n",
			colorRed, r.Asset, r.Ask, r.Bid, r.Scanned, r.Filled, r.Expired, len(r.Errors), colorReset)
		for _, e := range r.Errors {
			fmt.Printf("      %s%s %s: %v%s\n", colorGray, e.OrderId, e.Reason, e.Err, colorReset)
		}
	case r.Filled > 0:
		fmt.Printf("  %s✓ %-6s ask %s bid %s | scanned %d filled %d expired %d%s\n",
			colorGreen, r.Asset, r.Ask, r.Bid, r.Scanned, r.Filled, r.Expired, colorReset)
	case r.Expired > 0:
		fmt.Printf("  %s~ %-6s ask %s bid %s | scanned %d expired %d%s\n",
			colorYellow, r.Asset, r.Ask, r.Bid, r.Scanned, r.Expired, colorReset)
	default:
		fmt.Printf("  %s· %-6s ask %s bid %s | scanned %d%s\n",
			colorGray, r.Asset, r.Ask, r.Bid, r.Scanned, colorReset)
	}
}
