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
	"context"
	"sync"
	"time"

	"metal-trade-core/internal/models"

	"go.uber.org/zap"
)

// ConfigStore is the persisted home of the live pricing config.
type ConfigStore interface {
	GetPricingConfig(ctx context.Context) (*models.PricingConfig, error)
}

// ConfigSource hands out the current pricing config. The stored config is re-read
// once the cached copy is older than ttl; read failures fall back to the last good
// config, then to the defaults.
type ConfigSource struct {
	store    ConfigStore
	defaults *models.PricingConfig
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	cached    *models.PricingConfig
	fetchedAt time.Time
}

func NewConfigSource(store ConfigStore, defaults *models.PricingConfig, ttl time.Duration) *ConfigSource {
	if defaults == nil {
		defaults = DefaultConfig()
	}
	return &ConfigSource{store: store, defaults: defaults, ttl: ttl, now: time.Now}
}

// Current returns a copy of the live config. It never fails.
func (s *ConfigSource) Current(ctx context.Context) *models.PricingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != nil && now.Sub(s.fetchedAt) < s.ttl {
		return s.cached.Clone()
	}

	cfg, err := s.store.GetPricingConfig(ctx)
	switch {
	case err != nil:
		zap.L().Warn("Failed to load pricing config, using last known", zap.Error(err))
		return s.fallback().Clone()
	case cfg == nil:
		cfg = s.defaults
	default:
		if verr := Validate(cfg); verr != nil {
			zap.L().Error("Stored pricing config rejected", zap.Int64("version", cfg.Version), zap.Error(verr))
			return s.fallback().Clone()
		}
	}

	if s.cached == nil || s.cached.Version != cfg.Version {
		zap.L().Info("Pricing config loaded",
			zap.Int64("version", cfg.Version),
			zap.String("volatility", string(cfg.VolatilityMode)),
			zap.String("market_hours", string(cfg.MarketHoursMode)),
			zap.String("depth", string(cfg.DepthMode)))
	}
	s.cached = cfg.Clone()
	s.fetchedAt = now
	return s.cached.Clone()
}

// Invalidate forces the next Current call to re-read the store.
func (s *ConfigSource) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

func (s *ConfigSource) fallback() *models.PricingConfig {
	if s.cached != nil {
		return s.cached
	}
	return s.defaults
}
