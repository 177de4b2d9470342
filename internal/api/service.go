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

package api

import (
	"context"
	"fmt"
	"strings"

	"metal-trade-core/internal/capitallock"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/orderbook"
	"metal-trade-core/internal/pricing"
	"metal-trade-core/internal/store"
)

// TradingServiceConfig contains the collaborators of TradingService
type TradingServiceConfig struct {
	Store    store.TradeStore
	Quoter   *pricing.Quoter
	Locks    *capitallock.Manager
	Book     *orderbook.Book
	Registry *models.AssetRegistry
}

// TradingService is the entry point for request handlers
type TradingService struct {
	store    store.TradeStore
	quoter   *pricing.Quoter
	locks    *capitallock.Manager
	book     *orderbook.Book
	registry *models.AssetRegistry
}

func NewTradingService(cfg TradingServiceConfig) *TradingService {
	return &TradingService{
		store:    cfg.Store,
		quoter:   cfg.Quoter,
		locks:    cfg.Locks,
		book:     cfg.Book,
		registry: cfg.Registry,
	}
}

func (s *TradingService) HealthCheck(ctx context.Context) error {
	if _, err := s.store.GetPricingConfig(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

// NormalizeAddress trims and lower-cases a wallet address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func requireAddress(address string) (string, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return "", invalid("address is required")
	}
	return address, nil
}
