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
	"sort"
	"strings"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the current balance of an address for a specific asset
func (s *TradingService) GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error) {
	address, err := requireAddress(address)
	if err != nil {
		return decimal.Zero, err
	}
	asset = strings.ToUpper(asset)
	if _, ok := s.registry.Lookup(asset); !ok {
		return decimal.Zero, invalid("unsupported asset %q", asset)
	}

	balance, err := s.store.GetBalance(ctx, address, asset)
	if err != nil {
		return decimal.Zero, toError("retrieve balance", err)
	}
	return balance, nil
}

// GetBalances returns all non-zero balances of an address, sorted by asset
func (s *TradingService) GetBalances(ctx context.Context, address string) ([]models.AddressBalance, error) {
	address, err := requireAddress(address)
	if err != nil {
		return nil, err
	}

	balances, err := s.store.GetBalances(ctx, address)
	if err != nil {
		return nil, toError("retrieve balances", err)
	}

	result := make([]models.AddressBalance, 0, len(balances))
	for asset, balance := range balances {
		result = append(result, models.AddressBalance{Asset: asset, Balance: balance})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result, nil
}

// GetTransactionHistory returns the most recent trades of an address, newest first
func (s *TradingService) GetTransactionHistory(ctx context.Context, address string, limit int) ([]models.Transaction, error) {
	address, err := requireAddress(address)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	txns, err := s.store.ListTransactions(ctx, address, limit)
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.String("address", address), zap.Error(err))
		return nil, toError("retrieve transaction history", err)
	}
	return txns, nil
}
