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
	"errors"
	"strings"

	"metal-trade-core/internal/capitallock"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteRequest asks for the price of trading Grams of Asset against PaymentAsset
type QuoteRequest struct {
	Address      string
	Side         string
	Asset        string
	Grams        decimal.Decimal
	PaymentAsset string
}

// GetExecutionPrices returns the current execution price of every metal that can be
// priced. It fails only when no metal can be priced.
func (s *TradingService) GetExecutionPrices(ctx context.Context) ([]models.ExecutionPrice, error) {
	prices, failures := s.quoter.ExecutionPrices(ctx)
	for asset, err := range failures {
		zap.L().Warn("Metal not priced", zap.String("asset", asset), zap.Error(err))
	}
	if len(prices) == 0 {
		for _, err := range failures {
			return nil, toError("compute execution prices", err)
		}
		return nil, &Error{Code: CodePriceUnavailable, Message: "no metal prices available"}
	}

	result := make([]models.ExecutionPrice, 0, len(prices))
	for _, asset := range s.registry.Metals() {
		if p, ok := prices[asset]; ok {
			result = append(result, *p)
		}
	}
	return result, nil
}

// Quote prices a trade with order-size modulation. The notional used for the
// whale and micro adjustments is grams times spot.
func (s *TradingService) Quote(ctx context.Context, req QuoteRequest) (*models.Quote, error) {
	address, err := requireAddress(req.Address)
	if err != nil {
		return nil, err
	}
	side := models.OrderSide(strings.ToLower(req.Side))
	if side != models.SideBuy && side != models.SideSell {
		return nil, invalid("side must be buy or sell")
	}
	asset := strings.ToUpper(req.Asset)
	if !s.registry.IsMetal(asset) {
		return nil, invalid("unsupported metal %q", req.Asset)
	}
	payment := strings.ToUpper(req.PaymentAsset)
	if !s.registry.IsCurrency(payment) {
		return nil, invalid("unsupported payment asset %q", req.PaymentAsset)
	}
	if !req.Grams.IsPositive() {
		return nil, invalid("grams must be positive")
	}
	if _, err := store.ToUnits(asset, req.Grams); err != nil {
		return nil, toError("quote", err)
	}

	base, err := s.quoter.ExecutionPrice(ctx, asset, decimal.Zero)
	if err != nil {
		return nil, toError("quote", err)
	}
	price, err := s.quoter.ExecutionPrice(ctx, asset, req.Grams.Mul(base.SpotPerGram))
	if err != nil {
		return nil, toError("quote", err)
	}

	quote := &models.Quote{
		Address:      address,
		Side:         side,
		Asset:        asset,
		Grams:        req.Grams,
		PaymentAsset: payment,
		Price:        price,
		QuotedAt:     price.ComputedAt,
	}
	if side == models.SideBuy {
		quote.UnitPrice = price.ExecutionAsk
		quote.PaymentAmount = store.RoundUp(payment, req.Grams.Mul(price.ExecutionAsk))
	} else {
		quote.UnitPrice = price.ExecutionBid
		quote.PaymentAmount = store.RoundDown(payment, req.Grams.Mul(price.ExecutionBid))
	}
	return quote, nil
}

// ConfirmTrade quotes the trade and locks the paying side at the quoted price.
func (s *TradingService) ConfirmTrade(ctx context.Context, req QuoteRequest) (*models.TradeConfirmation, error) {
	quote, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	params := capitallock.CreateLockParams{
		Address:        quote.Address,
		ExecutionPrice: quote.UnitPrice,
	}
	if quote.Side == models.SideBuy {
		params.FromAsset, params.FromAmount, params.ToAsset = quote.PaymentAsset, quote.PaymentAmount, quote.Asset
	} else {
		params.FromAsset, params.FromAmount, params.ToAsset = quote.Asset, quote.Grams, quote.PaymentAsset
	}

	result, err := s.locks.CreateLock(ctx, params)
	if err != nil {
		return nil, toError("confirm trade", err)
	}
	return &models.TradeConfirmation{
		Quote:            quote,
		Lock:             result.Lock,
		RemainingBalance: result.RemainingBalance,
	}, nil
}

// SettleTrade settles the caller's lock at its frozen price.
func (s *TradingService) SettleTrade(ctx context.Context, address, lockId string) (*models.Transaction, error) {
	if _, err := s.ownedLock(ctx, address, lockId); err != nil {
		return nil, err
	}
	txn, err := s.locks.Settle(ctx, lockId)
	if err != nil {
		return nil, toError("settle trade", err)
	}
	return txn, nil
}

// CancelTrade releases the caller's lock. Cancelling a lock that is already gone succeeds.
func (s *TradingService) CancelTrade(ctx context.Context, address, lockId string) error {
	if _, err := s.ownedLock(ctx, address, lockId); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Code == CodeLockNotFound {
			return nil
		}
		return err
	}
	if err := s.locks.ReleaseLock(ctx, lockId); err != nil {
		return toError("cancel trade", err)
	}
	return nil
}

// ActiveLock returns the caller's live lock, or nil.
func (s *TradingService) ActiveLock(ctx context.Context, address string) (*models.CapitalLock, error) {
	address, err := requireAddress(address)
	if err != nil {
		return nil, err
	}
	lock, err := s.locks.ActiveLock(ctx, address)
	if err != nil {
		return nil, toError("retrieve lock", err)
	}
	return lock, nil
}

func (s *TradingService) ownedLock(ctx context.Context, address, lockId string) (*models.CapitalLock, error) {
	address, err := requireAddress(address)
	if err != nil {
		return nil, err
	}
	if lockId == "" {
		return nil, invalid("lock_id is required")
	}
	lock, err := s.store.FindLock(ctx, lockId)
	if err != nil {
		return nil, toError("retrieve lock", err)
	}
	if lock == nil {
		return nil, toError("retrieve lock", store.ErrLockNotFound)
	}
	if lock.Address != address {
		return nil, toError("retrieve lock", store.ErrUnauthorized)
	}
	return lock, nil
}
