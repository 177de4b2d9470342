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

package orderbook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"metal-trade-core/internal/metrics"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fill error reasons
const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonNotPending          = "not_pending"
	ReasonExpireFailed        = "expire_failed"
	ReasonLoadFailed          = "load_failed"
	ReasonStoreError          = "store_error"
	ReasonInvalidAmount       = "invalid_amount"
)

// CheckAndFillMatchingOrders runs one fill scan for asset. Open orders are visited
// oldest first; expiry is checked before the price condition. A buy fills at ask
// when ask <= limit, a sell fills at bid when bid >= limit. Failures are recorded
// per order and never stop the scan; the result is always returned.
func (b *Book) CheckAndFillMatchingOrders(ctx context.Context, asset string, ask, bid decimal.Decimal) *models.FillScanResult {
	asset = strings.ToUpper(asset)
	start := time.Now()
	defer metrics.ObserveScan(asset, start)

	result := &models.FillScanResult{Asset: asset, Ask: ask, Bid: bid, Errors: []models.FillError{}}

	orders, err := b.store.OpenOrders(ctx, asset)
	if err != nil {
		zap.L().Error("Failed to load open orders", zap.String("asset", asset), zap.Error(err))
		metrics.IncFillError(asset, ReasonLoadFailed)
		result.Errors = append(result.Errors, models.FillError{Reason: ReasonLoadFailed, Err: err})
		return result
	}

	for i := range orders {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++
		b.evaluate(ctx, &orders[i], ask, bid, result)
	}

	if result.Filled > 0 || result.Expired > 0 || len(result.Errors) > 0 {
		zap.L().Info("Fill scan complete",
			zap.String("asset", asset),
			zap.String("ask", ask.String()),
			zap.String("bid", bid.String()),
			zap.Int("scanned", result.Scanned),
			zap.Int("filled", result.Filled),
			zap.Int("expired", result.Expired),
			zap.Int("errors", len(result.Errors)))
	}
	return result
}

func (b *Book) evaluate(ctx context.Context, order *models.LimitOrder, ask, bid decimal.Decimal, result *models.FillScanResult) {
	now := b.now().UTC()

	if !now.Before(order.ExpiresAt) {
		expired, err := b.store.ExpireOrder(ctx, order.Id, now)
		if err != nil {
			b.recordError(result, order, ReasonExpireFailed, err)
			return
		}
		if expired {
			result.Expired++
			metrics.IncOrderExpired(order.Asset)
			zap.L().Info("Limit order expired", zap.String("order_id", order.Id), zap.String("address", order.Address))
		}
		return
	}

	price, ok := matchPrice(order, ask, bid)
	if !ok {
		return
	}

	params := fillParams(order, price, now)
	if !params.Transaction.PaymentAmount.IsPositive() {
		b.recordError(result, order, ReasonInvalidAmount, fmt.Errorf("%w: %s of %s at %s rounds to zero %s",
			store.ErrInvalidAmount, params.Transaction.Grams, order.Asset, price, order.PaymentMethod))
		return
	}
	err := b.store.FillOrder(ctx, params)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrInsufficientBalance):
		b.recordError(result, order, ReasonInsufficientBalance, err)
		return
	case isNotPending(err):
		// cancelled or filled since the scan loaded it
		zap.L().Debug("Order left the book during scan", zap.String("order_id", order.Id), zap.Error(err))
		return
	default:
		b.recordError(result, order, ReasonStoreError, err)
		return
	}

	result.Filled++
	metrics.IncFill(order.Asset, string(order.Side))
	zap.L().Info("Limit order filled",
		zap.String("order_id", order.Id),
		zap.String("address", order.Address),
		zap.String("side", string(order.Side)),
		zap.String("asset", order.Asset),
		zap.String("grams", params.Transaction.Grams.String()),
		zap.String("price", price.String()),
		zap.String("payment_asset", params.Transaction.PaymentAsset),
		zap.String("payment_amount", params.Transaction.PaymentAmount.String()))

	if err := b.publisher.Publish(ctx, *params.Transaction); err != nil {
		zap.L().Warn("Fill event not published", zap.String("transaction_id", params.Transaction.Id), zap.Error(err))
	}
}

// matchPrice returns the execution price an order fills at, if it matches.
func matchPrice(order *models.LimitOrder, ask, bid decimal.Decimal) (decimal.Decimal, bool) {
	switch order.Side {
	case models.SideBuy:
		if ask.IsPositive() && ask.LessThanOrEqual(order.LimitPrice) {
			return ask, true
		}
	case models.SideSell:
		if bid.IsPositive() && bid.GreaterThanOrEqual(order.LimitPrice) {
			return bid, true
		}
	}
	return decimal.Zero, false
}

// fillParams fills the remaining grams at price. The buyer's payment rounds up and
// the seller's proceeds round down.
func fillParams(order *models.LimitOrder, price decimal.Decimal, now time.Time) store.FillOrderParams {
	grams := order.RemainingGrams()
	params := store.FillOrderParams{
		OrderId:     order.Id,
		Address:     order.Address,
		Asset:       order.Asset,
		FilledGrams: order.Grams,
		FillPrice:   price,
		Now:         now,
	}

	var paymentAmount decimal.Decimal
	if order.Side == models.SideBuy {
		paymentAmount = store.RoundUp(order.PaymentMethod, grams.Mul(price))
		params.DebitAsset, params.DebitAmount = order.PaymentMethod, paymentAmount
		params.CreditAsset, params.CreditAmount = order.Asset, grams
	} else {
		paymentAmount = store.RoundDown(order.PaymentMethod, grams.Mul(price))
		params.DebitAsset, params.DebitAmount = order.Asset, grams
		params.CreditAsset, params.CreditAmount = order.PaymentMethod, paymentAmount
	}

	params.Transaction = &models.Transaction{
		Id:            uuid.New().String(),
		Address:       order.Address,
		Type:          models.TransactionLimitFill,
		Side:          order.Side,
		Asset:         order.Asset,
		Grams:         grams,
		Price:         price,
		PaymentAsset:  order.PaymentMethod,
		PaymentAmount: paymentAmount,
		Reference:     order.Id,
		CreatedAt:     now,
	}
	return params
}

func (b *Book) recordError(result *models.FillScanResult, order *models.LimitOrder, reason string, err error) {
	metrics.IncFillError(order.Asset, reason)
	zap.L().Warn("Limit order not filled",
		zap.String("order_id", order.Id),
		zap.String("address", order.Address),
		zap.String("reason", reason),
		zap.Error(err))
	result.Errors = append(result.Errors, models.FillError{
		OrderId: order.Id,
		Address: order.Address,
		Reason:  reason,
		Err:     err,
	})
}
