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

	"metal-trade-core/internal/events"
	"metal-trade-core/internal/metrics"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultExpiryDays = 7

// CreateOrderParams is the raw order request. ExpiresInDays of zero means the book default.
type CreateOrderParams struct {
	Address       string
	Side          string
	Asset         string
	Grams         decimal.Decimal
	LimitPrice    decimal.Decimal
	PaymentMethod string
	ExpiresInDays int
}

// Book holds standing limit orders. Orders do not reserve funds; the balance is
// checked when the order fills.
type Book struct {
	store      store.TradeStore
	publisher  events.Publisher
	registry   *models.AssetRegistry
	expiryDays int
	now        func() time.Time
}

func NewBook(tradeStore store.TradeStore, publisher events.Publisher, registry *models.AssetRegistry, expiryDays int) *Book {
	if expiryDays <= 0 {
		expiryDays = defaultExpiryDays
	}
	return &Book{
		store:      tradeStore,
		publisher:  publisher,
		registry:   registry,
		expiryDays: expiryDays,
		now:        time.Now,
	}
}

func (b *Book) CreateOrder(ctx context.Context, params CreateOrderParams) (*models.LimitOrder, error) {
	order, err := b.newOrder(params)
	if err != nil {
		return nil, err
	}
	if err := b.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	zap.L().Info("Limit order created",
		zap.String("order_id", order.Id),
		zap.String("address", order.Address),
		zap.String("side", string(order.Side)),
		zap.String("asset", order.Asset),
		zap.String("grams", order.Grams.String()),
		zap.String("limit_price", order.LimitPrice.String()),
		zap.String("payment_method", order.PaymentMethod),
		zap.Time("expires_at", order.ExpiresAt))
	return order, nil
}

func (b *Book) newOrder(params CreateOrderParams) (*models.LimitOrder, error) {
	if strings.TrimSpace(params.Address) == "" {
		return nil, store.ErrInvalidAddress
	}
	side := models.OrderSide(strings.ToLower(params.Side))
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidSide, params.Side)
	}
	asset := strings.ToUpper(params.Asset)
	if !b.registry.IsMetal(asset) {
		return nil, fmt.Errorf("%w: %q is not a tradable metal", store.ErrInvalidAsset, params.Asset)
	}
	if !params.Grams.IsPositive() {
		return nil, fmt.Errorf("%w: grams must be positive", store.ErrInvalidAmount)
	}
	if _, err := store.ToUnits(asset, params.Grams); err != nil {
		return nil, err
	}
	if !params.LimitPrice.IsPositive() {
		return nil, fmt.Errorf("%w: limit price must be positive", store.ErrInvalidPrice)
	}
	payment := strings.ToUpper(params.PaymentMethod)
	if !b.registry.IsCurrency(payment) {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidPaymentMethod, params.PaymentMethod)
	}
	if side == models.SideSell && !store.RoundDown(payment, params.Grams.Mul(params.LimitPrice)).IsPositive() {
		return nil, fmt.Errorf("%w: proceeds at the limit price round to zero %s", store.ErrInvalidAmount, payment)
	}

	days := params.ExpiresInDays
	if days == 0 {
		days = b.expiryDays
	}
	now := b.now().UTC()
	expiresAt := now.AddDate(0, 0, days)
	if days < 0 || !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry must be in the future", store.ErrInvalidExpiry)
	}

	return &models.LimitOrder{
		Id:            uuid.New().String(),
		Address:       params.Address,
		Side:          side,
		Asset:         asset,
		Grams:         params.Grams,
		LimitPrice:    params.LimitPrice,
		PaymentMethod: payment,
		Status:        models.OrderPending,
		FilledGrams:   decimal.Zero,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}, nil
}

// GetOrder returns nil when the order does not exist.
func (b *Book) GetOrder(ctx context.Context, orderId string) (*models.LimitOrder, error) {
	order, err := b.store.GetOrder(ctx, orderId)
	if err != nil || order == nil {
		return nil, err
	}
	b.expireIfDue(ctx, order, b.now())
	return order, nil
}

// ListOrders returns the address's orders, optionally filtered by status. Open
// orders past their expiry are expired on read.
func (b *Book) ListOrders(ctx context.Context, address string, status models.OrderStatus) ([]models.LimitOrder, error) {
	orders, err := b.store.ListOrders(ctx, address)
	if err != nil {
		return nil, err
	}

	now := b.now()
	out := make([]models.LimitOrder, 0, len(orders))
	for i := range orders {
		b.expireIfDue(ctx, &orders[i], now)
		if status != "" && orders[i].Status != status {
			continue
		}
		out = append(out, orders[i])
	}
	return out, nil
}

// CancelOrder cancels a pending order owned by address. An order already past its
// expiry is expired instead and ErrOrderNotPending is returned.
func (b *Book) CancelOrder(ctx context.Context, orderId, address string) (*models.LimitOrder, error) {
	now := b.now()
	current, err := b.store.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, store.ErrOrderNotFound
	}
	if current.Address != address {
		return nil, store.ErrUnauthorized
	}
	b.expireIfDue(ctx, current, now)
	if current.Status != models.OrderPending {
		return nil, fmt.Errorf("%w: status %s", store.ErrOrderNotPending, current.Status)
	}

	order, err := b.store.CancelOrder(ctx, orderId, address, now.UTC())
	if err != nil {
		return nil, err
	}
	zap.L().Info("Limit order cancelled",
		zap.String("order_id", orderId),
		zap.String("address", address),
		zap.String("asset", order.Asset))
	return order, nil
}

func (b *Book) expireIfDue(ctx context.Context, order *models.LimitOrder, now time.Time) {
	if !order.Status.Open() || now.Before(order.ExpiresAt) {
		return
	}
	expired, err := b.store.ExpireOrder(ctx, order.Id, now.UTC())
	if err != nil {
		zap.L().Warn("Failed to expire order on read", zap.String("order_id", order.Id), zap.Error(err))
		return
	}
	if expired {
		metrics.IncOrderExpired(order.Asset)
		order.Status = models.OrderExpired
	}
}

func isNotPending(err error) bool {
	return errors.Is(err, store.ErrOrderNotPending) || errors.Is(err, store.ErrOrderNotFound)
}
