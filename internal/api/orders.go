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
	"strings"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/orderbook"
)

var orderStatuses = map[models.OrderStatus]bool{
	models.OrderPending:         true,
	models.OrderPartiallyFilled: true,
	models.OrderFilled:          true,
	models.OrderCancelled:       true,
	models.OrderExpired:         true,
}

func (s *TradingService) CreateOrder(ctx context.Context, params orderbook.CreateOrderParams) (*models.LimitOrder, error) {
	address, err := requireAddress(params.Address)
	if err != nil {
		return nil, err
	}
	params.Address = address

	order, err := s.book.CreateOrder(ctx, params)
	if err != nil {
		return nil, toError("create order", err)
	}
	return order, nil
}

// ListOrders returns the address's orders; an empty status lists all of them.
func (s *TradingService) ListOrders(ctx context.Context, address, status string) ([]models.LimitOrder, error) {
	address, err := requireAddress(address)
	if err != nil {
		return nil, err
	}
	filter := models.OrderStatus(strings.ToLower(status))
	if filter != "" && !orderStatuses[filter] {
		return nil, invalid("unknown order status %q", status)
	}

	orders, err := s.book.ListOrders(ctx, address, filter)
	if err != nil {
		return nil, toError("list orders", err)
	}
	return orders, nil
}

// GetOrder returns nil when the order does not exist.
func (s *TradingService) GetOrder(ctx context.Context, orderId string) (*models.LimitOrder, error) {
	if orderId == "" {
		return nil, invalid("order_id is required")
	}
	order, err := s.book.GetOrder(ctx, orderId)
	if err != nil {
		return nil, toError("retrieve order", err)
	}
	return order, nil
}

func (s *TradingService) CancelOrder(ctx context.Context, orderId, address string) (*models.LimitOrder, error) {
	address, err := requireAddress(address)
	if err != nil {
		return nil, err
	}
	if orderId == "" {
		return nil, invalid("order_id is required")
	}
	order, err := s.book.CancelOrder(ctx, orderId, address)
	if err != nil {
		return nil, toError("cancel order", err)
	}
	return order, nil
}
