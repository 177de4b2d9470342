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

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CreateOrder writes the order record and both indexes in one MULTI/EXEC.
func (s *Service) CreateOrder(ctx context.Context, order *models.LimitOrder) error {
	score := float64(order.CreatedAt.UnixMilli())
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.orderKey(order.Id), orderFields(order)...)
		pipe.ZAdd(ctx, s.userOrdersKey(order.Address), redis.Z{Score: score, Member: order.Id})
		pipe.ZAdd(ctx, s.openOrdersKey(order.Asset), redis.Z{Score: score, Member: order.Id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.LimitOrder, error) {
	h, err := s.client.HGetAll(ctx, s.orderKey(orderId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderId, err)
	}
	return parseOrder(h)
}

// ListOrders returns every order of an address, oldest first.
func (s *Service) ListOrders(ctx context.Context, address string) ([]models.LimitOrder, error) {
	ids, err := s.client.ZRange(ctx, s.userOrdersKey(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.loadOrders(ctx, ids, false)
}

// OpenOrders returns pending and partially filled orders of an asset, oldest first.
func (s *Service) OpenOrders(ctx context.Context, asset string) ([]models.LimitOrder, error) {
	ids, err := s.client.ZRange(ctx, s.openOrdersKey(asset), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}
	return s.loadOrders(ctx, ids, true)
}

func (s *Service) loadOrders(ctx context.Context, ids []string, openOnly bool) ([]models.LimitOrder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.orderKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	orders := make([]models.LimitOrder, 0, len(ids))
	for i, cmd := range cmds {
		order, err := parseOrder(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", ids[i], err)
		}
		if order == nil {
			zap.L().Warn("Order index references missing order", zap.String("order_id", ids[i]))
			continue
		}
		if openOnly && !order.Status.Open() {
			continue
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderId, address string, now time.Time) (*models.LimitOrder, error) {
	order, err := s.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, store.ErrOrderNotFound
	}

	keys := []string{s.orderKey(orderId), s.openOrdersKey(order.Asset)}
	code, err := cancelOrderScript.Run(ctx, s.client, keys, address, millis(now), orderId).Int64()
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderId, err)
	}
	switch code {
	case -2:
		return nil, store.ErrOrderNotFound
	case -1:
		return nil, store.ErrUnauthorized
	case 0:
		return nil, fmt.Errorf("%w: status %s", store.ErrOrderNotPending, order.Status)
	case -3:
		return nil, fmt.Errorf("%w: status %s", store.ErrOrderNotPending, models.OrderExpired)
	}

	order.Status = models.OrderCancelled
	cancelledAt := now.UTC()
	order.CancelledAt = &cancelledAt
	return order, nil
}

func (s *Service) ExpireOrder(ctx context.Context, orderId string, now time.Time) (bool, error) {
	asset, err := s.client.HGet(ctx, s.orderKey(orderId), "asset").Result()
	if errors.Is(err, redis.Nil) {
		return false, store.ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load order %s: %w", orderId, err)
	}
	keys := []string{s.orderKey(orderId), s.openOrdersKey(asset)}
	code, err := expireOrderScript.Run(ctx, s.client, keys, millis(now), orderId).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to expire order %s: %w", orderId, err)
	}
	return code == 1, nil
}

func (s *Service) FillOrder(ctx context.Context, params store.FillOrderParams) error {
	debitUnits, err := store.ToUnits(params.DebitAsset, params.DebitAmount)
	if err != nil {
		return err
	}
	creditUnits, err := store.ToUnits(params.CreditAsset, params.CreditAmount)
	if err != nil {
		return err
	}

	keys := []string{
		s.balanceKey(params.Address),
		s.orderKey(params.OrderId),
		s.openOrdersKey(params.Asset),
		s.txnKey(params.Transaction.Id),
		s.userTxnsKey(params.Address),
	}
	head := []interface{}{
		params.OrderId, params.DebitAsset, debitUnits, params.CreditAsset, creditUnits,
		params.FilledGrams.String(), params.FillPrice.String(), millis(params.Now), params.Transaction.Id,
	}
	res, err := fillOrderScript.Run(ctx, s.client, keys, stringArgs(head, txnFields(params.Transaction))...).Int64Slice()
	if err != nil {
		return fmt.Errorf("failed to fill order %s: %w", params.OrderId, err)
	}

	switch res[0] {
	case -3:
		return store.ErrOrderNotFound
	case -1:
		return store.ErrOrderNotPending
	case -2:
		return fmt.Errorf("%w: order expired", store.ErrOrderNotPending)
	case 0:
		return &store.InsufficientBalanceError{
			Asset:     params.DebitAsset,
			Required:  params.DebitAmount,
			Available: store.FromUnits(params.DebitAsset, res[1]),
		}
	}
	return nil
}

// ListTransactions returns the most recent transactions of an address, newest first.
func (s *Service) ListTransactions(ctx context.Context, address string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.client.ZRevRange(ctx, s.userTxnsKey(address), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.txnKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	txns := make([]models.Transaction, 0, len(ids))
	for i, cmd := range cmds {
		txn, err := parseTransaction(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", ids[i], err)
		}
		if txn != nil {
			txns = append(txns, *txn)
		}
	}
	return txns, nil
}
