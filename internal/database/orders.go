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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func scanOrder(row rowScanner) (*models.LimitOrder, error) {
	var o models.LimitOrder
	var side, status, grams, limitPrice, filledGrams, fillPrice string
	var createdAt, expiresAt int64
	var filledAt, cancelledAt, lastErrorAt sql.NullInt64

	err := row.Scan(&o.Id, &o.Address, &side, &o.Asset, &grams, &limitPrice, &o.PaymentMethod, &status,
		&filledGrams, &fillPrice, &createdAt, &expiresAt, &filledAt, &cancelledAt, &o.LastError, &lastErrorAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.Side = models.OrderSide(side)
	o.Status = models.OrderStatus(status)
	if o.Grams, err = decimal.NewFromString(grams); err != nil {
		return nil, fmt.Errorf("failed to parse order grams %q: %w", grams, err)
	}
	if o.LimitPrice, err = decimal.NewFromString(limitPrice); err != nil {
		return nil, fmt.Errorf("failed to parse order limit price %q: %w", limitPrice, err)
	}
	if o.FilledGrams, err = decimal.NewFromString(filledGrams); err != nil {
		return nil, fmt.Errorf("failed to parse order filled grams %q: %w", filledGrams, err)
	}
	if fillPrice != "" {
		if o.FillPrice, err = decimal.NewFromString(fillPrice); err != nil {
			return nil, fmt.Errorf("failed to parse order fill price %q: %w", fillPrice, err)
		}
	}
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	o.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	o.FilledAt = timeFromNull(filledAt)
	o.CancelledAt = timeFromNull(cancelledAt)
	o.LastErrorAt = timeFromNull(lastErrorAt)
	return &o, nil
}

func (s *Service) CreateOrder(ctx context.Context, order *models.LimitOrder) error {
	_, err := s.db.ExecContext(ctx, queryInsertOrder,
		order.Id, order.Address, string(order.Side), order.Asset, order.Grams.String(), order.LimitPrice.String(),
		order.PaymentMethod, string(order.Status), order.FilledGrams.String(), "",
		order.CreatedAt.UnixMilli(), order.ExpiresAt.UnixMilli(), nullMillis(order.FilledAt),
		nullMillis(order.CancelledAt), order.LastError, nullMillis(order.LastErrorAt), order.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.LimitOrder, error) {
	return scanOrder(s.db.QueryRowContext(ctx, queryGetOrder, orderId))
}

func (s *Service) ListOrders(ctx context.Context, address string) ([]models.LimitOrder, error) {
	return s.queryOrders(ctx, queryListOrders, address)
}

func (s *Service) OpenOrders(ctx context.Context, asset string) ([]models.LimitOrder, error) {
	return s.queryOrders(ctx, queryOpenOrders, asset)
}

func (s *Service) queryOrders(ctx context.Context, query string, arg string) ([]models.LimitOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer closeRows(rows)

	var orders []models.LimitOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderId, address string, now time.Time) (*models.LimitOrder, error) {
	var cancelled *models.LimitOrder
	var expired bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		order, err := scanOrder(tx.QueryRowContext(ctx, queryGetOrder, orderId))
		if err != nil {
			return err
		}
		if order == nil {
			return store.ErrOrderNotFound
		}
		if order.Address != address {
			return store.ErrUnauthorized
		}
		if order.Status != models.OrderPending {
			return fmt.Errorf("%w: status %s", store.ErrOrderNotPending, order.Status)
		}
		// The expiry is committed, so it is reported after the transaction.
		if !now.Before(order.ExpiresAt) {
			if _, err := tx.ExecContext(ctx, queryExpireOrder, now.UnixMilli(), orderId, now.UnixMilli()); err != nil {
				return fmt.Errorf("failed to expire order: %w", err)
			}
			expired = true
			return nil
		}

		if _, err := tx.ExecContext(ctx, queryCancelOrder, now.UnixMilli(), now.UnixMilli(), orderId); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		cancelledAt := now.UTC()
		order.Status = models.OrderCancelled
		order.CancelledAt = &cancelledAt
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, fmt.Errorf("%w: status %s", store.ErrOrderNotPending, models.OrderExpired)
	}
	return cancelled, nil
}

func (s *Service) ExpireOrder(ctx context.Context, orderId string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, queryExpireOrder, now.UnixMilli(), orderId, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to expire order %s: %w", orderId, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, queryOrderExists, orderId).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load order %s: %w", orderId, err)
	}
	return false, nil
}

// FillOrder settles an open order against the owner's balance. An unfunded order stays
// open with the failure recorded on it.
func (s *Service) FillOrder(ctx context.Context, params store.FillOrderParams) error {
	debit, err := store.ToUnits(params.DebitAsset, params.DebitAmount)
	if err != nil {
		return err
	}
	credit, err := store.ToUnits(params.CreditAsset, params.CreditAmount)
	if err != nil {
		return err
	}

	var insufficient error
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		order, err := scanOrder(tx.QueryRowContext(ctx, queryGetOrder, params.OrderId))
		if err != nil {
			return err
		}
		if order == nil {
			return store.ErrOrderNotFound
		}
		if !order.Status.Open() {
			return store.ErrOrderNotPending
		}
		if !order.ExpiresAt.After(params.Now) {
			return fmt.Errorf("%w: order expired", store.ErrOrderNotPending)
		}

		now := params.Now.UnixMilli()
		_, available, ok, err := debitUnits(ctx, tx, params.Address, params.DebitAsset, debit, reasonOrderFill, params.OrderId, params.Now)
		if err != nil {
			return err
		}
		if !ok {
			insufficient = &store.InsufficientBalanceError{
				Asset:     params.DebitAsset,
				Required:  params.DebitAmount,
				Available: store.FromUnits(params.DebitAsset, available),
			}
			_, err := tx.ExecContext(ctx, queryRecordOrderError, "insufficient "+params.DebitAsset+" balance", now, now, params.OrderId)
			return err
		}

		if _, err := creditUnits(ctx, tx, params.Address, params.CreditAsset, credit, reasonOrderFill, params.OrderId, params.Now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryFillOrder,
			params.FilledGrams.String(), params.FillPrice.String(), now, now, params.OrderId); err != nil {
			return fmt.Errorf("failed to mark order filled: %w", err)
		}
		return insertTransaction(ctx, tx, params.Transaction)
	})
	if err != nil {
		return err
	}
	if insufficient != nil {
		zap.L().Debug("Order fill deferred on insufficient balance",
			zap.String("order_id", params.OrderId),
			zap.Error(insufficient))
		return insufficient
	}
	return nil
}
