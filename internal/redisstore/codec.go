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
	"fmt"
	"strconv"
	"time"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
)

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseOptionalMillis(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseMillis(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func parseLock(h map[string]string) (*models.CapitalLock, error) {
	if len(h) == 0 || h["id"] == "" {
		return nil, nil
	}
	units, err := strconv.ParseInt(h["from_units"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lock amount %q: %w", h["from_units"], err)
	}
	price, err := parseDecimal(h["price"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse lock price %q: %w", h["price"], err)
	}
	createdAt, err := parseMillis(h["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse lock created_at: %w", err)
	}
	expiresAt, err := parseMillis(h["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse lock expires_at: %w", err)
	}
	ttl, _ := strconv.ParseInt(h["ttl"], 10, 64)

	return &models.CapitalLock{
		LockId:         h["id"],
		Address:        h["address"],
		FromAsset:      h["from_asset"],
		ToAsset:        h["to_asset"],
		FromAmount:     store.FromUnits(h["from_asset"], units),
		ExecutionPrice: price,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		Status:         models.LockActive,
		TtlSeconds:     ttl,
	}, nil
}

func orderFields(o *models.LimitOrder) []interface{} {
	return []interface{}{
		"id", o.Id,
		"address", o.Address,
		"side", string(o.Side),
		"asset", o.Asset,
		"grams", o.Grams.String(),
		"limit_price", o.LimitPrice.String(),
		"payment_method", o.PaymentMethod,
		"status", string(o.Status),
		"filled_grams", o.FilledGrams.String(),
		"fill_price", "",
		"created_at", millis(o.CreatedAt),
		"expires_at", millis(o.ExpiresAt),
		"filled_at", "",
		"cancelled_at", "",
		"last_error", "",
		"last_error_at", "",
		"updated_at", millis(o.CreatedAt),
	}
}

func parseOrder(h map[string]string) (*models.LimitOrder, error) {
	if len(h) == 0 || h["id"] == "" {
		return nil, nil
	}
	o := &models.LimitOrder{
		Id:            h["id"],
		Address:       h["address"],
		Side:          models.OrderSide(h["side"]),
		Asset:         h["asset"],
		PaymentMethod: h["payment_method"],
		Status:        models.OrderStatus(h["status"]),
		LastError:     h["last_error"],
	}
	var err error
	if o.Grams, err = parseDecimal(h["grams"]); err != nil {
		return nil, fmt.Errorf("failed to parse order grams %q: %w", h["grams"], err)
	}
	if o.LimitPrice, err = parseDecimal(h["limit_price"]); err != nil {
		return nil, fmt.Errorf("failed to parse order limit price %q: %w", h["limit_price"], err)
	}
	if o.FilledGrams, err = parseDecimal(h["filled_grams"]); err != nil {
		return nil, fmt.Errorf("failed to parse order filled grams %q: %w", h["filled_grams"], err)
	}
	if o.FillPrice, err = parseDecimal(h["fill_price"]); err != nil {
		return nil, fmt.Errorf("failed to parse order fill price %q: %w", h["fill_price"], err)
	}
	if o.CreatedAt, err = parseMillis(h["created_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse order created_at: %w", err)
	}
	if o.ExpiresAt, err = parseMillis(h["expires_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse order expires_at: %w", err)
	}
	if o.FilledAt, err = parseOptionalMillis(h["filled_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse order filled_at: %w", err)
	}
	if o.CancelledAt, err = parseOptionalMillis(h["cancelled_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse order cancelled_at: %w", err)
	}
	if o.LastErrorAt, err = parseOptionalMillis(h["last_error_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse order last_error_at: %w", err)
	}
	return o, nil
}

func txnFields(t *models.Transaction) []interface{} {
	return []interface{}{
		"id", t.Id,
		"address", t.Address,
		"type", string(t.Type),
		"side", string(t.Side),
		"asset", t.Asset,
		"grams", t.Grams.String(),
		"price", t.Price.String(),
		"payment_asset", t.PaymentAsset,
		"payment_amount", t.PaymentAmount.String(),
		"reference", t.Reference,
		"created_at", millis(t.CreatedAt),
	}
}

func parseTransaction(h map[string]string) (*models.Transaction, error) {
	if len(h) == 0 || h["id"] == "" {
		return nil, nil
	}
	t := &models.Transaction{
		Id:           h["id"],
		Address:      h["address"],
		Type:         models.TransactionType(h["type"]),
		Side:         models.OrderSide(h["side"]),
		Asset:        h["asset"],
		PaymentAsset: h["payment_asset"],
		Reference:    h["reference"],
	}
	var err error
	if t.Grams, err = parseDecimal(h["grams"]); err != nil {
		return nil, fmt.Errorf("failed to parse transaction grams: %w", err)
	}
	if t.Price, err = parseDecimal(h["price"]); err != nil {
		return nil, fmt.Errorf("failed to parse transaction price: %w", err)
	}
	if t.PaymentAmount, err = parseDecimal(h["payment_amount"]); err != nil {
		return nil, fmt.Errorf("failed to parse transaction payment amount: %w", err)
	}
	if t.CreatedAt, err = parseMillis(h["created_at"]); err != nil {
		return nil, fmt.Errorf("failed to parse transaction created_at: %w", err)
	}
	return t, nil
}

// stringArgs flattens field/value pairs into script arguments.
func stringArgs(head []interface{}, pairs []interface{}) []interface{} {
	out := make([]interface{}, 0, len(head)+len(pairs))
	out = append(out, head...)
	return append(out, pairs...)
}
