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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LockStatus tracks a capital lock through its lifecycle
type LockStatus string

const (
	LockActive   LockStatus = "active"
	LockConsumed LockStatus = "consumed"
	LockReleased LockStatus = "released"
	LockExpired  LockStatus = "expired"
)

// CapitalLock reserves FromAmount of FromAsset and freezes ExecutionPrice until ExpiresAt
type CapitalLock struct {
	LockId         string          `json:"lock_id"`
	Address        string          `json:"address"`
	FromAsset      string          `json:"from_asset"`
	ToAsset        string          `json:"to_asset"`
	FromAmount     decimal.Decimal `json:"from_amount"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	Status         LockStatus      `json:"status"`
	TtlSeconds     int64           `json:"ttl_seconds"`
}

// Expired reports whether the lock's deadline has passed at now
func (l *CapitalLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// LockResult is returned by a successful lock creation
type LockResult struct {
	Lock             *CapitalLock    `json:"lock"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// OrderSide is the direction of a limit order from the user's point of view
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderStatus is the limit order state machine
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
	OrderExpired         OrderStatus = "expired"
)

// Open reports whether the order can still be matched
func (s OrderStatus) Open() bool {
	return s == OrderPending || s == OrderPartiallyFilled
}

// LimitOrder is a standing instruction evaluated by every fill scan
type LimitOrder struct {
	Id            string          `json:"id"`
	Address       string          `json:"address"`
	Side          OrderSide       `json:"side"`
	Asset         string          `json:"asset"`
	Grams         decimal.Decimal `json:"grams"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
	PaymentMethod string          `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	FilledGrams   decimal.Decimal `json:"filled_grams"`
	FillPrice     decimal.Decimal `json:"fill_price,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	FilledAt      *time.Time      `json:"filled_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LastErrorAt   *time.Time      `json:"last_error_at,omitempty"`
}

// RemainingGrams is the unfilled quantity
func (o *LimitOrder) RemainingGrams() decimal.Decimal {
	return o.Grams.Sub(o.FilledGrams)
}

// TransactionType classifies settlement records
type TransactionType string

const (
	TransactionLimitFill      TransactionType = "limit_fill"
	TransactionLockSettlement TransactionType = "lock_settlement"
)

// Transaction is the immutable record of a settled trade. It is written in the same
// atomic step as the balance mutation, so replaying the log is always safe.
type Transaction struct {
	Id            string          `json:"id"`
	Address       string          `json:"address"`
	Type          TransactionType `json:"type"`
	Side          OrderSide       `json:"side"`
	Asset         string          `json:"asset"`
	Grams         decimal.Decimal `json:"grams"`
	Price         decimal.Decimal `json:"price"`
	PaymentAsset  string          `json:"payment_asset"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	Reference     string          `json:"reference"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FillError describes a single order that could not be processed in a scan
type FillError struct {
	OrderId string `json:"order_id"`
	Address string `json:"address,omitempty"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// FillScanResult summarizes one fill scan for one asset. It is always returned,
// even when some orders failed.
type FillScanResult struct {
	Asset   string          `json:"asset"`
	Ask     decimal.Decimal `json:"ask"`
	Bid     decimal.Decimal `json:"bid"`
	Scanned int             `json:"scanned"`
	Filled  int             `json:"filled"`
	Expired int             `json:"expired"`
	Errors  []FillError     `json:"errors"`
}

// TradeEvent is published to the notification layer after a settlement
type TradeEvent struct {
	EventId     string      `json:"event_id"`
	Type        string      `json:"type"`
	Transaction Transaction `json:"transaction"`
	PublishedAt time.Time   `json:"published_at"`
}
