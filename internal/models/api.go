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

// AddressBalance represents an address's balance for a specific asset
type AddressBalance struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}

// Quote is the price offered for an interactive trade before it is confirmed
type Quote struct {
	Address       string          `json:"address"`
	Side          OrderSide       `json:"side"`
	Asset         string          `json:"asset"`
	Grams         decimal.Decimal `json:"grams"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PaymentAsset  string          `json:"payment_asset"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	Price         *ExecutionPrice `json:"price"`
	QuotedAt      time.Time       `json:"quoted_at"`
}

// TradeConfirmation represents a confirmed quote backed by a capital lock
type TradeConfirmation struct {
	Quote            *Quote          `json:"quote"`
	Lock             *CapitalLock    `json:"lock"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}
