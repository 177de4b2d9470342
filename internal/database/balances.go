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

	"metal-trade-core/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Journal reasons
const (
	reasonCredit      = "credit"
	reasonDebit       = "debit"
	reasonLockReserve = "lock_reserve"
	reasonLockRelease = "lock_release"
	reasonLockExpire  = "lock_expire"
	reasonLockSettle  = "lock_settle"
	reasonOrderFill   = "order_fill"
)

func (s *Service) GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error) {
	var units int64
	err := s.db.QueryRowContext(ctx, queryGetBalance, address, asset).Scan(&units)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("address", address), zap.String("asset", asset), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return store.FromUnits(asset, units), nil
}

// GetBalances returns all non-zero balances for an address
func (s *Service) GetBalances(ctx context.Context, address string) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryGetBalances, address)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer closeRows(rows)

	balances := make(map[string]decimal.Decimal)
	for rows.Next() {
		var asset string
		var units int64
		if err := rows.Scan(&asset, &units); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[asset] = store.FromUnits(asset, units)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

func (s *Service) Credit(ctx context.Context, address, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: credit must be positive, got %s", store.ErrInvalidAmount, amount)
	}
	units, err := store.ToUnits(asset, amount)
	if err != nil {
		return decimal.Zero, err
	}

	var balance int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err = creditUnits(ctx, tx, address, asset, units, reasonCredit, "", time.Now())
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return store.FromUnits(asset, balance), nil
}

func (s *Service) Debit(ctx context.Context, address, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: debit must be positive, got %s", store.ErrInvalidAmount, amount)
	}
	units, err := store.ToUnits(asset, amount)
	if err != nil {
		return decimal.Zero, err
	}

	var balance int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		remaining, available, ok, err := debitUnits(ctx, tx, address, asset, units, reasonDebit, "", time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return &store.InsufficientBalanceError{
				Asset:     asset,
				Required:  amount,
				Available: store.FromUnits(asset, available),
			}
		}
		balance = remaining
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return store.FromUnits(asset, balance), nil
}

// ReconcileBalance verifies that the stored balance equals the sum of its journal entries
func (s *Service) ReconcileBalance(ctx context.Context, address, asset string) error {
	current, err := s.GetBalance(ctx, address, asset)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	var sum int64
	if err := s.db.QueryRowContext(ctx, queryReconcileBalance, address, asset).Scan(&sum); err != nil {
		return fmt.Errorf("failed to sum journal entries: %w", err)
	}
	calculated := store.FromUnits(asset, sum)

	if !current.Equal(calculated) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("address", address),
			zap.String("asset", asset),
			zap.String("current_balance", current.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", current.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", current, calculated)
	}

	zap.L().Debug("Balance reconciliation successful",
		zap.String("address", address),
		zap.String("asset", asset),
		zap.String("balance", current.String()))
	return nil
}

// creditUnits adds units to a balance row and journals the movement.
func creditUnits(ctx context.Context, tx *sql.Tx, address, asset string, units int64, reason, reference string, now time.Time) (int64, error) {
	var balance int64
	if err := tx.QueryRowContext(ctx, queryCreditBalance, address, asset, units, now.UnixMilli()).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}
	if err := journal(ctx, tx, address, asset, units, balance, reason, reference, now); err != nil {
		return 0, err
	}
	return balance, nil
}

// debitUnits removes units from a balance only if it stays non-negative. When it would
// not, ok is false and available carries the current balance.
func debitUnits(ctx context.Context, tx *sql.Tx, address, asset string, units int64, reason, reference string, now time.Time) (remaining, available int64, ok bool, err error) {
	err = tx.QueryRowContext(ctx, queryDebitBalance, units, now.UnixMilli(), address, asset, units).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, queryGetBalance, address, asset).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		if err != nil {
			return 0, 0, false, fmt.Errorf("failed to read balance: %w", err)
		}
		return 0, available, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to debit balance: %w", err)
	}
	if err := journal(ctx, tx, address, asset, -units, remaining, reason, reference, now); err != nil {
		return 0, 0, false, err
	}
	return remaining, remaining, true, nil
}

func journal(ctx context.Context, tx *sql.Tx, address, asset string, delta, balanceAfter int64, reason, reference string, now time.Time) error {
	_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
		uuid.New().String(), address, asset, delta, balanceAfter, reason, reference, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to add journal entry: %w", err)
	}
	return nil
}
