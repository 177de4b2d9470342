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

type lockRow struct {
	lock  models.CapitalLock
	units int64
}

func scanLock(row rowScanner) (*lockRow, error) {
	var r lockRow
	var price string
	var createdAt, expiresAt int64
	err := row.Scan(&r.lock.LockId, &r.lock.Address, &r.lock.FromAsset, &r.lock.ToAsset,
		&r.units, &price, &createdAt, &expiresAt, &r.lock.TtlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lock: %w", err)
	}
	if r.lock.ExecutionPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse lock price %q: %w", price, err)
	}
	r.lock.FromAmount = store.FromUnits(r.lock.FromAsset, r.units)
	r.lock.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.lock.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	r.lock.Status = models.LockActive
	return &r, nil
}

// CreateLock settles any stale lock of the address, reserves the lock amount and
// stores the new lock in one immediate transaction.
func (s *Service) CreateLock(ctx context.Context, lock *models.CapitalLock, now time.Time) (decimal.Decimal, error) {
	units, err := store.ToUnits(lock.FromAsset, lock.FromAmount)
	if err != nil {
		return decimal.Zero, err
	}

	var remaining int64
	var insufficient error
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanLock(tx.QueryRowContext(ctx, queryGetLockByAddress, lock.Address))
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.lock.ExpiresAt.After(now) {
				return store.ErrLockExists
			}
			if _, err := creditUnits(ctx, tx, existing.lock.Address, existing.lock.FromAsset, existing.units,
				reasonLockExpire, existing.lock.LockId, now); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queryDeleteLock, existing.lock.LockId); err != nil {
				return fmt.Errorf("failed to delete stale lock: %w", err)
			}
			zap.L().Info("Stale capital lock credited back before new reservation",
				zap.String("address", lock.Address),
				zap.String("lock_id", existing.lock.LockId))
		}

		left, available, ok, err := debitUnits(ctx, tx, lock.Address, lock.FromAsset, units, reasonLockReserve, lock.LockId, now)
		if err != nil {
			return err
		}
		if !ok {
			// Commit the stale settlement; report the shortfall.
			insufficient = &store.InsufficientBalanceError{
				Asset:     lock.FromAsset,
				Required:  lock.FromAmount,
				Available: store.FromUnits(lock.FromAsset, available),
			}
			return nil
		}

		_, err = tx.ExecContext(ctx, queryInsertLock,
			lock.LockId, lock.Address, lock.FromAsset, lock.ToAsset, units, lock.ExecutionPrice.String(),
			lock.CreatedAt.UnixMilli(), lock.ExpiresAt.UnixMilli(), lock.TtlSeconds)
		if err != nil {
			return fmt.Errorf("failed to insert lock: %w", err)
		}
		remaining = left
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	if insufficient != nil {
		return decimal.Zero, insufficient
	}
	return store.FromUnits(lock.FromAsset, remaining), nil
}

func (s *Service) GetLock(ctx context.Context, address string) (*models.CapitalLock, error) {
	r, err := scanLock(s.db.QueryRowContext(ctx, queryGetLockByAddress, address))
	if err != nil || r == nil {
		return nil, err
	}
	return &r.lock, nil
}

func (s *Service) FindLock(ctx context.Context, lockId string) (*models.CapitalLock, error) {
	r, err := scanLock(s.db.QueryRowContext(ctx, queryGetLockById, lockId))
	if err != nil || r == nil {
		return nil, err
	}
	return &r.lock, nil
}

func (s *Service) ReleaseLock(ctx context.Context, lockId string) (*models.CapitalLock, error) {
	return s.releaseLock(ctx, lockId, false, time.Now())
}

// releaseLock credits a lock back and deletes it. With expireOnly set the lock is
// released only once its deadline has passed.
func (s *Service) releaseLock(ctx context.Context, lockId string, expireOnly bool, now time.Time) (*models.CapitalLock, error) {
	var released *models.CapitalLock
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := scanLock(tx.QueryRowContext(ctx, queryGetLockById, lockId))
		if err != nil || r == nil {
			return err
		}
		if expireOnly && r.lock.ExpiresAt.After(now) {
			return nil
		}

		reason := reasonLockRelease
		r.lock.Status = models.LockReleased
		if expireOnly {
			reason = reasonLockExpire
			r.lock.Status = models.LockExpired
		}
		if _, err := creditUnits(ctx, tx, r.lock.Address, r.lock.FromAsset, r.units, reason, lockId, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryDeleteLock, lockId); err != nil {
			return fmt.Errorf("failed to delete lock: %w", err)
		}
		released = &r.lock
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to release lock %s: %w", lockId, err)
	}
	return released, nil
}

func (s *Service) ConsumeLock(ctx context.Context, params store.ConsumeLockParams) error {
	creditUnitsAmount, err := store.ToUnits(params.CreditAsset, params.CreditAmount)
	if err != nil {
		return err
	}

	var expired bool
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := scanLock(tx.QueryRowContext(ctx, queryGetLockById, params.LockId))
		if err != nil {
			return err
		}
		if r == nil {
			return store.ErrLockNotFound
		}

		if _, err := tx.ExecContext(ctx, queryDeleteLock, params.LockId); err != nil {
			return fmt.Errorf("failed to delete lock: %w", err)
		}

		if !r.lock.ExpiresAt.After(params.Now) {
			expired = true
			_, err := creditUnits(ctx, tx, r.lock.Address, r.lock.FromAsset, r.units, reasonLockExpire, params.LockId, params.Now)
			return err
		}

		if _, err := creditUnits(ctx, tx, r.lock.Address, params.CreditAsset, creditUnitsAmount,
			reasonLockSettle, params.LockId, params.Now); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, params.Transaction)
	})
	if err != nil {
		return err
	}
	if expired {
		return store.ErrLockExpired
	}
	return nil
}

func (s *Service) ExpireLocks(ctx context.Context, now time.Time, limit int) ([]models.CapitalLock, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, queryListExpiredLocks, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired locks: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			closeRows(rows)
			return nil, fmt.Errorf("failed to scan lock id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		closeRows(rows)
		return nil, fmt.Errorf("error iterating lock rows: %w", err)
	}
	// Release the connection before opening per-lock transactions.
	closeRows(rows)

	var expired []models.CapitalLock
	for _, id := range ids {
		lock, err := s.releaseLock(ctx, id, true, now)
		if err != nil {
			zap.L().Error("Failed to expire lock", zap.String("lock_id", id), zap.Error(err))
			continue
		}
		if lock != nil {
			expired = append(expired, *lock)
		}
	}
	return expired, nil
}
