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
	"strconv"
	"time"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateLock reserves the lock amount and stores the lock in one script.
func (s *Service) CreateLock(ctx context.Context, lock *models.CapitalLock, now time.Time) (decimal.Decimal, error) {
	units, err := store.ToUnits(lock.FromAsset, lock.FromAmount)
	if err != nil {
		return decimal.Zero, err
	}

	keys := []string{
		s.balanceKey(lock.Address),
		s.lockKey(lock.Address),
		s.lockIndexKey(),
		s.lockDeadlineKey(),
	}
	res, err := createLockScript.Run(ctx, s.client, keys,
		lock.LockId, lock.Address, lock.FromAsset, lock.ToAsset, units,
		lock.ExecutionPrice.String(), millis(lock.CreatedAt), millis(lock.ExpiresAt),
		lock.TtlSeconds, millis(now)).Int64Slice()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create lock: %w", err)
	}

	if res[2] == 1 {
		zap.L().Info("Stale capital lock credited back before new reservation",
			zap.String("address", lock.Address))
	}

	switch res[0] {
	case -1:
		return decimal.Zero, store.ErrLockExists
	case 0:
		return decimal.Zero, &store.InsufficientBalanceError{
			Asset:     lock.FromAsset,
			Required:  lock.FromAmount,
			Available: store.FromUnits(lock.FromAsset, res[1]),
		}
	}
	return store.FromUnits(lock.FromAsset, res[1]), nil
}

// GetLock returns the address's lock record, or nil if none is stored. A returned lock
// may already be past its deadline; callers decide how to settle it.
func (s *Service) GetLock(ctx context.Context, address string) (*models.CapitalLock, error) {
	h, err := s.client.HGetAll(ctx, s.lockKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get lock: %w", err)
	}
	return parseLock(h)
}

func (s *Service) FindLock(ctx context.Context, lockId string) (*models.CapitalLock, error) {
	address, err := s.client.HGet(ctx, s.lockIndexKey(), lockId).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lock %s: %w", lockId, err)
	}
	lock, err := s.GetLock(ctx, address)
	if err != nil {
		return nil, err
	}
	if lock == nil || lock.LockId != lockId {
		return nil, nil
	}
	return lock, nil
}

func (s *Service) ReleaseLock(ctx context.Context, lockId string) (*models.CapitalLock, error) {
	return s.releaseLock(ctx, lockId, "release", time.Now())
}

func (s *Service) releaseLock(ctx context.Context, lockId, mode string, now time.Time) (*models.CapitalLock, error) {
	lock, err := s.FindLock(ctx, lockId)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		// Drop dangling index entries; nothing left to credit.
		if err := s.client.HDel(ctx, s.lockIndexKey(), lockId).Err(); err != nil {
			zap.L().Warn("Failed to clean lock index", zap.String("lock_id", lockId), zap.Error(err))
		}
		if err := s.client.ZRem(ctx, s.lockDeadlineKey(), lockId).Err(); err != nil {
			zap.L().Warn("Failed to clean lock deadline index", zap.String("lock_id", lockId), zap.Error(err))
		}
		return nil, nil
	}

	keys := []string{
		s.lockKey(lock.Address),
		s.balanceKey(lock.Address),
		s.lockIndexKey(),
		s.lockDeadlineKey(),
	}
	released, err := releaseLockScript.Run(ctx, s.client, keys, lockId, mode, millis(now)).Int64()
	if err != nil {
		return nil, fmt.Errorf("failed to release lock %s: %w", lockId, err)
	}
	if released == 0 {
		return nil, nil
	}

	if mode == "expire" {
		lock.Status = models.LockExpired
	} else {
		lock.Status = models.LockReleased
	}
	return lock, nil
}

func (s *Service) ConsumeLock(ctx context.Context, params store.ConsumeLockParams) error {
	lock, err := s.FindLock(ctx, params.LockId)
	if err != nil {
		return err
	}
	if lock == nil {
		return store.ErrLockNotFound
	}
	units, err := store.ToUnits(params.CreditAsset, params.CreditAmount)
	if err != nil {
		return err
	}

	keys := []string{
		s.lockKey(lock.Address),
		s.balanceKey(lock.Address),
		s.lockIndexKey(),
		s.lockDeadlineKey(),
		s.txnKey(params.Transaction.Id),
		s.userTxnsKey(lock.Address),
	}
	head := []interface{}{params.LockId, millis(params.Now), params.CreditAsset, units, params.Transaction.Id}
	code, err := consumeLockScript.Run(ctx, s.client, keys, stringArgs(head, txnFields(params.Transaction))...).Int64()
	if err != nil {
		return fmt.Errorf("failed to consume lock %s: %w", params.LockId, err)
	}

	switch code {
	case 0:
		return store.ErrLockNotFound
	case -1:
		return store.ErrLockExpired
	}
	return nil
}

func (s *Service) ExpireLocks(ctx context.Context, now time.Time, limit int) ([]models.CapitalLock, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.ZRangeByScore(ctx, s.lockDeadlineKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired locks: %w", err)
	}

	var expired []models.CapitalLock
	for _, id := range ids {
		lock, err := s.releaseLock(ctx, id, "expire", now)
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
