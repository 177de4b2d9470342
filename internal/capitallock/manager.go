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

package capitallock

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

const sweepBatch = 500

// CreateLockParams describes the funds to reserve and the price to freeze.
type CreateLockParams struct {
	Address        string
	FromAsset      string
	ToAsset        string
	FromAmount     decimal.Decimal
	ExecutionPrice decimal.Decimal
}

// Manager bridges a quote and its settlement: it reserves the paying side of a
// trade, freezes the execution price and either settles or credits back.
type Manager struct {
	store     store.TradeStore
	publisher events.Publisher
	registry  *models.AssetRegistry
	ttl       time.Duration
	now       func() time.Time
}

func NewManager(tradeStore store.TradeStore, publisher events.Publisher, registry *models.AssetRegistry, ttl time.Duration) *Manager {
	return &Manager{
		store:     tradeStore,
		publisher: publisher,
		registry:  registry,
		ttl:       ttl,
		now:       time.Now,
	}
}

// CreateLock debits FromAmount immediately and stores the lock. A second lock for
// the same address fails with store.ErrLockExists while the first is live.
func (m *Manager) CreateLock(ctx context.Context, params CreateLockParams) (*models.LockResult, error) {
	params.FromAsset = strings.ToUpper(params.FromAsset)
	params.ToAsset = strings.ToUpper(params.ToAsset)
	if err := m.validate(params); err != nil {
		metrics.IncLock(metrics.LockRejected)
		return nil, err
	}

	now := m.now().UTC()
	lock := &models.CapitalLock{
		LockId:         uuid.New().String(),
		Address:        params.Address,
		FromAsset:      params.FromAsset,
		ToAsset:        params.ToAsset,
		FromAmount:     params.FromAmount,
		ExecutionPrice: params.ExecutionPrice,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.ttl),
		Status:         models.LockActive,
		TtlSeconds:     int64(m.ttl / time.Second),
	}

	remaining, err := m.store.CreateLock(ctx, lock, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			metrics.IncLock(metrics.LockInsufficient)
		case errors.Is(err, store.ErrLockExists):
			metrics.IncLock(metrics.LockRejected)
		}
		zap.L().Info("Capital lock refused",
			zap.String("address", params.Address),
			zap.String("asset", params.FromAsset),
			zap.String("amount", params.FromAmount.String()),
			zap.Error(err))
		return nil, err
	}

	metrics.IncLock(metrics.LockCreated)
	zap.L().Info("Capital lock created",
		zap.String("lock_id", lock.LockId),
		zap.String("address", lock.Address),
		zap.String("asset", lock.FromAsset),
		zap.String("amount", lock.FromAmount.String()),
		zap.String("price", lock.ExecutionPrice.String()),
		zap.Time("expires_at", lock.ExpiresAt))

	return &models.LockResult{Lock: lock, RemainingBalance: remaining}, nil
}

// ReleaseLock credits the reserved funds back. Releasing a lock that is already
// gone is a no-op.
func (m *Manager) ReleaseLock(ctx context.Context, lockId string) error {
	lock, err := m.store.ReleaseLock(ctx, lockId)
	if err != nil {
		return err
	}
	if lock == nil {
		zap.L().Debug("Release of unknown or settled lock ignored", zap.String("lock_id", lockId))
		return nil
	}

	metrics.IncLock(metrics.LockReleased)
	zap.L().Info("Capital lock released",
		zap.String("lock_id", lockId),
		zap.String("address", lock.Address),
		zap.String("asset", lock.FromAsset),
		zap.String("amount", lock.FromAmount.String()))
	return nil
}

// Settle consumes the lock at its frozen price and credits the counter asset.
// An expired lock is credited back instead and store.ErrLockExpired returned.
func (m *Manager) Settle(ctx context.Context, lockId string) (*models.Transaction, error) {
	lock, err := m.store.FindLock(ctx, lockId)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, store.ErrLockNotFound
	}

	now := m.now().UTC()
	txn, creditAsset, creditAmount, err := m.settlement(lock, now)
	if err != nil {
		return nil, err
	}

	err = m.store.ConsumeLock(ctx, store.ConsumeLockParams{
		LockId:       lockId,
		CreditAsset:  creditAsset,
		CreditAmount: creditAmount,
		Transaction:  txn,
		Now:          now,
	})
	if errors.Is(err, store.ErrLockExpired) {
		metrics.IncLock(metrics.LockExpired)
		zap.L().Info("Settlement attempted on expired lock, funds returned",
			zap.String("lock_id", lockId), zap.String("address", lock.Address))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	metrics.IncLock(metrics.LockSettled)
	zap.L().Info("Capital lock settled",
		zap.String("lock_id", lockId),
		zap.String("address", lock.Address),
		zap.String("side", string(txn.Side)),
		zap.String("asset", txn.Asset),
		zap.String("grams", txn.Grams.String()),
		zap.String("price", txn.Price.String()))

	if err := m.publisher.Publish(ctx, *txn); err != nil {
		zap.L().Warn("Settlement event not published", zap.String("transaction_id", txn.Id), zap.Error(err))
	}
	return txn, nil
}

// ActiveLock returns the live lock for address. A lock past its deadline is
// credited back on read and nil is returned.
func (m *Manager) ActiveLock(ctx context.Context, address string) (*models.CapitalLock, error) {
	lock, err := m.store.GetLock(ctx, address)
	if err != nil || lock == nil {
		return nil, err
	}
	if !lock.Expired(m.now()) {
		return lock, nil
	}

	released, err := m.store.ReleaseLock(ctx, lock.LockId)
	if err != nil {
		return nil, fmt.Errorf("failed to settle expired lock %s: %w", lock.LockId, err)
	}
	if released != nil {
		metrics.IncLock(metrics.LockExpired)
		zap.L().Info("Expired capital lock credited back",
			zap.String("lock_id", lock.LockId), zap.String("address", address))
	}
	return nil, nil
}

// SweepExpired credits back every lock whose deadline has passed.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	expired, err := m.store.ExpireLocks(ctx, m.now(), sweepBatch)
	if err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		metrics.AddLocks(metrics.LockExpired, len(expired))
		zap.L().Info("Expired capital locks credited back", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

func (m *Manager) validate(params CreateLockParams) error {
	if strings.TrimSpace(params.Address) == "" {
		return store.ErrInvalidAddress
	}
	if !params.FromAmount.IsPositive() {
		return fmt.Errorf("%w: lock amount must be positive", store.ErrInvalidAmount)
	}
	if !params.ExecutionPrice.IsPositive() {
		return fmt.Errorf("%w: execution price must be positive", store.ErrInvalidPrice)
	}

	buying := m.registry.IsCurrency(params.FromAsset) && m.registry.IsMetal(params.ToAsset)
	selling := m.registry.IsMetal(params.FromAsset) && m.registry.IsCurrency(params.ToAsset)
	if !buying && !selling {
		return fmt.Errorf("%w: %s to %s is not a metal trade", store.ErrInvalidAsset, params.FromAsset, params.ToAsset)
	}

	if _, err := store.ToUnits(params.FromAsset, params.FromAmount); err != nil {
		return err
	}
	_, amount := counterAmount(buying, params.FromAmount, params.ExecutionPrice, params.ToAsset)
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s %s buys nothing at %s", store.ErrInvalidAmount,
			params.FromAmount.String(), params.FromAsset, params.ExecutionPrice.String())
	}
	return nil
}

// settlement builds the transaction record and the counter-asset credit from the
// frozen lock price.
func (m *Manager) settlement(lock *models.CapitalLock, now time.Time) (*models.Transaction, string, decimal.Decimal, error) {
	buying := m.registry.IsMetal(lock.ToAsset)
	grams, credit := counterAmount(buying, lock.FromAmount, lock.ExecutionPrice, lock.ToAsset)
	if !credit.IsPositive() {
		return nil, "", decimal.Zero, fmt.Errorf("%w: lock %s settles to zero", store.ErrInvalidAmount, lock.LockId)
	}

	txn := &models.Transaction{
		Id:        uuid.New().String(),
		Address:   lock.Address,
		Type:      models.TransactionLockSettlement,
		Price:     lock.ExecutionPrice,
		Reference: lock.LockId,
		CreatedAt: now,
	}
	if buying {
		txn.Side = models.SideBuy
		txn.Asset = lock.ToAsset
		txn.Grams = grams
		txn.PaymentAsset = lock.FromAsset
		txn.PaymentAmount = lock.FromAmount
	} else {
		txn.Side = models.SideSell
		txn.Asset = lock.FromAsset
		txn.Grams = lock.FromAmount
		txn.PaymentAsset = lock.ToAsset
		txn.PaymentAmount = credit
	}
	return txn, lock.ToAsset, credit, nil
}

// counterAmount returns the grams traded and the amount credited in toAsset.
// Credits round down to the ledger precision.
func counterAmount(buying bool, fromAmount, price decimal.Decimal, toAsset string) (decimal.Decimal, decimal.Decimal) {
	if buying {
		grams := store.RoundDown(toAsset, fromAmount.Div(price))
		return grams, grams
	}
	return fromAmount, store.RoundDown(toAsset, fromAmount.Mul(price))
}
