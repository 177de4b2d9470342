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
	"encoding/json"
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

// Compile-time check: *Service must satisfy store.TradeStore.
var _ store.TradeStore = (*Service)(nil)

// Service implements store.TradeStore on a single Redis keyspace.
//
// Layout (all keys carry the configured prefix):
//
//	balance:{address}        hash  asset -> smallest units
//	lock:{address}           hash  the single active capital lock
//	locks:byid               hash  lock id -> address
//	locks:deadline           zset  lock id scored by expires_at (ms)
//	order:{id}               hash  limit order record
//	orders:user:{address}    zset  order ids scored by created_at
//	orders:open:{asset}      zset  open order ids scored by created_at
//	txn:{id}                 hash  settled transaction record
//	txns:{address}           zset  transaction ids scored by created_at
//	pricing:config           string JSON PricingConfig
type Service struct {
	client redis.UniversalClient
	prefix string
}

// NewService connects to Redis and verifies the connection.
func NewService(ctx context.Context, cfg models.RedisConfig) (*Service, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if cfg.PoolSize < 0 {
		return nil, fmt.Errorf("redis pool size cannot be negative, got %d", cfg.PoolSize)
	}

	zap.L().Info("Connecting to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{cfg.Addr},
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(cerr))
		}
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	zap.L().Info("Redis store initialized", zap.String("key_prefix", cfg.KeyPrefix))
	return NewServiceWithClient(client, cfg.KeyPrefix), nil
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(client redis.UniversalClient, prefix string) *Service {
	return &Service{client: client, prefix: prefix}
}

func (s *Service) Close() {
	if err := s.client.Close(); err != nil {
		zap.L().Warn("Failed to close redis connection", zap.Error(err))
	}
}

// ---------- keys ----------

func (s *Service) balanceKey(address string) string    { return s.prefix + "balance:" + address }
func (s *Service) lockKey(address string) string       { return s.prefix + "lock:" + address }
func (s *Service) lockIndexKey() string                { return s.prefix + "locks:byid" }
func (s *Service) lockDeadlineKey() string             { return s.prefix + "locks:deadline" }
func (s *Service) orderKey(id string) string           { return s.prefix + "order:" + id }
func (s *Service) userOrdersKey(address string) string { return s.prefix + "orders:user:" + address }
func (s *Service) openOrdersKey(asset string) string   { return s.prefix + "orders:open:" + asset }
func (s *Service) txnKey(id string) string             { return s.prefix + "txn:" + id }
func (s *Service) userTxnsKey(address string) string   { return s.prefix + "txns:" + address }
func (s *Service) pricingKey() string                  { return s.prefix + "pricing:config" }
func (s *Service) pricingVersionKey() string           { return s.prefix + "pricing:config:version" }

// ---------- balances ----------

func (s *Service) GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error) {
	units, err := s.client.HGet(ctx, s.balanceKey(address), asset).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return store.FromUnits(asset, units), nil
}

// GetBalances returns all non-zero balances for an address.
func (s *Service) GetBalances(ctx context.Context, address string) (map[string]decimal.Decimal, error) {
	raw, err := s.client.HGetAll(ctx, s.balanceKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	balances := make(map[string]decimal.Decimal, len(raw))
	for asset, v := range raw {
		units, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s balance %q: %w", asset, v, err)
		}
		if units == 0 {
			continue
		}
		balances[asset] = store.FromUnits(asset, units)
	}
	return balances, nil
}

// Credit atomically increments a balance.
func (s *Service) Credit(ctx context.Context, address, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: credit must be positive, got %s", store.ErrInvalidAmount, amount)
	}
	units, err := store.ToUnits(asset, amount)
	if err != nil {
		return decimal.Zero, err
	}
	newUnits, err := s.client.HIncrBy(ctx, s.balanceKey(address), asset, units).Result()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit balance: %w", err)
	}
	return store.FromUnits(asset, newUnits), nil
}

// Debit atomically decrements a balance, refusing to go below zero.
func (s *Service) Debit(ctx context.Context, address, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: debit must be positive, got %s", store.ErrInvalidAmount, amount)
	}
	units, err := store.ToUnits(asset, amount)
	if err != nil {
		return decimal.Zero, err
	}
	res, err := debitScript.Run(ctx, s.client, []string{s.balanceKey(address)}, asset, units).Int64Slice()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit balance: %w", err)
	}
	if res[0] == 0 {
		return decimal.Zero, &store.InsufficientBalanceError{
			Asset:     asset,
			Required:  amount,
			Available: store.FromUnits(asset, res[1]),
		}
	}
	return store.FromUnits(asset, res[1]), nil
}

// ---------- pricing configuration ----------

func (s *Service) GetPricingConfig(ctx context.Context) (*models.PricingConfig, error) {
	data, err := s.client.Get(ctx, s.pricingKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing config: %w", err)
	}
	var cfg models.PricingConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing config: %w", err)
	}
	return &cfg, nil
}

// SavePricingConfig stores cfg under a new version number.
func (s *Service) SavePricingConfig(ctx context.Context, cfg *models.PricingConfig) error {
	version, err := s.client.Incr(ctx, s.pricingVersionKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to bump pricing config version: %w", err)
	}
	cfg.Version = version
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing config: %w", err)
	}
	if err := s.client.Set(ctx, s.pricingKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save pricing config: %w", err)
	}
	zap.L().Info("Pricing config saved", zap.Int64("version", version))
	return nil
}
