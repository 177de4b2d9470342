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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func insertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	if t == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx, queryInsertTransaction,
		t.Id, t.Address, string(t.Type), string(t.Side), t.Asset, t.Grams.String(), t.Price.String(),
		t.PaymentAsset, t.PaymentAmount.String(), t.Reference, t.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the most recent transactions of an address, newest first.
func (s *Service) ListTransactions(ctx context.Context, address string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, queryListTransactions, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer closeRows(rows)

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var txType, side, grams, price, paymentAmount string
		var createdAt int64
		if err := rows.Scan(&t.Id, &t.Address, &txType, &side, &t.Asset, &grams, &price,
			&t.PaymentAsset, &paymentAmount, &t.Reference, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = models.TransactionType(txType)
		t.Side = models.OrderSide(side)
		if t.Grams, err = decimal.NewFromString(grams); err != nil {
			return nil, fmt.Errorf("failed to parse transaction grams %q: %w", grams, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse transaction price %q: %w", price, err)
		}
		if t.PaymentAmount, err = decimal.NewFromString(paymentAmount); err != nil {
			return nil, fmt.Errorf("failed to parse transaction payment amount %q: %w", paymentAmount, err)
		}
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txns, nil
}

func (s *Service) GetPricingConfig(ctx context.Context) (*models.PricingConfig, error) {
	var data string
	err := s.db.QueryRowContext(ctx, queryGetPricingConfig).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing config: %w", err)
	}
	var cfg models.PricingConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing config: %w", err)
	}
	return &cfg, nil
}

// SavePricingConfig stores cfg under a new version number.
func (s *Service) SavePricingConfig(ctx context.Context, cfg *models.PricingConfig) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var version int64
		if err := tx.QueryRowContext(ctx, queryNextPricingVersion).Scan(&version); err != nil {
			return fmt.Errorf("failed to allocate pricing config version: %w", err)
		}
		cfg.Version = version
		cfg.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal pricing config: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryInsertPricingConfig, version, string(data), cfg.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to save pricing config: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	zap.L().Info("Pricing config saved", zap.Int64("version", cfg.Version))
	return nil
}
