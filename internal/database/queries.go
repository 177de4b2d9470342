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

const (
	schemaSQL = `
	-- Balances in smallest units per (address, asset)
	CREATE TABLE IF NOT EXISTS balances (
		address TEXT NOT NULL,
		asset TEXT NOT NULL,
		units INTEGER NOT NULL DEFAULT 0 CHECK (units >= 0),
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (address, asset)
	);

	-- Every balance movement, used for reconciliation
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		asset TEXT NOT NULL,
		delta_units INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		reason TEXT NOT NULL,
		reference TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_address_asset ON journal_entries(address, asset);

	-- At most one capital lock per address
	CREATE TABLE IF NOT EXISTS capital_locks (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		from_asset TEXT NOT NULL,
		to_asset TEXT NOT NULL,
		from_units INTEGER NOT NULL,
		price TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		ttl_seconds INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_capital_locks_expires_at ON capital_locks(expires_at);

	CREATE TABLE IF NOT EXISTS limit_orders (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		side TEXT NOT NULL,
		asset TEXT NOT NULL,
		grams TEXT NOT NULL,
		limit_price TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		filled_grams TEXT NOT NULL DEFAULT '0',
		fill_price TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		filled_at INTEGER,
		cancelled_at INTEGER,
		last_error TEXT NOT NULL DEFAULT '',
		last_error_at INTEGER,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_limit_orders_address ON limit_orders(address, created_at);
	CREATE INDEX IF NOT EXISTS idx_limit_orders_open ON limit_orders(asset, status, created_at);

	CREATE TABLE IF NOT EXISTS trade_transactions (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		type TEXT NOT NULL,
		side TEXT NOT NULL,
		asset TEXT NOT NULL,
		grams TEXT NOT NULL,
		price TEXT NOT NULL,
		payment_asset TEXT NOT NULL,
		payment_amount TEXT NOT NULL,
		reference TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trade_transactions_address ON trade_transactions(address, created_at);

	CREATE TABLE IF NOT EXISTS pricing_configs (
		version INTEGER PRIMARY KEY,
		config TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	// Balance queries
	queryGetBalance = `
		SELECT units FROM balances WHERE address = ? AND asset = ?`

	queryGetBalances = `
		SELECT asset, units FROM balances
		WHERE address = ? AND units != 0
		ORDER BY asset`

	queryCreditBalance = `
		INSERT INTO balances (address, asset, units, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(address, asset) DO UPDATE SET
			units = units + excluded.units,
			updated_at = excluded.updated_at
		RETURNING units`

	queryDebitBalance = `
		UPDATE balances SET units = units - ?, updated_at = ?
		WHERE address = ? AND asset = ? AND units >= ?
		RETURNING units`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, address, asset, delta_units, balance_after, reason, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(delta_units), 0) FROM journal_entries WHERE address = ? AND asset = ?`

	// Lock queries
	lockColumns = `id, address, from_asset, to_asset, from_units, price, created_at, expires_at, ttl_seconds`

	queryGetLockByAddress = `
		SELECT ` + lockColumns + ` FROM capital_locks WHERE address = ?`

	queryGetLockById = `
		SELECT ` + lockColumns + ` FROM capital_locks WHERE id = ?`

	queryInsertLock = `
		INSERT INTO capital_locks (` + lockColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryDeleteLock = `
		DELETE FROM capital_locks WHERE id = ?`

	queryListExpiredLocks = `
		SELECT id FROM capital_locks WHERE expires_at <= ? ORDER BY expires_at LIMIT ?`

	// Order queries
	orderColumns = `id, address, side, asset, grams, limit_price, payment_method, status, filled_grams,
		fill_price, created_at, expires_at, filled_at, cancelled_at, last_error, last_error_at`

	queryInsertOrder = `
		INSERT INTO limit_orders (` + orderColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetOrder = `
		SELECT ` + orderColumns + ` FROM limit_orders WHERE id = ?`

	queryListOrders = `
		SELECT ` + orderColumns + ` FROM limit_orders WHERE address = ? ORDER BY created_at, id`

	queryOpenOrders = `
		SELECT ` + orderColumns + ` FROM limit_orders
		WHERE asset = ? AND status IN ('pending', 'partially_filled')
		ORDER BY created_at, id`

	queryCancelOrder = `
		UPDATE limit_orders SET status = 'cancelled', cancelled_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	queryExpireOrder = `
		UPDATE limit_orders SET status = 'expired', updated_at = ?
		WHERE id = ? AND status IN ('pending', 'partially_filled') AND expires_at <= ?`

	queryOrderExists = `
		SELECT 1 FROM limit_orders WHERE id = ?`

	queryFillOrder = `
		UPDATE limit_orders
		SET status = 'filled', filled_grams = ?, fill_price = ?, filled_at = ?, updated_at = ?,
		    last_error = '', last_error_at = NULL
		WHERE id = ? AND status IN ('pending', 'partially_filled')`

	queryRecordOrderError = `
		UPDATE limit_orders SET last_error = ?, last_error_at = ?, updated_at = ? WHERE id = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO trade_transactions (
			id, address, type, side, asset, grams, price, payment_asset, payment_amount, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListTransactions = `
		SELECT id, address, type, side, asset, grams, price, payment_asset, payment_amount, reference, created_at
		FROM trade_transactions
		WHERE address = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	// Pricing configuration queries
	queryGetPricingConfig = `
		SELECT config FROM pricing_configs ORDER BY version DESC LIMIT 1`

	queryNextPricingVersion = `
		SELECT COALESCE(MAX(version), 0) + 1 FROM pricing_configs`

	queryInsertPricingConfig = `
		INSERT INTO pricing_configs (version, config, updated_at) VALUES (?, ?, ?)`
)
