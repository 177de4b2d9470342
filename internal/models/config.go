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

import "time"

// Config represents the application configuration
type Config struct {
	Store     StoreConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Feed      FeedConfig
	Pricing   PricingSettings
	Trading   TradingConfig
	Scheduler SchedulerConfig
	Kafka     KafkaConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// StoreConfig selects the persistence backend ("redis" or "sqlite")
type StoreConfig struct {
	Backend string
}

// RedisConfig holds connection settings for the Redis backend
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// FeedConfig configures the upstream spot price feed
type FeedConfig struct {
	URL      string
	File     string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// PricingSettings locates pricing defaults and bounds how long the live config is cached
type PricingSettings struct {
	File       string
	AssetsFile string
	ConfigTTL  time.Duration
}

// TradingConfig holds lock and order lifetimes
type TradingConfig struct {
	LockTTL                time.Duration
	DefaultOrderExpiryDays int
}

// SchedulerConfig holds the cadence of the periodic fill scan and lock sweep
type SchedulerConfig struct {
	ScanInterval      time.Duration
	LockSweepInterval time.Duration
}

// KafkaConfig configures trade event publishing; empty Brokers disables Kafka
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	MaxRetries int
}

// MetricsConfig configures the Prometheus endpoint; empty Addr disables it
type MetricsConfig struct {
	Addr string
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level string
	File  string
}
