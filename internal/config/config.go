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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"metal-trade-core/internal/models"
)

const (
	BackendRedis  = "redis"
	BackendSqlite = "sqlite"
)

func Load() (*models.Config, error) {
	backend := strings.ToLower(getEnvString("STORE_BACKEND", BackendRedis))
	if backend != BackendRedis && backend != BackendSqlite {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be %s or %s", backend, BackendRedis, BackendSqlite)
	}

	redisDialTimeout, err := getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	redisReadTimeout, err := getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}
	redisWriteTimeout, err := getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}
	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	feedTimeout, err := getEnvDuration("PRICE_FEED_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	priceCacheTTL, err := getEnvDuration("PRICE_CACHE_TTL", 15*time.Second)
	if err != nil {
		return nil, err
	}
	configTTL, err := getEnvDuration("PRICING_CONFIG_TTL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	lockTTL, err := getEnvDuration("LOCK_TTL", 120*time.Second)
	if err != nil {
		return nil, err
	}
	if lockTTL < time.Second {
		return nil, fmt.Errorf("LOCK_TTL must be at least 1s, got %s", lockTTL)
	}

	scanInterval, err := getEnvDuration("SCAN_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	lockSweepInterval, err := getEnvDuration("LOCK_SWEEP_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Store: models.StoreConfig{
			Backend: backend,
		},
		Redis: models.RedisConfig{
			Addr:         getEnvString("REDIS_ADDR", "localhost:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           getEnvInt("REDIS_DB", 0),
			KeyPrefix:    getEnvString("REDIS_KEY_PREFIX", "metal:"),
			DialTimeout:  redisDialTimeout,
			ReadTimeout:  redisReadTimeout,
			WriteTimeout: redisWriteTimeout,
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "trades.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Feed: models.FeedConfig{
			URL:      os.Getenv("PRICE_FEED_URL"),
			File:     getEnvString("PRICE_FEED_FILE", "prices.yaml"),
			Timeout:  feedTimeout,
			CacheTTL: priceCacheTTL,
		},
		Pricing: models.PricingSettings{
			File:       getEnvString("PRICING_FILE", "pricing.yaml"),
			AssetsFile: getEnvString("ASSETS_FILE", "assets.yaml"),
			ConfigTTL:  configTTL,
		},
		Trading: models.TradingConfig{
			LockTTL:                lockTTL,
			DefaultOrderExpiryDays: getEnvInt("ORDER_DEFAULT_EXPIRY_DAYS", 7),
		},
		Scheduler: models.SchedulerConfig{
			ScanInterval:      scanInterval,
			LockSweepInterval: lockSweepInterval,
		},
		Kafka: models.KafkaConfig{
			Brokers:    getEnvList("KAFKA_BROKERS"),
			Topic:      getEnvString("KAFKA_TOPIC", "metal-trades"),
			MaxRetries: getEnvInt("KAFKA_MAX_RETRIES", 3),
		},
		Metrics: models.MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
		Log: models.LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
