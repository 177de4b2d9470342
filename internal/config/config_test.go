package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Backend != BackendRedis {
		t.Errorf("expected redis backend, got %s", cfg.Store.Backend)
	}
	if cfg.Trading.LockTTL != 120*time.Second {
		t.Errorf("expected 120s lock ttl, got %s", cfg.Trading.LockTTL)
	}
	if cfg.Trading.DefaultOrderExpiryDays != 7 {
		t.Errorf("expected 7 day expiry, got %d", cfg.Trading.DefaultOrderExpiryDays)
	}
	if cfg.Feed.Timeout != 2*time.Second || cfg.Feed.CacheTTL != 15*time.Second {
		t.Errorf("unexpected feed settings: %+v", cfg.Feed)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected kafka disabled, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("SCAN_INTERVAL", "5s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Backend != BackendSqlite {
		t.Errorf("expected sqlite backend, got %s", cfg.Store.Backend)
	}
	if cfg.Trading.LockTTL != 90*time.Second || cfg.Scheduler.ScanInterval != 5*time.Second {
		t.Errorf("durations not applied: %+v %+v", cfg.Trading, cfg.Scheduler)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.Redis.DB)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORE_BACKEND":      "postgres",
		"PRICE_FEED_TIMEOUT": "soon",
		"LOCK_TTL":           "100ms",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
