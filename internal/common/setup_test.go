package common

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"metal-trade-core/internal/config"
	"metal-trade-core/internal/events"
	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

func sqliteConfig(t *testing.T) *models.Config {
	t.Helper()
	dir := t.TempDir()
	prices := writeFile(t, "prices.yaml", "unit: gram\nprices:\n  AUXG: \"100\"\n  AUXS: \"1.10\"\n")
	return &models.Config{
		Store: models.StoreConfig{Backend: config.BackendSqlite},
		Database: models.DatabaseConfig{
			Path:         ":memory:",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			PingTimeout:  time.Second,
		},
		Feed: models.FeedConfig{File: prices, Timeout: time.Second, CacheTTL: time.Minute},
		Pricing: models.PricingSettings{
			File:       filepath.Join(dir, "pricing.yaml"),
			AssetsFile: filepath.Join(dir, "assets.yaml"),
			ConfigTTL:  time.Second,
		},
		Trading: models.TradingConfig{LockTTL: 2 * time.Minute, DefaultOrderExpiryDays: 7},
	}
}

func TestInitializeServicesWiresSqliteStack(t *testing.T) {
	ctx := context.Background()
	services, err := InitializeServices(ctx, sqliteConfig(t))
	if err != nil {
		t.Fatalf("InitializeServices: %v", err)
	}
	defer services.Close()

	if _, ok := services.Publisher.(*events.LogPublisher); !ok {
		t.Fatalf("expected log publisher without brokers, got %T", services.Publisher)
	}
	if err := services.Trading.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	prices, err := services.Trading.GetExecutionPrices(ctx)
	if err != nil {
		t.Fatalf("GetExecutionPrices: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected AUXG and AUXS priced, got %d", len(prices))
	}
	if prices[0].Asset != "AUXG" || !prices[0].ExecutionAsk.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("unexpected AUXG price %+v", prices[0])
	}
}

func TestInitializeStoreRejectsUnknownBackend(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Store.Backend = "mongo"
	if _, err := InitializeStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestInitializeFeedMissingFile(t *testing.T) {
	if _, err := InitializeFeed(models.FeedConfig{File: filepath.Join(t.TempDir(), "none.yaml")}); err == nil {
		t.Fatalf("expected error for missing price file")
	}
}

func TestInitializePublisherRejectsMissingTopic(t *testing.T) {
	if _, err := InitializePublisher(models.KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error when topic is empty")
	}
}
