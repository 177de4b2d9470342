package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"metal-trade-core/internal/api"
	"metal-trade-core/internal/capitallock"
	"metal-trade-core/internal/config"
	"metal-trade-core/internal/database"
	"metal-trade-core/internal/events"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/orderbook"
	"metal-trade-core/internal/pricefeed"
	"metal-trade-core/internal/pricing"
	"metal-trade-core/internal/redisstore"
	"metal-trade-core/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store     store.TradeStore
	Registry  *models.AssetRegistry
	Feed      *pricefeed.CachedFeed
	Configs   *pricing.ConfigSource
	Quoter    *pricing.Quoter
	Publisher events.Publisher
	Locks     *capitallock.Manager
	Book      *orderbook.Book
	Trading   *api.TradingService
}

// InitializeLogger builds the global logger. With cfg.File set, JSON logs are also
// written to a rotated file.
func InitializeLogger(cfg models.LogConfig) (*zap.Logger, func()) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		log.Printf("Unknown LOG_LEVEL %q, using info\n", cfg.Level)
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
		if rotator != nil {
			_ = rotator.Close()
		}
	}

	return logger, cleanup
}

// InitializeStore opens the backend selected by cfg.Store.Backend
func InitializeStore(ctx context.Context, cfg *models.Config) (store.TradeStore, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		zap.L().Info("Using Redis store", zap.String("addr", cfg.Redis.Addr))
		svc, err := redisstore.NewService(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.BackendSqlite:
		zap.L().Info("Using SQLite store", zap.String("path", cfg.Database.Path))
		svc, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// InitializeFeed prefers the HTTP feed and falls back to the static prices file
func InitializeFeed(cfg models.FeedConfig) (*pricefeed.CachedFeed, error) {
	var feed pricefeed.Feed
	if cfg.URL != "" {
		zap.L().Info("Using HTTP price feed", zap.String("url", cfg.URL))
		feed = pricefeed.NewHTTPFeed(cfg.URL, cfg.Timeout)
	} else {
		static, err := pricefeed.LoadStaticFeed(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load price file: %w", err)
		}
		zap.L().Info("Using static price file", zap.String("file", cfg.File))
		feed = static
	}
	return pricefeed.NewCachedFeed(feed, cfg.CacheTTL, cfg.Timeout), nil
}

func InitializePublisher(cfg models.KafkaConfig) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		zap.L().Info("KAFKA_BROKERS not set, trade events are logged only")
		return events.NewLogPublisher(), nil
	}
	publisher, err := events.NewKafkaPublisher(cfg)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Publishing trade events to Kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return publisher, nil
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	registry, err := LoadAssetRegistry(cfg.Pricing.AssetsFile)
	if err != nil {
		return nil, err
	}
	defaults, spreads, err := LoadPricingFile(cfg.Pricing.File)
	if err != nil {
		return nil, err
	}
	feed, err := InitializeFeed(cfg.Feed)
	if err != nil {
		return nil, err
	}

	tradeStore, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := InitializePublisher(cfg.Kafka)
	if err != nil {
		tradeStore.Close()
		return nil, err
	}

	configs := pricing.NewConfigSource(tradeStore, defaults, cfg.Pricing.ConfigTTL)
	quoter := pricing.NewQuoter(feed, configs, pricing.NewEngine(registry), spreads, registry)
	locks := capitallock.NewManager(tradeStore, publisher, registry, cfg.Trading.LockTTL)
	book := orderbook.NewBook(tradeStore, publisher, registry, cfg.Trading.DefaultOrderExpiryDays)

	return &Services{
		Store:     tradeStore,
		Registry:  registry,
		Feed:      feed,
		Configs:   configs,
		Quoter:    quoter,
		Publisher: publisher,
		Locks:     locks,
		Book:      book,
		Trading: api.NewTradingService(api.TradingServiceConfig{
			Store:    tradeStore,
			Quoter:   quoter,
			Locks:    locks,
			Book:     book,
			Registry: registry,
		}),
	}, nil
}

// InitializeStoreOnly opens just the store, for tools that never price or publish
func InitializeStoreOnly(ctx context.Context, cfg *models.Config) (store.TradeStore, error) {
	return InitializeStore(ctx, cfg)
}

func (cs *Services) Close() {
	if cs.Publisher != nil {
		if err := cs.Publisher.Close(); err != nil {
			zap.L().Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
