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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metal-trade-core/internal/common"
	"metal-trade-core/internal/config"
	"metal-trade-core/internal/metrics"
	"metal-trade-core/internal/scheduler"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single fill scan and lock sweep, then exit")
	quiet := flag.Bool("quiet", false, "Disable colored console output of scan results")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting limit order scanner",
		zap.String("store", cfg.Store.Backend),
		zap.Duration("scan_interval", cfg.Scheduler.ScanInterval),
		zap.Duration("lock_sweep_interval", cfg.Scheduler.LockSweepInterval))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	s := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Pricer:            services.Quoter,
		Matcher:           services.Book,
		Sweeper:           services.Locks,
		Metals:            services.Registry.Metals(),
		ScanInterval:      cfg.Scheduler.ScanInterval,
		LockSweepInterval: cfg.Scheduler.LockSweepInterval,
		Console:           !*quiet,
	})

	if *once {
		s.SweepOnce(ctx)
		s.RunOnce(ctx)
		return
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				zap.L().Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	s.Start(ctx)
	zap.L().Info("Scanner running", zap.Strings("metals", services.Registry.Metals()))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping scanner...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		cancel()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Scanner stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
