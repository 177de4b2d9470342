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

package scheduler

import (
	"context"
	"time"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pricer supplies the matching prices for one scan tick.
type Pricer interface {
	Config(ctx context.Context) *models.PricingConfig
	MatchingPrices(ctx context.Context, asset string, cfg *models.PricingConfig) (ask, bid decimal.Decimal, err error)
}

// Matcher runs the fill scan for one asset.
type Matcher interface {
	CheckAndFillMatchingOrders(ctx context.Context, asset string, ask, bid decimal.Decimal) *models.FillScanResult
}

// Sweeper credits back expired capital locks.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SchedulerConfig contains configuration for Scheduler
type SchedulerConfig struct {
	Pricer            Pricer
	Matcher           Matcher
	Sweeper           Sweeper
	Metals            []string
	ScanInterval      time.Duration
	LockSweepInterval time.Duration
	Console           bool
}

// Scheduler drives the periodic fill scan for every metal and the expired-lock sweep
type Scheduler struct {
	pricer  Pricer
	matcher Matcher
	sweeper Sweeper
	metals  []string
	console bool

	scanInterval      time.Duration
	lockSweepInterval time.Duration

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		pricer:            cfg.Pricer,
		matcher:           cfg.Matcher,
		sweeper:           cfg.Sweeper,
		metals:            cfg.Metals,
		console:           cfg.Console,
		scanInterval:      cfg.ScanInterval,
		lockSweepInterval: cfg.LockSweepInterval,
		stopChan:          make(chan struct{}),
		doneChan:          make(chan struct{}),
	}
}

// Start launches the scan and sweep loops
func (s *Scheduler) Start(ctx context.Context) {
	zap.L().Info("Starting scheduler",
		zap.Strings("metals", s.metals),
		zap.Duration("scan_interval", s.scanInterval),
		zap.Duration("lock_sweep_interval", s.lockSweepInterval))

	go s.pollLoop(ctx)
	go s.sweepLoop(ctx)
}

// Stop gracefully stops the scheduler and waits for the running scan to finish
func (s *Scheduler) Stop() {
	zap.L().Info("Stopping scheduler")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Scheduler stopped")
}

// pollLoop runs the fill scan once immediately, then every scan interval
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweepLoop periodically credits back expired capital locks
func (s *Scheduler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.lockSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single expired-lock sweep
func (s *Scheduler) SweepOnce(ctx context.Context) int {
	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		zap.L().Error("Lock sweep failed", zap.Error(err))
		return 0
	}
	return n
}
