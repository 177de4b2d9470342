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
	"fmt"
	"sort"

	"metal-trade-core/internal/common"
	"metal-trade-core/internal/config"
	"metal-trade-core/internal/database"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalAddresses        int
	totalBalances         int
	addressesWithBalances int
	reconcileFailures     int
}

type assetBalance struct {
	asset  string
	amount decimal.Decimal
}

func printBalances(balances []assetBalance) {
	for i, b := range balances {
		fmt.Printf("%s %-8s: %24s\n", common.BoxPrefix(i == len(balances)-1), b.asset, common.FormatAmount(b.amount, b.asset))
	}
}

func printTransactions(txns []models.Transaction) {
	if len(txns) == 0 {
		return
	}
	fmt.Println("│")
	fmt.Println("│  Recent transactions:")
	for i, t := range txns {
		isLast := i == len(txns)-1
		fmt.Printf("%s %s  %-10s %-4s %s @ %s  paid %s\n",
			common.BoxPrefix(isLast),
			t.CreatedAt.Format("2006-01-02 15:04:05"),
			t.Type,
			t.Side,
			common.FormatAmount(t.Grams, t.Asset),
			t.Price.String(),
			common.FormatAmount(t.PaymentAmount, t.PaymentAsset))
		fmt.Printf("%s    id: %s\n", common.BoxDetailPrefix(isLast), common.ShortId(t.Id))
	}
}

func processAddress(ctx context.Context, address string, tradeStore store.TradeStore, history int, reconcile bool, stats *balanceStats) error {
	raw, err := tradeStore.GetBalances(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get balances: %w", err)
	}

	balances := make([]assetBalance, 0, len(raw))
	for asset, amount := range raw {
		balances = append(balances, assetBalance{asset: asset, amount: amount})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].asset < balances[j].asset })

	if len(balances) == 0 {
		return nil
	}

	fmt.Printf("\n┌─ Address: %s\n", address)
	fmt.Printf("│  Assets: %d\n", len(balances))
	common.PrintBoxSeparator(78)
	printBalances(balances)

	if history > 0 {
		txns, err := tradeStore.ListTransactions(ctx, address, history)
		if err != nil {
			return fmt.Errorf("failed to list transactions: %w", err)
		}
		printTransactions(txns)
	}

	if reconcile {
		db, ok := tradeStore.(*database.Service)
		if !ok {
			zap.L().Warn("Reconciliation needs the sqlite journal, skipping")
		} else {
			for _, b := range balances {
				if err := db.ReconcileBalance(ctx, address, b.asset); err != nil {
					stats.reconcileFailures++
					fmt.Printf("   ✗ %s reconciliation failed: %v\n", b.asset, err)
				}
			}
		}
	}

	stats.addressesWithBalances++
	stats.totalBalances += len(balances)
	return nil
}

func main() {
	ctx := context.Background()

	addressFlag := flag.String("address", "", "Comma separated wallet addresses to report (required)")
	historyFlag := flag.Int("history", 0, "Also print the N most recent transactions per address")
	reconcileFlag := flag.Bool("reconcile", false, "Verify balances against the journal (sqlite backend only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	addresses, err := common.ParseAddresses(*addressFlag)
	if err != nil {
		logger.Fatal("Invalid -address flag", zap.Error(err))
	}

	logger.Info("Starting balance query", zap.Int("addresses", len(addresses)))

	tradeStore, err := common.InitializeStoreOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer tradeStore.Close()

	common.PrintHeader("ADDRESS BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, address := range addresses {
		stats.totalAddresses++
		if err := processAddress(ctx, address, tradeStore, *historyFlag, *reconcileFlag, &stats); err != nil {
			logger.Error("Failed to process address",
				zap.String("address", address),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d addresses with balances (%d total balances across %d addresses queried)",
		stats.addressesWithBalances, stats.totalBalances, stats.totalAddresses)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d reconciliation failures", stats.reconcileFailures)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("addresses_queried", stats.totalAddresses),
		zap.Int("addresses_with_balances", stats.addressesWithBalances),
		zap.Int("total_balances", stats.totalBalances))
}
