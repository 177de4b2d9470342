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
	"strings"

	"metal-trade-core/internal/common"
	"metal-trade-core/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	addressFlag := flag.String("address", "", "Wallet address to adjust (required)")
	assetFlag := flag.String("asset", "", "Asset symbol (required)")
	amountFlag := flag.String("amount", "", "Positive amount to credit (required)")
	debitFlag := flag.Bool("debit", false, "Debit instead of credit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	addresses, err := common.ParseAddresses(*addressFlag)
	if err != nil || len(addresses) != 1 {
		logger.Fatal("Exactly one -address is required", zap.String("address", *addressFlag))
	}
	address := addresses[0]
	asset := strings.ToUpper(strings.TrimSpace(*assetFlag))

	registry, err := common.LoadAssetRegistry(cfg.Pricing.AssetsFile)
	if err != nil {
		logger.Fatal("Failed to load assets", zap.Error(err))
	}
	if _, ok := registry.Lookup(asset); !ok {
		logger.Fatal("Unsupported asset", zap.String("asset", asset))
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil || !amount.IsPositive() {
		logger.Fatal("Amount must be a positive number", zap.String("amount", *amountFlag))
	}

	tradeStore, err := common.InitializeStoreOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer tradeStore.Close()

	action := "Credited"
	var balance decimal.Decimal
	if *debitFlag {
		action = "Debited"
		balance, err = tradeStore.Debit(ctx, address, asset, amount)
	} else {
		balance, err = tradeStore.Credit(ctx, address, asset, amount)
	}
	if err != nil {
		logger.Fatal("Balance adjustment failed",
			zap.String("address", address),
			zap.String("asset", asset),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}

	fmt.Printf("%s %s for %s, new balance %s\n", action, common.FormatAmount(amount, asset), address, common.FormatAmount(balance, asset))
}
