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

	"metal-trade-core/internal/api"
	"metal-trade-core/internal/common"
	"metal-trade-core/internal/config"
	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func printPrices(ctx context.Context, services *common.Services, prices []models.ExecutionPrice) {
	cfg := services.Quoter.Config(ctx)
	common.PrintHeader(fmt.Sprintf("EXECUTION PRICES (config v%d: %s / %s / %s)",
		cfg.Version, cfg.VolatilityMode, cfg.MarketHoursMode, cfg.DepthMode), common.WideWidth)
	fmt.Printf("%-7s %14s %14s %14s %9s %14s %14s\n", "ASSET", "SPOT/g", "ASK", "BID", "MARKUP%", "MATCH ASK", "MATCH BID")
	for _, p := range prices {
		matchAsk, matchBid, err := services.Quoter.MatchingPrices(ctx, p.Asset, cfg)
		matchAskStr, matchBidStr := "-", "-"
		if err == nil {
			matchAskStr, matchBidStr = matchAsk.String(), matchBid.String()
		}
		fmt.Printf("%-7s %14s %14s %14s %9s %14s %14s\n",
			p.Asset,
			p.SpotPerGram.StringFixed(4),
			p.ExecutionAsk.String(),
			p.ExecutionBid.String(),
			p.AppliedMarkupPercent.StringFixed(2),
			matchAskStr,
			matchBidStr)
	}
	common.PrintFooter(fmt.Sprintf("%d metals priced", len(prices)), common.WideWidth)
}

func printQuote(q *models.Quote) {
	fmt.Printf("\n┌─ Quote for %s\n", q.Address)
	fmt.Printf("│  %s %s of %s\n", q.Side, q.Grams.String(), q.Asset)
	fmt.Printf("│  Unit price: %s %s/g (markup %s%%)\n", q.UnitPrice.String(), q.PaymentAsset, q.Price.AppliedMarkupPercent.StringFixed(2))
	fmt.Printf("└  Payment:    %s\n", common.FormatAmount(q.PaymentAmount, q.PaymentAsset))
}

func main() {
	ctx := context.Background()

	addressFlag := flag.String("address", "", "Wallet address to quote for")
	assetFlag := flag.String("asset", "", "Metal to quote (omit to list all execution prices)")
	sideFlag := flag.String("side", "buy", "buy or sell")
	gramsFlag := flag.String("grams", "1", "Grams of metal")
	payFlag := flag.String("pay", "USDT", "Payment or settlement currency")
	confirmFlag := flag.Bool("confirm", false, "Lock the funds for the quote")
	settleFlag := flag.Bool("settle", false, "Settle the lock right after confirming")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *assetFlag == "" {
		prices, err := services.Trading.GetExecutionPrices(ctx)
		if err != nil {
			logger.Fatal("Failed to get execution prices", zap.Error(err))
		}
		printPrices(ctx, services, prices)
		return
	}

	grams, err := decimal.NewFromString(*gramsFlag)
	if err != nil {
		logger.Fatal("Invalid -grams", zap.String("grams", *gramsFlag), zap.Error(err))
	}

	req := api.QuoteRequest{
		Address:      *addressFlag,
		Side:         *sideFlag,
		Asset:        *assetFlag,
		Grams:        grams,
		PaymentAsset: *payFlag,
	}

	if !*confirmFlag {
		quote, err := services.Trading.Quote(ctx, req)
		if err != nil {
			logger.Fatal("Failed to quote", zap.Error(err))
		}
		printQuote(quote)
		return
	}

	confirmation, err := services.Trading.ConfirmTrade(ctx, req)
	if err != nil {
		logger.Fatal("Failed to confirm trade", zap.Error(err))
	}
	printQuote(confirmation.Quote)
	fmt.Printf("\nLocked %s until %s (lock %s), remaining %s\n",
		common.FormatAmount(confirmation.Lock.FromAmount, confirmation.Lock.FromAsset),
		confirmation.Lock.ExpiresAt.Format("15:04:05"),
		confirmation.Lock.LockId,
		common.FormatAmount(confirmation.RemainingBalance, confirmation.Lock.FromAsset))

	if !*settleFlag {
		return
	}

	txn, err := services.Trading.SettleTrade(ctx, confirmation.Quote.Address, confirmation.Lock.LockId)
	if err != nil {
		logger.Fatal("Failed to settle trade", zap.Error(err))
	}
	fmt.Printf("Settled: %s %s @ %s (transaction %s)\n",
		txn.Side, common.FormatAmount(txn.Grams, txn.Asset), txn.Price.String(), txn.Id)
}
