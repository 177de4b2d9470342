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

	"metal-trade-core/internal/common"
	"metal-trade-core/internal/config"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/orderbook"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func printOrder(o models.LimitOrder, isLast bool) {
	fmt.Printf("%s %s  %-4s %-6s %12s @ %-12s %-9s expires %s\n",
		common.BoxPrefix(isLast),
		common.ShortId(o.Id),
		o.Side,
		o.Asset,
		o.Grams.String(),
		o.LimitPrice.String(),
		o.Status,
		o.ExpiresAt.Format("2006-01-02"))
	detail := common.BoxDetailPrefix(isLast)
	if o.Status == models.OrderFilled && o.FilledAt != nil {
		fmt.Printf("%s   filled at %s on %s\n", detail, o.FillPrice.String(), o.FilledAt.Format("2006-01-02 15:04:05"))
	}
	if o.LastError != "" {
		fmt.Printf("%s   last error: %s\n", detail, o.LastError)
	}
}

func listOrders(ctx context.Context, services *common.Services, address, status string) error {
	orders, err := services.Trading.ListOrders(ctx, address, status)
	if err != nil {
		return err
	}
	common.PrintHeader(fmt.Sprintf("LIMIT ORDERS FOR %s", address), common.WideWidth)
	for i, o := range orders {
		printOrder(o, i == len(orders)-1)
	}
	common.PrintFooter(fmt.Sprintf("%d orders", len(orders)), common.WideWidth)
	return nil
}

func main() {
	ctx := context.Background()

	addressFlag := flag.String("address", "", "Wallet address (required)")
	statusFlag := flag.String("status", "", "Filter listing by status")
	createFlag := flag.Bool("create", false, "Place a new limit order")
	sideFlag := flag.String("side", "buy", "buy or sell")
	assetFlag := flag.String("asset", "", "Metal for -create")
	gramsFlag := flag.String("grams", "", "Grams for -create")
	limitFlag := flag.String("limit", "", "Limit price per gram for -create")
	payFlag := flag.String("pay", "USDT", "Payment currency for -create")
	daysFlag := flag.Int("days", 0, "Expiry in days for -create (0 uses the default)")
	cancelFlag := flag.String("cancel", "", "Cancel the order with this id")
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

	switch {
	case *cancelFlag != "":
		order, err := services.Trading.CancelOrder(ctx, *cancelFlag, *addressFlag)
		if err != nil {
			logger.Fatal("Failed to cancel order", zap.String("order_id", *cancelFlag), zap.Error(err))
		}
		fmt.Printf("Cancelled order %s\n", order.Id)

	case *createFlag:
		grams, err := decimal.NewFromString(*gramsFlag)
		if err != nil {
			logger.Fatal("Invalid -grams", zap.String("grams", *gramsFlag), zap.Error(err))
		}
		limit, err := decimal.NewFromString(*limitFlag)
		if err != nil {
			logger.Fatal("Invalid -limit", zap.String("limit", *limitFlag), zap.Error(err))
		}
		order, err := services.Trading.CreateOrder(ctx, orderbook.CreateOrderParams{
			Address:       *addressFlag,
			Side:          *sideFlag,
			Asset:         *assetFlag,
			Grams:         grams,
			LimitPrice:    limit,
			PaymentMethod: *payFlag,
			ExpiresInDays: *daysFlag,
		})
		if err != nil {
			logger.Fatal("Failed to create order", zap.Error(err))
		}
		fmt.Printf("Placed order %s: %s %s %s @ %s, expires %s\n",
			order.Id, order.Side, order.Grams.String(), order.Asset, order.LimitPrice.String(),
			order.ExpiresAt.Format("2006-01-02 15:04"))

	default:
		if err := listOrders(ctx, services, *addressFlag, *statusFlag); err != nil {
			logger.Fatal("Failed to list orders", zap.Error(err))
		}
	}
}
