package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"metal-trade-core/internal/capitallock"
	"metal-trade-core/internal/events"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/orderbook"
	"metal-trade-core/internal/pricefeed"
	"metal-trade-core/internal/pricing"
	"metal-trade-core/internal/redisstore"
	"metal-trade-core/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func setupTradingService(t *testing.T, spots map[string]decimal.Decimal) (*TradingService, store.TradeStore) {
	mr := miniredis.RunT(t)
	tradeStore := redisstore.NewServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(tradeStore.Close)

	registry := models.NewAssetRegistry(models.DefaultAssets())
	feed := pricefeed.NewCachedFeed(pricefeed.NewStaticFeed(spots), time.Minute, time.Second)
	quoter := pricing.NewQuoter(feed, pricing.NewConfigSource(tradeStore, nil, time.Second),
		pricing.NewEngine(registry), pricing.DefaultSpreadPolicy(), registry)
	publisher := events.NewLogPublisher()

	service := NewTradingService(TradingServiceConfig{
		Store:    tradeStore,
		Quoter:   quoter,
		Locks:    capitallock.NewManager(tradeStore, publisher, registry, 2*time.Minute),
		Book:     orderbook.NewBook(tradeStore, publisher, registry, 7),
		Registry: registry,
	})
	return service, tradeStore
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func defaultSpots() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{"AUXG": dec("100"), "AUXS": dec("1.10")}
}

func requireCode(t *testing.T, err error, want ErrorCode) *Error {
	t.Helper()
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error with code %s, got %v", want, err)
	}
	if apiErr.Code != want {
		t.Fatalf("expected code %s, got %s (%s)", want, apiErr.Code, apiErr.Message)
	}
	return apiErr
}

func mustBalance(t *testing.T, s *TradingService, address, asset, want string) {
	t.Helper()
	got, err := s.GetBalance(context.Background(), address, asset)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !got.Equal(dec(want)) {
		t.Fatalf("expected %s balance %s, got %s", asset, want, got)
	}
}

func TestQuoteAppliesOrderSize(t *testing.T) {
	service, _ := setupTradingService(t, defaultSpots())
	ctx := context.Background()

	micro, err := service.Quote(ctx, QuoteRequest{Address: " 0xABC ", Side: "buy", Asset: "auxg", Grams: dec("2"), PaymentAsset: "usdt"})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if micro.Address != "0xabc" || micro.Asset != "AUXG" || micro.PaymentAsset != "USDT" {
		t.Fatalf("expected normalized quote, got %+v", micro)
	}
	if !micro.UnitPrice.Equal(dec("100.75")) || !micro.PaymentAmount.Equal(dec("201.5")) {
		t.Fatalf("expected micro ask 100.75 for 201.50, got %s for %s", micro.UnitPrice, micro.PaymentAmount)
	}

	regular, err := service.Quote(ctx, QuoteRequest{Address: "0xabc", Side: "buy", Asset: "AUXG", Grams: dec("10"), PaymentAsset: "USDT"})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !regular.UnitPrice.Equal(dec("100.5")) {
		t.Fatalf("expected ask 100.50, got %s", regular.UnitPrice)
	}

	sell, err := service.Quote(ctx, QuoteRequest{Address: "0xabc", Side: "sell", Asset: "AUXG", Grams: dec("1"), PaymentAsset: "USDT"})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !sell.UnitPrice.Equal(dec("99.4")) || !sell.PaymentAmount.Equal(dec("99.4")) {
		t.Fatalf("expected micro bid 99.40, got %s", sell.UnitPrice)
	}
}

func TestQuoteRejectsInvalidRequests(t *testing.T) {
	service, _ := setupTradingService(t, defaultSpots())
	valid := QuoteRequest{Address: "0xabc", Side: "buy", Asset: "AUXG", Grams: dec("1"), PaymentAsset: "USDT"}

	cases := []struct {
		name   string
		mutate func(r *QuoteRequest)
		want   ErrorCode
	}{
		{"no address", func(r *QuoteRequest) { r.Address = "  " }, CodeInvalidRequest},
		{"bad side", func(r *QuoteRequest) { r.Side = "swap" }, CodeInvalidRequest},
		{"currency asset", func(r *QuoteRequest) { r.Asset = "USDM" }, CodeInvalidRequest},
		{"metal payment", func(r *QuoteRequest) { r.PaymentAsset = "AUXS" }, CodeInvalidRequest},
		{"zero grams", func(r *QuoteRequest) { r.Grams = decimal.Zero }, CodeInvalidRequest},
		{"too precise", func(r *QuoteRequest) { r.Grams = dec("0.0000001") }, CodeInvalidRequest},
		{"no spot", func(r *QuoteRequest) { r.Asset = "AUXPD" }, CodePriceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := service.Quote(context.Background(), req)
			requireCode(t, err, tc.want)
		})
	}
}

func TestConfirmAndSettleBuy(t *testing.T) {
	service, tradeStore := setupTradingService(t, defaultSpots())
	ctx := context.Background()
	if _, err := tradeStore.Credit(ctx, "0xabc", "USDT", dec("500")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	req := QuoteRequest{Address: "0xabc", Side: "buy", Asset: "AUXG", Grams: dec("2"), PaymentAsset: "USDT"}
	confirmation, err := service.ConfirmTrade(ctx, req)
	if err != nil {
		t.Fatalf("ConfirmTrade failed: %v", err)
	}
	if !confirmation.RemainingBalance.Equal(dec("298.5")) {
		t.Fatalf("expected 298.50 remaining, got %s", confirmation.RemainingBalance)
	}

	_, err = service.ConfirmTrade(ctx, req)
	requireCode(t, err, CodeLockExists)

	_, err = service.SettleTrade(ctx, "0xother", confirmation.Lock.LockId)
	requireCode(t, err, CodeUnauthorized)

	txn, err := service.SettleTrade(ctx, "0xabc", confirmation.Lock.LockId)
	if err != nil {
		t.Fatalf("SettleTrade failed: %v", err)
	}
	if !txn.Grams.Equal(dec("2")) || !txn.Price.Equal(dec("100.75")) {
		t.Fatalf("unexpected settlement: %+v", txn)
	}
	mustBalance(t, service, "0xabc", "USDT", "298.5")
	mustBalance(t, service, "0xabc", "AUXG", "2")

	_, err = service.SettleTrade(ctx, "0xabc", confirmation.Lock.LockId)
	requireCode(t, err, CodeLockNotFound)

	history, err := service.GetTransactionHistory(ctx, "0xabc", 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Id != txn.Id {
		t.Fatalf("expected settlement in history, got %+v", history)
	}
}

func TestCancelTradeCreditsBack(t *testing.T) {
	service, tradeStore := setupTradingService(t, defaultSpots())
	ctx := context.Background()
	if _, err := tradeStore.Credit(ctx, "0xabc", "AUXG", dec("3")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	confirmation, err := service.ConfirmTrade(ctx, QuoteRequest{Address: "0xabc", Side: "sell", Asset: "AUXG", Grams: dec("1"), PaymentAsset: "USDM"})
	if err != nil {
		t.Fatalf("ConfirmTrade failed: %v", err)
	}
	mustBalance(t, service, "0xabc", "AUXG", "2")

	lock, err := service.ActiveLock(ctx, "0xabc")
	if err != nil || lock == nil || lock.LockId != confirmation.Lock.LockId {
		t.Fatalf("expected active lock, got %+v, %v", lock, err)
	}

	requireCode(t, service.CancelTrade(ctx, "0xother", confirmation.Lock.LockId), CodeUnauthorized)
	if err := service.CancelTrade(ctx, "0xabc", confirmation.Lock.LockId); err != nil {
		t.Fatalf("CancelTrade failed: %v", err)
	}
	mustBalance(t, service, "0xabc", "AUXG", "3")

	if err := service.CancelTrade(ctx, "0xabc", confirmation.Lock.LockId); err != nil {
		t.Fatalf("second CancelTrade should be a no-op, got %v", err)
	}
	mustBalance(t, service, "0xabc", "AUXG", "3")
}

func TestConfirmTradeInsufficientBalance(t *testing.T) {
	service, tradeStore := setupTradingService(t, defaultSpots())
	ctx := context.Background()
	if _, err := tradeStore.Credit(ctx, "0xabc", "USDT", dec("50")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, err := service.ConfirmTrade(ctx, QuoteRequest{Address: "0xabc", Side: "buy", Asset: "AUXG", Grams: dec("1"), PaymentAsset: "USDT"})
	apiErr := requireCode(t, err, CodeInsufficientBalance)
	var insufficient *store.InsufficientBalanceError
	if !errors.As(apiErr, &insufficient) || !insufficient.Available.Equal(dec("50")) {
		t.Fatalf("expected available 50 in error, got %v", apiErr.Err)
	}
	mustBalance(t, service, "0xabc", "USDT", "50")
}

func TestOrderOperations(t *testing.T) {
	service, _ := setupTradingService(t, defaultSpots())
	ctx := context.Background()

	order, err := service.CreateOrder(ctx, orderbook.CreateOrderParams{
		Address: "0xABC", Side: "buy", Asset: "AUXG", Grams: dec("10"),
		LimitPrice: dec("140"), PaymentMethod: "AUXM",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Address != "0xabc" {
		t.Fatalf("expected normalized address, got %s", order.Address)
	}

	_, err = service.CreateOrder(ctx, orderbook.CreateOrderParams{
		Address: "0xabc", Side: "buy", Asset: "AUXG", Grams: dec("10"), LimitPrice: dec("-1"), PaymentMethod: "AUXM",
	})
	requireCode(t, err, CodeInvalidRequest)

	_, err = service.ListOrders(ctx, "0xabc", "open")
	requireCode(t, err, CodeInvalidRequest)

	pending, err := service.ListOrders(ctx, "0xabc", "PENDING")
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending order, got %v, %v", pending, err)
	}

	_, err = service.CancelOrder(ctx, order.Id, "0xother")
	requireCode(t, err, CodeUnauthorized)
	_, err = service.CancelOrder(ctx, "missing", "0xabc")
	requireCode(t, err, CodeOrderNotFound)

	if _, err := service.CancelOrder(ctx, order.Id, "0xabc"); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	_, err = service.CancelOrder(ctx, order.Id, "0xabc")
	requireCode(t, err, CodeOrderNotPending)

	got, err := service.GetOrder(ctx, order.Id)
	if err != nil || got.Status != models.OrderCancelled {
		t.Fatalf("expected cancelled order, got %+v, %v", got, err)
	}
	missing, err := service.GetOrder(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing order, got %+v, %v", missing, err)
	}
}

func TestGetExecutionPrices(t *testing.T) {
	service, _ := setupTradingService(t, defaultSpots())
	prices, err := service.GetExecutionPrices(context.Background())
	if err != nil {
		t.Fatalf("GetExecutionPrices failed: %v", err)
	}
	if len(prices) != 2 || prices[0].Asset != "AUXG" || prices[1].Asset != "AUXS" {
		t.Fatalf("expected AUXG and AUXS in registry order, got %+v", prices)
	}

	empty, _ := setupTradingService(t, map[string]decimal.Decimal{})
	_, err = empty.GetExecutionPrices(context.Background())
	requireCode(t, err, CodePriceUnavailable)
}

func TestBalancesAndHealth(t *testing.T) {
	service, tradeStore := setupTradingService(t, defaultSpots())
	ctx := context.Background()
	for asset, amount := range map[string]string{"USDT": "10", "AUXG": "1.5", "AUXM": "3"} {
		if _, err := tradeStore.Credit(ctx, "0xabc", asset, dec(amount)); err != nil {
			t.Fatalf("Credit failed: %v", err)
		}
	}

	balances, err := service.GetBalances(ctx, "0xABC")
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if len(balances) != 3 || balances[0].Asset != "AUXG" || balances[2].Asset != "USDT" {
		t.Fatalf("expected sorted balances, got %+v", balances)
	}

	_, err = service.GetBalance(ctx, "0xabc", "DOGE")
	requireCode(t, err, CodeInvalidRequest)

	if err := service.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}
