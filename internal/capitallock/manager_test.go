package capitallock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"metal-trade-core/internal/database"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/redisstore"
	"metal-trade-core/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu   sync.Mutex
	txns []models.Transaction
}

func (p *recordingPublisher) Publish(_ context.Context, txn models.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txns = append(p.txns, txn)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func backends(t *testing.T) map[string]store.TradeStore {
	mr := miniredis.RunT(t)
	redisStore := redisstore.NewServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(redisStore.Close)

	sqliteStore, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(sqliteStore.Close)

	return map[string]store.TradeStore{"redis": redisStore, "sqlite": sqliteStore}
}

type fixture struct {
	store     store.TradeStore
	manager   *Manager
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(s store.TradeStore) *fixture {
	f := &fixture{
		store:     s,
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.manager = NewManager(s, f.publisher, models.NewAssetRegistry(models.DefaultAssets()), 2*time.Minute)
	f.manager.now = func() time.Time { return f.now }
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustBalance(t *testing.T, s store.TradeStore, address, asset, want string) {
	t.Helper()
	got, err := s.GetBalance(context.Background(), address, asset)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !got.Equal(dec(want)) {
		t.Fatalf("expected %s balance %s, got %s", asset, want, got)
	}
}

func buyParams(address, amount string) CreateLockParams {
	return CreateLockParams{
		Address:        address,
		FromAsset:      "USDM",
		ToAsset:        "AUXG",
		FromAmount:     dec(amount),
		ExecutionPrice: dec("140"),
	}
}

func TestLockThenSettle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(s)
			ctx := context.Background()
			if _, err := s.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
				t.Fatalf("Credit failed: %v", err)
			}

			result, err := f.manager.CreateLock(ctx, buyParams("0xabc", "40"))
			if err != nil {
				t.Fatalf("CreateLock failed: %v", err)
			}
			if !result.RemainingBalance.Equal(dec("60")) {
				t.Fatalf("expected remaining 60, got %s", result.RemainingBalance)
			}
			mustBalance(t, s, "0xabc", "USDM", "60")

			txn, err := f.manager.Settle(ctx, result.Lock.LockId)
			if err != nil {
				t.Fatalf("Settle failed: %v", err)
			}
			mustBalance(t, s, "0xabc", "USDM", "60")
			mustBalance(t, s, "0xabc", "AUXG", "0.285714")
			if txn.Side != models.SideBuy || !txn.Grams.Equal(dec("0.285714")) || !txn.Price.Equal(dec("140")) {
				t.Fatalf("unexpected transaction: %+v", txn)
			}
			if len(f.publisher.txns) != 1 || f.publisher.txns[0].Id != txn.Id {
				t.Fatalf("expected settlement event, got %+v", f.publisher.txns)
			}

			// settled lock is gone; release is a no-op and credits nothing
			if err := f.manager.ReleaseLock(ctx, result.Lock.LockId); err != nil {
				t.Fatalf("ReleaseLock after settle failed: %v", err)
			}
			mustBalance(t, s, "0xabc", "USDM", "60")
			if _, err := f.manager.Settle(ctx, result.Lock.LockId); !errors.Is(err, store.ErrLockNotFound) {
				t.Fatalf("expected ErrLockNotFound on second settle, got %v", err)
			}

			history, err := s.ListTransactions(ctx, "0xabc", 10)
			if err != nil {
				t.Fatalf("ListTransactions failed: %v", err)
			}
			if len(history) != 1 || history[0].Reference != result.Lock.LockId {
				t.Fatalf("expected one settlement record, got %+v", history)
			}
		})
	}
}

func TestSellLockCreditsCurrency(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(s)
			ctx := context.Background()
			if _, err := s.Credit(ctx, "0xabc", "AUXG", dec("5")); err != nil {
				t.Fatalf("Credit failed: %v", err)
			}

			result, err := f.manager.CreateLock(ctx, CreateLockParams{
				Address:        "0xabc",
				FromAsset:      "auxg",
				ToAsset:        "usdm",
				FromAmount:     dec("2"),
				ExecutionPrice: dec("139.37"),
			})
			if err != nil {
				t.Fatalf("CreateLock failed: %v", err)
			}
			if _, err := f.manager.Settle(ctx, result.Lock.LockId); err != nil {
				t.Fatalf("Settle failed: %v", err)
			}
			mustBalance(t, s, "0xabc", "AUXG", "3")
			mustBalance(t, s, "0xabc", "USDM", "278.74")
		})
	}
}

func TestLockTimeoutCreditsBack(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(s)
			ctx := context.Background()
			if _, err := s.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
				t.Fatalf("Credit failed: %v", err)
			}

			result, err := f.manager.CreateLock(ctx, buyParams("0xabc", "25"))
			if err != nil {
				t.Fatalf("CreateLock failed: %v", err)
			}
			mustBalance(t, s, "0xabc", "USDM", "75")

			f.now = f.now.Add(3 * time.Minute)
			n, err := f.manager.SweepExpired(ctx)
			if err != nil {
				t.Fatalf("SweepExpired failed: %v", err)
			}
			if n != 1 {
				t.Fatalf("expected 1 expired lock, got %d", n)
			}
			mustBalance(t, s, "0xabc", "USDM", "100")

			// credited back exactly once
			if n, _ := f.manager.SweepExpired(ctx); n != 0 {
				t.Fatalf("expected nothing left to expire, got %d", n)
			}
			if err := f.manager.ReleaseLock(ctx, result.Lock.LockId); err != nil {
				t.Fatalf("ReleaseLock failed: %v", err)
			}
			mustBalance(t, s, "0xabc", "USDM", "100")
		})
	}
}

func TestSettleExpiredLockReturnsFunds(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(s)
			ctx := context.Background()
			if _, err := s.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
				t.Fatalf("Credit failed: %v", err)
			}
			result, err := f.manager.CreateLock(ctx, buyParams("0xabc", "40"))
			if err != nil {
				t.Fatalf("CreateLock failed: %v", err)
			}

			f.now = f.now.Add(5 * time.Minute)
			if _, err := f.manager.Settle(ctx, result.Lock.LockId); !errors.Is(err, store.ErrLockExpired) {
				t.Fatalf("expected ErrLockExpired, got %v", err)
			}
			mustBalance(t, s, "0xabc", "USDM", "100")
			mustBalance(t, s, "0xabc", "AUXG", "0")
			if len(f.publisher.txns) != 0 {
				t.Fatalf("no event expected for an expired lock")
			}
		})
	}
}

func TestActiveLockSettlesStaleLock(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(s)
			ctx := context.Background()
			if _, err := s.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
				t.Fatalf("Credit failed: %v", err)
			}
			if _, err := f.manager.CreateLock(ctx, buyParams("0xabc", "30")); err != nil {
				t.Fatalf("CreateLock failed: %v", err)
			}

			lock, err := f.manager.ActiveLock(ctx, "0xabc")
			if err != nil || lock == nil {
				t.Fatalf("expected live lock, got %v, %v", lock, err)
			}

			f.now = f.now.Add(3 * time.Minute)
			lock, err = f.manager.ActiveLock(ctx, "0xabc")
			if err != nil {
				t.Fatalf("ActiveLock failed: %v", err)
			}
			if lock != nil {
				t.Fatalf("expected stale lock to be settled")
			}
			mustBalance(t, s, "0xabc", "USDM", "100")
		})
	}
}

func TestSingleLockPerAddressUnderConcurrency(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(s)
			ctx := context.Background()
			if _, err := s.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
				t.Fatalf("Credit failed: %v", err)
			}

			var wg sync.WaitGroup
			var mu sync.Mutex
			wins, conflicts := 0, 0
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.manager.CreateLock(ctx, buyParams("0xabc", "10"))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, store.ErrLockExists):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if wins != 1 || conflicts != 9 {
				t.Fatalf("expected 1 winner and 9 conflicts, got %d and %d", wins, conflicts)
			}
			mustBalance(t, s, "0xabc", "USDM", "90")
		})
	}
}

func TestCreateLockRejections(t *testing.T) {
	s := backends(t)["redis"]
	f := newFixture(s)
	ctx := context.Background()
	if _, err := s.Credit(ctx, "0xabc", "USDM", dec("10")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	cases := []struct {
		name   string
		params CreateLockParams
		want   error
	}{
		{"empty address", buyParams(" ", "1"), store.ErrInvalidAddress},
		{"zero amount", buyParams("0xabc", "0"), store.ErrInvalidAmount},
		{"too precise", buyParams("0xabc", "0.0000001"), store.ErrInvalidAmount},
		{"zero price", CreateLockParams{Address: "0xabc", FromAsset: "USDM", ToAsset: "AUXG", FromAmount: dec("1")}, store.ErrInvalidPrice},
		{"metal to metal", CreateLockParams{Address: "0xabc", FromAsset: "AUXS", ToAsset: "AUXG", FromAmount: dec("1"), ExecutionPrice: dec("1")}, store.ErrInvalidAsset},
		{"unknown asset", CreateLockParams{Address: "0xabc", FromAsset: "BTC", ToAsset: "AUXG", FromAmount: dec("1"), ExecutionPrice: dec("1")}, store.ErrInvalidAsset},
		{"insufficient", buyParams("0xabc", "50"), store.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.manager.CreateLock(ctx, tc.params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	mustBalance(t, s, "0xabc", "USDM", "10")

	_, err := f.manager.CreateLock(ctx, buyParams("0xabc", "50"))
	var insufficient *store.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Available.Equal(dec("10")) || !insufficient.Required.Equal(dec("50")) {
		t.Fatalf("unexpected amounts: %+v", insufficient)
	}
}
