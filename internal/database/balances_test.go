package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}
	return service, cleanup
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustBalance(t *testing.T, s *Service, address, asset, want string) {
	t.Helper()
	got, err := s.GetBalance(context.Background(), address, asset)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !got.Equal(dec(want)) {
		t.Fatalf("Expected %s balance %s, got %s", asset, want, got)
	}
}

func TestGetBalance_NoBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	mustBalance(t, service, "0xabc", "AUXG", "0")
}

func TestCreditAndDebit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	balance, err := service.Credit(ctx, "0xabc", "AUXM", dec("100.5"))
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if !balance.Equal(dec("100.5")) {
		t.Errorf("Expected balance 100.5, got %s", balance)
	}

	remaining, err := service.Debit(ctx, "0xabc", "AUXM", dec("40.25"))
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if !remaining.Equal(dec("60.25")) {
		t.Errorf("Expected 60.25 remaining, got %s", remaining)
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	if _, err := service.Credit(context.Background(), "0xabc", "AUXM", dec("0")); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestDebit_InsufficientBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.Credit(ctx, "0xabc", "AUXG", dec("5")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	_, err := service.Debit(ctx, "0xabc", "AUXG", dec("5.000001"))
	var insufficient *store.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Available.Equal(dec("5")) {
		t.Errorf("Expected available 5, got %s", insufficient.Available)
	}
	mustBalance(t, service, "0xabc", "AUXG", "5")

	// Debit from an asset never credited
	if _, err := service.Debit(ctx, "0xabc", "AUXS", dec("1")); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
}

func TestGetBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.Credit(ctx, "0xabc", "AUXG", dec("1")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if _, err := service.Credit(ctx, "0xabc", "USD", dec("10.5")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if _, err := service.Credit(ctx, "0xabc", "AUXS", dec("2")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if _, err := service.Debit(ctx, "0xabc", "AUXS", dec("2")); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	balances, err := service.GetBalances(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 non-zero balances, got %d: %v", len(balances), balances)
	}
	if !balances["USD"].Equal(dec("10.5")) {
		t.Errorf("Expected USD balance 10.5, got %s", balances["USD"])
	}
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Debit(ctx, "0xabc", "USDM", dec("10")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("Expected exactly 10 successful debits, got %d", succeeded)
	}
	mustBalance(t, service, "0xabc", "USDM", "0")
}

func TestReconcileBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.Credit(ctx, "0xabc", "USDM", dec("100")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	now := time.Now()
	lock := newLock("0xabc", "25", now, time.Minute)
	if _, err := service.CreateLock(ctx, lock, now); err != nil {
		t.Fatalf("CreateLock failed: %v", err)
	}
	if _, err := service.ReleaseLock(ctx, lock.LockId); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	if err := service.ReconcileBalance(ctx, "0xabc", "USDM"); err != nil {
		t.Fatalf("ReconcileBalance failed: %v", err)
	}

	// Corrupt the balance behind the journal's back
	if _, err := service.db.Exec("UPDATE balances SET units = units + 1 WHERE address = ? AND asset = ?", "0xabc", "USDM"); err != nil {
		t.Fatalf("Failed to corrupt balance: %v", err)
	}
	if err := service.ReconcileBalance(ctx, "0xabc", "USDM"); err == nil {
		t.Fatalf("Expected reconciliation mismatch")
	}
}
