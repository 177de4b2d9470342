package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrLockExists          = errors.New("an active capital lock already exists for this address")
	ErrLockNotFound        = errors.New("capital lock not found")
	ErrLockExpired         = errors.New("capital lock expired")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPending     = errors.New("order is not pending")
	ErrUnauthorized        = errors.New("address does not own this order")

	// Validation errors, returned before any state is touched.
	ErrInvalidAsset         = errors.New("unsupported asset")
	ErrInvalidSide          = errors.New("invalid order side")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrInvalidExpiry        = errors.New("invalid expiry")
	ErrInvalidAddress       = errors.New("invalid address")
)

// InsufficientBalanceError reports both sides of a rejected debit.
type InsufficientBalanceError struct {
	Asset     string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %s, available %s",
		e.Asset, e.Required.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ConsumeLockParams settles an active lock into the counter asset.
type ConsumeLockParams struct {
	LockId       string
	CreditAsset  string
	CreditAmount decimal.Decimal
	Transaction  *models.Transaction
	Now          time.Time
}

// FillOrderParams fully fills an open order: debit the giving asset, credit the
// receiving asset, mark the order filled, and append the transaction record.
type FillOrderParams struct {
	OrderId      string
	Address      string
	Asset        string
	DebitAsset   string
	DebitAmount  decimal.Decimal
	CreditAsset  string
	CreditAmount decimal.Decimal
	FilledGrams  decimal.Decimal
	FillPrice    decimal.Decimal
	Transaction  *models.Transaction
	Now          time.Time
}

// TradeStore defines the contract that every backend (Redis, SQLite) must satisfy.
// Every method that mutates funds is a single atomic step against the backend.
type TradeStore interface {
	// --- Balances ---
	GetBalance(ctx context.Context, address, asset string) (decimal.Decimal, error)
	GetBalances(ctx context.Context, address string) (map[string]decimal.Decimal, error)
	Credit(ctx context.Context, address, asset string, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, address, asset string, amount decimal.Decimal) (decimal.Decimal, error)

	// --- Capital locks ---
	// CreateLock settles a stale lock for the address, checks the balance, debits it and
	// persists the lock, all or nothing. Returns ErrLockExists or *InsufficientBalanceError.
	CreateLock(ctx context.Context, lock *models.CapitalLock, now time.Time) (decimal.Decimal, error)
	GetLock(ctx context.Context, address string) (*models.CapitalLock, error)
	FindLock(ctx context.Context, lockId string) (*models.CapitalLock, error)
	// ReleaseLock credits the reserved amount back and removes the lock. A missing lock
	// is a no-op and returns (nil, nil).
	ReleaseLock(ctx context.Context, lockId string) (*models.CapitalLock, error)
	// ConsumeLock removes the lock without credit-back and credits the counter asset.
	// An expired lock is credited back instead and ErrLockExpired is returned.
	ConsumeLock(ctx context.Context, params ConsumeLockParams) error
	// ExpireLocks credits back every lock whose deadline is at or before now.
	ExpireLocks(ctx context.Context, now time.Time, limit int) ([]models.CapitalLock, error)

	// --- Limit orders ---
	CreateOrder(ctx context.Context, order *models.LimitOrder) error
	GetOrder(ctx context.Context, orderId string) (*models.LimitOrder, error)
	ListOrders(ctx context.Context, address string) ([]models.LimitOrder, error)
	OpenOrders(ctx context.Context, asset string) ([]models.LimitOrder, error)
	CancelOrder(ctx context.Context, orderId, address string, now time.Time) (*models.LimitOrder, error)
	ExpireOrder(ctx context.Context, orderId string, now time.Time) (bool, error)
	FillOrder(ctx context.Context, params FillOrderParams) error

	// --- Transactions ---
	ListTransactions(ctx context.Context, address string, limit int) ([]models.Transaction, error)

	// --- Pricing configuration ---
	GetPricingConfig(ctx context.Context) (*models.PricingConfig, error)
	SavePricingConfig(ctx context.Context, cfg *models.PricingConfig) error

	// --- Lifecycle ---
	Close()
}
