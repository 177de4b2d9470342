package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// MaxUnitDecimals bounds the ledger precision so balances still fit the unit range.
const MaxUnitDecimals = 8

var precisionMu sync.RWMutex

// assetPrecision maps asset symbols to the number of decimal places the ledger keeps.
var assetPrecision = map[string]int32{
	"AUXG":  6,
	"AUXS":  6,
	"AUXPT": 6,
	"AUXPD": 6,
	"AUXM":  6,
	"USDM":  6,
	"USDT":  6,
	"USD":   2,
}

// RegisterPrecision sets the ledger precision of symbol. It must run before any
// balance of that asset is stored, since units are not rescaled.
func RegisterPrecision(symbol string, decimals int32) error {
	if decimals < 0 || decimals > MaxUnitDecimals {
		return fmt.Errorf("%w: unit decimals %d for %s outside 0-%d", ErrInvalidAmount, decimals, symbol, MaxUnitDecimals)
	}
	precisionMu.Lock()
	defer precisionMu.Unlock()
	assetPrecision[strings.ToUpper(symbol)] = decimals
	return nil
}

// PrecisionFor returns the ledger precision of symbol, default 6.
func PrecisionFor(symbol string) int32 {
	precisionMu.RLock()
	defer precisionMu.RUnlock()
	if p, ok := assetPrecision[symbol]; ok {
		return p
	}
	return 6
}

// ToUnits converts an amount into integer smallest units. Amounts finer than the
// asset precision are rejected rather than silently rounded.
func ToUnits(symbol string, amount decimal.Decimal) (int64, error) {
	p := PrecisionFor(symbol)
	if !amount.Equal(amount.Truncate(p)) {
		return 0, fmt.Errorf("%w: %s exceeds %d decimal places for %s", ErrInvalidAmount, amount.String(), p, symbol)
	}
	units := amount.Shift(p)
	if !units.IsInteger() || units.Abs().GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, fmt.Errorf("%w: %s out of range for %s", ErrInvalidAmount, amount.String(), symbol)
	}
	return units.IntPart(), nil
}

// FromUnits converts integer smallest units back into an amount.
func FromUnits(symbol string, units int64) decimal.Decimal {
	return decimal.New(units, -PrecisionFor(symbol))
}

// RoundUp rounds a computed amount up to the asset precision. Used for debits.
func RoundUp(symbol string, amount decimal.Decimal) decimal.Decimal {
	return amount.RoundCeil(PrecisionFor(symbol))
}

// RoundDown rounds a computed amount down to the asset precision. Used for credits.
func RoundDown(symbol string, amount decimal.Decimal) decimal.Decimal {
	return amount.RoundFloor(PrecisionFor(symbol))
}
