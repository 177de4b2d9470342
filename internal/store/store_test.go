package store

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToUnits(t *testing.T) {
	tests := []struct {
		symbol string
		amount string
		want   int64
	}{
		{"AUXG", "10", 10_000_000},
		{"AUXG", "0.000001", 1},
		{"USD", "12.34", 1234},
		{"UNKNOWN", "1.5", 1_500_000},
	}
	for _, tt := range tests {
		got, err := ToUnits(tt.symbol, decimal.RequireFromString(tt.amount))
		if err != nil {
			t.Fatalf("ToUnits(%s, %s) failed: %v", tt.symbol, tt.amount, err)
		}
		if got != tt.want {
			t.Errorf("ToUnits(%s, %s) = %d, want %d", tt.symbol, tt.amount, got, tt.want)
		}
	}
}

func TestRegisterPrecision(t *testing.T) {
	if err := RegisterPrecision("xbar", 3); err != nil {
		t.Fatalf("RegisterPrecision failed: %v", err)
	}
	if got := PrecisionFor("XBAR"); got != 3 {
		t.Fatalf("expected precision 3, got %d", got)
	}
	units, err := ToUnits("XBAR", decimal.RequireFromString("1.234"))
	if err != nil || units != 1234 {
		t.Fatalf("expected 1234 units, got %d, %v", units, err)
	}
	if _, err := ToUnits("XBAR", decimal.RequireFromString("1.2345")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := RegisterPrecision("XBAR", MaxUnitDecimals+1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected out of range precision to fail, got %v", err)
	}
}

func TestToUnitsRejectsExcessPrecision(t *testing.T) {
	_, err := ToUnits("USD", decimal.RequireFromString("1.001"))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestFromUnits(t *testing.T) {
	if got := FromUnits("AUXM", 1_385_000_000); !got.Equal(decimal.NewFromInt(1385)) {
		t.Errorf("expected 1385, got %s", got)
	}
	if got := FromUnits("USD", 5); !got.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("expected 0.05, got %s", got)
	}
}

func TestRounding(t *testing.T) {
	amount := decimal.RequireFromString("1.0000001")
	if got := RoundUp("AUXM", amount); !got.Equal(decimal.RequireFromString("1.000001")) {
		t.Errorf("RoundUp = %s", got)
	}
	if got := RoundDown("AUXM", amount); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("RoundDown = %s", got)
	}
}

func TestInsufficientBalanceErrorUnwraps(t *testing.T) {
	var err error = &InsufficientBalanceError{
		Asset:     "USDM",
		Required:  decimal.NewFromInt(40),
		Available: decimal.NewFromInt(10),
	}
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatal("expected error to unwrap to ErrInsufficientBalance")
	}
	want := "insufficient USDM balance: required 40, available 10"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
