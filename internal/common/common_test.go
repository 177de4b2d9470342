package common

import (
	"os"
	"path/filepath"
	"testing"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAssetRegistryFromFile(t *testing.T) {
	path := writeFile(t, "assets.yaml", `
assets:
  - symbol: AUXG
    name: Gold
    kind: metal
    price_decimals: 2
  - symbol: USDT
    name: Tether USD
    kind: currency
    price_decimals: 2
`)
	registry, err := LoadAssetRegistry(path)
	if err != nil {
		t.Fatalf("LoadAssetRegistry: %v", err)
	}
	if !registry.IsMetal("AUXG") || !registry.IsCurrency("USDT") {
		t.Fatalf("registry missing configured assets")
	}
	if registry.IsMetal("AUXS") {
		t.Fatalf("AUXS should not be configured")
	}
}

func TestLoadAssetRegistryAppliesUnitDecimals(t *testing.T) {
	path := writeFile(t, "assets.yaml", `
assets:
  - symbol: XRH
    name: Rhodium
    kind: metal
    price_decimals: 2
    unit_decimals: 3
  - symbol: USD
    name: US Dollar
    kind: currency
    price_decimals: 2
`)
	registry, err := LoadAssetRegistry(path)
	if err != nil {
		t.Fatalf("LoadAssetRegistry: %v", err)
	}
	if !registry.IsMetal("XRH") {
		t.Fatalf("XRH should be a metal")
	}
	if got := store.PrecisionFor("XRH"); got != 3 {
		t.Fatalf("expected XRH precision 3, got %d", got)
	}
	if got := store.PrecisionFor("USD"); got != 2 {
		t.Fatalf("expected USD precision to stay 2, got %d", got)
	}
}

func TestLoadAssetRegistryMissingFileUsesDefaults(t *testing.T) {
	registry, err := LoadAssetRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadAssetRegistry: %v", err)
	}
	if got := len(registry.Metals()); got != 4 {
		t.Fatalf("expected 4 default metals, got %d", got)
	}
}

func TestLoadAssetConfigRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"missing symbol": "assets:\n  - kind: metal\n",
		"bad kind":       "assets:\n  - symbol: AUXG\n    kind: stock\n",
		"duplicate":      "assets:\n  - symbol: AUXG\n    kind: metal\n  - symbol: auxg\n    kind: metal\n",
		"decimals":       "assets:\n  - symbol: AUXG\n    kind: metal\n    price_decimals: 12\n",
		"unit decimals":  "assets:\n  - symbol: AUXG\n    kind: metal\n    unit_decimals: 12\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadAssetConfig(writeFile(t, "assets.yaml", body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadPricingFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "pricing.yaml", `
volatility_mode: elevated
bid_markup_ratio: "1"
metal_markup:
  auxg:
    base_margin: "0.40"
spreads:
  AUXS:
    buy_bps: "80"
fallback_spread:
  buy_bps: "30"
  sell_bps: "30"
`)
	cfg, spreads, err := LoadPricingFile(path)
	if err != nil {
		t.Fatalf("LoadPricingFile: %v", err)
	}
	if cfg.VolatilityMode != models.VolatilityElevated {
		t.Fatalf("volatility mode: got %s", cfg.VolatilityMode)
	}
	if !cfg.BidMarkupRatio.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("bid ratio: got %s", cfg.BidMarkupRatio)
	}
	gold := cfg.MetalMarkup["AUXG"]
	if !gold.BaseMargin.Equal(decimal.RequireFromString("0.40")) || !gold.AbsoluteFloor.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("AUXG markup: got %+v", gold)
	}
	if !cfg.WhaleNotional.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("untouched fields should keep defaults, whale notional %s", cfg.WhaleNotional)
	}

	silver := spreads.For("AUXS")
	if !silver.BuyBps.Equal(decimal.NewFromInt(80)) || !silver.SellBps.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("AUXS spread: got %+v", silver)
	}
	if !spreads.For("XYZ").BuyBps.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("fallback spread not applied")
	}
}

func TestLoadPricingFileRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"not a number":   "whale_notional: lots\n",
		"unknown mode":   "depth_mode: bottomless\n",
		"negative bps":   "spreads:\n  AUXG:\n    buy_bps: \"-1\"\n",
		"negative floor": "metal_markup:\n  AUXG:\n    absolute_floor: \"-0.20\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := LoadPricingFile(writeFile(t, "pricing.yaml", body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadPricingFileMissingUsesDefaults(t *testing.T) {
	cfg, spreads, err := LoadPricingFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadPricingFile: %v", err)
	}
	if !cfg.MetalMarkup["AUXS"].BaseMargin.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("expected default AUXS markup")
	}
	if !spreads.For("AUXG").BuyBps.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected default AUXG spread")
	}
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses(" 0xABC, 0xdef ,0xabc,,")
	if err != nil {
		t.Fatalf("ParseAddresses: %v", err)
	}
	if len(got) != 2 || got[0] != "0xabc" || got[1] != "0xdef" {
		t.Fatalf("unexpected addresses %v", got)
	}
	if _, err := ParseAddresses(" , "); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100", "100.00 USDT"},
		{"1.5", "1.50 USDT"},
		{"0.285714", "0.285714 USDT"},
		{"-2.1", "-2.10 USDT"},
	}
	for _, tt := range tests {
		if got := FormatAmount(decimal.RequireFromString(tt.in), "USDT"); got != tt.want {
			t.Fatalf("FormatAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
