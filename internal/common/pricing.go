package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Amounts are strings in the file so they parse exactly.
type markupEntry struct {
	BaseMargin    string `yaml:"base_margin"`
	AbsoluteFloor string `yaml:"absolute_floor"`
}

type spreadEntry struct {
	BuyBps  string `yaml:"buy_bps"`
	SellBps string `yaml:"sell_bps"`
}

type PricingFile struct {
	VolatilityMode           string                 `yaml:"volatility_mode"`
	MarketHoursMode          string                 `yaml:"market_hours_mode"`
	DepthMode                string                 `yaml:"depth_mode"`
	WhaleFloorPercent        string                 `yaml:"whale_floor_percent"`
	WhaleNotional            string                 `yaml:"whale_notional"`
	MicroOptimizationPercent string                 `yaml:"micro_optimization_percent"`
	MicroNotional            string                 `yaml:"micro_notional"`
	BidMarkupRatio           string                 `yaml:"bid_markup_ratio"`
	MetalMarkup              map[string]markupEntry `yaml:"metal_markup"`
	Spreads                  map[string]spreadEntry `yaml:"spreads"`
	FallbackSpread           *spreadEntry           `yaml:"fallback_spread"`
}

// LoadPricingFile reads the default pricing config and the matching spread policy.
// Fields left out of the file keep their built-in values; a missing file means
// built-in values throughout.
func LoadPricingFile(pricingFile string) (*models.PricingConfig, *pricing.SpreadPolicy, error) {
	if pricingFile == "" {
		return pricing.DefaultConfig(), pricing.DefaultSpreadPolicy(), nil
	}
	path, err := resolvePath(pricingFile)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("Pricing file not found, using built-in pricing", zap.String("file", pricingFile))
		return pricing.DefaultConfig(), pricing.DefaultSpreadPolicy(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read %s: %w", pricingFile, err)
	}

	var file PricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("unable to parse %s: %w", pricingFile, err)
	}
	return file.Build()
}

// Build converts the file into a validated config and spread policy.
func (f *PricingFile) Build() (*models.PricingConfig, *pricing.SpreadPolicy, error) {
	cfg := pricing.DefaultConfig()
	if f.VolatilityMode != "" {
		cfg.VolatilityMode = models.VolatilityMode(strings.ToLower(f.VolatilityMode))
	}
	if f.MarketHoursMode != "" {
		cfg.MarketHoursMode = models.MarketHoursMode(strings.ToLower(f.MarketHoursMode))
	}
	if f.DepthMode != "" {
		cfg.DepthMode = models.DepthMode(strings.ToLower(f.DepthMode))
	}

	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"whale_floor_percent", f.WhaleFloorPercent, &cfg.WhaleFloorPercent},
		{"whale_notional", f.WhaleNotional, &cfg.WhaleNotional},
		{"micro_optimization_percent", f.MicroOptimizationPercent, &cfg.MicroOptimizationPercent},
		{"micro_notional", f.MicroNotional, &cfg.MicroNotional},
		{"bid_markup_ratio", f.BidMarkupRatio, &cfg.BidMarkupRatio},
	}
	for _, field := range fields {
		if err := parseInto(field.name, field.value, field.dst); err != nil {
			return nil, nil, err
		}
	}

	for asset, entry := range f.MetalMarkup {
		asset = strings.ToUpper(asset)
		markup := cfg.MetalMarkup[asset]
		if err := parseInto(asset+".base_margin", entry.BaseMargin, &markup.BaseMargin); err != nil {
			return nil, nil, err
		}
		if err := parseInto(asset+".absolute_floor", entry.AbsoluteFloor, &markup.AbsoluteFloor); err != nil {
			return nil, nil, err
		}
		cfg.MetalMarkup[asset] = markup
	}

	if err := pricing.Validate(cfg); err != nil {
		return nil, nil, err
	}

	defaults := pricing.DefaultSpreadPolicy()
	fallback := defaults.For("")
	if f.FallbackSpread != nil {
		var err error
		if fallback, err = f.FallbackSpread.build("fallback_spread", fallback); err != nil {
			return nil, nil, err
		}
	}
	spreads := make(map[string]models.Spread)
	for _, asset := range []string{"AUXG", "AUXS", "AUXPT", "AUXPD"} {
		spreads[asset] = defaults.For(asset)
	}
	for asset, entry := range f.Spreads {
		asset = strings.ToUpper(asset)
		base, ok := spreads[asset]
		if !ok {
			base = fallback
		}
		s, err := entry.build(asset, base)
		if err != nil {
			return nil, nil, err
		}
		spreads[asset] = s
	}

	return cfg, pricing.NewSpreadPolicy(spreads, fallback), nil
}

func (e spreadEntry) build(name string, base models.Spread) (models.Spread, error) {
	if err := parseInto(name+".buy_bps", e.BuyBps, &base.BuyBps); err != nil {
		return models.Spread{}, err
	}
	if err := parseInto(name+".sell_bps", e.SellBps, &base.SellBps); err != nil {
		return models.Spread{}, err
	}
	if base.BuyBps.IsNegative() || base.SellBps.IsNegative() {
		return models.Spread{}, fmt.Errorf("%w: %s spread is negative", pricing.ErrInvalidConfig, name)
	}
	return base, nil
}

func parseInto(name, value string, dst *decimal.Decimal) error {
	if value == "" {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %q is not a number", pricing.ErrInvalidConfig, name, value)
	}
	*dst = d
	return nil
}
