package pricing

import (
	"errors"
	"fmt"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

var ErrInvalidConfig = errors.New("invalid pricing config")

// Regime adjustments in percentage points, added to the asset's base margin.
var (
	volatilityAdjustment = map[models.VolatilityMode]decimal.Decimal{
		models.VolatilityCalm:     decimal.Zero,
		models.VolatilityElevated: decimal.RequireFromString("0.15"),
		models.VolatilityHigh:     decimal.RequireFromString("0.35"),
		models.VolatilityExtreme:  decimal.RequireFromString("0.75"),
	}

	marketHoursAdjustment = map[models.MarketHoursMode]decimal.Decimal{
		models.MarketHoursLondonNY: decimal.Zero,
		models.MarketHoursAsia:     decimal.RequireFromString("0.10"),
		models.MarketHoursWeekend:  decimal.RequireFromString("0.25"),
	}

	depthAdjustment = map[models.DepthMode]decimal.Decimal{
		models.DepthDeep:   decimal.RequireFromString("-0.05"),
		models.DepthNormal: decimal.Zero,
		models.DepthThin:   decimal.RequireFromString("0.15"),
		models.DepthShock:  decimal.RequireFromString("0.50"),
	}
)

// regimeAdjustment sums the three regime axes of cfg.
func regimeAdjustment(cfg *models.PricingConfig) (decimal.Decimal, error) {
	vol, ok := volatilityAdjustment[cfg.VolatilityMode]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown volatility mode %q", ErrInvalidConfig, cfg.VolatilityMode)
	}
	hours, ok := marketHoursAdjustment[cfg.MarketHoursMode]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown market hours mode %q", ErrInvalidConfig, cfg.MarketHoursMode)
	}
	depth, ok := depthAdjustment[cfg.DepthMode]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown depth mode %q", ErrInvalidConfig, cfg.DepthMode)
	}
	return vol.Add(hours).Add(depth), nil
}

// Validate rejects configs the engine cannot price with.
func Validate(cfg *models.PricingConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if _, err := regimeAdjustment(cfg); err != nil {
		return err
	}
	hundred := decimal.NewFromInt(100)
	for asset, m := range cfg.MetalMarkup {
		if m.AbsoluteFloor.IsNegative() {
			return fmt.Errorf("%w: %s absolute floor is negative", ErrInvalidConfig, asset)
		}
		if m.BaseMargin.IsNegative() {
			return fmt.Errorf("%w: %s base margin is negative", ErrInvalidConfig, asset)
		}
		if m.AbsoluteFloor.GreaterThanOrEqual(hundred) || m.BaseMargin.GreaterThanOrEqual(hundred) {
			return fmt.Errorf("%w: %s markup must be below 100%%", ErrInvalidConfig, asset)
		}
	}
	if cfg.WhaleFloorPercent.IsNegative() || cfg.WhaleFloorPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: whale floor percent must be within 0-100", ErrInvalidConfig)
	}
	if cfg.MicroOptimizationPercent.IsNegative() {
		return fmt.Errorf("%w: micro optimization percent is negative", ErrInvalidConfig)
	}
	if cfg.WhaleNotional.IsNegative() || cfg.MicroNotional.IsNegative() {
		return fmt.Errorf("%w: notional thresholds must not be negative", ErrInvalidConfig)
	}
	if cfg.BidMarkupRatio.IsNegative() {
		return fmt.Errorf("%w: bid markup ratio is negative", ErrInvalidConfig)
	}
	return nil
}
