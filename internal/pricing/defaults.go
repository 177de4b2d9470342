package pricing

import (
	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

// fallbackMarkup prices a metal that has no entry in the config.
var fallbackMarkup = models.MetalMarkup{
	BaseMargin:    decimal.RequireFromString("1.00"),
	AbsoluteFloor: decimal.RequireFromString("0.50"),
}

// DefaultConfig is used until a config is stored or a pricing file is loaded.
func DefaultConfig() *models.PricingConfig {
	return &models.PricingConfig{
		VolatilityMode:  models.VolatilityCalm,
		MarketHoursMode: models.MarketHoursLondonNY,
		DepthMode:       models.DepthNormal,
		MetalMarkup: map[string]models.MetalMarkup{
			"AUXG":  {BaseMargin: decimal.RequireFromString("0.50"), AbsoluteFloor: decimal.RequireFromString("0.25")},
			"AUXS":  {BaseMargin: decimal.RequireFromString("1.00"), AbsoluteFloor: decimal.RequireFromString("0.60")},
			"AUXPT": {BaseMargin: decimal.RequireFromString("0.80"), AbsoluteFloor: decimal.RequireFromString("0.45")},
			"AUXPD": {BaseMargin: decimal.RequireFromString("0.90"), AbsoluteFloor: decimal.RequireFromString("0.50")},
		},
		WhaleFloorPercent:        decimal.NewFromInt(50),
		WhaleNotional:            decimal.NewFromInt(100000),
		MicroOptimizationPercent: decimal.RequireFromString("0.25"),
		MicroNotional:            decimal.NewFromInt(500),
		BidMarkupRatio:           decimal.RequireFromString("0.80"),
	}
}
