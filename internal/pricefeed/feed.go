package pricefeed

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// gramsPerTroyOunce converts ounce quotes into per-gram spot prices.
var gramsPerTroyOunce = decimal.RequireFromString("31.1034768")

// Feed supplies spot prices per gram keyed by metal symbol.
type Feed interface {
	SpotPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// normalize upper-cases symbols, converts ounce quotes to grams and drops
// non-positive values.
func normalize(unit string, raw map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	perOunce := false
	switch strings.ToLower(unit) {
	case "", "gram", "g":
	case "troy_ounce", "oz", "ozt":
		perOunce = true
	default:
		return nil, fmt.Errorf("unsupported price unit %q", unit)
	}

	out := make(map[string]decimal.Decimal, len(raw))
	for symbol, price := range raw {
		if !price.IsPositive() {
			continue
		}
		if perOunce {
			price = price.Div(gramsPerTroyOunce)
		}
		out[strings.ToUpper(symbol)] = price
	}
	return out, nil
}
