package pricing

import (
	"strings"

	"metal-trade-core/internal/models"

	"github.com/shopspring/decimal"
)

var tenThousand = decimal.NewFromInt(10000)

// SpreadPolicy holds the per-asset matching spread for resting limit orders.
type SpreadPolicy struct {
	spreads  map[string]models.Spread
	fallback models.Spread
}

func NewSpreadPolicy(spreads map[string]models.Spread, fallback models.Spread) *SpreadPolicy {
	p := &SpreadPolicy{spreads: make(map[string]models.Spread, len(spreads)), fallback: fallback}
	for asset, s := range spreads {
		p.spreads[strings.ToUpper(asset)] = s
	}
	return p
}

func DefaultSpreadPolicy() *SpreadPolicy {
	return NewSpreadPolicy(map[string]models.Spread{
		"AUXG":  {BuyBps: decimal.NewFromInt(25), SellBps: decimal.NewFromInt(25)},
		"AUXS":  {BuyBps: decimal.NewFromInt(60), SellBps: decimal.NewFromInt(60)},
		"AUXPT": {BuyBps: decimal.NewFromInt(45), SellBps: decimal.NewFromInt(45)},
		"AUXPD": {BuyBps: decimal.NewFromInt(50), SellBps: decimal.NewFromInt(50)},
	}, models.Spread{BuyBps: decimal.NewFromInt(50), SellBps: decimal.NewFromInt(50)})
}

func (p *SpreadPolicy) For(asset string) models.Spread {
	if s, ok := p.spreads[strings.ToUpper(asset)]; ok {
		return s
	}
	return p.fallback
}

// Apply converts a base price into the ask and bid a resting order may execute at.
func (p *SpreadPolicy) Apply(asset string, base decimal.Decimal) (ask, bid decimal.Decimal) {
	s := p.For(asset)
	one := decimal.NewFromInt(1)
	ask = base.Mul(one.Add(s.BuyBps.Div(tenThousand)))
	bid = base.Mul(one.Sub(s.SellBps.Div(tenThousand)))
	return ask, bid
}

// MatchingPrices returns the prices the fill scan matches against: the less favorable
// of the engine's execution price and the spread-adjusted spot, per side.
func (p *SpreadPolicy) MatchingPrices(price *models.ExecutionPrice, decimals int32) (ask, bid decimal.Decimal) {
	spreadAsk, spreadBid := p.Apply(price.Asset, price.SpotPerGram)
	ask = decimal.Max(price.ExecutionAsk, spreadAsk.RoundCeil(decimals))
	bid = decimal.Min(price.ExecutionBid, spreadBid.RoundFloor(decimals))
	return ask, bid
}
