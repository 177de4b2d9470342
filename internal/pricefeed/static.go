package pricefeed

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// StaticFeed serves fixed prices, from a file or from memory.
type StaticFeed struct {
	prices map[string]decimal.Decimal
}

type staticFile struct {
	Unit   string            `yaml:"unit"`
	Prices map[string]string `yaml:"prices"`
}

func NewStaticFeed(prices map[string]decimal.Decimal) *StaticFeed {
	normalized, _ := normalize("", prices)
	return &StaticFeed{prices: normalized}
}

// LoadStaticFeed reads a YAML price file:
//
//	unit: gram
//	prices:
//	  AUXG: "95.12"
func LoadStaticFeed(path string) (*StaticFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	var file staticFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}

	raw := make(map[string]decimal.Decimal, len(file.Prices))
	for symbol, v := range file.Prices {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for %s: %w", v, symbol, err)
		}
		raw[symbol] = price
	}
	prices, err := normalize(file.Unit, raw)
	if err != nil {
		return nil, err
	}
	return &StaticFeed{prices: prices}, nil
}

func (f *StaticFeed) SpotPrices(_ context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return out, nil
}
