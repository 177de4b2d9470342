/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "strings"

// AssetKind distinguishes tradable metals from settlement currencies
type AssetKind string

const (
	AssetKindMetal    AssetKind = "metal"
	AssetKindCurrency AssetKind = "currency"
)

// Asset describes a supported token. Quantities live in the ledger, not here.
type Asset struct {
	Symbol        string    `yaml:"symbol" json:"symbol"`
	Name          string    `yaml:"name" json:"name"`
	Kind          AssetKind `yaml:"kind" json:"kind"`
	PriceDecimals int32     `yaml:"price_decimals" json:"price_decimals"`
	// UnitDecimals is the ledger precision; zero keeps the built-in default.
	UnitDecimals int32 `yaml:"unit_decimals" json:"unit_decimals,omitempty"`
}

// DefaultAssets returns the compiled-in asset set: four metal tokens priced per gram
// and the settlement currencies accepted as payment.
func DefaultAssets() []Asset {
	return []Asset{
		{Symbol: "AUXG", Name: "Gold", Kind: AssetKindMetal, PriceDecimals: 2, UnitDecimals: 6},
		{Symbol: "AUXS", Name: "Silver", Kind: AssetKindMetal, PriceDecimals: 4, UnitDecimals: 6},
		{Symbol: "AUXPT", Name: "Platinum", Kind: AssetKindMetal, PriceDecimals: 2, UnitDecimals: 6},
		{Symbol: "AUXPD", Name: "Palladium", Kind: AssetKindMetal, PriceDecimals: 2, UnitDecimals: 6},
		{Symbol: "AUXM", Name: "Auxite Money", Kind: AssetKindCurrency, PriceDecimals: 2, UnitDecimals: 6},
		{Symbol: "USDM", Name: "USD Stable Unit", Kind: AssetKindCurrency, PriceDecimals: 2, UnitDecimals: 6},
		{Symbol: "USDT", Name: "Tether USD", Kind: AssetKindCurrency, PriceDecimals: 2, UnitDecimals: 6},
		{Symbol: "USD", Name: "US Dollar", Kind: AssetKindCurrency, PriceDecimals: 2, UnitDecimals: 2},
	}
}

// AssetRegistry answers membership questions about the supported asset set
type AssetRegistry struct {
	bySymbol map[string]Asset
	metals   []string
}

// NewAssetRegistry indexes assets by their upper-case symbol
func NewAssetRegistry(assets []Asset) *AssetRegistry {
	r := &AssetRegistry{bySymbol: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		a.Symbol = strings.ToUpper(a.Symbol)
		r.bySymbol[a.Symbol] = a
		if a.Kind == AssetKindMetal {
			r.metals = append(r.metals, a.Symbol)
		}
	}
	return r
}

// Lookup returns the asset for symbol
func (r *AssetRegistry) Lookup(symbol string) (Asset, bool) {
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

func (r *AssetRegistry) IsMetal(symbol string) bool {
	a, ok := r.Lookup(symbol)
	return ok && a.Kind == AssetKindMetal
}

func (r *AssetRegistry) IsCurrency(symbol string) bool {
	a, ok := r.Lookup(symbol)
	return ok && a.Kind == AssetKindCurrency
}

// Metals lists metal symbols in registration order
func (r *AssetRegistry) Metals() []string {
	out := make([]string, len(r.metals))
	copy(out, r.metals)
	return out
}

// PriceDecimals returns the rounding scale for prices quoted in symbol, default 2
func (r *AssetRegistry) PriceDecimals(symbol string) int32 {
	if a, ok := r.Lookup(symbol); ok && a.PriceDecimals > 0 {
		return a.PriceDecimals
	}
	return 2
}
