package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"metal-trade-core/internal/models"
	"metal-trade-core/internal/store"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type AssetsConfig struct {
	Assets []models.Asset `yaml:"assets"`
}

func resolvePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, file), nil
}

func LoadAssetConfig(assetsFile string) ([]models.Asset, error) {
	assetsPath, err := resolvePath(assetsFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", assetsFile, err)
	}

	seen := make(map[string]bool)
	for i, asset := range config.Assets {
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		symbol := strings.ToUpper(asset.Symbol)
		if seen[symbol] {
			return nil, fmt.Errorf("asset %s listed twice", symbol)
		}
		seen[symbol] = true
		if asset.Kind != models.AssetKindMetal && asset.Kind != models.AssetKindCurrency {
			return nil, fmt.Errorf("asset %s has invalid kind %q", symbol, asset.Kind)
		}
		if asset.PriceDecimals < 0 || asset.PriceDecimals > 8 {
			return nil, fmt.Errorf("asset %s price_decimals must be within 0-8", symbol)
		}
		if asset.UnitDecimals < 0 || asset.UnitDecimals > store.MaxUnitDecimals {
			return nil, fmt.Errorf("asset %s unit_decimals must be within 0-%d", symbol, store.MaxUnitDecimals)
		}
	}

	return config.Assets, nil
}

// LoadAssetRegistry builds the registry from assetsFile, or from the compiled-in
// assets when the file does not exist. Configured unit precisions are applied to
// the ledger before the registry is returned.
func LoadAssetRegistry(assetsFile string) (*models.AssetRegistry, error) {
	assets := models.DefaultAssets()
	if assetsFile != "" {
		loaded, err := LoadAssetConfig(assetsFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			zap.L().Info("Assets file not found, using built-in assets", zap.String("file", assetsFile))
		case err != nil:
			return nil, err
		default:
			assets = loaded
		}
	}

	for _, asset := range assets {
		if asset.UnitDecimals == 0 {
			continue
		}
		if err := store.RegisterPrecision(asset.Symbol, asset.UnitDecimals); err != nil {
			return nil, err
		}
	}
	return models.NewAssetRegistry(assets), nil
}
