package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sort"

	"metal-trade-core/internal/common"
	"metal-trade-core/internal/config"
	"metal-trade-core/internal/models"
	"metal-trade-core/internal/pricing"
	"metal-trade-core/internal/store"

	"go.uber.org/zap"
)

// seedPricingConfig stores the file defaults unless a config already exists
func seedPricingConfig(ctx context.Context, tradeStore store.TradeStore, defaults *models.PricingConfig, force bool) error {
	existing, err := tradeStore.GetPricingConfig(ctx)
	if err != nil {
		return err
	}
	if existing != nil && !force {
		zap.L().Info("Pricing config already stored, leaving it in place",
			zap.Int64("version", existing.Version))
		return nil
	}
	if err := tradeStore.SavePricingConfig(ctx, defaults); err != nil {
		return err
	}
	zap.L().Info("Seeded pricing config", zap.Int64("version", defaults.Version))
	return nil
}

// updateRegime applies the given modes on top of the current config and stores a new version
func updateRegime(ctx context.Context, tradeStore store.TradeStore, defaults *models.PricingConfig, volatility, hours, depth string) error {
	current, err := tradeStore.GetPricingConfig(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		current = defaults.Clone()
	}

	previous := fmt.Sprintf("%s/%s/%s", current.VolatilityMode, current.MarketHoursMode, current.DepthMode)
	if volatility != "" {
		current.VolatilityMode = models.VolatilityMode(volatility)
	}
	if hours != "" {
		current.MarketHoursMode = models.MarketHoursMode(hours)
	}
	if depth != "" {
		current.DepthMode = models.DepthMode(depth)
	}
	if err := pricing.Validate(current); err != nil {
		return err
	}
	if err := tradeStore.SavePricingConfig(ctx, current); err != nil {
		return err
	}

	zap.L().Info("Updated pricing regime",
		zap.String("previous", previous),
		zap.String("volatility", string(current.VolatilityMode)),
		zap.String("market_hours", string(current.MarketHoursMode)),
		zap.String("depth", string(current.DepthMode)),
		zap.Int64("version", current.Version))
	return nil
}

func showPricingConfig(ctx context.Context, tradeStore store.TradeStore) error {
	current, err := tradeStore.GetPricingConfig(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		fmt.Println("No pricing config stored; built-in defaults are in effect")
		return nil
	}

	common.PrintHeader(fmt.Sprintf("PRICING CONFIG v%d (updated %s)", current.Version, current.UpdatedAt.Format("2006-01-02 15:04:05")), common.DefaultWidth)
	fmt.Printf("Regime: volatility=%s market_hours=%s depth=%s\n", current.VolatilityMode, current.MarketHoursMode, current.DepthMode)
	fmt.Printf("Whale:  %s%% of over-floor margin removed at >= %s\n", current.WhaleFloorPercent, current.WhaleNotional)
	fmt.Printf("Micro:  +%s%% below %s\n", current.MicroOptimizationPercent, current.MicroNotional)
	fmt.Printf("Bid markup ratio: %s\n", current.BidMarkupRatio)

	assets := make([]string, 0, len(current.MetalMarkup))
	for asset := range current.MetalMarkup {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for i, asset := range assets {
		m := current.MetalMarkup[asset]
		fmt.Printf("%s %-6s base %s%%  floor %s%%\n", common.BoxPrefix(i == len(assets)-1), asset, m.BaseMargin, m.AbsoluteFloor)
	}

	raw, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		zap.L().Error("Error marshaling pricing config to JSON", zap.Error(err))
	} else {
		zap.L().Debug("Pricing config", zap.String("json", string(raw)))
	}
	common.PrintFooter("", common.DefaultWidth)
	return nil
}

func main() {
	ctx := context.Background()

	forceFlag := flag.Bool("force", false, "Overwrite a stored pricing config with the file defaults")
	showFlag := flag.Bool("show", false, "Print the stored pricing config and exit")
	volatilityFlag := flag.String("volatility", "", "Set volatility mode (calm|elevated|high|extreme)")
	hoursFlag := flag.String("hours", "", "Set market hours mode (london_ny|asia|weekend)")
	depthFlag := flag.String("depth", "", "Set depth mode (deep|normal|thin|shock)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	defaults, _, err := common.LoadPricingFile(cfg.Pricing.File)
	if err != nil {
		zap.L().Fatal("Failed to load pricing file", zap.Error(err))
	}

	tradeStore, err := common.InitializeStoreOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize store", zap.Error(err))
	}
	defer tradeStore.Close()

	switch {
	case *showFlag:
		err = showPricingConfig(ctx, tradeStore)
	case *volatilityFlag != "" || *hoursFlag != "" || *depthFlag != "":
		err = updateRegime(ctx, tradeStore, defaults, *volatilityFlag, *hoursFlag, *depthFlag)
	default:
		err = seedPricingConfig(ctx, tradeStore, defaults, *forceFlag)
	}
	if err != nil {
		zap.L().Fatal("Setup failed", zap.Error(err))
	}
}
