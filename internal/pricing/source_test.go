package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"metal-trade-core/internal/models"
)

type fakeConfigStore struct {
	cfg   *models.PricingConfig
	err   error
	calls int
}

func (f *fakeConfigStore) GetPricingConfig(_ context.Context) (*models.PricingConfig, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cfg.Clone(), nil
}

func newTestSource(store *fakeConfigStore) (*ConfigSource, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := NewConfigSource(store, nil, 5*time.Second)
	source.now = func() time.Time { return now }
	return source, &now
}

func TestConfigSource_DefaultsWhenNothingStored(t *testing.T) {
	source, _ := newTestSource(&fakeConfigStore{})

	cfg := source.Current(context.Background())
	if cfg.VolatilityMode != models.VolatilityCalm || len(cfg.MetalMarkup) != 4 {
		t.Fatalf("Expected defaults, got %+v", cfg)
	}
}

func TestConfigSource_CachesForTTL(t *testing.T) {
	stored := DefaultConfig()
	stored.Version = 3
	stored.VolatilityMode = models.VolatilityHigh
	fake := &fakeConfigStore{cfg: stored}
	source, now := newTestSource(fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if cfg := source.Current(ctx); cfg.Version != 3 {
			t.Fatalf("Expected version 3, got %d", cfg.Version)
		}
	}
	if fake.calls != 1 {
		t.Fatalf("Expected one store read within ttl, got %d", fake.calls)
	}

	*now = now.Add(6 * time.Second)
	fake.cfg.Version = 4
	if cfg := source.Current(ctx); cfg.Version != 4 {
		t.Fatalf("Expected refreshed version 4, got %d", cfg.Version)
	}

	source.Invalidate()
	source.Current(ctx)
	if fake.calls != 3 {
		t.Fatalf("Expected invalidate to force a read, got %d calls", fake.calls)
	}
}

func TestConfigSource_FallsBackToLastGood(t *testing.T) {
	stored := DefaultConfig()
	stored.Version = 7
	fake := &fakeConfigStore{cfg: stored}
	source, now := newTestSource(fake)
	ctx := context.Background()

	source.Current(ctx)
	*now = now.Add(time.Minute)
	fake.err = errors.New("connection refused")

	if cfg := source.Current(ctx); cfg.Version != 7 {
		t.Fatalf("Expected last good version 7, got %d", cfg.Version)
	}

	fake.err = nil
	fake.cfg.Version = 8
	fake.cfg.DepthMode = "bottomless"
	if cfg := source.Current(ctx); cfg.Version != 7 {
		t.Fatalf("Expected invalid config to be ignored, got version %d", cfg.Version)
	}
}

func TestConfigSource_ReturnsCopies(t *testing.T) {
	source, _ := newTestSource(&fakeConfigStore{})
	ctx := context.Background()

	cfg := source.Current(ctx)
	cfg.MetalMarkup["AUXG"] = models.MetalMarkup{}
	if source.Current(ctx).MetalMarkup["AUXG"].BaseMargin.IsZero() {
		t.Fatalf("Mutating a returned config must not affect the cache")
	}
}
