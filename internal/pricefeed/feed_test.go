package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHTTPFeedParsesGramPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":{"auxg":95.12,"AUXS":"1.07","AUXPT":0}}`))
	}))
	defer srv.Close()

	prices, err := NewHTTPFeed(srv.URL, time.Second).SpotPrices(context.Background())
	if err != nil {
		t.Fatalf("SpotPrices failed: %v", err)
	}
	if !prices["AUXG"].Equal(decimal.RequireFromString("95.12")) {
		t.Fatalf("expected AUXG 95.12, got %s", prices["AUXG"])
	}
	if !prices["AUXS"].Equal(decimal.RequireFromString("1.07")) {
		t.Fatalf("expected AUXS 1.07, got %s", prices["AUXS"])
	}
	if _, ok := prices["AUXPT"]; ok {
		t.Fatalf("zero price should be dropped")
	}
}

func TestHTTPFeedConvertsOunces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unit":"troy_ounce","prices":{"AUXG":"3110.34768"}}`))
	}))
	defer srv.Close()

	prices, err := NewHTTPFeed(srv.URL, time.Second).SpotPrices(context.Background())
	if err != nil {
		t.Fatalf("SpotPrices failed: %v", err)
	}
	if !prices["AUXG"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100 per gram, got %s", prices["AUXG"])
	}
}

func TestHTTPFeedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewHTTPFeed(srv.URL, time.Second).SpotPrices(context.Background()); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestLoadStaticFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	content := "unit: gram\nprices:\n  AUXG: \"95.12\"\n  auxpd: \"31.40\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	feed, err := LoadStaticFeed(path)
	if err != nil {
		t.Fatalf("LoadStaticFeed failed: %v", err)
	}
	prices, _ := feed.SpotPrices(context.Background())
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if !prices["AUXPD"].Equal(decimal.RequireFromString("31.4")) {
		t.Fatalf("expected AUXPD 31.40, got %s", prices["AUXPD"])
	}
}

func TestLoadStaticFeedRejectsBadUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	if err := os.WriteFile(path, []byte("unit: stone\nprices:\n  AUXG: \"1\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadStaticFeed(path); err == nil {
		t.Fatalf("expected unit error")
	}
}
