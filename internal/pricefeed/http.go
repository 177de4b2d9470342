package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type spotResponse struct {
	Unit   string                     `json:"unit"`
	Prices map[string]decimal.Decimal `json:"prices"`
}

// HTTPFeed polls a JSON endpoint of the form
//
//	{"unit": "gram", "prices": {"AUXG": 95.12, "AUXS": "1.07"}}
type HTTPFeed struct {
	client *resty.Client
	url    string
}

func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100*time.Millisecond).
		SetHeader("Accept", "application/json")
	return &HTTPFeed{client: client, url: url}
}

func (f *HTTPFeed) SpotPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	var body spotResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("price feed request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("price feed returned %s", resp.Status())
	}

	prices, err := normalize(body.Unit, body.Prices)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("Fetched spot prices", zap.String("url", f.url), zap.Int("count", len(prices)))
	return prices, nil
}
