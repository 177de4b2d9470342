// Package metrics exposes Prometheus instrumentation for the trading core:
//   - metal_quotes_total{asset}                 execution prices handed out
//   - metal_locks_total{result}                 lock outcomes (created|rejected|insufficient|released|settled|expired)
//   - metal_fills_total{asset,side}             limit orders filled
//   - metal_fill_errors_total{asset,reason}     orders that matched but could not be filled
//   - metal_orders_expired_total{asset}         orders moved to expired by a scan or listing
//   - metal_spot_fallback_total{asset}          spot reads served from the last good price
//   - metal_spot_price{asset}                   last spot price per gram (gauge)
//   - metal_scan_duration_seconds{asset}        fill scan latency
//
// Everything is registered in init() and served at /metrics by Serve.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	quotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metal_quotes_total",
			Help: "Execution prices computed",
		},
		[]string{"asset"},
	)

	locks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metal_locks_total",
			Help: "Capital lock outcomes",
		},
		[]string{"result"},
	)

	fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metal_fills_total",
			Help: "Limit orders filled",
		},
		[]string{"asset", "side"},
	)

	fillErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metal_fill_errors_total",
			Help: "Matched limit orders that could not be filled",
		},
		[]string{"asset", "reason"},
	)

	ordersExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metal_orders_expired_total",
			Help: "Limit orders transitioned to expired",
		},
		[]string{"asset"},
	)

	spotFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metal_spot_fallback_total",
			Help: "Spot price reads served from the last good value",
		},
		[]string{"asset"},
	)

	spotPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metal_spot_price",
			Help: "Last spot price per gram",
		},
		[]string{"asset"},
	)

	scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metal_scan_duration_seconds",
			Help:    "Fill scan duration per asset",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"asset"},
	)
)

func init() {
	prometheus.MustRegister(quotes, locks, fills, fillErrors, ordersExpired)
	prometheus.MustRegister(spotFallbacks, spotPrice, scanDuration)
}

// Lock results
const (
	LockCreated      = "created"
	LockRejected     = "rejected"
	LockInsufficient = "insufficient"
	LockReleased     = "released"
	LockSettled      = "settled"
	LockExpired      = "expired"
)

func IncQuote(asset string)                { quotes.WithLabelValues(asset).Inc() }
func IncLock(result string)                { locks.WithLabelValues(result).Inc() }
func AddLocks(result string, n int)        { locks.WithLabelValues(result).Add(float64(n)) }
func IncFill(asset, side string)           { fills.WithLabelValues(asset, side).Inc() }
func IncFillError(asset, reason string)    { fillErrors.WithLabelValues(asset, reason).Inc() }
func IncOrderExpired(asset string)         { ordersExpired.WithLabelValues(asset).Inc() }
func IncSpotFallback(asset string)         { spotFallbacks.WithLabelValues(asset).Inc() }
func SetSpotPrice(asset string, v float64) { spotPrice.WithLabelValues(asset).Set(v) }

// ObserveScan records how long a fill scan of asset took since start.
func ObserveScan(asset string, start time.Time) {
	scanDuration.WithLabelValues(asset).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics and /healthz on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
