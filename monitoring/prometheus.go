package monitoring

import (
	"net/http"
	"time"

	"github.com/mezonai/mmn-wallet/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type SettlementOutcome string

var (
	SettlementSettled SettlementOutcome = "settled"
	SettlementRetried SettlementOutcome = "retried"
	SettlementFailed  SettlementOutcome = "failed"
)

type walletPromMetrics struct {
	queueDepth        prometheus.Gauge
	settlementCount   *prometheus.CounterVec
	scannedSlotCount  prometheus.Counter
	detectedPayments  prometheus.Counter
	settlementLatency prometheus.Histogram
	panicCount        prometheus.Counter
}

func newWalletPromMetrics() *walletPromMetrics {
	return &walletPromMetrics{
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mwallet_queue_depth",
				Help: "The number of pending payments waiting in the offline queue",
			},
		),
		settlementCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mwallet_settlement_count",
				Help: "The total number of settlement attempts by outcome",
			},
			[]string{"outcome"},
		),
		scannedSlotCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mwallet_scanned_slot_count",
				Help: "The total number of ledger slots scanned for incoming stealth payments",
			},
		),
		detectedPayments: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mwallet_detected_payment_count",
				Help: "The total number of verified incoming stealth payments",
			},
		),
		settlementLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "mwallet_settlement_latency_seconds",
				Help: "Latency in seconds from settlement submission until ledger confirmation",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mwallet_panic_count",
				Help: "The total number of recovered panics in background tasks",
			},
		),
	}
}

var metrics = newWalletPromMetrics()

func SetQueueDepth(depth int) {
	metrics.queueDepth.Set(float64(depth))
}

func IncreaseSettlementCount(outcome SettlementOutcome) {
	metrics.settlementCount.WithLabelValues(string(outcome)).Inc()
}

func AddScannedSlots(n uint64) {
	metrics.scannedSlotCount.Add(float64(n))
}

func IncreaseDetectedPayments() {
	metrics.detectedPayments.Inc()
}

func ObserveSettlementLatency(start time.Time) {
	metrics.settlementLatency.Observe(time.Since(start).Seconds())
}

func IncreasePanicCount() {
	metrics.panicCount.Inc()
}

// ServeMetrics exposes the prometheus endpoint on addr. Blocking.
func ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logx.Error("MONITORING", "metrics server stopped: ", err)
	}
}
