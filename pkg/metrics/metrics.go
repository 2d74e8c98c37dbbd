package metrics

import (
  "net/http"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
  // Ingest metrics
  IngestCounter = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "trader_ingest_snapshots_total",
      Help: "Total ticker snapshots applied",
    })
  IngestErrors = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "trader_ingest_errors_total",
      Help: "Ticker feed failures",
    },
    []string{"reason"},
  )
  IngestLatency = prometheus.NewHistogram(
    prometheus.HistogramOpts{
      Name:    "trader_ingest_latency_seconds",
      Help:    "Time to fetch and decode one snapshot",
      Buckets: prometheus.DefBuckets,
    })
  SnapshotSize = prometheus.NewGauge(
    prometheus.GaugeOpts{
      Name: "trader_snapshot_records",
      Help: "Records in the latest snapshot",
    })
  IngestDiscarded = prometheus.NewCounter(
    prometheus.CounterOpts{
      Name: "trader_ingest_discarded_total",
      Help: "Responses that arrived after teardown and were dropped",
    })

  // Search metrics
  FilterLatency = prometheus.NewHistogram(
    prometheus.HistogramOpts{
      Name:    "trader_filter_latency_seconds",
      Help:    "Time to recompute the filtered ticker list",
      Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05},
    })
  FilterRecomputes = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "trader_filter_recomputes_total",
      Help: "Filter recomputations by trigger",
    },
    []string{"trigger"},
  )

  // Resolver metrics
  SymbolSelections = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "trader_symbol_selections_total",
      Help: "Symbol selections by outcome",
    },
    []string{"outcome"},
  )
  SymbolFallbacks = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "trader_symbol_fallbacks_total",
      Help: "Fallbacks to the default symbol by cause",
    },
    []string{"cause"},
  )
  ChartMounts = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "trader_chart_mounts_total",
      Help: "Chart mount attempts by status",
    },
    []string{"status"},
  )

  // Ledger metrics
  TradesTotal = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "trader_trades_total",
      Help: "Trade confirmations by side and result",
    },
    []string{"type", "result"},
  )
  WalletBalance = prometheus.NewGauge(
    prometheus.GaugeOpts{
      Name: "trader_wallet_balance_usdt",
      Help: "Simulated wallet balance",
    })

  // API metrics
  APIRequestDuration = prometheus.NewHistogramVec(
    prometheus.HistogramOpts{
      Name:    "api_request_duration_seconds",
      Help:    "API request duration",
      Buckets: prometheus.DefBuckets,
    },
    []string{"method", "endpoint", "status"},
  )
  APIRequestTotal = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "api_requests_total",
      Help: "Total API requests",
    },
    []string{"method", "endpoint", "status"},
  )
  ActiveConnections = prometheus.NewGauge(
    prometheus.GaugeOpts{
      Name: "system_active_connections",
      Help: "Number of open websocket subscribers",
    })

  // Redis metrics
  RedisOperationDuration = prometheus.NewHistogramVec(
    prometheus.HistogramOpts{
      Name:    "redis_operation_duration_seconds",
      Help:    "Redis operation duration",
      Buckets: prometheus.DefBuckets,
    },
    []string{"operation", "status"},
  )
  RedisErrors = prometheus.NewCounterVec(
    prometheus.CounterOpts{
      Name: "redis_errors_total",
      Help: "Total Redis errors",
    },
    []string{"operation"},
  )
)

func init() {
  // MustRegister panics if registration fails (e.g. duplicate)
  prometheus.MustRegister(
    IngestCounter, IngestErrors, IngestLatency, SnapshotSize, IngestDiscarded,
    FilterLatency, FilterRecomputes,
    SymbolSelections, SymbolFallbacks, ChartMounts,
    TradesTotal, WalletBalance,
    APIRequestDuration, APIRequestTotal, ActiveConnections,
    RedisOperationDuration, RedisErrors,
  )
}

// Handler serves the default registry.
func Handler() http.Handler {
  return promhttp.Handler()
}

// Status maps an error to the "success"/"error" label value.
func Status(err error) string {
  if err != nil {
    return "error"
  }
  return "success"
}
