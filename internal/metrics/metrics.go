package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph metrics
	EdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autobahn_edge_count",
		Help: "Total number of edges in the routing graph",
	})

	TokenCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autobahn_token_count",
		Help: "Total number of tokens in the routing graph",
	})

	EdgeUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_edge_updates_total",
		Help: "Total number of edge state updates applied",
	})

	GraphSnapshotRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_graph_snapshot_rebuilds_total",
		Help: "Total number of graph snapshot rebuilds",
	})

	// Feed metrics
	AccountsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_accounts_dropped_total",
		Help: "Total number of account updates no adapter claimed",
	})

	AccountsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_accounts_malformed_total",
		Help: "Total number of account updates that failed validation",
	})

	FeedBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_feed_batches_total",
		Help: "Total number of account update batches processed",
	})

	// Liquidity metrics
	EdgesInactive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autobahn_edges_inactive",
		Help: "Number of edges currently marked inactive by depth probing",
	})

	LiquidityRefreshDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autobahn_liquidity_refresh_duration_seconds",
		Help: "Duration of the last full liquidity refresh pass",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobahn_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"swap_mode", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autobahn_quote_duration_seconds",
			Help:    "Quote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"swap_mode"},
	)

	NoRouteFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_no_route_total",
		Help: "Total number of quote requests with no viable route",
	})

	PathLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autobahn_path_length_hops",
		Help:    "Hop count of the best route per served quote",
		Buckets: []float64{0, 1, 2, 3, 4},
	})

	PathsEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autobahn_paths_evaluated",
		Help:    "Number of candidate paths evaluated per quote request",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})

	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_quote_cache_hits_total",
		Help: "Total number of quote cache hits",
	})

	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_quote_cache_misses_total",
		Help: "Total number of quote cache misses",
	})

	// Plan metrics
	PlansTooLarge = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autobahn_plans_too_large_total",
		Help: "Total number of routes rejected for exceeding the account limit",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobahn_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autobahn_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
