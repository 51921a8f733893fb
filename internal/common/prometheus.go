package common

import "github.com/prometheus/client_golang/prometheus"

const (
	EventBusReconnects    = "eventbus_reconnects_total"
	EventBusGaps          = "eventbus_gaps_total"
	UnreadFlushes         = "unread_flushes_total"
	RateCheckFailOpen     = "rate_check_fail_open_total"
	OptimisticReverts     = "optimistic_reverts_total"
	StoreRequestTotal     = "store_requests_total"
	StoreRequestDuration  = "store_request_duration_seconds"
	FeedConnectionsActive = "feed_connections_active"
)

var (
	PromGauges = map[string]*prometheus.GaugeVec{
		FeedConnectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: FeedConnectionsActive,
			Help: "Number of change feed connections served by the store",
		}, []string{"transport"}),
	}

	PromCounters = map[string]*prometheus.CounterVec{
		EventBusReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: EventBusReconnects,
			Help: "Count of change feed reconnections",
		}, []string{}),
		EventBusGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: EventBusGaps,
			Help: "Count of gaps signalled to subscriptions",
		}, []string{"topic"}),
		UnreadFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: UnreadFlushes,
			Help: "Count of unread ledger recomputations",
		}, []string{}),
		RateCheckFailOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RateCheckFailOpen,
			Help: "Count of sends allowed because the rate check was unreachable",
		}, []string{}),
		OptimisticReverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: OptimisticReverts,
			Help: "Count of optimistic mutations reverted after a failure",
		}, []string{"kind"}),
		StoreRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: StoreRequestTotal,
			Help: "Count of all store RPC requests",
		}, []string{"method", "status"}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		StoreRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: StoreRequestDuration,
			Help: "Duration of store RPC requests",
		}, []string{"method"}),
	}
)
