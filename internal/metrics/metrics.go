package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouraview_api_calls_total",
			Help: "Total Oura API calls",
		},
		[]string{"endpoint", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ouraview_api_latency_seconds",
			Help:    "Oura API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	SensorUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouraview_sensor_updates_total",
			Help: "Total sensor update ticks by outcome",
		},
		[]string{"sensor", "result"},
	)

	BackfillSubstitutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouraview_backfill_substitutions_total",
			Help: "Monitored dates answered from a backfill substitute",
		},
		[]string{"sensor"},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouraview_token_refreshes_total",
			Help: "OAuth token refresh attempts by result",
		},
		[]string{"result"},
	)
)
