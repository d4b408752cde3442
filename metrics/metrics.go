// Package metrics registers the bridge's Prometheus instruments on the
// default registry. The reporter serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservedBlockHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridge_observed_block_height",
			Help: "Newest confirmed block index delivered to each observer",
		},
		[]string{"network"},
	)

	ObservedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_observed_events_total",
			Help: "Total number of exchange events delivered to observers",
		},
		[]string{"network"},
	)

	Exchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_exchanges_total",
			Help: "Total number of exchange records written, by outcome status",
		},
		[]string{"network", "status"},
	)

	ExchangedNCG = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_exchanged_ncg_total",
			Help: "Total NCG emitted to the counter chain",
		},
		[]string{"network"},
	)

	EmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_emission_duration_seconds",
			Help:    "Time spent dispatching one counter-chain emission",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network"},
	)
)
