package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPodsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pod_watcher_pods_tracked",
		Help: "Number of pod IPs currently held in the map.",
	})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pod_watcher_events_total",
		Help: "Watch events applied to the map, by event type.",
	}, []string{"type"})

	metricResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pod_watcher_resyncs_total",
		Help: "Full list-then-watch cycles started.",
	})
)
