//nolint:gochecknoglobals
package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscribersMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleettrack",
		Subsystem: "notify",
		Name:      "feeds",
		Help:      "The number of live notification feeds",
	})

	createdMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleettrack",
		Subsystem: "notify",
		Name:      "created",
		Help:      "The number of created notifications",
	}, []string{"category"})

	readMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleettrack",
		Subsystem: "notify",
		Name:      "read",
		Help:      "The number of notifications marked read",
	})
)
