//nolint:gochecknoglobals
package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	vehiclesMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleettrack",
		Subsystem: "tracker",
		Name:      "vehicles",
		Help:      "The number of vehicles in the last snapshot",
	})

	movingMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleettrack",
		Subsystem: "tracker",
		Name:      "moving",
		Help:      "The number of vehicles under movement simulation",
	})
)
