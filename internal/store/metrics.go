//nolint:gochecknoglobals
package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crack2116/fleettrack/pkg/storeerr"
)

var (
	snapshotsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleettrack",
		Subsystem: "store",
		Name:      "snapshots_total",
		Help:      "The total number of snapshots delivered to subscribers",
	}, []string{"collection"})

	errorsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleettrack",
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "The total number of store errors",
	}, []string{"op", "code"})

	activeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fleettrack",
		Subsystem: "store",
		Name:      "subscriptions",
		Help:      "The number of active subscriptions",
	}, []string{"collection"})
)

func countError(op string, err error) error {
	if err != nil {
		errorsMetric.WithLabelValues(op, string(storeerr.Classify(err))).Inc()
	}

	return err
}
