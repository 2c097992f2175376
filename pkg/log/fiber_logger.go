package log

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals
var (
	httpRequestsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleettrack",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "The latency of the HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"api", "route"})

	httpRequestsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleettrack",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of the HTTP requests.",
	}, []string{"api", "route", "method", "code"})
)

type LoggerConfig struct {
	Name string
	// UserGetter returns the authenticated user of the request, if any.
	UserGetter func(c *fiber.Ctx) string
	// Skip excludes requests from logging, not from metrics.
	Skip          func(c *fiber.Ctx) bool
	DoMetrics     bool
	LogErrorsOnly bool
}

// NewFiberLogger logs and counts requests. Chain errors are rendered here with the
// app error handler, so the recorded status is the one sent to the client.
func NewFiberLogger(conf *LoggerConfig) fiber.Handler {
	if conf == nil {
		conf = &LoggerConfig{Name: "http"}
	}

	logger := slog.Default().With(slog.String("logger", conf.Name))

	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		wt := time.Since(start)

		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()

		if conf.DoMetrics {
			observe(conf.Name, c, status, wt)
		}

		if conf.Skip != nil && conf.Skip(c) {
			return nil
		}

		attrs := []any{
			slog.String("client", c.IP()),
			slog.Int("status", status),
			slog.Int64("ms", wt.Milliseconds()),
		}

		if conf.UserGetter != nil {
			if u := conf.UserGetter(c); u != "" {
				attrs = append(attrs, slog.String("user", u))
			}
		}

		if chainErr != nil {
			attrs = append(attrs, slog.Any("error", chainErr))
		}

		msg := fmt.Sprintf("%s %s", c.Method(), c.OriginalURL())

		switch {
		case !conf.LogErrorsOnly:
			logger.Info(msg, attrs...)
		case status < 400:
			logger.Debug(msg, attrs...)
		case status < 500:
			logger.Warn(msg, attrs...)
		default:
			logger.Error(msg, attrs...)
		}

		return nil
	}
}

func observe(api string, c *fiber.Ctx, status int, t time.Duration) {
	route := c.Route().Path

	httpRequestsDuration.With(prometheus.Labels{"api": api, "route": route}).Observe(t.Seconds())

	httpRequestsCount.With(prometheus.Labels{
		"api":    api,
		"route":  route,
		"method": c.Method(),
		"code":   strconv.Itoa(status),
	}).Inc()
}
