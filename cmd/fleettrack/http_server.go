package main

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crack2116/fleettrack/pkg/log"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

type HttpServer struct {
	f    *fiber.App
	addr string
	log  *slog.Logger
}

func NewHttpServer(app *App, addr string) *HttpServer {
	srv := &HttpServer{
		addr: addr,
		log:  slog.Default().With("logger", "http"),
	}

	srv.f = fiber.New(fiber.Config{
		EnablePrintRoutes:     false,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	srv.f.Use(log.NewFiberLogger(&log.LoggerConfig{
		Name:          "api",
		UserGetter:    Username,
		DoMetrics:     true,
		LogErrorsOnly: true,
		Skip: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics"
		},
	}))

	srv.f.Use(getUserAuth(app.users))

	srv.f.Get("/vehicle", getVehiclesHandler(app))
	srv.f.Post("/vehicle", createVehicleHandler(app))
	srv.f.Put("/vehicle/:id", updateVehicleHandler(app))
	srv.f.Post("/vehicle/:id/route", routeHandler(app))
	srv.f.Post("/vehicle/:id/arrived", arrivedHandler(app))

	srv.f.Get("/notification", getFeedHandler(app))
	srv.f.Post("/notification/read_all", readAllHandler(app))
	srv.f.Post("/notification/:id/read", readHandler(app))

	srv.f.Get("/ws", getWsHandler(app))
	srv.f.Get("/metrics", getMetricsHandler())

	return srv
}

func (srv *HttpServer) Address() string {
	return srv.addr
}

func (srv *HttpServer) Listen() error {
	srv.log.Info("listening " + srv.addr)

	return srv.f.Listen(srv.addr)
}

func (srv *HttpServer) Shutdown() error {
	return srv.f.Shutdown()
}

func getMetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{DisableCompression: true},
	))
}

func httpStatus(code storeerr.Code) int {
	switch code {
	case storeerr.NotFound:
		return fiber.StatusNotFound
	case storeerr.Unauthenticated:
		return fiber.StatusUnauthorized
	case storeerr.PermissionDenied:
		return fiber.StatusForbidden
	case storeerr.InvalidArgument:
		return fiber.StatusBadRequest
	case storeerr.AlreadyExists, storeerr.FailedPrecondition:
		return fiber.StatusConflict
	case storeerr.ResourceExhausted:
		return fiber.StatusTooManyRequests
	case storeerr.Unavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders errors as {code, message}.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"code": "http", "message": fe.Message})
	}

	code := storeerr.Classify(err)

	return c.Status(httpStatus(code)).JSON(fiber.Map{"code": code, "message": storeerr.Message(err)})
}
