package main

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"

	"github.com/crack2116/fleettrack/internal/tracking"
	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

type routeRequest struct {
	Origin *model.Pos `json:"origin"`
	Dest   *model.Pos `json:"dest"`
}

func getVehiclesHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		res := fiber.Map{
			"loading":   app.tracker.Loading(),
			"vehicles":  model.WebList(app.tracker.Vehicles()),
			"movements": app.tracker.Movements(),
		}

		if err := app.tracker.Err(); err != nil {
			res["error"] = storeerr.Message(err)
			res["code"] = storeerr.Classify(err)
		}

		return ctx.JSON(res)
	}
}

// vehicleFields keeps known vehicle fields and checks their types.
func vehicleFields(body map[string]any) (map[string]any, error) {
	fields := make(map[string]any)

	for k, v := range body {
		switch k {
		case "plate", "status", "model", "driver":
			s, err := cast.ToStringE(v)
			if err != nil {
				return nil, storeerr.Errorf(storeerr.InvalidArgument, "vehicle", "bad %s", k)
			}

			fields[k] = strings.TrimSpace(s)
		case "lat", "lon":
			if v == nil {
				fields[k] = nil
				continue
			}

			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, storeerr.Errorf(storeerr.InvalidArgument, "vehicle", "bad %s", k)
			}

			fields[k] = f
		}
	}

	if s, ok := fields["status"].(string); ok {
		fields["status"] = string(model.ParseStatus(s))
	}

	return fields, nil
}

func createVehicleHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		body := make(map[string]any)

		if err := ctx.BodyParser(&body); err != nil {
			return storeerr.New(storeerr.InvalidArgument, "create", err)
		}

		fields, err := vehicleFields(body)
		if err != nil {
			return err
		}

		if cast.ToString(fields["plate"]) == "" {
			return storeerr.Errorf(storeerr.InvalidArgument, "create", "plate is required")
		}

		id, err := app.store.Create(ctx.Context(), model.VehiclesCollection, fields)
		if err != nil {
			return err
		}

		return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}

func updateVehicleHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		body := make(map[string]any)

		if err := ctx.BodyParser(&body); err != nil {
			return storeerr.New(storeerr.InvalidArgument, "update", err)
		}

		fields, err := vehicleFields(body)
		if err != nil {
			return err
		}

		if len(fields) == 0 {
			return storeerr.Errorf(storeerr.InvalidArgument, "update", "nothing to update")
		}

		if err := app.store.Update(ctx.Context(), model.VehiclesCollection, ctx.Params("id"), fields); err != nil {
			return err
		}

		return ctx.JSON(fiber.Map{"id": ctx.Params("id")})
	}
}

func routeHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := ctx.Params("id")

		var req routeRequest

		if err := ctx.BodyParser(&req); err != nil {
			return storeerr.New(storeerr.InvalidArgument, "route", err)
		}

		if req.Dest == nil {
			return storeerr.Errorf(storeerr.InvalidArgument, "route", "dest is required")
		}

		v := app.tracker.Get(id)
		if v == nil {
			return storeerr.Errorf(storeerr.NotFound, "route", "no vehicle %s", id)
		}

		origin := v.Pos
		if req.Origin != nil {
			origin = *req.Origin
		}

		ok, err := app.tracker.AssignRoute(id, origin, *req.Dest)

		switch {
		case errors.Is(err, tracking.ErrCapacity):
			return storeerr.New(storeerr.ResourceExhausted, "route", err)
		case err != nil:
			return err
		case !ok:
			return storeerr.Errorf(storeerr.NotFound, "route", "no vehicle %s", id)
		}

		app.notifyRoute(ctx.Context(), Username(ctx), v, *req.Dest)

		return ctx.JSON(app.tracker.Get(id).ToWeb())
	}
}

func arrivedHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := ctx.Params("id")

		if app.tracker.Get(id) == nil {
			return storeerr.Errorf(storeerr.NotFound, "arrived", "no vehicle %s", id)
		}

		changed := app.tracker.DestinationReached(id)

		return ctx.JSON(fiber.Map{"changed": changed, "vehicle": app.tracker.Get(id).ToWeb()})
	}
}

func getFeedHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sub := app.notify.Subscribe(Username(ctx), nil)
		defer sub.Close()

		f := sub.Feed()
		if f.Err != nil {
			return f.Err
		}

		return ctx.JSON(f.ToWeb())
	}
}

func readHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := ctx.Params("id")

		rec, err := app.store.Get(ctx.Context(), model.NotificationsCollection, id)
		if err != nil {
			return err
		}

		if model.NotificationFromRecord(rec.ID, rec.Fields).UserID != Username(ctx) {
			return storeerr.Errorf(storeerr.PermissionDenied, "read", "notification %s", id)
		}

		if err := app.notify.MarkRead(ctx.Context(), id); err != nil {
			return err
		}

		return ctx.JSON(fiber.Map{"id": id, "read": true})
	}
}

func readAllHandler(app *App) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		res, err := app.notify.MarkAllRead(ctx.Context(), Username(ctx))
		if err != nil {
			return err
		}

		return ctx.JSON(fiber.Map{
			"total":   res.Total,
			"updated": res.Updated,
			"failed":  res.FailedIDs(),
		})
	}
}
