package main

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/crack2116/fleettrack/internal/auth"
	"github.com/crack2116/fleettrack/internal/notify"
	"github.com/crack2116/fleettrack/internal/wshandler"
)

func getWsHandler(app *App) fiber.Handler {
	upgrade := websocket.New(func(c *websocket.Conn) {
		user, _ := c.Locals(UsernameKey).(string)
		name := user + "_" + uuid.NewString()

		h := wshandler.NewHandler(app.logger, name, c)

		state := auth.NewState()

		h.OnStop(func() {
			app.removeHandler(name)
			state.SignOut()
		})

		app.addHandler(h)
		h.SendVehicles(app.tracker.Vehicles())

		w := app.notify.Watch(state, func(f *notify.Feed) {
			h.SendFeed(f)
		})
		defer w.Close()

		state.SignIn(user)

		h.Listen()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		return upgrade(c)
	}
}
