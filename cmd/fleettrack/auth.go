package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/crack2116/fleettrack/internal/auth"
)

const (
	UsernameKey = "username"
)

func getUserAuth(r *auth.FileRepository) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm:           "fleettrack",
		Authorizer:      r.CheckAuth,
		ContextUsername: UsernameKey,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics"
		},
	})
}

func Username(c *fiber.Ctx) string {
	if u, ok := c.Locals(UsernameKey).(string); ok {
		return u
	}

	return ""
}
