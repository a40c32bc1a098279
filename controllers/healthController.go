package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"invoicing-backend/database"
)

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready reports 503 while the database does not answer a ping.
func Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := database.Ping(ctx); err != nil {
		database.ReportError(err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": "database unreachable"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
