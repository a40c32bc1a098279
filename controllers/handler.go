package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"gorm.io/gorm"

	"invoicing-backend/billing"
	"invoicing-backend/config"
	"invoicing-backend/database"
	"invoicing-backend/events"
	"invoicing-backend/geo"
	"invoicing-backend/mailer"
	"invoicing-backend/middlewares"
	"invoicing-backend/storage"
)

// Handler carries the collaborators of the handlers that talk to the outside world.
// Plain CRUD handlers are package functions and need none of it.
type Handler struct {
	Config   *config.Config
	Sessions *session.Store
	Billing  billing.Gateway
	Mailer   mailer.Provider
	Uploads  storage.Uploader
	Geo      geo.Locator
	Events   events.Publisher
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// publish sends a domain event once the request transaction has committed.
func (h *Handler) publish(c *fiber.Ctx, eventType string, data any) {
	if h.Events == nil {
		return
	}
	uid := middlewares.CurrentUID(c)
	middlewares.AfterCommit(c, func() {
		h.Events.Publish(c.UserContext(), uid, eventType, data)
	})
}

// tenantDB returns the request transaction together with the caller's uid.
func tenantDB(c *fiber.Ctx) (*gorm.DB, string, error) {
	uid := middlewares.CurrentUID(c)
	if uid == "" {
		return nil, "", fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	db, err := database.GetTenantDB(c)
	if err != nil {
		return nil, "", err
	}
	return db, uid, nil
}

func idParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// notFound turns gorm.ErrRecordNotFound into a 404 naming what was missing.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, what+" not found")
	}
	return err
}

func message(c *fiber.Ctx, msg string) error {
	return c.JSON(fiber.Map{"message": msg})
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

// parseDate accepts a calendar date or an RFC 3339 timestamp; empty yields def.
func parseDate(field, s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s, expected YYYY-MM-DD", field))
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// likePattern builds a case-insensitive LIKE pattern for search.
func likePattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(q)
	return "%" + q + "%"
}
