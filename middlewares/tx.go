package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/database"
	"invoicing-backend/logger"
)

// TenantTx opens a per-request DB transaction for the authenticated user.
// Order: run AFTER RequireSession() (so userID is present),
// and AFTER Idempotency() (so idempotency records aren't tied to the handler TX).
func TenantTx() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		uid, _ := c.Locals("userID").(string)
		if strings.TrimSpace(uid) == "" {
			// Public endpoints have no user; just proceed.
			return c.Next()
		}

		tx := database.DB.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			database.ReportError(tx.Error)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		// Ensure we always cleanup.
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so the recover middleware can catch
			}
			if err != nil {
				_ = tx.Rollback()
				return
			}
			// handlers that answered with an error status without returning an error
			if c.Response().StatusCode() >= fiber.StatusBadRequest {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				logger.Component("tx").WithError(e).WithField("uid", uid).Error("tx commit failed")
				database.ReportError(e)
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
				return
			}
			if hooks, ok := c.Locals(afterCommitKey).([]func()); ok {
				for _, fn := range hooks {
					fn()
				}
			}
		}()

		// Make the TX available to handlers via database.GetTenantDB(c).
		c.Locals("tx", tx)

		err = c.Next()
		return err
	}
}

const afterCommitKey = "afterCommit"

// AfterCommit runs fn once the request transaction has committed; it is dropped on
// rollback. Without a request transaction fn runs immediately.
func AfterCommit(c *fiber.Ctx, fn func()) {
	if _, ok := c.Locals("tx").(*gorm.DB); !ok {
		fn()
		return
	}
	hooks, _ := c.Locals(afterCommitKey).([]func())
	c.Locals(afterCommitKey, append(hooks, fn))
}
