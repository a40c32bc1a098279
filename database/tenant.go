package database

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetTenantDB returns the *gorm.DB a handler should use.
// Prefer the per-request TX (middlewares.TenantTx), else fall back to the shared pool.
// Either way, callers still scope their queries with ForUser.
func GetTenantDB(c *fiber.Ctx) (*gorm.DB, error) {
	if v := c.Locals("tx"); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx, nil
		}
	}
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	return DB.WithContext(c.UserContext()), nil
}

// ForUser restricts a query to rows owned by uid.
func ForUser(uid string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("uid = ?", uid)
	}
}

// Active hides soft-deleted rows.
func Active(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}
