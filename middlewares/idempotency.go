package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/models"
)

// Idempotency processes Idempotency-Key for mutating HTTP methods, per user.
// It uses its own short transactions so the stored record survives a rolled-back
// request transaction.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		uid := CurrentUID(c)
		if uid == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
		}

		path := c.OriginalURL() // includes query string
		reqHash := requestHash(method, path, c.Body(), uid)
		db := database.DB.WithContext(c.UserContext())

		// ---- Phase 1: read or create the "pending" record
		var existing models.IdempotencyKey
		replay := false
		err := db.Transaction(func(tx *gorm.DB) error {
			err := tx.Where("uid = ? AND key = ?", uid, key).Take(&existing).Error
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				rec := models.IdempotencyKey{
					UID:         uid,
					Key:         key,
					RequestHash: reqHash,
					Method:      method,
					Path:        path,
				}
				if e2 := tx.Create(&rec).Error; e2 != nil {
					// Could be a unique race: read again
					if e3 := tx.Where("uid = ? AND key = ?", uid, key).Take(&existing).Error; e3 != nil {
						return e2
					}
				} else {
					existing = rec
				}
			}

			if existing.RequestHash != reqHash {
				return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
			}
			replay = existing.ResponseStatus != 0 && existing.ResponseBody != nil
			return nil
		})
		if err != nil {
			return err
		}
		if replay {
			c.Set("Idempotent-Replayed", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		// ---- Run the handler once
		if err := c.Next(); err != nil {
			forget(db, uid, key)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			forget(db, uid, key)
			return nil
		}

		// ---- Phase 2: store the response (best effort)
		now := time.Now().UTC()
		blob := append([]byte(nil), c.Response().Body()...)
		if err := db.Model(&models.IdempotencyKey{}).
			Where("uid = ? AND key = ?", uid, key).
			Updates(map[string]any{
				"response_status": status,
				"response_body":   blob,
				"completed_at":    &now,
			}).Error; err != nil {
			logger.Component("idempotency").WithError(err).Warn("could not store response")
		}
		return nil
	}
}

// requestHash is sha256 of method|path|body|uid.
func requestHash(method, path string, body []byte, uid string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(uid))
	return hex.EncodeToString(h.Sum(nil))
}

// forget drops a pending record so a failed request can be retried with the same key.
func forget(db *gorm.DB, uid, key string) {
	if err := db.Where("uid = ? AND key = ? AND response_status = 0", uid, key).
		Delete(&models.IdempotencyKey{}).Error; err != nil {
		logger.Component("idempotency").WithError(err).Warn("could not drop pending key")
	}
}
