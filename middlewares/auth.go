package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"

	"invoicing-backend/config"
	"invoicing-backend/database"
	"invoicing-backend/models"
)

// SessionUserKey is the session field holding the user id.
const SessionUserKey = "uid"

// NewSessionStore builds the cookie session store on top of storage.
// A nil storage falls back to fiber's in-memory store.
func NewSessionStore(cfg config.SessionConfig, storage fiber.Storage) *session.Store {
	return session.New(session.Config{
		Storage:        storage,
		Expiration:     cfg.Expiration,
		KeyLookup:      "cookie:" + cfg.CookieName,
		CookieSecure:   cfg.Secure,
		CookieHTTPOnly: true,
		CookieSameSite: cfg.SameSite,
		CookiePath:     "/",
	})
}

// RequireSession loads the user from the session cookie and populates
// c.Locals("userID") and c.Locals("user").
func RequireSession(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		uid, _ := sess.Get(SessionUserKey).(string)
		if strings.TrimSpace(uid) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
		}

		var user models.User
		if err := database.DB.WithContext(c.UserContext()).Where("id = ?", uid).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				_ = sess.Destroy()
				return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
			}
			return err
		}
		if user.IsSuspended {
			_ = sess.Destroy()
			return fiber.NewError(fiber.StatusForbidden, "account suspended")
		}

		c.Locals("userID", user.Id)
		c.Locals("user", &user)
		return c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if u := CurrentUser(c); u == nil || !u.IsAdmin {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// RequireAccess rejects users without an entitlement with 402. Must run after RequireSession.
func RequireAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		if u == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
		}
		if !u.HasAccess(time.Now()) {
			return fiber.NewError(fiber.StatusPaymentRequired, "subscription required")
		}
		return c.Next()
	}
}

// CurrentUser returns the user loaded by RequireSession, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals("user").(*models.User)
	return u
}

// CurrentUID returns the authenticated user id, or "".
func CurrentUID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}

// ResetClaims is the password-reset token payload (subject=userID).
// Fingerprint ties the token to the password hash at issue time, so the token stops
// working once the password changes.
type ResetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

const resetAudience = "password-reset"

var errResetSecret = errors.New("reset secret not configured (set SESSION_SECRET or JWT_SECRET)")

// PasswordFingerprint is a short digest of the stored password hash.
func PasswordFingerprint(u *models.User) string {
	sum := sha256.Sum256(u.Password)
	return hex.EncodeToString(sum[:8])
}

// GenerateResetToken signs a new HS256 reset token for the user.
func GenerateResetToken(secret string, u *models.User, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errResetSecret
	}
	now := time.Now()
	claims := &ResetClaims{
		Fingerprint: PasswordFingerprint(u),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Id,
			Audience:  jwt.ClaimStrings{resetAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseResetToken validates signature, method, expiry and audience.
// The caller still has to compare the fingerprint with the user's current password.
func ParseResetToken(secret, raw string) (*ResetClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errResetSecret
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims ResetClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if !claims.VerifyAudience(resetAudience, true) || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("invalid token payload")
	}
	return &claims, nil
}
