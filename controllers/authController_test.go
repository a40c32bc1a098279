package controllers_test

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicing-backend/models"
	"invoicing-backend/testutil"
)

type meResponse struct {
	User      models.User `json:"user"`
	HasAccess bool        `json:"has_access"`
}

func TestRegisterStartsTrialAndSession(t *testing.T) {
	env := newEnv(t)

	resp := env.request(http.MethodPost, "/api/register", "", fiber.Map{
		"first_name": "Alice",
		"last_name":  "Smith",
		"email":      "Alice@Example.com",
		"password":   "correct horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)
	var reg meResponse
	decode(t, resp, &reg)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, models.SubscriptionTrialing, reg.User.SubscriptionStatus)
	require.NotNil(t, reg.User.TrialEndsAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *reg.User.TrialEndsAt, time.Minute)
	assert.True(t, reg.HasAccess)

	resp = env.request(http.MethodGet, "/api/me", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me meResponse
	decode(t, resp, &me)
	assert.Equal(t, reg.User.Id, me.User.Id)

	resp = env.request(http.MethodPost, "/api/register", "", fiber.Map{
		"first_name": "Other", "email": "alice@example.com", "password": "another password",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	env := newEnv(t)

	resp := env.request(http.MethodPost, "/api/register", "", fiber.Map{
		"first_name": "Alice", "email": "alice@example.com", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "min", body.Fields["password"])

	resp = env.request(http.MethodPost, "/api/register", "", fiber.Map{
		"first_name": "Alice", "email": "alice@example.com", "password": "long enough", "password_confirm": "different",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginAndLogout(t *testing.T) {
	env := newEnv(t)
	u := testutil.CreateUser(t, env.db, "alice@example.com")

	resp := env.request(http.MethodPost, "/api/login", "", fiber.Map{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.request(http.MethodPost, "/api/login", "", fiber.Map{"email": "nobody@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cookie := env.login("ALICE@example.com", "secret123")

	var stored models.User
	require.NoError(t, env.db.First(&stored, "id = ?", u.Id).Error)
	assert.NotNil(t, stored.LastLoginAt)

	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/me", cookie, nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.request(http.MethodPost, "/api/logout", cookie, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.request(http.MethodGet, "/api/me", cookie, nil).StatusCode)
}

func TestSuspendedUserIsLockedOut(t *testing.T) {
	env := newEnv(t)
	u, cookie := env.signIn("alice@example.com")

	require.NoError(t, env.db.Model(u).Update("is_suspended", true).Error)

	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/customers", cookie, nil).StatusCode)
	resp := env.request(http.MethodPost, "/api/login", "", fiber.Map{"email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExpiredTrialGetsPaymentRequired(t *testing.T) {
	env := newEnv(t)
	u, cookie := env.signIn("alice@example.com")

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, env.db.Model(u).Update("trial_ends_at", past).Error)

	assert.Equal(t, http.StatusPaymentRequired, env.request(http.MethodGet, "/api/customers", cookie, nil).StatusCode)
	assert.Equal(t, http.StatusPaymentRequired, env.request(http.MethodGet, "/api/invoices", cookie, nil).StatusCode)

	// account and billing routes stay reachable so the user can subscribe
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/users/me", cookie, nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/billing/status", cookie, nil).StatusCode)

	resp := env.request(http.MethodGet, "/api/me", cookie, nil)
	var me meResponse
	decode(t, resp, &me)
	assert.False(t, me.HasAccess)
}

var tokenPattern = regexp.MustCompile(`token=([^\s"<]+)`)

func TestPasswordResetFlow(t *testing.T) {
	env := newEnv(t)
	testutil.CreateUser(t, env.db, "alice@example.com")

	resp := env.request(http.MethodPost, "/api/forgot-password", "", fiber.Map{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.mail.messages())

	resp = env.request(http.MethodPost, "/api/forgot-password", "", fiber.Map{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent := env.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "http://app.example.com/reset-password?token=")

	m := tokenPattern.FindStringSubmatch(sent[0].Body)
	require.Len(t, m, 2)
	token, err := url.QueryUnescape(m[1])
	require.NoError(t, err)

	resp = env.request(http.MethodPost, "/api/reset-password", "", fiber.Map{"token": "garbage", "password": "brand new secret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(http.MethodPost, "/api/reset-password", "", fiber.Map{"token": token, "password": "brand new secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.login("alice@example.com", "brand new secret")
	resp = env.request(http.MethodPost, "/api/login", "", fiber.Map{"email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// the token is single use
	resp = env.request(http.MethodPost, "/api/reset-password", "", fiber.Map{"token": token, "password": "yet another one"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfileAndPasswordChange(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")

	resp := env.request(http.MethodPut, "/api/users/me", cookie, fiber.Map{"company_name": " Alice Consulting ", "vat_number": "DE123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var u models.User
	decode(t, resp, &u)
	assert.Equal(t, "Alice Consulting", u.CompanyName)
	assert.Equal(t, "DE123", u.VatNumber)

	resp = env.request(http.MethodPut, "/api/users/me/password", cookie, fiber.Map{
		"current_password": "not-it", "new_password": "brand new secret",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(http.MethodPut, "/api/users/me/password", cookie, fiber.Map{
		"current_password": "secret123", "new_password": "brand new secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.login("alice@example.com", "brand new secret")
}

func TestLogoUploadWithoutBucket(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")

	req := multipartRequest(t, "/api/users/me/logo", "logo", "logo.png", "image/png", []byte("\x89PNG\r\n\x1a\nrest"))
	req.Header.Set("Cookie", cookie)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
