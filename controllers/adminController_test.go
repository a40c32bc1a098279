package controllers_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicing-backend/controllers"
	"invoicing-backend/models"
)

// multipartRequest builds a POST with a single file part carrying contentType.
func multipartRequest(t *testing.T, path, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")

	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/admin/users", cookie, nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/admin/analytics", cookie, nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.request(http.MethodGet, "/api/admin/users", "", nil).StatusCode)
}

func TestAdminListUsersWithCounts(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")
	alice, cookie := env.signIn("alice@example.com")
	c := env.createCustomer(cookie, "Acme", "")
	env.createCustomer(cookie, "Globex", "")
	env.createInvoice(cookie, fiber.Map{"customer_id": c.ID, "items": sampleItems()})

	resp := env.request(http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Users []controllers.UserSummary `json:"users"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Users, 2)

	var found *controllers.UserSummary
	for i := range body.Users {
		if body.Users[i].Id == alice.Id {
			found = &body.Users[i]
		}
	}
	require.NotNil(t, found)
	assert.EqualValues(t, 2, found.Customers)
	assert.EqualValues(t, 1, found.Invoices)
	assert.Zero(t, found.Quotes)
	assert.True(t, found.HasAccess)

	resp = env.request(http.MethodGet, "/api/admin/users?search=ALICE", admin, nil)
	decode(t, resp, &body)
	require.Len(t, body.Users, 1)
	assert.Equal(t, "alice@example.com", body.Users[0].Email)
}

func TestAdminCreateUser(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")

	resp := env.request(http.MethodPost, "/api/admin/users", admin, fiber.Map{
		"first_name": "Carol", "email": "carol@example.com", "password": "initial pass", "subscription_granted": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var u models.User
	decode(t, resp, &u)
	assert.True(t, u.SubscriptionGranted)

	cookie := env.login("carol@example.com", "initial pass")
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/customers", cookie, nil).StatusCode)

	resp = env.request(http.MethodPost, "/api/admin/users", admin, fiber.Map{
		"first_name": "Carol", "email": "carol@example.com", "password": "initial pass",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAdminGrantAndRevokeAccess(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")
	u, cookie := env.signIn("alice@example.com")
	require.NoError(t, env.db.Model(u).Updates(map[string]any{
		"subscription_status": models.SubscriptionCanceled,
	}).Error)
	assert.Equal(t, http.StatusPaymentRequired, env.request(http.MethodGet, "/api/customers", cookie, nil).StatusCode)

	path := fmt.Sprintf("/api/admin/users/%s/subscription", u.Id)
	resp := env.request(http.MethodPut, path, admin, fiber.Map{"granted": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var granted models.User
	decode(t, resp, &granted)
	assert.Equal(t, models.SubscriptionGranted, granted.SubscriptionStatus)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/customers", cookie, nil).StatusCode)

	resp = env.request(http.MethodPut, path, admin, fiber.Map{"granted": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var revoked models.User
	decode(t, resp, &revoked)
	assert.False(t, revoked.SubscriptionGranted)
	assert.Equal(t, models.SubscriptionCanceled, revoked.SubscriptionStatus)
	assert.Equal(t, http.StatusPaymentRequired, env.request(http.MethodGet, "/api/customers", cookie, nil).StatusCode)
}

func TestAdminSuspend(t *testing.T) {
	env := newEnv(t)
	a, admin := env.signInAdmin("admin@example.com")
	u, cookie := env.signIn("alice@example.com")

	resp := env.request(http.MethodPut, fmt.Sprintf("/api/admin/users/%s/suspend", a.Id), admin, fiber.Map{"suspended": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(http.MethodPut, fmt.Sprintf("/api/admin/users/%s/suspend", u.Id), admin, fiber.Map{"suspended": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusForbidden, env.request(http.MethodGet, "/api/me", cookie, nil).StatusCode)

	resp = env.request(http.MethodPut, fmt.Sprintf("/api/admin/users/%s/suspend", u.Id), admin, fiber.Map{"suspended": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// the old session was dropped while suspended
	assert.Equal(t, http.StatusUnauthorized, env.request(http.MethodGet, "/api/me", cookie, nil).StatusCode)
	cookie = env.login("alice@example.com", "secret123")
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/api/me", cookie, nil).StatusCode)

	resp = env.request(http.MethodPut, "/api/admin/users/no-such-user/suspend", admin, fiber.Map{"suspended": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminDeleteUser(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")
	soft, _ := env.signIn("soft@example.com")
	hard, cookie := env.signIn("hard@example.com")
	c := env.createCustomer(cookie, "Acme", "")
	env.createInvoice(cookie, fiber.Map{"customer_id": c.ID, "items": sampleItems()})

	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, "/api/admin/users/"+soft.Id, admin, nil).StatusCode)
	var n int64
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", soft.Id).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Unscoped().Model(&models.User{}).Where("id = ?", soft.Id).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, "/api/admin/users/"+hard.Id+"?hard=true", admin, nil).StatusCode)
	require.NoError(t, env.db.Unscoped().Model(&models.User{}).Where("id = ?", hard.Id).Count(&n).Error)
	assert.Zero(t, n)
	for _, m := range []any{&models.Customer{}, &models.Invoice{}, &models.DocumentSequence{}} {
		require.NoError(t, env.db.Model(m).Where("uid = ?", hard.Id).Count(&n).Error)
		assert.Zero(t, n)
	}
	assert.Equal(t, http.StatusUnauthorized, env.request(http.MethodGet, "/api/me", cookie, nil).StatusCode)
}

func TestAdminHardDeleteAfterSoftDelete(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")
	u, cookie := env.signIn("alice@example.com")
	env.createCustomer(cookie, "Acme", "")
	path := "/api/admin/users/" + u.Id

	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, path, admin, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.request(http.MethodDelete, path, admin, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.request(http.MethodPut, path+"/suspend", admin, fiber.Map{"suspended": true}).StatusCode)

	var body struct {
		Users []controllers.UserSummary `json:"users"`
	}
	decode(t, env.request(http.MethodGet, "/api/admin/users", admin, nil), &body)
	assert.Len(t, body.Users, 1)

	resp := env.request(http.MethodGet, "/api/admin/users?deleted=true", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &body)
	require.Len(t, body.Users, 2)
	var listed *controllers.UserSummary
	for i := range body.Users {
		if body.Users[i].Id == u.Id {
			listed = &body.Users[i]
		}
	}
	require.NotNil(t, listed)
	assert.True(t, listed.Deleted)
	assert.EqualValues(t, 1, listed.Customers)

	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, path+"?hard=true", admin, nil).StatusCode)
	var n int64
	require.NoError(t, env.db.Model(&models.Customer{}).Where("uid = ?", u.Id).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Unscoped().Model(&models.User{}).Where("id = ?", u.Id).Count(&n).Error)
	assert.Zero(t, n)

	resp = env.request(http.MethodPost, "/api/register", "", fiber.Map{
		"first_name": "Alice", "email": "alice@example.com", "password": "correct horse",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type importResult struct {
	Kind     string                 `json:"kind"`
	Imported int                    `json:"imported"`
	Skipped  int                    `json:"skipped"`
	Errors   []controllers.RowError `json:"errors"`
}

func (e *testEnv) importCSV(cookie, uid, kind, csv string) *http.Response {
	e.t.Helper()
	req := multipartRequest(e.t, fmt.Sprintf("/api/admin/users/%s/import/%s", uid, kind), "file", kind+".csv", "text/csv", []byte(csv))
	req.Header.Set("Cookie", cookie)
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

func TestAdminImportCustomers(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")
	u, cookie := env.signIn("alice@example.com")

	csv := "\ufeffName,Email,Phone\n" +
		"Acme,ACME@example.com,123\n" +
		",orphan@example.com,\n" +
		"Beta,not-an-email,\n" +
		"Gamma,,\n"
	resp := env.importCSV(admin, u.Id, "customers", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got importResult
	decode(t, resp, &got)
	assert.Equal(t, "customers", got.Kind)
	assert.Equal(t, 2, got.Imported)
	assert.Equal(t, 2, got.Skipped)
	require.Len(t, got.Errors, 2)
	assert.Equal(t, 3, got.Errors[0].Row)
	assert.Equal(t, 4, got.Errors[1].Row)

	resp = env.request(http.MethodGet, "/api/customers", cookie, nil)
	var list struct {
		Customers []models.Customer `json:"customers"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Customers, 2)
	assert.Equal(t, "Acme", list.Customers[0].Name)
	assert.Equal(t, "acme@example.com", list.Customers[0].Email)
}

func TestAdminImportProducts(t *testing.T) {
	env := newEnv(t)
	a, admin := env.signInAdmin("admin@example.com")

	csv := "name,unit_price,tax_rate,unit\n" +
		"Consulting,\"120,50\",19,hour\n" +
		"Broken,abc,19,\n"
	resp := env.importCSV(admin, a.Id, "products", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got importResult
	decode(t, resp, &got)
	assert.Equal(t, 1, got.Imported)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 3, got.Errors[0].Row)

	var p models.Product
	require.NoError(t, env.db.Where("uid = ?", a.Id).Take(&p).Error)
	assert.Equal(t, 120.5, p.UnitPrice)
	assert.Equal(t, "hour", p.Unit)

	resp = env.importCSV(admin, a.Id, "suppliers", csv)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
