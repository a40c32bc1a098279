package controllers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicing-backend/config"
	"invoicing-backend/models"
)

func TestAnalyticsSummary(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")
	acme := env.createCustomer(cookie, "Acme", "")
	globex := env.createCustomer(cookie, "Globex", "")
	items := func(price float64) []fiber.Map {
		return []fiber.Map{{"description": "Work", "quantity": 1, "unit_price": price}}
	}

	a := env.createInvoice(cookie, fiber.Map{"customer_id": acme.ID, "items": items(100)})
	b := env.createInvoice(cookie, fiber.Map{"customer_id": globex.ID, "items": items(300)})
	env.createInvoice(cookie, fiber.Map{"customer_id": acme.ID, "items": items(50)})
	for _, id := range []uint{a.ID, b.ID} {
		require.Equal(t, http.StatusOK, env.request(http.MethodPut,
			fmt.Sprintf("/api/invoices/%d/status", id), cookie, fiber.Map{"status": "paid"}).StatusCode)
	}

	resp := env.request(http.MethodGet, "/api/analytics/summary", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Invoices int `json:"invoices"`
		ByStatus map[string]struct {
			Count  int     `json:"count"`
			Amount float64 `json:"amount"`
		} `json:"by_status"`
		Outstanding    float64 `json:"outstanding"`
		RevenueByMonth []struct {
			Month   string  `json:"month"`
			Revenue float64 `json:"revenue"`
		} `json:"revenue_by_month"`
		TopCustomers []struct {
			CustomerName string  `json:"customer_name"`
			Revenue      float64 `json:"revenue"`
		} `json:"top_customers"`
	}
	decode(t, resp, &body)

	assert.Equal(t, 3, body.Invoices)
	assert.Equal(t, 2, body.ByStatus["paid"].Count)
	assert.Equal(t, 400.0, body.ByStatus["paid"].Amount)
	assert.Equal(t, 1, body.ByStatus["unpaid"].Count)
	assert.Equal(t, 50.0, body.Outstanding)

	require.Len(t, body.RevenueByMonth, 12)
	last := body.RevenueByMonth[11]
	assert.Equal(t, time.Now().UTC().Format("2006-01"), last.Month)
	assert.Equal(t, 400.0, last.Revenue)

	require.Len(t, body.TopCustomers, 2)
	assert.Equal(t, "Globex", body.TopCustomers[0].CustomerName)
	assert.Equal(t, 300.0, body.TopCustomers[0].Revenue)
	assert.Equal(t, "Acme", body.TopCustomers[1].CustomerName)
}

func TestPageViewsAndAdminAnalytics(t *testing.T) {
	env := newEnv(t)
	_, admin := env.signInAdmin("admin@example.com")
	u, cookie := env.signIn("alice@example.com")

	assert.Equal(t, http.StatusBadRequest, env.request(http.MethodPost, "/api/analytics/pageview", "", fiber.Map{}).StatusCode)

	for _, p := range []string{"/", "/pricing", "/"} {
		resp := env.request(http.MethodPost, "/api/analytics/pageview", "", fiber.Map{"path": p})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := env.request(http.MethodPost, "/api/analytics/pageview", cookie, fiber.Map{"path": "/app"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view models.PageView
	require.NoError(t, env.db.Where("path = ?", "/app").Take(&view).Error)
	assert.Equal(t, u.Id, view.UID)
	assert.NotEmpty(t, view.IPHash)

	assert.Equal(t, http.StatusBadRequest, env.request(http.MethodGet, "/api/admin/analytics?days=0", admin, nil).StatusCode)

	resp = env.request(http.MethodGet, "/api/admin/analytics?days=7", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		PageViews      int `json:"page_views"`
		UniqueVisitors int `json:"unique_visitors"`
		ViewsPerDay    []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"views_per_day"`
		ByCountry []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"by_country"`
		TopPaths []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"top_paths"`
		Users struct {
			Total      int            `json:"total"`
			WithAccess int            `json:"with_access"`
			ByStatus   map[string]int `json:"by_status"`
		} `json:"users"`
	}
	decode(t, resp, &body)

	assert.Equal(t, 4, body.PageViews)
	assert.Equal(t, 1, body.UniqueVisitors)
	require.Len(t, body.ViewsPerDay, 7)
	assert.Equal(t, 4, body.ViewsPerDay[6].Count)
	require.Len(t, body.ByCountry, 1)
	assert.Equal(t, "unknown", body.ByCountry[0].Key)
	require.NotEmpty(t, body.TopPaths)
	assert.Equal(t, "/", body.TopPaths[0].Key)
	assert.Equal(t, 2, body.TopPaths[0].Count)
	assert.Equal(t, 2, body.Users.Total)
	assert.Equal(t, 2, body.Users.WithAccess)
	assert.Equal(t, 2, body.Users.ByStatus["trialing"])
}

func TestPageViewsUseForwardedClientIP(t *testing.T) {
	env := newEnv(t, func(cfg *config.Config) { cfg.Server.ProxyHeader = fiber.HeaderXForwardedFor })
	_, admin := env.signInAdmin("admin@example.com")

	for _, ip := range []string{"203.0.113.7, 10.0.0.1", "203.0.113.7", "198.51.100.2"} {
		resp := env.request(http.MethodPost, "/api/analytics/pageview", "", fiber.Map{"path": "/"}, fiber.HeaderXForwardedFor, ip)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var views []models.PageView
	require.NoError(t, env.db.Order("id").Find(&views).Error)
	require.Len(t, views, 3)
	assert.Equal(t, views[0].IPHash, views[1].IPHash)
	assert.NotEqual(t, views[0].IPHash, views[2].IPHash)

	resp := env.request(http.MethodGet, "/api/admin/analytics?days=7", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		UniqueVisitors int `json:"unique_visitors"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 2, body.UniqueVisitors)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newEnv(t)

	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/health", "", nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/ready", "", nil).StatusCode)
	assert.Equal(t, http.StatusOK, env.request(http.MethodGet, "/metrics", "", nil).StatusCode)
}
