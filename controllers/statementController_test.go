package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicing-backend/models"
)

func TestStatementSnapshotsOpenInvoicesInRange(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")
	c := env.createCustomer(cookie, "Acme", "")
	other := env.createCustomer(cookie, "Globex", "")

	item := func(price float64) []fiber.Map {
		return []fiber.Map{{"description": "Service", "quantity": 1, "unit_price": price}}
	}
	jan10 := env.createInvoice(cookie, fiber.Map{"customer_id": c.ID, "issue_date": "2026-01-10", "items": item(100)})
	jan20 := env.createInvoice(cookie, fiber.Map{"customer_id": c.ID, "issue_date": "2026-01-20", "items": item(50)})
	jan31 := env.createInvoice(cookie, fiber.Map{"customer_id": c.ID, "issue_date": "2026-01-31", "items": item(25.5)})
	env.createInvoice(cookie, fiber.Map{"customer_id": c.ID, "issue_date": "2026-02-01", "items": item(999)})
	env.createInvoice(cookie, fiber.Map{"customer_id": other.ID, "issue_date": "2026-01-15", "items": item(999)})

	require.Equal(t, http.StatusOK, env.request(http.MethodPut,
		fmt.Sprintf("/api/invoices/%d/status", jan20.ID), cookie, fiber.Map{"status": "paid"}).StatusCode)

	resp := env.request(http.MethodPost, "/api/statements", cookie, fiber.Map{
		"customer_id": c.ID,
		"start_date":  "2026-01-01",
		"end_date":    "2026-01-31",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st models.Statement
	decode(t, resp, &st)

	assert.Equal(t, "STM-100000", st.StatementNumber)
	assert.Equal(t, "Acme", st.CustomerName)
	assert.Equal(t, 125.5, st.Total)
	require.Len(t, st.Invoices, 2)
	assert.Equal(t, jan10.ID, st.Invoices[0].InvoiceID)
	assert.Equal(t, jan31.ID, st.Invoices[1].InvoiceID)

	// paying and editing an invoice afterwards leaves the statement as it was
	require.Equal(t, http.StatusOK, env.request(http.MethodPut,
		fmt.Sprintf("/api/invoices/%d/status", jan10.ID), cookie, fiber.Map{"status": "paid"}).StatusCode)
	require.Equal(t, http.StatusOK, env.request(http.MethodPut, fmt.Sprintf("/api/invoices/%d", jan10.ID), cookie,
		fiber.Map{"customer_id": c.ID, "issue_date": "2026-01-10", "items": item(700)}).StatusCode)

	resp = env.request(http.MethodGet, fmt.Sprintf("/api/statements/%d", st.ID), cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again models.Statement
	decode(t, resp, &again)
	assert.Equal(t, 125.5, again.Total)
	require.Len(t, again.Invoices, 2)
	assert.Equal(t, models.InvoiceUnpaid, again.Invoices[0].Status)
	assert.Equal(t, 100.0, again.Invoices[0].Total)
}

func TestStatementRejectsInvertedRange(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")
	c := env.createCustomer(cookie, "Acme", "")

	resp := env.request(http.MethodPost, "/api/statements", cookie, fiber.Map{
		"customer_id": c.ID,
		"start_date":  "2026-02-01",
		"end_date":    "2026-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(http.MethodPost, "/api/statements", cookie, fiber.Map{"customer_id": c.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatementNotesAndDelete(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")
	c := env.createCustomer(cookie, "Acme", "")
	resp := env.request(http.MethodPost, "/api/statements", cookie, fiber.Map{
		"customer_id": c.ID, "start_date": "2026-01-01", "end_date": "2026-01-31",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st models.Statement
	decode(t, resp, &st)
	assert.Empty(t, st.Invoices)
	assert.Zero(t, st.Total)

	path := fmt.Sprintf("/api/statements/%d", st.ID)
	resp = env.request(http.MethodPut, path, cookie, fiber.Map{"notes": "Q1 reminder"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Statement
	decode(t, resp, &updated)
	assert.Equal(t, "Q1 reminder", updated.Notes)

	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, path, cookie, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.request(http.MethodGet, path, cookie, nil).StatusCode)

	resp = env.request(http.MethodGet, "/api/statements", cookie, nil)
	var list struct {
		Statements []models.Statement `json:"statements"`
	}
	decode(t, resp, &list)
	assert.Empty(t, list.Statements)
}
