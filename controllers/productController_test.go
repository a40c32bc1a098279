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

func TestProductCRUD(t *testing.T) {
	env := newEnv(t)
	_, cookie := env.signIn("alice@example.com")

	resp := env.request(http.MethodPost, "/api/products", cookie, fiber.Map{
		"name": "Consulting", "unit_price": 120.005, "tax_rate": 19, "unit": "hour",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.Product
	decode(t, resp, &p)
	assert.Equal(t, 120.01, p.UnitPrice)

	path := fmt.Sprintf("/api/products/%d", p.ID)
	resp = env.request(http.MethodPut, path, cookie, fiber.Map{"unit_price": 130})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &p)
	assert.Equal(t, 130.0, p.UnitPrice)
	assert.Equal(t, "Consulting", p.Name)

	resp = env.request(http.MethodPut, path, cookie, fiber.Map{"tax_rate": 150})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Equal(t, http.StatusOK, env.request(http.MethodDelete, path, cookie, nil).StatusCode)
	resp = env.request(http.MethodGet, "/api/products", cookie, nil)
	var list struct {
		Products []models.Product `json:"products"`
	}
	decode(t, resp, &list)
	assert.Empty(t, list.Products)
}

func TestInvoiceItemsMustReferenceOwnProducts(t *testing.T) {
	env := newEnv(t)
	_, alice := env.signIn("alice@example.com")
	_, bob := env.signIn("bob@example.com")

	resp := env.request(http.MethodPost, "/api/products", alice, fiber.Map{"name": "Consulting", "unit_price": 100})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.Product
	decode(t, resp, &p)

	c := env.createCustomer(bob, "Globex", "")
	resp = env.request(http.MethodPost, "/api/invoices", bob, fiber.Map{
		"customer_id": c.ID,
		"items":       []fiber.Map{{"product_id": p.ID, "description": "Consulting", "quantity": 1, "unit_price": 100}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	own := env.createCustomer(alice, "Acme", "")
	inv := env.createInvoice(alice, fiber.Map{
		"customer_id": own.ID,
		"items":       []fiber.Map{{"product_id": p.ID, "description": "Consulting", "quantity": 1, "unit_price": 100}},
	})
	items := inv.Items.Data()
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ProductID)
	assert.Equal(t, p.ID, *items[0].ProductID)
}
