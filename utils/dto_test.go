package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleCreate struct {
	Name  string  `json:"name"`
	Email string  `json:"email" normalize:"lower"`
	Price float64 `json:"price"`
}

type sampleUpdate struct {
	Name     *string  `json:"name"`
	Price    *float64 `json:"unit_price"`
	TaxRate  *float64 `json:"tax_rate" db:"vat"`
	Internal *string  `json:"internal" db:"-"`
	Missing  *string  `json:"missing"`
}

func TestNormalizeDTO(t *testing.T) {
	in := sampleCreate{Name: "  Acme  ", Email: " Bob@Example.COM ", Price: 10.005}
	NormalizeDTO(&in)
	assert.Equal(t, "Acme", in.Name)
	assert.Equal(t, "bob@example.com", in.Email)
	assert.Equal(t, 10.01, in.Price)

	name := "  Widget "
	price := 1.234
	upd := sampleUpdate{Name: &name, Price: &price}
	NormalizeDTO(&upd)
	assert.Equal(t, "Widget", *upd.Name)
	assert.Equal(t, 1.23, *upd.Price)
	assert.Nil(t, upd.TaxRate)
}

func TestUpdatesFromPtrDTO(t *testing.T) {
	name := "Widget"
	rate := 20.0
	secret := "x"
	got := UpdatesFromPtrDTO(&sampleUpdate{Name: &name, TaxRate: &rate, Internal: &secret})
	assert.Equal(t, map[string]any{"name": "Widget", "vat": 20.0}, got)

	assert.Empty(t, UpdatesFromPtrDTO(sampleUpdate{}))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault(" 5 ", 1))
	assert.Equal(t, 1, ParseIntDefault("-3", 1))
	assert.Equal(t, 1, ParseIntDefault("abc", 1))
}
