package models

import (
	"time"

	"gorm.io/datatypes"

	"invoicing-backend/utils"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceUnpaid, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

// LineItem is stored as part of a JSON array on invoices and quotes.
type LineItem struct {
	ProductID   *uint   `json:"product_id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"` // percent
	Amount      float64 `json:"amount"`   // quantity * unit price, before tax
}

// Totals holds the computed money columns of a document.
type Totals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// ComputeTotals fills each item's Amount and returns the document totals.
func ComputeTotals(items []LineItem) ([]LineItem, Totals) {
	out := make([]LineItem, len(items))
	lines := make([]utils.Line, len(items))
	for i, it := range items {
		lines[i] = utils.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate}
	}
	amounts, subtotal, tax, total := utils.SumLines(lines)
	for i, it := range items {
		it.Amount = amounts[i]
		out[i] = it
	}
	return out, Totals{Subtotal: subtotal, Tax: tax, Total: total}
}

type Invoice struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	UID           string        `json:"uid" gorm:"size:36;not null;index;uniqueIndex:idx_invoices_uid_number,priority:1"`
	InvoiceNumber string        `json:"invoice_number" gorm:"size:32;not null;uniqueIndex:idx_invoices_uid_number,priority:2"`
	CustomerID    uint          `json:"customer_id" gorm:"not null;index"`
	CustomerName  string        `json:"customer_name"`
	IssueDate     time.Time     `json:"issue_date"`
	DueDate       time.Time     `json:"due_date"`
	Status        InvoiceStatus `json:"status" gorm:"size:20;not null;default:'unpaid';index"`
	PaidAt        *time.Time    `json:"paid_at"`
	Notes         string        `json:"notes"`
	QuoteID       *uint         `json:"quote_id"`

	Items    datatypes.JSONType[[]LineItem] `json:"items"`
	Subtotal float64                        `json:"subtotal" gorm:"type:numeric(12,2)"`
	Tax      float64                        `json:"tax" gorm:"type:numeric(12,2)"`
	Total    float64                        `json:"total" gorm:"type:numeric(12,2)"`

	IsDeleted bool      `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetItems stores the items and recomputes every money column.
func (inv *Invoice) SetItems(items []LineItem) {
	items, t := ComputeTotals(items)
	inv.Items = datatypes.NewJSONType(items)
	inv.Subtotal, inv.Tax, inv.Total = t.Subtotal, t.Tax, t.Total
}
