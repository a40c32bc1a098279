package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteSent      QuoteStatus = "sent"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteExpired   QuoteStatus = "expired"
	QuoteConverted QuoteStatus = "converted"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired, QuoteConverted:
		return true
	}
	return false
}

type Quote struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	UID          string      `json:"uid" gorm:"size:36;not null;index;uniqueIndex:idx_quotes_uid_number,priority:1"`
	QuoteNumber  string      `json:"quote_number" gorm:"size:32;not null;uniqueIndex:idx_quotes_uid_number,priority:2"`
	CustomerID   uint        `json:"customer_id" gorm:"not null;index"`
	CustomerName string      `json:"customer_name"`
	IssueDate    time.Time   `json:"issue_date"`
	ExpiryDate   time.Time   `json:"expiry_date"`
	Status       QuoteStatus `json:"status" gorm:"size:20;not null;default:'draft';index"`
	Notes        string      `json:"notes"`

	ConvertedInvoiceID *uint      `json:"converted_invoice_id"`
	ConvertedAt        *time.Time `json:"converted_at"`

	Items    datatypes.JSONType[[]LineItem] `json:"items"`
	Subtotal float64                        `json:"subtotal" gorm:"type:numeric(12,2)"`
	Tax      float64                        `json:"tax" gorm:"type:numeric(12,2)"`
	Total    float64                        `json:"total" gorm:"type:numeric(12,2)"`

	IsDeleted bool      `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q *Quote) SetItems(items []LineItem) {
	items, t := ComputeTotals(items)
	q.Items = datatypes.NewJSONType(items)
	q.Subtotal, q.Tax, q.Total = t.Subtotal, t.Tax, t.Total
}

// Convertible reports whether the quote may still become an invoice.
func (q *Quote) Convertible() bool {
	if q.ConvertedInvoiceID != nil {
		return false
	}
	switch q.Status {
	case QuoteRejected, QuoteExpired, QuoteConverted:
		return false
	}
	return true
}
