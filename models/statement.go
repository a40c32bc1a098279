package models

import "time"

type Statement struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UID             string    `json:"uid" gorm:"size:36;not null;index;uniqueIndex:idx_statements_uid_number,priority:1"`
	StatementNumber string    `json:"statement_number" gorm:"size:32;not null;uniqueIndex:idx_statements_uid_number,priority:2"`
	CustomerID      uint      `json:"customer_id" gorm:"not null;index"`
	CustomerName    string    `json:"customer_name"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Total           float64   `json:"total" gorm:"type:numeric(12,2)"`
	Notes           string    `json:"notes"`

	Invoices []StatementInvoice `json:"invoices" gorm:"foreignKey:StatementID;constraint:OnDelete:CASCADE"`

	IsDeleted bool      `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatementInvoice is the copy of an invoice taken when the statement was created.
type StatementInvoice struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	StatementID   uint          `json:"statement_id" gorm:"not null;index"`
	InvoiceID     uint          `json:"invoice_id" gorm:"not null;index"`
	InvoiceNumber string        `json:"invoice_number"`
	IssueDate     time.Time     `json:"issue_date"`
	DueDate       time.Time     `json:"due_date"`
	Total         float64       `json:"total" gorm:"type:numeric(12,2)"`
	Status        InvoiceStatus `json:"status" gorm:"size:20"`
}
