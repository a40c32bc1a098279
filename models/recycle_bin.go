package models

import (
	"time"

	"gorm.io/datatypes"
)

type RecycleType string

const (
	RecycleCustomer  RecycleType = "customer"
	RecycleProduct   RecycleType = "product"
	RecycleInvoice   RecycleType = "invoice"
	RecycleQuote     RecycleType = "quote"
	RecycleStatement RecycleType = "statement"
)

// RecycleBin keeps a snapshot of a soft-deleted row until it is restored or purged.
type RecycleBin struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UID        string         `json:"uid" gorm:"size:36;not null;index"`
	Type       RecycleType    `json:"type" gorm:"size:20;not null;index:idx_recycle_bins_type_original,priority:1"`
	OriginalID uint           `json:"original_id" gorm:"not null;index:idx_recycle_bins_type_original,priority:2"`
	Label      string         `json:"label"`
	Data       datatypes.JSON `json:"data"`
	RemovedAt  time.Time      `json:"removed_at" gorm:"not null;index"`
}
