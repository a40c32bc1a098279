package models

import "time"

type Customer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UID       string    `json:"uid" gorm:"size:36;index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Zip       string    `json:"zip"`
	Country   string    `json:"country"`
	VatNumber string    `json:"vat_number"`
	Notes     string    `json:"notes"`
	IsDeleted bool      `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UID         string    `json:"uid" gorm:"size:36;index;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	UnitPrice   float64   `json:"unit_price" gorm:"type:numeric(12,2)"`
	TaxRate     float64   `json:"tax_rate"` // percent
	Unit        string    `json:"unit"`
	IsDeleted   bool      `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
