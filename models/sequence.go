package models

// DocumentKind doubles as the number prefix.
type DocumentKind string

const (
	KindInvoice   DocumentKind = "INV"
	KindQuote     DocumentKind = "QUO"
	KindStatement DocumentKind = "STM"
)

// FirstDocumentNumber is the value handed out when a user has no documents of a kind.
const FirstDocumentNumber int64 = 100000

type DocumentSequence struct {
	UID       string       `gorm:"primaryKey;size:36"`
	Kind      DocumentKind `gorm:"primaryKey;size:8"`
	LastValue int64        `gorm:"not null"`
}
