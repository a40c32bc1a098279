package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicing-backend/models"
)

// numberColumns maps a document kind to the table and column carrying its number.
var numberColumns = map[models.DocumentKind]struct{ table, column string }{
	models.KindInvoice:   {"invoices", "invoice_number"},
	models.KindQuote:     {"quotes", "quote_number"},
	models.KindStatement: {"statements", "statement_number"},
}

// FormatDocumentNumber renders PREFIX-n.
func FormatDocumentNumber(kind models.DocumentKind, n int64) string {
	return fmt.Sprintf("%s-%d", kind, n)
}

// ParseDocumentNumber returns the numeric suffix of a PREFIX-n number.
func ParseDocumentNumber(kind models.DocumentKind, number string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, string(kind)+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextDocumentNumber allocates the next number for (uid, kind). It must run inside the
// caller's transaction: the sequence row stays locked until that transaction ends, so
// concurrent creates for the same user and kind are serialized.
func NextDocumentNumber(tx *gorm.DB, uid string, kind models.DocumentKind) (string, error) {
	if _, ok := numberColumns[kind]; !ok {
		return "", fmt.Errorf("unknown document kind %q", kind)
	}

	seq, err := lockSequence(tx, uid, kind)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err = seedSequence(tx, uid, kind); err != nil {
			return "", err
		}
		seq, err = lockSequence(tx, uid, kind)
	}
	if err != nil {
		return "", fmt.Errorf("lock document sequence: %w", err)
	}

	next := seq.LastValue + 1
	if err := tx.Model(&models.DocumentSequence{}).
		Where("uid = ? AND kind = ?", uid, kind).
		Update("last_value", next).Error; err != nil {
		return "", fmt.Errorf("advance document sequence: %w", err)
	}
	return FormatDocumentNumber(kind, next), nil
}

func lockSequence(tx *gorm.DB, uid string, kind models.DocumentKind) (models.DocumentSequence, error) {
	var seq models.DocumentSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uid = ? AND kind = ?", uid, kind).
		Take(&seq).Error
	return seq, err
}

// seedSequence creates the sequence row from the highest number already used, so data
// written before sequences existed keeps counting from where it stopped. Soft-deleted
// documents count too: their numbers stay reserved.
func seedSequence(tx *gorm.DB, uid string, kind models.DocumentKind) error {
	col := numberColumns[kind]
	var numbers []string
	if err := tx.Table(col.table).
		Where("uid = ? AND "+col.column+" LIKE ?", uid, string(kind)+"-%").
		Pluck(col.column, &numbers).Error; err != nil {
		return fmt.Errorf("scan existing %s numbers: %w", col.table, err)
	}

	last := models.FirstDocumentNumber - 1
	for _, num := range numbers {
		if n, ok := ParseDocumentNumber(kind, num); ok && n > last {
			last = n
		}
	}

	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.DocumentSequence{UID: uid, Kind: kind, LastValue: last}).Error
}
