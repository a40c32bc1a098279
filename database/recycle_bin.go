package database

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"invoicing-backend/models"
)

// recyclable returns an empty model of the table a recycle entry points at.
func recyclable(t models.RecycleType) (any, error) {
	switch t {
	case models.RecycleCustomer:
		return &models.Customer{}, nil
	case models.RecycleProduct:
		return &models.Product{}, nil
	case models.RecycleInvoice:
		return &models.Invoice{}, nil
	case models.RecycleQuote:
		return &models.Quote{}, nil
	case models.RecycleStatement:
		return &models.Statement{}, nil
	}
	return nil, fmt.Errorf("unknown recycle type %q", t)
}

// MoveToRecycleBin snapshots row into the recycle bin and flags the original deleted.
// Run it inside the request transaction so both writes land together.
func MoveToRecycleBin(tx *gorm.DB, uid string, t models.RecycleType, id uint, label string, row any) (*models.RecycleBin, error) {
	model, err := recyclable(t)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s %d: %w", t, id, err)
	}

	entry := models.RecycleBin{
		UID:        uid,
		Type:       t,
		OriginalID: id,
		Label:      label,
		Data:       data,
		RemovedAt:  time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	res := tx.Model(model).Scopes(ForUser(uid)).Where("id = ?", id).Update("is_deleted", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &entry, nil
}

// RestoreFromRecycleBin clears the deleted flag on the original row and drops the entry.
func RestoreFromRecycleBin(tx *gorm.DB, uid string, entryID uint) (*models.RecycleBin, error) {
	var entry models.RecycleBin
	if err := tx.Scopes(ForUser(uid)).Where("id = ?", entryID).Take(&entry).Error; err != nil {
		return nil, err
	}
	model, err := recyclable(entry.Type)
	if err != nil {
		return nil, err
	}
	res := tx.Model(model).Scopes(ForUser(uid)).Where("id = ?", entry.OriginalID).Update("is_deleted", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	if err := tx.Delete(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// PurgeEntry permanently removes the original row, its children and the entry itself.
func PurgeEntry(tx *gorm.DB, entry *models.RecycleBin) error {
	model, err := recyclable(entry.Type)
	if err != nil {
		return err
	}
	if entry.Type == models.RecycleStatement {
		if err := tx.Where("statement_id = ?", entry.OriginalID).Delete(&models.StatementInvoice{}).Error; err != nil {
			return err
		}
	}
	// only rows still flagged deleted; a restored-then-deleted row has a newer entry
	if err := tx.Scopes(ForUser(entry.UID)).
		Where("id = ? AND is_deleted = ?", entry.OriginalID, true).
		Delete(model).Error; err != nil {
		return err
	}
	return tx.Delete(entry).Error
}

// PurgeUserEntry finds one of uid's entries and purges it.
func PurgeUserEntry(tx *gorm.DB, uid string, entryID uint) error {
	var entry models.RecycleBin
	if err := tx.Scopes(ForUser(uid)).Where("id = ?", entryID).Take(&entry).Error; err != nil {
		return err
	}
	return PurgeEntry(tx, &entry)
}

// EmptyRecycleBin purges every entry of uid and returns the count.
func EmptyRecycleBin(tx *gorm.DB, uid string) (int, error) {
	var entries []models.RecycleBin
	if err := tx.Scopes(ForUser(uid)).Find(&entries).Error; err != nil {
		return 0, err
	}
	for i := range entries {
		if err := PurgeEntry(tx, &entries[i]); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// PurgeRecycleBinBefore purges entries of every user removed before cutoff.
// Each entry is purged in its own transaction so one bad row does not block the rest.
func PurgeRecycleBinBefore(db *gorm.DB, cutoff time.Time) (int, error) {
	var entries []models.RecycleBin
	if err := db.Where("removed_at < ?", cutoff.UTC()).Order("id").Find(&entries).Error; err != nil {
		return 0, err
	}
	purged := 0
	var firstErr error
	for i := range entries {
		err := db.Transaction(func(tx *gorm.DB) error {
			return PurgeEntry(tx, &entries[i])
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		purged++
	}
	return purged, firstErr
}
