package database

import (
	"gorm.io/gorm"

	"invoicing-backend/models"
)

// HardDeleteUser removes the user and every row owned by it. Callers run it inside a
// transaction.
func HardDeleteUser(tx *gorm.DB, uid string) error {
	if err := tx.Where("statement_id IN (?)",
		tx.Model(&models.Statement{}).Select("id").Where("uid = ?", uid),
	).Delete(&models.StatementInvoice{}).Error; err != nil {
		return err
	}

	owned := []any{
		&models.Statement{}, &models.Invoice{}, &models.Quote{},
		&models.Product{}, &models.Customer{},
		&models.RecycleBin{}, &models.DocumentSequence{}, &models.IdempotencyKey{},
	}
	for _, m := range owned {
		if err := tx.Scopes(ForUser(uid)).Delete(m).Error; err != nil {
			return err
		}
	}
	if err := tx.Model(&models.PageView{}).Scopes(ForUser(uid)).Update("uid", "").Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id = ?", uid).Delete(&models.User{}).Error
}

// CountOwned returns how many live rows of model belong to uid.
func CountOwned(tx *gorm.DB, model any, uid string) (int64, error) {
	var n int64
	err := tx.Model(model).Scopes(ForUser(uid), Active).Count(&n).Error
	return n, err
}
