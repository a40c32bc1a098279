package database

import (
	"fmt"

	"gorm.io/gorm"

	"invoicing-backend/models"
)

// Migrate applies (idempotent) migrations:
// - AutoMigrate (tables/columns/index tags)
// - Money column types (NUMERIC(12,2))
// - CHECK constraints on money and status columns
// The raw DDL only runs on postgres; other dialects get AutoMigrate only.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		alters := []string{
			`ALTER TABLE products          ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE invoices          ALTER COLUMN subtotal   TYPE numeric(12,2)`,
			`ALTER TABLE invoices          ALTER COLUMN tax        TYPE numeric(12,2)`,
			`ALTER TABLE invoices          ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE quotes            ALTER COLUMN subtotal   TYPE numeric(12,2)`,
			`ALTER TABLE quotes            ALTER COLUMN tax        TYPE numeric(12,2)`,
			`ALTER TABLE quotes            ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE statements        ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE statement_invoices ALTER COLUMN total     TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_invoices_uid_status_due ON invoices (uid, status, due_date) WHERE is_deleted = false`,
			`CREATE INDEX IF NOT EXISTS idx_quotes_uid_status_expiry ON quotes (uid, status, expiry_date) WHERE is_deleted = false`,
			`CREATE INDEX IF NOT EXISTS idx_page_views_created_path ON page_views (created_at, path)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []struct{ table, name, expr string }{
			{"products", "chk_products_unit_price_nonneg", "unit_price >= 0"},
			{"invoices", "chk_invoices_total_nonneg", "total >= 0"},
			{"invoices", "chk_invoices_status", "status IN ('unpaid','paid','overdue')"},
			{"quotes", "chk_quotes_total_nonneg", "total >= 0"},
			{"quotes", "chk_quotes_status", "status IN ('draft','sent','accepted','rejected','expired','converted')"},
			{"document_sequences", "chk_document_sequences_kind", "kind IN ('INV','QUO','STM')"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%s'::regclass
		  AND conname  = '%s'
	) THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}
