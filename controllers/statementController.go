package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/database"
	"invoicing-backend/events"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/utils"
)

// CreateStatement snapshots the customer's open invoices issued inside the inclusive
// date range. The statement and its rows are written in the request transaction.
func (h *Handler) CreateStatement(c *fiber.Ctx) error {
	var in StatementInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	start, err := parseDate("start_date", in.StartDate, today(h.now()))
	if err != nil {
		return err
	}
	end, err := parseDate("end_date", in.EndDate, today(h.now()))
	if err != nil {
		return err
	}
	start, end = today(start), today(end)
	if end.Before(start) {
		return fiber.NewError(fiber.StatusBadRequest, "end_date must not be before start_date")
	}

	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	customer, err := findCustomer(tx, uid, in.CustomerID, false)
	if err != nil {
		return err
	}

	var invoices []models.Invoice
	if err := tx.Scopes(database.ForUser(uid), database.Active).
		Where("customer_id = ? AND status IN ?", customer.ID,
			[]models.InvoiceStatus{models.InvoiceUnpaid, models.InvoiceOverdue}).
		Where("issue_date >= ? AND issue_date < ?", start, end.AddDate(0, 0, 1)).
		Order("issue_date, id").
		Find(&invoices).Error; err != nil {
		return err
	}

	st := models.Statement{
		UID:          uid,
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		StartDate:    start,
		EndDate:      end,
		Notes:        in.Notes,
		Invoices:     make([]models.StatementInvoice, 0, len(invoices)),
	}
	totals := make([]float64, 0, len(invoices))
	for _, inv := range invoices {
		st.Invoices = append(st.Invoices, models.StatementInvoice{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			IssueDate:     inv.IssueDate,
			DueDate:       inv.DueDate,
			Total:         inv.Total,
			Status:        inv.Status,
		})
		totals = append(totals, inv.Total)
	}
	st.Total = utils.Sum(totals...)

	if st.StatementNumber, err = database.NextDocumentNumber(tx, uid, models.KindStatement); err != nil {
		return err
	}
	// creates the snapshot rows through the association
	if err := tx.Create(&st).Error; err != nil {
		return err
	}

	h.publish(c, events.StatementCreated, fiber.Map{
		"id": st.ID, "statement_number": st.StatementNumber, "total": st.Total, "invoices": len(st.Invoices),
	})
	return c.JSON(st)
}

func GetStatements(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q := tx.Model(&models.Statement{}).Scopes(database.ForUser(uid), database.Active)
	if cid := c.QueryInt("customer_id"); cid > 0 {
		q = q.Where("customer_id = ?", cid)
	}
	if s := c.Query("search"); s != "" {
		p := likePattern(s)
		q = q.Where("LOWER(statement_number) LIKE ? OR LOWER(customer_name) LIKE ?", p, p)
	}

	statements := []models.Statement{}
	if err := q.Order("created_at DESC, id DESC").Find(&statements).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"statements": statements})
}

func GetStatement(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	st, err := findStatement(tx, uid, id, true)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

// UpdateStatement edits the notes; the snapshot itself is immutable.
func UpdateStatement(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in StatementPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	st, err := findStatement(tx, uid, id, false)
	if err != nil {
		return err
	}
	if in.Notes != nil {
		if err := tx.Model(st).Update("notes", *in.Notes).Error; err != nil {
			return err
		}
	}
	st, err = findStatement(tx, uid, id, true)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func DeleteStatement(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	st, err := findStatement(tx, uid, id, true)
	if err != nil {
		return err
	}
	entry, err := database.MoveToRecycleBin(tx, uid, models.RecycleStatement, st.ID, st.StatementNumber, st)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "statement moved to recycle bin", "recycle_bin_id": entry.ID})
}

func findStatement(tx *gorm.DB, uid string, id uint, withInvoices bool) (*models.Statement, error) {
	q := tx.Scopes(database.ForUser(uid), database.Active)
	if withInvoices {
		q = q.Preload("Invoices", func(db *gorm.DB) *gorm.DB { return db.Order("issue_date, id") })
	}
	var st models.Statement
	if err := q.Where("id = ?", id).Take(&st).Error; err != nil {
		return nil, notFound(err, "statement")
	}
	return &st, nil
}
