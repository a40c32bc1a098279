package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicing-backend/database"
	"invoicing-backend/events"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
)

func lineItems(in []LineItemInput) []models.LineItem {
	items := make([]models.LineItem, len(in))
	for i, it := range in {
		items[i] = models.LineItem{
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
		}
	}
	return items
}

// invoiceFromInput validates the references of in and fills inv. Number and owner are
// left to the caller.
func (h *Handler) invoiceFromInput(tx *gorm.DB, uid string, in *InvoiceInput, inv *models.Invoice) error {
	customer, err := findCustomer(tx, uid, in.CustomerID, false)
	if err != nil {
		return err
	}
	if err := checkProducts(tx, uid, in.Items); err != nil {
		return err
	}

	issue, err := parseDate("issue_date", in.IssueDate, today(h.now()))
	if err != nil {
		return err
	}
	due, err := parseDate("due_date", in.DueDate, issue.AddDate(0, 0, h.Config.Server.PaymentTermsDays))
	if err != nil {
		return err
	}
	if due.Before(issue) {
		return fiber.NewError(fiber.StatusBadRequest, "due_date must not be before issue_date")
	}

	inv.CustomerID = customer.ID
	inv.CustomerName = customer.Name
	inv.IssueDate = issue
	inv.DueDate = due
	inv.Notes = in.Notes
	inv.SetItems(lineItems(in.Items))
	return nil
}

func (h *Handler) CreateInvoice(c *fiber.Ctx) error {
	var in InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	inv := models.Invoice{UID: uid, Status: models.InvoiceUnpaid}
	if err := h.invoiceFromInput(tx, uid, &in, &inv); err != nil {
		return err
	}
	if inv.InvoiceNumber, err = database.NextDocumentNumber(tx, uid, models.KindInvoice); err != nil {
		return err
	}
	if err := tx.Create(&inv).Error; err != nil {
		return err
	}

	h.publish(c, events.InvoiceCreated, fiber.Map{"id": inv.ID, "invoice_number": inv.InvoiceNumber, "total": inv.Total})
	return c.JSON(inv)
}

func GetInvoices(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	q := tx.Model(&models.Invoice{}).Scopes(database.ForUser(uid), database.Active)
	if s := c.Query("status"); s != "" {
		if !models.InvoiceStatus(s).Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		q = q.Where("status = ?", s)
	}
	if cid := c.QueryInt("customer_id"); cid > 0 {
		q = q.Where("customer_id = ?", cid)
	}
	if s := c.Query("search"); s != "" {
		p := likePattern(s)
		q = q.Where("LOWER(invoice_number) LIKE ? OR LOWER(customer_name) LIKE ?", p, p)
	}

	invoices := []models.Invoice{}
	if err := q.Order("issue_date DESC, id DESC").Find(&invoices).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

func GetInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(tx, uid, id, false)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

func (h *Handler) UpdateInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(tx, uid, id, true)
	if err != nil {
		return err
	}
	if err := h.invoiceFromInput(tx, uid, &in, inv); err != nil {
		return err
	}
	if err := tx.Select("customer_id", "customer_name", "issue_date", "due_date", "notes",
		"items", "subtotal", "tax", "total").Updates(inv).Error; err != nil {
		return err
	}
	return c.JSON(inv)
}

// UpdateInvoiceStatus moves an invoice between unpaid, paid and overdue. Paying stamps paid_at.
func (h *Handler) UpdateInvoiceStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in StatusInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	status := models.InvoiceStatus(in.Status)
	if !status.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(tx, uid, id, true)
	if err != nil {
		return err
	}

	wasPaid := inv.Status == models.InvoicePaid
	inv.Status = status
	if status == models.InvoicePaid {
		if inv.PaidAt == nil {
			now := h.now().UTC()
			inv.PaidAt = &now
		}
	} else {
		inv.PaidAt = nil
	}
	if err := tx.Model(inv).Select("status", "paid_at").Updates(inv).Error; err != nil {
		return err
	}

	if status == models.InvoicePaid && !wasPaid {
		h.publish(c, events.InvoicePaid, fiber.Map{"id": inv.ID, "invoice_number": inv.InvoiceNumber, "total": inv.Total})
	}
	return c.JSON(inv)
}

func DeleteInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	inv, err := findInvoice(tx, uid, id, true)
	if err != nil {
		return err
	}
	entry, err := database.MoveToRecycleBin(tx, uid, models.RecycleInvoice, inv.ID, inv.InvoiceNumber, inv)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "invoice moved to recycle bin", "recycle_bin_id": entry.ID})
}

func findInvoice(tx *gorm.DB, uid string, id uint, lock bool) (*models.Invoice, error) {
	q := tx.Scopes(database.ForUser(uid), database.Active)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Invoice
	if err := q.Where("id = ?", id).Take(&inv).Error; err != nil {
		return nil, notFound(err, "invoice")
	}
	return &inv, nil
}
