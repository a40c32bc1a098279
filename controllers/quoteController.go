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

const quoteValidityDays = 30

var errQuoteConverted = fiber.NewError(fiber.StatusConflict, "quote has already been converted")

func (h *Handler) quoteFromInput(tx *gorm.DB, uid string, in *QuoteInput, q *models.Quote) error {
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
	expiry, err := parseDate("expiry_date", in.ExpiryDate, issue.AddDate(0, 0, quoteValidityDays))
	if err != nil {
		return err
	}
	if expiry.Before(issue) {
		return fiber.NewError(fiber.StatusBadRequest, "expiry_date must not be before issue_date")
	}

	q.CustomerID = customer.ID
	q.CustomerName = customer.Name
	q.IssueDate = issue
	q.ExpiryDate = expiry
	q.Notes = in.Notes
	q.SetItems(lineItems(in.Items))
	return nil
}

func (h *Handler) CreateQuote(c *fiber.Ctx) error {
	var in QuoteInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	q := models.Quote{UID: uid, Status: models.QuoteDraft}
	if err := h.quoteFromInput(tx, uid, &in, &q); err != nil {
		return err
	}
	if q.QuoteNumber, err = database.NextDocumentNumber(tx, uid, models.KindQuote); err != nil {
		return err
	}
	if err := tx.Create(&q).Error; err != nil {
		return err
	}
	return c.JSON(q)
}

func GetQuotes(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	q := tx.Model(&models.Quote{}).Scopes(database.ForUser(uid), database.Active)
	if s := c.Query("status"); s != "" {
		if !models.QuoteStatus(s).Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		q = q.Where("status = ?", s)
	}
	if cid := c.QueryInt("customer_id"); cid > 0 {
		q = q.Where("customer_id = ?", cid)
	}
	if s := c.Query("search"); s != "" {
		p := likePattern(s)
		q = q.Where("LOWER(quote_number) LIKE ? OR LOWER(customer_name) LIKE ?", p, p)
	}

	quotes := []models.Quote{}
	if err := q.Order("issue_date DESC, id DESC").Find(&quotes).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"quotes": quotes})
}

func GetQuote(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q, err := findQuote(tx, uid, id, false)
	if err != nil {
		return err
	}
	return c.JSON(q)
}

func (h *Handler) UpdateQuote(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in QuoteInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q, err := findQuote(tx, uid, id, true)
	if err != nil {
		return err
	}
	if q.ConvertedInvoiceID != nil {
		return errQuoteConverted
	}
	if err := h.quoteFromInput(tx, uid, &in, q); err != nil {
		return err
	}
	if err := tx.Select("customer_id", "customer_name", "issue_date", "expiry_date", "notes",
		"items", "subtotal", "tax", "total").Updates(q).Error; err != nil {
		return err
	}
	return c.JSON(q)
}

// UpdateQuoteStatus sets any status except converted, which only ConvertQuote reaches.
func UpdateQuoteStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in StatusInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	status := models.QuoteStatus(in.Status)
	if !status.Valid() || status == models.QuoteConverted {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q, err := findQuote(tx, uid, id, true)
	if err != nil {
		return err
	}
	if q.ConvertedInvoiceID != nil {
		return errQuoteConverted
	}
	if err := tx.Model(q).Update("status", status).Error; err != nil {
		return err
	}
	q.Status = status
	return c.JSON(q)
}

// ConvertQuote turns the quote into a new unpaid invoice. It succeeds at most once per quote.
func (h *Handler) ConvertQuote(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q, err := findQuote(tx, uid, id, true)
	if err != nil {
		return err
	}
	if q.ConvertedInvoiceID != nil {
		return errQuoteConverted
	}
	if !q.Convertible() {
		return fiber.NewError(fiber.StatusConflict, "quote is "+string(q.Status)+" and cannot be converted")
	}

	now := h.now().UTC()
	issue := today(now)
	inv := models.Invoice{
		UID:          uid,
		CustomerID:   q.CustomerID,
		CustomerName: q.CustomerName,
		IssueDate:    issue,
		DueDate:      issue.AddDate(0, 0, h.Config.Server.PaymentTermsDays),
		Status:       models.InvoiceUnpaid,
		Notes:        q.Notes,
		QuoteID:      &q.ID,
	}
	inv.SetItems(q.Items.Data())
	if inv.InvoiceNumber, err = database.NextDocumentNumber(tx, uid, models.KindInvoice); err != nil {
		return err
	}
	if err := tx.Create(&inv).Error; err != nil {
		return err
	}

	q.Status = models.QuoteAccepted
	q.ConvertedInvoiceID = &inv.ID
	q.ConvertedAt = &now
	if err := tx.Model(q).Select("status", "converted_invoice_id", "converted_at").Updates(q).Error; err != nil {
		return err
	}

	h.publish(c, events.InvoiceCreated, fiber.Map{"id": inv.ID, "invoice_number": inv.InvoiceNumber, "total": inv.Total})
	h.publish(c, events.QuoteConverted, fiber.Map{"quote_id": q.ID, "quote_number": q.QuoteNumber, "invoice_id": inv.ID})
	return c.JSON(fiber.Map{"quote": q, "invoice": inv})
}

func DeleteQuote(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q, err := findQuote(tx, uid, id, true)
	if err != nil {
		return err
	}
	entry, err := database.MoveToRecycleBin(tx, uid, models.RecycleQuote, q.ID, q.QuoteNumber, q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "quote moved to recycle bin", "recycle_bin_id": entry.ID})
}

func findQuote(tx *gorm.DB, uid string, id uint, lock bool) (*models.Quote, error) {
	db := tx.Scopes(database.ForUser(uid), database.Active)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var q models.Quote
	if err := db.Where("id = ?", id).Take(&q).Error; err != nil {
		return nil, notFound(err, "quote")
	}
	return &q, nil
}
