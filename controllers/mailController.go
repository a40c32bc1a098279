package controllers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/mailer"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
)

const attachmentInstructions = "Download the PDF from the document page and attach it to this email before sending."

// Mailto is the handoff the SPA opens in the user's mail client.
type Mailto struct {
	URL          string `json:"mailto"`
	To           string `json:"to"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Instructions string `json:"instructions"`
}

// mailtoEscape encodes a header value for a mailto URL (RFC 6068): spaces are %20, and
// reserved characters such as & and = cannot end the value early.
func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func mailtoURL(to, subject, body string) string {
	return "mailto:" + url.PathEscape(to) + "?subject=" + mailtoEscape(subject) + "&body=" + mailtoEscape(body)
}

func senderName(u *models.User) string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	return u.FullName()
}

// documentRecipient returns the customer of a document even when the customer has since
// been moved to the recycle bin.
func documentRecipient(tx *gorm.DB, uid string, customerID uint) (*models.Customer, error) {
	var customer models.Customer
	if err := tx.Scopes(database.ForUser(uid)).Where("id = ?", customerID).Take(&customer).Error; err != nil {
		return nil, notFound(err, "customer")
	}
	return &customer, nil
}

func invoiceMailData(inv *models.Invoice, customer *models.Customer, user *models.User) mailer.DocumentData {
	return mailer.DocumentData{
		Kind:         "invoice",
		Number:       inv.InvoiceNumber,
		CustomerName: customer.Name,
		CompanyName:  senderName(user),
		Amount:       fmt.Sprintf("%.2f", inv.Total),
		DateLabel:    "Due date",
		Date:         inv.DueDate.Format("2006-01-02"),
		Notes:        inv.Notes,
	}
}

func buildMailto(customer *models.Customer, data mailer.DocumentData) (*Mailto, error) {
	body, err := data.Text()
	if err != nil {
		return nil, err
	}
	subject := data.Subject()
	return &Mailto{
		URL:          mailtoURL(customer.Email, subject, body),
		To:           customer.Email,
		Subject:      subject,
		Body:         body,
		Instructions: attachmentInstructions,
	}, nil
}

func InvoiceMailto(c *fiber.Ctx) error {
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
	customer, err := documentRecipient(tx, uid, inv.CustomerID)
	if err != nil {
		return err
	}
	m, err := buildMailto(customer, invoiceMailData(inv, customer, middlewares.CurrentUser(c)))
	if err != nil {
		return err
	}
	return c.JSON(m)
}

// QuoteMailto also marks a draft quote as sent.
func QuoteMailto(c *fiber.Ctx) error {
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
	customer, err := documentRecipient(tx, uid, q.CustomerID)
	if err != nil {
		return err
	}

	data := mailer.DocumentData{
		Kind:         "quote",
		Number:       q.QuoteNumber,
		CustomerName: customer.Name,
		CompanyName:  senderName(middlewares.CurrentUser(c)),
		Amount:       fmt.Sprintf("%.2f", q.Total),
		DateLabel:    "Valid until",
		Date:         q.ExpiryDate.Format("2006-01-02"),
		Notes:        q.Notes,
	}
	m, err := buildMailto(customer, data)
	if err != nil {
		return err
	}

	if q.Status == models.QuoteDraft {
		if err := tx.Model(q).Update("status", models.QuoteSent).Error; err != nil {
			return err
		}
		q.Status = models.QuoteSent
	}
	return c.JSON(fiber.Map{"mailto": m.URL, "to": m.To, "subject": m.Subject, "body": m.Body,
		"instructions": m.Instructions, "status": q.Status})
}

// EmailInvoice sends the invoice notification through the mail provider chain. The PDF is
// not attached.
func (h *Handler) EmailInvoice(c *fiber.Ctx) error {
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
	customer, err := documentRecipient(tx, uid, inv.CustomerID)
	if err != nil {
		return err
	}
	if customer.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "customer has no email address")
	}

	user := middlewares.CurrentUser(c)
	msg, err := mailer.DocumentMessage(customer.Email, invoiceMailData(inv, customer, user))
	if err != nil {
		return err
	}
	msg.ReplyTo = user.Email

	ctx, cancel := context.WithTimeout(c.UserContext(), mailTimeout)
	defer cancel()
	res, err := h.Mailer.Send(ctx, msg)
	if err != nil {
		logger.Component("mail").WithError(err).WithField("invoice", inv.InvoiceNumber).Error("invoice email failed")
		return fiber.NewError(fiber.StatusBadGateway, "email could not be sent")
	}
	return c.JSON(fiber.Map{"message": "email sent", "provider": res.ProviderName, "message_id": res.ProviderID})
}
