package controllers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/utils"
)

const maxImportRows = 5000

// RowError reports why one CSV row was skipped. Row is 1-based and counts the header.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// csvRecords reads a CSV with a header row into maps keyed by lower-cased column name.
func csvRecords(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "csv file is empty")
		}
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid csv: "+err.Error())
	}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, " ", "_")))
	}

	var out []map[string]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid csv: "+err.Error())
		}
		if len(out) == maxImportRows {
			return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d rows per import", maxImportRows))
		}
		row := make(map[string]string, len(header))
		for i, v := range rec {
			if i < len(header) {
				row[header[i]] = v
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func parseAmount(row map[string]string, col string) (float64, error) {
	s := strings.TrimSpace(row[col])
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number", col)
	}
	return v, nil
}

// validationMessage flattens validator errors into "field: tag" pairs.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, len(ve))
	for i, fe := range ve {
		parts[i] = fe.Field() + ": " + fe.Tag()
	}
	return strings.Join(parts, ", ")
}

func customerFromRow(uid string, row map[string]string) (*models.Customer, error) {
	in := CustomerInput{
		Name:      row["name"],
		Email:     row["email"],
		Phone:     row["phone"],
		Address:   row["address"],
		City:      row["city"],
		Zip:       row["zip"],
		Country:   row["country"],
		VatNumber: row["vat_number"],
		Notes:     row["notes"],
	}
	utils.NormalizeDTO(&in)
	if err := middlewares.ValidateStruct(&in); err != nil {
		return nil, errors.New(validationMessage(err))
	}
	return &models.Customer{
		UID: uid, Name: in.Name, Email: in.Email, Phone: in.Phone, Address: in.Address,
		City: in.City, Zip: in.Zip, Country: in.Country, VatNumber: in.VatNumber, Notes: in.Notes,
	}, nil
}

func productFromRow(uid string, row map[string]string) (*models.Product, error) {
	price, err := parseAmount(row, "unit_price")
	if err != nil {
		return nil, err
	}
	rate, err := parseAmount(row, "tax_rate")
	if err != nil {
		return nil, err
	}
	in := ProductInput{
		Name:        row["name"],
		Description: row["description"],
		UnitPrice:   price,
		TaxRate:     rate,
		Unit:        row["unit"],
	}
	utils.NormalizeDTO(&in)
	if err := middlewares.ValidateStruct(&in); err != nil {
		return nil, errors.New(validationMessage(err))
	}
	return &models.Product{
		UID: uid, Name: in.Name, Description: in.Description,
		UnitPrice: in.UnitPrice, TaxRate: in.TaxRate, Unit: in.Unit,
	}, nil
}

// AdminImport bulk-loads customers or products for the user named by :uid from the
// multipart field "file". Valid rows are inserted; invalid ones are reported back.
func AdminImport(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if kind != "customers" && kind != "products" {
		return fiber.NewError(fiber.StatusBadRequest, "kind must be customers or products")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "csv file is required")
	}

	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}
	target, err := adminTarget(c, tx, true)
	if err != nil {
		return err
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	rows, err := csvRecords(f)
	if err != nil {
		return err
	}

	rowErrors := []RowError{}
	var customers []models.Customer
	var products []models.Product
	for i, row := range rows {
		var rowErr error
		switch kind {
		case "customers":
			var cust *models.Customer
			if cust, rowErr = customerFromRow(target.Id, row); rowErr == nil {
				customers = append(customers, *cust)
			}
		case "products":
			var p *models.Product
			if p, rowErr = productFromRow(target.Id, row); rowErr == nil {
				products = append(products, *p)
			}
		}
		if rowErr != nil {
			rowErrors = append(rowErrors, RowError{Row: i + 2, Error: rowErr.Error()})
		}
	}

	imported := 0
	switch {
	case len(customers) > 0:
		if err := tx.CreateInBatches(&customers, 200).Error; err != nil {
			return err
		}
		imported = len(customers)
	case len(products) > 0:
		if err := tx.CreateInBatches(&products, 200).Error; err != nil {
			return err
		}
		imported = len(products)
	}

	return c.JSON(fiber.Map{
		"kind":     kind,
		"imported": imported,
		"skipped":  len(rowErrors),
		"errors":   rowErrors,
	})
}
