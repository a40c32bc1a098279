package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicing-backend/database"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/utils"
)

func CreateCustomer(c *fiber.Ctx) error {
	var in CustomerInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	customer := models.Customer{
		UID:       uid,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		City:      in.City,
		Zip:       in.Zip,
		Country:   in.Country,
		VatNumber: in.VatNumber,
		Notes:     in.Notes,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return err
	}
	return c.JSON(customer)
}

func GetCustomers(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	q := tx.Model(&models.Customer{}).Scopes(database.ForUser(uid), database.Active)
	if s := c.Query("search"); s != "" {
		p := likePattern(s)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", p, p)
	}

	customers := []models.Customer{}
	if err := q.Order("name").Find(&customers).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"customers": customers})
}

func GetCustomer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	customer, err := findCustomer(tx, uid, id, false)
	if err != nil {
		return err
	}
	return c.JSON(customer)
}

func UpdateCustomer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in CustomerPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	customer, err := findCustomer(tx, uid, id, true)
	if err != nil {
		return err
	}

	updates := utils.UpdatesFromPtrDTO(&in)
	if len(updates) > 0 {
		if err := tx.Model(customer).Updates(updates).Error; err != nil {
			return err
		}
		// keep the display name on open documents in sync; settled ones keep the name they were issued to
		if name, ok := updates["name"]; ok {
			open := []struct {
				model    any
				statuses []string
			}{
				{&models.Invoice{}, []string{string(models.InvoiceUnpaid), string(models.InvoiceOverdue)}},
				{&models.Quote{}, []string{string(models.QuoteDraft), string(models.QuoteSent)}},
			}
			for _, o := range open {
				if err := tx.Model(o.model).Scopes(database.ForUser(uid), database.Active).
					Where("customer_id = ? AND status IN ?", id, o.statuses).
					Update("customer_name", name).Error; err != nil {
					return err
				}
			}
		}
	}
	if err := tx.Take(customer, id).Error; err != nil {
		return err
	}
	return c.JSON(customer)
}

func DeleteCustomer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	customer, err := findCustomer(tx, uid, id, true)
	if err != nil {
		return err
	}
	entry, err := database.MoveToRecycleBin(tx, uid, models.RecycleCustomer, customer.ID, customer.Name, customer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "customer moved to recycle bin", "recycle_bin_id": entry.ID})
}

// findCustomer loads an active customer of uid, optionally locking the row.
func findCustomer(tx *gorm.DB, uid string, id uint, lock bool) (*models.Customer, error) {
	q := tx.Scopes(database.ForUser(uid), database.Active)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var customer models.Customer
	if err := q.Where("id = ?", id).Take(&customer).Error; err != nil {
		return nil, notFound(err, "customer")
	}
	return &customer, nil
}
