package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/database"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/utils"
)

func CreateProduct(c *fiber.Ctx) error {
	var in ProductInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	product := models.Product{
		UID:         uid,
		Name:        in.Name,
		Description: in.Description,
		UnitPrice:   in.UnitPrice,
		TaxRate:     in.TaxRate,
		Unit:        in.Unit,
	}
	if err := tx.Create(&product).Error; err != nil {
		return err
	}
	return c.JSON(product)
}

func GetProducts(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	q := tx.Model(&models.Product{}).Scopes(database.ForUser(uid), database.Active)
	if s := c.Query("search"); s != "" {
		p := likePattern(s)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", p, p)
	}

	products := []models.Product{}
	if err := q.Order("name").Find(&products).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"products": products})
}

func GetProduct(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	product, err := findProduct(tx, uid, id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func UpdateProduct(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in ProductPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	product, err := findProduct(tx, uid, id)
	if err != nil {
		return err
	}

	if updates := utils.UpdatesFromPtrDTO(&in); len(updates) > 0 {
		if err := tx.Model(product).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := tx.Take(product, id).Error; err != nil {
		return err
	}
	return c.JSON(product)
}

func DeleteProduct(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	product, err := findProduct(tx, uid, id)
	if err != nil {
		return err
	}
	entry, err := database.MoveToRecycleBin(tx, uid, models.RecycleProduct, product.ID, product.Name, product)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "product moved to recycle bin", "recycle_bin_id": entry.ID})
}

func findProduct(tx *gorm.DB, uid string, id uint) (*models.Product, error) {
	var product models.Product
	err := tx.Scopes(database.ForUser(uid), database.Active).Where("id = ?", id).Take(&product).Error
	if err != nil {
		return nil, notFound(err, "product")
	}
	return &product, nil
}

// checkProducts makes sure every referenced product belongs to uid.
func checkProducts(tx *gorm.DB, uid string, items []LineItemInput) error {
	seen := map[uint]struct{}{}
	ids := []uint{}
	for _, it := range items {
		if it.ProductID == nil {
			continue
		}
		if _, ok := seen[*it.ProductID]; !ok {
			seen[*it.ProductID] = struct{}{}
			ids = append(ids, *it.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Product{}).Scopes(database.ForUser(uid)).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(ids) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown product in items")
	}
	return nil
}
