package controllers

import (
	"github.com/gofiber/fiber/v2"

	"invoicing-backend/database"
	"invoicing-backend/models"
)

func GetRecycleBin(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	q := tx.Scopes(database.ForUser(uid))
	if t := c.Query("type"); t != "" {
		q = q.Where("type = ?", t)
	}
	entries := []models.RecycleBin{}
	if err := q.Order("removed_at DESC, id DESC").Find(&entries).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": entries})
}

func RestoreRecycleBinEntry(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	entry, err := database.RestoreFromRecycleBin(tx, uid, id)
	if err != nil {
		return notFound(err, "recycle bin entry")
	}
	return c.JSON(fiber.Map{
		"message":     string(entry.Type) + " restored",
		"type":        entry.Type,
		"original_id": entry.OriginalID,
	})
}

func PurgeRecycleBinEntry(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	if err := database.PurgeUserEntry(tx, uid, id); err != nil {
		return notFound(err, "recycle bin entry")
	}
	return message(c, "permanently deleted")
}

func EmptyRecycleBin(c *fiber.Ctx) error {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}
	n, err := database.EmptyRecycleBin(tx, uid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "recycle bin emptied", "deleted": n})
}
