package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/storage"
	"invoicing-backend/utils"
)

const maxLogoBytes = 2 << 20

func GetProfile(c *fiber.Ctx) error {
	user := middlewares.CurrentUser(c)
	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(user)
}

func UpdateProfile(c *fiber.Ctx) error {
	var in ProfilePatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := tx.Where("id = ?", uid).Take(&user).Error; err != nil {
		return err
	}
	if updates := utils.UpdatesFromPtrDTO(&in); len(updates) > 0 {
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", uid).Take(&user).Error; err != nil {
			return err
		}
	}
	return c.JSON(user)
}

func ChangePassword(c *fiber.Ctx) error {
	var in ChangePasswordInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := tx.Where("id = ?", uid).Take(&user).Error; err != nil {
		return err
	}
	if err := user.ComparePassword(in.CurrentPassword); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "current password is incorrect")
	}
	if err := user.SetPassword(in.NewPassword); err != nil {
		return err
	}
	if err := tx.Model(&user).Update("password", user.Password).Error; err != nil {
		return err
	}
	return message(c, "password updated")
}

// UploadLogo takes the multipart field "logo" and stores its URL on the user.
func (h *Handler) UploadLogo(c *fiber.Ctx) error {
	file, err := c.FormFile("logo")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "logo file is required")
	}
	if file.Size > maxLogoBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "logo must be at most 2 MB")
	}
	tx, uid, err := tenantDB(c)
	if err != nil {
		return err
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	logoURL, err := h.Uploads.UploadLogo(c.UserContext(), uid, file.Header.Get("Content-Type"), f)
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return fiber.NewError(fiber.StatusBadRequest, "logo must be png, jpeg, webp, svg or gif")
	case errors.Is(err, storage.ErrNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, "file storage is not configured")
	case err != nil:
		return err
	}

	if err := tx.Model(&models.User{}).Where("id = ?", uid).Update("logo_url", logoURL).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"logo_url": logoURL})
}
