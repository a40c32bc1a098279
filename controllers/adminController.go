package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicing-backend/billing"
	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
)

// UserSummary is a user row as the admin panel lists it.
type UserSummary struct {
	models.User
	HasAccess  bool  `json:"has_access"`
	Deleted    bool  `json:"deleted"`
	Customers  int64 `json:"customers"`
	Products   int64 `json:"products"`
	Invoices   int64 `json:"invoices"`
	Quotes     int64 `json:"quotes"`
	Statements int64 `json:"statements"`
}

type ownedCount struct {
	UID string
	N   int64
}

// countByUser returns live row counts of model per owner.
func countByUser(tx *gorm.DB, model any) (map[string]int64, error) {
	var rows []ownedCount
	if err := tx.Model(model).Scopes(database.Active).
		Select("uid, COUNT(*) AS n").Group("uid").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.UID] = r.N
	}
	return out, nil
}

func (h *Handler) AdminListUsers(c *fiber.Ctx) error {
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}

	q := tx.Model(&models.User{})
	if c.QueryBool("deleted") {
		q = q.Unscoped()
	}
	if s := c.Query("search"); s != "" {
		p := likePattern(s)
		q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company_name) LIKE ?", p, p, p, p)
	}
	var users []models.User
	if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
		return err
	}

	counts := make([]map[string]int64, 5)
	for i, m := range []any{&models.Customer{}, &models.Product{}, &models.Invoice{}, &models.Quote{}, &models.Statement{}} {
		if counts[i], err = countByUser(tx, m); err != nil {
			return err
		}
	}

	now := h.now()
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = UserSummary{
			User:       u,
			HasAccess:  u.HasAccess(now),
			Deleted:    u.DeletedAt.Valid,
			Customers:  counts[0][u.Id],
			Products:   counts[1][u.Id],
			Invoices:   counts[2][u.Id],
			Quotes:     counts[3][u.Id],
			Statements: counts[4][u.Id],
		}
	}
	return c.JSON(fiber.Map{"users": out})
}

func (h *Handler) AdminCreateUser(c *fiber.Ctx) error {
	var in AdminCreateUserInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}

	var exists int64
	if err := tx.Unscoped().Model(&models.User{}).Where("email = ?", in.Email).Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	trialEnds := h.now().UTC().AddDate(0, 0, h.Config.Auth.TrialDays)
	user := models.User{
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Email:               in.Email,
		CompanyName:         in.CompanyName,
		IsAdmin:             in.IsAdmin,
		SubscriptionGranted: in.SubscriptionGranted,
		TrialEndsAt:         &trialEnds,
		SubscriptionStatus:  models.SubscriptionTrialing,
	}
	if in.SubscriptionGranted {
		user.SubscriptionStatus = models.SubscriptionGranted
	}
	if err := user.SetPassword(in.Password); err != nil {
		return err
	}
	if err := tx.Create(&user).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// adminTarget loads the live user named by :uid, refusing to act on the caller's own
// account when self is false.
func adminTarget(c *fiber.Ctx, tx *gorm.DB, self bool) (*models.User, error) {
	user, err := adminTargetAny(c, tx, self)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt.Valid {
		return nil, fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	return user, nil
}

// adminTargetAny is adminTarget that also finds soft-deleted users, so they can be purged.
func adminTargetAny(c *fiber.Ctx, tx *gorm.DB, self bool) (*models.User, error) {
	uid := strings.TrimSpace(c.Params("uid"))
	if uid == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	if !self && uid == middlewares.CurrentUID(c) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "cannot apply this action to your own account")
	}
	var user models.User
	if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", uid).Take(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// AdminSetSubscription grants or revokes free access.
func AdminSetSubscription(c *fiber.Ctx) error {
	var in GrantInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}
	user, err := adminTarget(c, tx, true)
	if err != nil {
		return err
	}

	updates := map[string]any{"subscription_granted": in.Granted}
	switch {
	case in.Granted:
		updates["subscription_status"] = models.SubscriptionGranted
	case user.SubscriptionStatus == models.SubscriptionGranted:
		// the next Stripe webhook restores the real status
		if user.StripeSubscriptionID != "" {
			updates["subscription_status"] = models.SubscriptionIncomplete
		} else {
			updates["subscription_status"] = models.SubscriptionCanceled
		}
	}
	if err := tx.Model(user).Updates(updates).Error; err != nil {
		return err
	}
	if err := tx.Where("id = ?", user.Id).Take(user).Error; err != nil {
		return err
	}
	logger.Component("admin").WithField("uid", user.Id).WithField("granted", in.Granted).Info("subscription override changed")
	return c.JSON(user)
}

func AdminSetSuspended(c *fiber.Ctx) error {
	var in SuspendInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}
	user, err := adminTarget(c, tx, false)
	if err != nil {
		return err
	}
	if err := tx.Model(user).Update("is_suspended", in.Suspended).Error; err != nil {
		return err
	}
	user.IsSuspended = in.Suspended
	logger.Component("admin").WithField("uid", user.Id).WithField("suspended", in.Suspended).Info("suspension changed")
	return c.JSON(user)
}

// AdminDeleteUser soft-deletes by default; ?hard=true removes the user and everything it
// owns, including users that were soft-deleted earlier.
func AdminDeleteUser(c *fiber.Ctx) error {
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}
	user, err := adminTargetAny(c, tx, false)
	if err != nil {
		return err
	}

	if c.QueryBool("hard") {
		if err := database.HardDeleteUser(tx, user.Id); err != nil {
			return err
		}
		logger.Component("admin").WithField("uid", user.Id).Warn("user permanently deleted")
		return message(c, "user and all owned data permanently deleted")
	}
	if user.DeletedAt.Valid {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err := tx.Delete(user).Error; err != nil {
		return err
	}
	logger.Component("admin").WithField("uid", user.Id).Info("user deleted")
	return message(c, "user deleted")
}

func (h *Handler) AdminGetStripeMode(c *fiber.Ctx) error {
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}
	mode, err := h.stripeMode(tx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"mode": mode})
}

func AdminSetStripeMode(c *fiber.Ctx) error {
	var in StripeModeInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	mode := billing.Mode(in.Mode)
	if !mode.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "mode must be live or test")
	}
	tx, _, err := tenantDB(c)
	if err != nil {
		return err
	}
	setting := models.AppSetting{Key: models.SettingStripeMode, Value: string(mode)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return err
	}
	logger.Component("admin").WithField("mode", mode).Warn("stripe mode changed")
	return c.JSON(fiber.Map{"mode": mode})
}
