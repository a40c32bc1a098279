package controllers

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/mailer"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
)

const mailTimeout = 15 * time.Second

func (h *Handler) Register(c *fiber.Ctx) error {
	var in RegisterInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db := database.DB.WithContext(c.UserContext())
	var exists int64
	if err := db.Unscoped().Model(&models.User{}).Where("email = ?", in.Email).Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	trialEnds := h.now().UTC().AddDate(0, 0, h.Config.Auth.TrialDays)
	user := models.User{
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Email:              in.Email,
		CompanyName:        in.CompanyName,
		TrialEndsAt:        &trialEnds,
		SubscriptionStatus: models.SubscriptionTrialing,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return err
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	if err := h.startSession(c, &user); err != nil {
		return err
	}
	logger.Component("auth").WithField("uid", user.Id).Info("user registered")
	return c.JSON(fiber.Map{"user": user, "has_access": user.HasAccess(h.now())})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db := database.DB.WithContext(c.UserContext())
	var user models.User
	if err := db.Where("email = ?", in.Email).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	if err := user.ComparePassword(in.Password); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if user.IsSuspended {
		return fiber.NewError(fiber.StatusForbidden, "account suspended")
	}

	now := h.now().UTC()
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		return err
	}
	user.LastLoginAt = &now

	if err := h.startSession(c, &user); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user, "has_access": user.HasAccess(now)})
}

// startSession issues a fresh session id for user so a pre-login id cannot be reused.
func (h *Handler) startSession(c *fiber.Ctx, user *models.User) error {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(middlewares.SessionUserKey, user.Id)
	return sess.Save()
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Destroy(); err != nil {
		return err
	}
	return message(c, "logged out")
}

func (h *Handler) Me(c *fiber.Ctx) error {
	user := middlewares.CurrentUser(c)
	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(fiber.Map{"user": user, "has_access": user.HasAccess(h.now())})
}

// ForgotPassword always answers 200 so the endpoint does not reveal which emails exist.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var in ForgotPasswordInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	const reply = "if the address is registered, a reset link has been sent"
	log := logger.Component("auth")

	var user models.User
	err := database.DB.WithContext(c.UserContext()).Where("email = ?", in.Email).Take(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		log.WithField("email", mailer.MaskEmail(in.Email)).Info("password reset for unknown email")
		return message(c, reply)
	}
	if user.IsSuspended {
		return message(c, reply)
	}

	token, err := middlewares.GenerateResetToken(h.Config.Auth.ResetSecret, &user, h.Config.Auth.ResetTTL)
	if err != nil {
		return err
	}
	link := h.Config.Server.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
	msg, err := mailer.PasswordResetMessage(user.Email, user.FullName(), link, h.Config.Auth.ResetTTL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), mailTimeout)
	defer cancel()
	if _, err := h.Mailer.Send(ctx, msg); err != nil {
		log.WithError(err).WithField("uid", user.Id).Error("failed to send password reset email")
	}
	return message(c, reply)
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var in ResetPasswordInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	claims, err := middlewares.ParseResetToken(h.Config.Auth.ResetSecret, in.Token)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired token")
	}

	db := database.DB.WithContext(c.UserContext())
	var user models.User
	if err := db.Where("id = ?", claims.Subject).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid or expired token")
		}
		return err
	}
	// a used token no longer matches once the password has changed
	if middlewares.PasswordFingerprint(&user) != claims.Fingerprint {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or expired token")
	}

	if err := user.SetPassword(in.Password); err != nil {
		return err
	}
	if err := db.Model(&user).Update("password", user.Password).Error; err != nil {
		return err
	}
	logger.Component("auth").WithField("uid", user.Id).Info("password reset")
	return message(c, "password updated")
}
