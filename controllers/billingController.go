package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"invoicing-backend/billing"
	"invoicing-backend/database"
	"invoicing-backend/events"
	"invoicing-backend/logger"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
)

// stripeMode reads the active Stripe account from app settings, falling back to config.
func (h *Handler) stripeMode(db *gorm.DB) (billing.Mode, error) {
	var setting models.AppSetting
	err := db.Where(map[string]any{"key": models.SettingStripeMode}).Take(&setting).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if m := billing.Mode(setting.Value); m.Valid() {
		return m, nil
	}
	if m := billing.Mode(h.Config.Stripe.DefaultMode); m.Valid() {
		return m, nil
	}
	return billing.ModeTest, nil
}

// billingError maps gateway failures onto HTTP statuses.
func billingError(err error) error {
	if errors.Is(err, billing.ErrNotConfigured) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "billing is not configured")
	}
	logger.Component("billing").WithError(err).Error("stripe request failed")
	return fiber.NewError(fiber.StatusBadGateway, "payment provider request failed")
}

// subscriptionStatus folds Stripe's status vocabulary onto the one stored on users.
func subscriptionStatus(s string) models.SubscriptionStatus {
	switch st := models.SubscriptionStatus(s); st {
	case models.SubscriptionTrialing, models.SubscriptionIncomplete, models.SubscriptionActive,
		models.SubscriptionPastDue, models.SubscriptionCanceled, models.SubscriptionUnpaid:
		return st
	case "incomplete_expired":
		return models.SubscriptionCanceled
	case "paused":
		return models.SubscriptionUnpaid
	}
	return models.SubscriptionIncomplete
}

// ensureCustomer creates the Stripe customer on first use and stores its id on the user.
func (h *Handler) ensureCustomer(c *fiber.Ctx, tx *gorm.DB, mode billing.Mode, user *models.User) error {
	if user.StripeCustomerID != "" {
		return nil
	}
	id, err := h.Billing.CreateCustomer(c.UserContext(), mode, user.Email, user.FullName(), user.Id)
	if err != nil {
		return billingError(err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", user.Id).Update("stripe_customer_id", id).Error; err != nil {
		return err
	}
	user.StripeCustomerID = id
	return nil
}

func (h *Handler) billingUser(c *fiber.Ctx) (*gorm.DB, *models.User, billing.Mode, error) {
	tx, uid, err := tenantDB(c)
	if err != nil {
		return nil, nil, "", err
	}
	var user models.User
	if err := tx.Where("id = ?", uid).Take(&user).Error; err != nil {
		return nil, nil, "", err
	}
	mode, err := h.stripeMode(tx)
	if err != nil {
		return nil, nil, "", err
	}
	return tx, &user, mode, nil
}

func (h *Handler) CreateSetupIntent(c *fiber.Ctx) error {
	tx, user, mode, err := h.billingUser(c)
	if err != nil {
		return err
	}
	if err := h.ensureCustomer(c, tx, mode, user); err != nil {
		return err
	}
	secret, err := h.Billing.CreateSetupIntent(c.UserContext(), mode, user.StripeCustomerID)
	if err != nil {
		return billingError(err)
	}
	return c.JSON(fiber.Map{"client_secret": secret, "mode": mode})
}

func (h *Handler) Subscribe(c *fiber.Ctx) error {
	var in SubscribeInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	tx, user, mode, err := h.billingUser(c)
	if err != nil {
		return err
	}
	// only a canceled subscription may be replaced; any other one is still billing
	if user.StripeSubscriptionID != "" && user.SubscriptionStatus != models.SubscriptionCanceled {
		return fiber.NewError(fiber.StatusConflict, "subscription already exists")
	}
	if err := h.ensureCustomer(c, tx, mode, user); err != nil {
		return err
	}

	sub, err := h.Billing.Subscribe(c.UserContext(), mode, user.StripeCustomerID, in.PaymentMethodID)
	if err != nil {
		return billingError(err)
	}
	status := subscriptionStatus(sub.Status)
	if err := tx.Model(&models.User{}).Where("id = ?", user.Id).Updates(map[string]any{
		"stripe_subscription_id": sub.ID,
		"subscription_status":    status,
		"current_period_end":     sub.CurrentPeriodEnd,
	}).Error; err != nil {
		return err
	}

	h.publish(c, events.SubscriptionUpdated, fiber.Map{"status": status, "subscription_id": sub.ID})
	return c.JSON(fiber.Map{"subscription_id": sub.ID, "status": status, "current_period_end": sub.CurrentPeriodEnd})
}

func (h *Handler) CancelSubscription(c *fiber.Ctx) error {
	tx, user, mode, err := h.billingUser(c)
	if err != nil {
		return err
	}
	if user.StripeSubscriptionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no subscription to cancel")
	}
	sub, err := h.Billing.Cancel(c.UserContext(), mode, user.StripeSubscriptionID)
	if err != nil {
		return billingError(err)
	}
	status := subscriptionStatus(sub.Status)
	if err := tx.Model(&models.User{}).Where("id = ?", user.Id).Update("subscription_status", status).Error; err != nil {
		return err
	}

	h.publish(c, events.SubscriptionUpdated, fiber.Map{"status": status, "subscription_id": sub.ID})
	return c.JSON(fiber.Map{"status": status})
}

func (h *Handler) BillingStatus(c *fiber.Ctx) error {
	_, user, mode, err := h.billingUser(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":               user.SubscriptionStatus,
		"subscription_granted": user.SubscriptionGranted,
		"trial_ends_at":        user.TrialEndsAt,
		"current_period_end":   user.CurrentPeriodEnd,
		"has_subscription":     user.StripeSubscriptionID != "",
		"has_access":           user.HasAccess(h.now()),
		"mode":                 mode,
	})
}

// StripeWebhook mirrors subscription state pushed by Stripe onto the matching user.
// Events for unknown customers and unhandled types are acknowledged and ignored.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	log := logger.Component("billing")
	ev, err := h.Billing.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, "billing is not configured")
	case err != nil:
		log.WithError(err).Warn("rejected webhook")
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook")
	}

	switch ev.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted",
		"invoice.payment_succeeded", "invoice.payment_failed":
	default:
		return c.JSON(fiber.Map{"received": true})
	}
	if ev.CustomerID == "" {
		return c.JSON(fiber.Map{"received": true})
	}

	db := database.DB.WithContext(c.UserContext())
	var user models.User
	if err := db.Where("stripe_customer_id = ?", ev.CustomerID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithField("event", ev.ID).Warn("webhook for unknown customer")
			return c.JSON(fiber.Map{"received": true})
		}
		return err
	}
	if staleSubscription(&user, ev) {
		log.WithField("uid", user.Id).WithField("event", ev.ID).WithField("subscription", ev.SubscriptionRef()).
			Info("ignoring webhook for a replaced subscription")
		return c.JSON(fiber.Map{"received": true})
	}
	updates := webhookUpdates(&user, ev)
	if len(updates) == 0 {
		return c.JSON(fiber.Map{"received": true})
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	log.WithField("uid", user.Id).WithField("event", ev.Type).Info("subscription updated from webhook")
	if h.Events != nil {
		h.Events.Publish(c.UserContext(), user.Id, events.SubscriptionUpdated, fiber.Map{
			"status": updates["subscription_status"], "source": ev.Type,
		})
	}
	return c.JSON(fiber.Map{"received": true})
}

// staleSubscription reports events about a subscription other than the one on file.
// A newly created subscription may replace one that is already canceled.
func staleSubscription(user *models.User, ev *billing.Event) bool {
	ref := ev.SubscriptionRef()
	if ref == "" || user.StripeSubscriptionID == "" || ref == user.StripeSubscriptionID {
		return false
	}
	return ev.Type != "customer.subscription.created" || user.SubscriptionStatus != models.SubscriptionCanceled
}

// webhookUpdates maps an event onto user columns. Subscription events carry Stripe's own
// status; invoice events only move a subscription that has already been paid.
func webhookUpdates(user *models.User, ev *billing.Event) map[string]any {
	switch ev.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		if ev.Subscription == nil {
			return nil
		}
		return map[string]any{
			"stripe_subscription_id": ev.Subscription.ID,
			"subscription_status":    subscriptionStatus(ev.Subscription.Status),
			"current_period_end":     ev.Subscription.CurrentPeriodEnd,
		}
	case "customer.subscription.deleted":
		return map[string]any{"subscription_status": models.SubscriptionCanceled}
	case "invoice.payment_succeeded":
		switch user.SubscriptionStatus {
		case models.SubscriptionIncomplete, models.SubscriptionPastDue, models.SubscriptionUnpaid:
			return map[string]any{"subscription_status": models.SubscriptionActive}
		}
	case "invoice.payment_failed":
		if user.SubscriptionStatus == models.SubscriptionActive {
			return map[string]any{"subscription_status": models.SubscriptionPastDue}
		}
	}
	return nil
}
