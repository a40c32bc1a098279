package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	// SubscriptionGranted marks access given by an admin without Stripe.
	SubscriptionGranted SubscriptionStatus = "granted"
)

type User struct {
	Id          string `json:"id" gorm:"primaryKey;size:36"`
	FirstName   string `json:"first_name" gorm:"not null"`
	LastName    string `json:"last_name" gorm:"not null"`
	Email       string `json:"email" gorm:"uniqueIndex;not null"`
	Password    []byte `json:"-" gorm:"not null"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	VatNumber   string `json:"vat_number"`
	LogoURL     string `json:"logo_url"`

	IsAdmin     bool `json:"is_admin" gorm:"not null;default:false"`
	IsSuspended bool `json:"is_suspended" gorm:"not null;default:false"`

	TrialEndsAt          *time.Time         `json:"trial_ends_at"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status" gorm:"size:20;default:'trialing'"`
	SubscriptionGranted  bool               `json:"subscription_granted" gorm:"not null;default:false"`
	StripeCustomerID     string             `json:"-" gorm:"size:64;index"`
	StripeSubscriptionID string             `json:"-" gorm:"size:64;index"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`

	LastLoginAt *time.Time     `json:"last_login_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.Id == "" {
		// UUID version 4
		user.Id = uuid.NewString()
	}
	return
}

func (user *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	user.Password = hashedPassword
	return nil
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.Password, []byte(password))
}

func (user *User) FullName() string {
	if user.LastName == "" {
		return user.FirstName
	}
	return user.FirstName + " " + user.LastName
}

// HasAccess reports whether the user may use the paid resource routes at the given time.
func (user *User) HasAccess(now time.Time) bool {
	if user.IsAdmin || user.SubscriptionGranted {
		return true
	}
	switch user.SubscriptionStatus {
	case SubscriptionActive, SubscriptionPastDue, SubscriptionGranted:
		return true
	case SubscriptionTrialing:
		// a Stripe trial is bounded by Stripe; the registration trial by TrialEndsAt
		if user.StripeSubscriptionID != "" {
			return true
		}
		return user.TrialEndsAt == nil || now.Before(*user.TrialEndsAt)
	}
	return false
}
