package models

import "time"

const SettingStripeMode = "stripe_mode"

type AppSetting struct {
	Key       string    `json:"key" gorm:"primaryKey;size:64"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
