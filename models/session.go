package models

import "time"

// Session backs the cookie session store.
type Session struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Data      []byte    `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
}
