package models

import "time"

type PageView struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Path      string    `json:"path" gorm:"size:512;index"`
	Referrer  string    `json:"referrer" gorm:"size:512"`
	UserAgent string    `json:"user_agent" gorm:"size:512"`
	IPHash    string    `json:"-" gorm:"size:64;index"`
	Country   string    `json:"country" gorm:"size:64"`
	City      string    `json:"city" gorm:"size:128"`
	UID       string    `json:"uid" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
