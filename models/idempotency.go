package models

import "time"

// IdempotencyKey stores the first successful response for a given request hash.
// Keys are unique per user.
type IdempotencyKey struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	UID            string     `json:"uid" gorm:"size:36;uniqueIndex:idx_idempotency_keys_uid_key,priority:1"`
	Key            string     `json:"key" gorm:"size:128;uniqueIndex:idx_idempotency_keys_uid_key,priority:2"`
	RequestHash    string     `json:"request_hash" gorm:"size:64"` // sha256 of method|path|body|uid
	Method         string     `json:"method" gorm:"size:10"`
	Path           string     `json:"path" gorm:"size:255"`
	ResponseStatus int        `json:"response_status"` // 0 => not completed yet
	ResponseBody   []byte     `json:"-"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	CompletedAt    *time.Time `json:"completed_at"`
}
