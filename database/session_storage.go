package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicing-backend/models"
)

// SessionStorage implements fiber.Storage on the sessions table.
type SessionStorage struct {
	db *gorm.DB
}

func NewSessionStorage(db *gorm.DB) *SessionStorage {
	return &SessionStorage{db: db}
}

// Get returns nil, nil for missing or expired keys, as fiber.Storage requires.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	var row models.Session
	err := s.db.Where(map[string]any{"key": key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.ExpiresAt != nil && time.Now().After(*row.ExpiresAt) {
		return nil, nil
	}
	return row.Data, nil
}

// Set upserts the value; exp <= 0 means the row never expires.
func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	row := models.Session{Key: key, Data: val}
	if exp > 0 {
		at := time.Now().Add(exp)
		row.ExpiresAt = &at
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(&row).Error
}

func (s *SessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.db.Where(map[string]any{"key": key}).Delete(&models.Session{}).Error
}

func (s *SessionStorage) Reset() error {
	return s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Session{}).Error
}

// Close is a no-op: the pool is owned by the database package.
func (s *SessionStorage) Close() error {
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many went.
func (s *SessionStorage) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&models.Session{})
	return res.RowsAffected, res.Error
}
