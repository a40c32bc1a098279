package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"invoicing-backend/config"
	"invoicing-backend/logger"
)

var DB *gorm.DB

// transientErrors are message fragments of errors that mean the connection, not the
// query, failed.
var transientErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"unexpected eof",
	"bad connection",
	"server closed the connection",
	"terminating connection",
	"too many clients",
	"the database system is starting up",
	"the database system is shutting down",
	"connection timed out",
	"failed to connect",
}

// IsConnectionError reports whether err looks like a lost or unreachable database.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transientErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Retry runs fn up to attempts times, backing off exponentially from base, as long as
// the failure is a connection error.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsConnectionError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		wait := base << i
		logger.Component("database").WithError(err).WithField("attempt", i+1).
			Warnf("transient database error, retrying in %s", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// DSN builds the postgres connection string; DATABASE_URL wins when set.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     cfg.Name,
		RawQuery: "sslmode=" + cfg.SSLMode,
	}
	return u.String()
}

// Connect opens the pool, applies the pool limits and waits for the database to answer.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLog := gormlogger.New(logger.Log, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	var db *gorm.DB
	err := Retry(ctx, cfg.ConnectRetries, time.Second, func() error {
		var err error
		db, err = gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{Logger: gormLog})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	DB = db
	return db, nil
}

// Ping checks the shared pool.
func Ping(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the shared pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
