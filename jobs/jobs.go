// Package jobs runs the periodic maintenance tasks: overdue invoices, expired quotes,
// recycle-bin retention, and cleanup of expired sessions and idempotency keys.
package jobs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"invoicing-backend/config"
	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/models"
)

const jobTimeout = 5 * time.Minute

// startOfDay truncates to midnight UTC; due and expiry dates are calendar days.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarkOverdueInvoices flips unpaid invoices whose due date has passed to overdue.
func MarkOverdueInvoices(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&models.Invoice{}).
		Scopes(database.Active).
		Where("status = ? AND due_date < ?", models.InvoiceUnpaid, startOfDay(now)).
		Update("status", models.InvoiceOverdue)
	return res.RowsAffected, res.Error
}

// ExpireQuotes flips draft and sent quotes past their expiry date to expired.
func ExpireQuotes(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&models.Quote{}).
		Scopes(database.Active).
		Where("status IN ? AND expiry_date < ? AND converted_invoice_id IS NULL",
			[]models.QuoteStatus{models.QuoteDraft, models.QuoteSent}, startOfDay(now)).
		Update("status", models.QuoteExpired)
	return res.RowsAffected, res.Error
}

// PurgeRecycleBin permanently deletes entries older than retentionDays.
func PurgeRecycleBin(ctx context.Context, db *gorm.DB, now time.Time, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	return database.PurgeRecycleBinBefore(db.WithContext(ctx), cutoff)
}

// PurgeIdempotencyKeys deletes stored idempotent responses older than retention.
func PurgeIdempotencyKeys(ctx context.Context, db *gorm.DB, now time.Time, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("created_at < ?", now.Add(-retention)).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}

// Scheduler owns the cron runner.
type Scheduler struct {
	db       *gorm.DB
	sessions *database.SessionStorage
	cfg      config.JobsConfig
	logger   *logrus.Entry
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewScheduler(db *gorm.DB, sessions *database.SessionStorage, cfg config.JobsConfig) *Scheduler {
	return &Scheduler{
		db:       db,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Component("jobs"),
		now:      time.Now,
	}
}

// normalizeSchedule accepts 5-field cron specs by prefixing a seconds field.
func normalizeSchedule(spec string) string {
	if len(strings.Fields(spec)) == 5 {
		return "0 " + spec
	}
	return spec
}

// Start registers every job and starts the runner. A disabled scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.cfg.Enabled {
		s.logger.Info("scheduled jobs are disabled")
		return nil
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	entries := []struct {
		schedule string
		job      func()
	}{
		{s.cfg.OverdueSchedule, s.runStatusSweep},
		{s.cfg.RecycleBinSchedule, s.runRecycleBinPurge},
		{s.cfg.SessionCleanupSchedule, s.runExpiryCleanup},
	}
	for _, e := range entries {
		if _, err := c.AddFunc(normalizeSchedule(e.schedule), e.job); err != nil {
			s.logger.WithError(err).WithField("schedule", e.schedule).Error("failed to schedule job")
			return err
		}
	}

	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info("scheduled jobs started")
	return nil
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduled jobs did not stop in time")
	}
	s.running = false
}

func (s *Scheduler) runStatusSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	now := s.now()

	overdue, err := MarkOverdueInvoices(ctx, s.db, now)
	if err != nil {
		database.ReportError(err)
		s.logger.WithError(err).Error("overdue invoice sweep failed")
	} else {
		s.logger.WithField("count", overdue).Info("marked invoices overdue")
	}

	expired, err := ExpireQuotes(ctx, s.db, now)
	if err != nil {
		database.ReportError(err)
		s.logger.WithError(err).Error("quote expiry sweep failed")
	} else {
		s.logger.WithField("count", expired).Info("marked quotes expired")
	}
}

func (s *Scheduler) runRecycleBinPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := PurgeRecycleBin(ctx, s.db, s.now(), s.cfg.RecycleBinRetentionDays)
	if err != nil {
		database.ReportError(err)
		s.logger.WithError(err).WithField("count", n).Error("recycle bin purge failed")
		return
	}
	s.logger.WithField("count", n).Info("purged recycle bin entries")
}

func (s *Scheduler) runExpiryCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if s.sessions != nil {
		n, err := s.sessions.DeleteExpired(ctx)
		if err != nil {
			database.ReportError(err)
			s.logger.WithError(err).Error("session cleanup failed")
		} else {
			s.logger.WithField("count", n).Debug("deleted expired sessions")
		}
	}

	n, err := PurgeIdempotencyKeys(ctx, s.db, s.now(), s.cfg.IdempotencyKeyRetention)
	if err != nil {
		database.ReportError(err)
		s.logger.WithError(err).Error("idempotency key cleanup failed")
		return
	}
	s.logger.WithField("count", n).Debug("deleted old idempotency keys")
}
