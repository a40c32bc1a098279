package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"invoicing-backend/billing"
	"invoicing-backend/cache"
	"invoicing-backend/config"
	"invoicing-backend/controllers"
	"invoicing-backend/database"
	"invoicing-backend/events"
	"invoicing-backend/geo"
	"invoicing-backend/jobs"
	"invoicing-backend/logger"
	"invoicing-backend/mailer"
	"invoicing-backend/middlewares"
	"invoicing-backend/routes"
	"invoicing-backend/storage"
)

func main() {
	cfg := config.Load()
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}

	watchdog := database.NewWatchdog(database.Ping, cfg.Database.WatchdogFailures, cfg.Database.WatchdogInterval)
	database.SetWatchdog(watchdog)
	go watchdog.Run(ctx)

	// ---- Sessions and rate-limit storage
	sessionStorage := database.NewSessionStorage(db)
	sessions := middlewares.NewSessionStore(cfg.Session, sessionStorage)

	var limiterStorage fiber.Storage
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStorage(cfg.Redis.URL, "ratelimit:")
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-memory rate limiter")
		} else {
			limiterStorage = rs
			defer rs.Close()
		}
	}

	// ---- Integrations
	var uploads storage.Uploader = storage.DisabledUploader{}
	if fu, err := storage.NewFirebaseUploader(ctx, cfg.Firebase); err == nil {
		uploads = fu
	} else if !errors.Is(err, storage.ErrNotConfigured) {
		log.WithError(err).Warn("firebase storage unavailable, logo uploads disabled")
	}

	publisher, err := events.Connect(cfg.NATS.URL)
	if err != nil {
		log.WithError(err).Warn("domain events disabled")
		publisher = events.NoopPublisher{}
	}

	h := &controllers.Handler{
		Config:   cfg,
		Sessions: sessions,
		Billing:  billing.NewStripeGateway(cfg.Stripe),
		Mailer:   mailer.New(cfg.Email),
		Uploads:  uploads,
		Geo:      geo.New(cfg.Geo.Provider, cfg.Geo.Timeout),
		Events:   publisher,
		Now:      time.Now,
	}

	// ---- Background jobs
	scheduler := jobs.NewScheduler(db, sessionStorage, cfg.Jobs)
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("could not schedule jobs")
	}

	// ---- HTTP
	app := routes.NewApp(cfg, h, limiterStorage)
	listenErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("API server starting")
		listenErr <- app.Listen(":" + cfg.Server.Port)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-watchdog.Fatal():
		// the platform restarts the process with a fresh pool
		log.WithError(err).Error("database watchdog tripped")
		exitCode = 1
	case err := <-listenErr:
		if err != nil {
			log.WithError(err).Error("server stopped")
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	publisher.Close()
	if err := database.Close(); err != nil {
		log.WithError(err).Warn("closing database pool")
	}
	log.Info("bye")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
