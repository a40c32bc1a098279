package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"invoicing-backend/logger"
)

var (
	dbUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invoicing_database_up",
		Help: "1 when the last database health check succeeded",
	})
	dbConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicing_database_connection_errors_total",
		Help: "Connection-class database errors seen by the watchdog",
	})
)

// Watchdog counts consecutive connection-class failures. Once the threshold is reached it
// delivers one error on Fatal; main then shuts down and exits non-zero so the platform
// restarts the process with a fresh pool.
type Watchdog struct {
	ping      func(context.Context) error
	threshold int
	interval  time.Duration

	mu       sync.Mutex
	failures int
	tripped  bool
	fatal    chan error
}

func NewWatchdog(ping func(context.Context) error, threshold int, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watchdog{
		ping:      ping,
		threshold: threshold,
		interval:  interval,
		fatal:     make(chan error, 1),
	}
}

// Fatal yields at most one error, when the failure threshold is reached.
func (w *Watchdog) Fatal() <-chan error {
	return w.fatal
}

// Observe records the outcome of a database call. Only connection-class errors count;
// a nil error resets the streak.
func (w *Watchdog) Observe(err error) {
	if w == nil || w.threshold <= 0 {
		return
	}
	if err != nil && !IsConnectionError(err) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		w.failures = 0
		dbUp.Set(1)
		return
	}
	w.failures++
	dbUp.Set(0)
	dbConnectionErrors.Inc()
	logger.Component("watchdog").WithError(err).
		WithField("consecutive_failures", w.failures).Warn("database connection error")

	if w.failures >= w.threshold && !w.tripped {
		w.tripped = true
		w.fatal <- fmt.Errorf("database unreachable after %d consecutive failures: %w", w.failures, err)
	}
}

// Run pings on every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	if w.threshold <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, w.interval/2)
			w.Observe(w.ping(pingCtx))
			cancel()
		}
	}
}

var (
	watchdogMu sync.RWMutex
	watchdog   *Watchdog
)

// SetWatchdog registers the process watchdog that ReportError feeds.
func SetWatchdog(w *Watchdog) {
	watchdogMu.Lock()
	watchdog = w
	watchdogMu.Unlock()
}

// ReportError passes a request-level error to the registered watchdog, if any.
func ReportError(err error) {
	if err == nil {
		return
	}
	watchdogMu.RLock()
	w := watchdog
	watchdogMu.RUnlock()
	w.Observe(err)
}
