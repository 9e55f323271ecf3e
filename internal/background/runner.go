// Package background drives the periodic sweeps: visitor pass expiry,
// emergency auto-resolution and billing reminders. Every sweep is
// idempotent, so a missed or doubled tick never corrupts state.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"society-service/internal/services"
)

// Runner manages the periodic maintenance jobs
type Runner struct {
	visitors    *services.VisitorService
	emergencies *services.EmergencyService
	billing     *services.BillingService

	sweepInterval    time.Duration
	reminderInterval time.Duration

	stopCh         chan struct{}
	wg             sync.WaitGroup
	sweepTicker    *time.Ticker
	reminderTicker *time.Ticker
	logger         *logrus.Logger
}

// NewRunner creates a new background runner
func NewRunner(visitors *services.VisitorService, emergencies *services.EmergencyService, billing *services.BillingService, sweepInterval, reminderInterval time.Duration, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if reminderInterval <= 0 {
		reminderInterval = 24 * time.Hour
	}
	return &Runner{
		visitors:         visitors,
		emergencies:      emergencies,
		billing:          billing,
		sweepInterval:    sweepInterval,
		reminderInterval: reminderInterval,
		stopCh:           make(chan struct{}),
		logger:           logger,
	}
}

// Start begins the background job processing
func (r *Runner) Start() {
	r.logger.Info("Starting background job runner")

	r.sweepTicker = time.NewTicker(r.sweepInterval)
	r.logger.WithField("interval", r.sweepInterval.String()).Info("Lifecycle sweep scheduled")

	r.reminderTicker = time.NewTicker(r.reminderInterval)
	r.logger.WithField("interval", r.reminderInterval.String()).Info("Billing reminder job scheduled")

	r.wg.Add(1)
	go r.runSweepJob()

	r.wg.Add(1)
	go r.runReminderJob()
}

// Stop gracefully stops all background jobs
func (r *Runner) Stop() {
	r.logger.Info("Stopping background job runner")
	close(r.stopCh)

	if r.sweepTicker != nil {
		r.sweepTicker.Stop()
	}
	if r.reminderTicker != nil {
		r.reminderTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Background job runner stopped")
	case <-time.After(30 * time.Second):
		r.logger.Warn("Background job runner stop timeout")
	}
}

func (r *Runner) runSweepJob() {
	defer r.wg.Done()

	// Run immediately so state missed during downtime is repaired
	r.executeSweep()

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.sweepTicker.C:
			r.executeSweep()
		}
	}
}

func (r *Runner) executeSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now()
	if _, err := r.visitors.SweepLapsed(ctx, now); err != nil {
		r.logger.WithError(err).Error("Visitor pass sweep failed")
	}
	if _, err := r.emergencies.SweepStale(ctx, now); err != nil {
		r.logger.WithError(err).Error("Emergency sweep failed")
	}
}

func (r *Runner) runReminderJob() {
	defer r.wg.Done()

	// Wait for the first interval so restarts do not double-remind
	for {
		select {
		case <-r.stopCh:
			return
		case <-r.reminderTicker.C:
			r.executeReminders()
		}
	}
}

func (r *Runner) executeReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := r.billing.SweepReminders(ctx, time.Now(), r.reminderInterval); err != nil {
		r.logger.WithError(err).Error("Billing reminder sweep failed")
	}
}
