package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the maintenance scheduler
type SchedulerConfig struct {
	// ReconcileInterval is how often every balance is rebuilt (default: 24h)
	ReconcileInterval time.Duration

	// ReminderInterval is how often due regular expenses are checked (default: 1h)
	ReminderInterval time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ReconcileInterval: 24 * time.Hour,
		ReminderInterval:  1 * time.Hour,
	}
}

// Scheduler runs the periodic maintenance jobs: the balance reconciliation
// sweep and the regular expense reminders. Either job may be nil.
type Scheduler struct {
	reconciler *BalanceReconciler
	reminders  *ReminderProcessor
	config     SchedulerConfig
	now        func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(reconciler *BalanceReconciler, reminders *ReminderProcessor, config SchedulerConfig) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		reminders:  reminders,
		config:     config,
		now:        time.Now,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.ReconcileInterval <= 0 || s.config.ReminderInterval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("scheduler intervals must be positive")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Scheduler started",
		"reconcile_interval", s.config.ReconcileInterval,
		"reminder_interval", s.config.ReminderInterval)

	return nil
}

// Stop signals the loop and waits for the current job to finish. After a
// timeout Stop may be called again to keep waiting.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	reconcileTicker := time.NewTicker(s.config.ReconcileInterval)
	defer reconcileTicker.Stop()

	reminderTicker := time.NewTicker(s.config.ReminderInterval)
	defer reminderTicker.Stop()

	// Run both jobs immediately on startup
	s.RunReconcile(ctx)
	s.RunReminders(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-reconcileTicker.C:
			s.RunReconcile(ctx)
		case <-reminderTicker.C:
			s.RunReminders(ctx)
		}
	}
}

// RunReconcile rebuilds every balance once.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	if s.reconciler == nil {
		return
	}
	start := s.now()
	n, err := s.reconciler.RecalculateAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Reconciliation sweep finished with errors",
			"reconciled", n,
			"error", err)
		return
	}
	slog.InfoContext(ctx, "Reconciliation sweep complete",
		"reconciled", n,
		"duration", s.now().Sub(start))
}

// RunReminders publishes every due reminder once.
func (s *Scheduler) RunReminders(ctx context.Context) {
	if s.reminders == nil {
		return
	}
	if _, err := s.reminders.ProcessDue(ctx, s.now()); err != nil {
		slog.ErrorContext(ctx, "Reminder processing failed", "error", err)
	}
}
