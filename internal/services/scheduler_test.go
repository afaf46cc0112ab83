package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopilka/internal/core"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	if config.ReconcileInterval != 24*time.Hour {
		t.Errorf("expected ReconcileInterval 24h, got %v", config.ReconcileInterval)
	}
	if config.ReminderInterval != 1*time.Hour {
		t.Errorf("expected ReminderInterval 1h, got %v", config.ReminderInterval)
	}
}

func TestScheduler_IsRunning(t *testing.T) {
	s := NewScheduler(nil, nil, DefaultSchedulerConfig())

	if s.IsRunning() {
		t.Error("scheduler should not be running initially")
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler(nil, nil, DefaultSchedulerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting already running scheduler")
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestScheduler_StopNotRunning(t *testing.T) {
	s := NewScheduler(nil, nil, DefaultSchedulerConfig())

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestScheduler_InvalidConfig(t *testing.T) {
	s := NewScheduler(nil, nil, SchedulerConfig{ReconcileInterval: time.Hour})

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for zero reminder interval")
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.income(t, 100, "Salary", 0)
	require.NoError(t, env.store.PutBalance(ctx, core.Balance{UserID: testUser, Main: 42}))
	addRegular(t, env, testUser, core.Daily)

	s := NewScheduler(env.svc.Balance, env.svc.Reminders, DefaultSchedulerConfig())
	s.now = func() time.Time { return testNow.Add(24 * time.Hour) }

	s.RunReconcile(ctx)
	b, err := env.svc.Balance.GetBalance(ctx, testUser)
	require.NoError(t, err)
	assert.InDelta(t, 100, b.Main, 1e-9, "sweep repairs drift")

	s.RunReminders(ctx)
	assert.Len(t, env.pub.reminders, 1)
}

func TestScheduler_StopAfterTimeout(t *testing.T) {
	s := NewScheduler(nil, nil, DefaultSchedulerConfig())
	// a loop stuck in a job: running, but done is never closed
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Stop(ctx), context.Canceled)
	require.NotPanics(t, func() {
		assert.ErrorIs(t, s.Stop(ctx), context.Canceled)
	})
	assert.True(t, s.IsRunning())

	close(s.doneCh)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}
