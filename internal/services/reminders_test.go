package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopilka/internal/core"
)

func addRegular(t *testing.T, env *testEnv, userID int64, freq core.Frequency) core.RegularExpense {
	t.Helper()
	re, err := env.svc.Notifications.AddRegularExpense(context.Background(), core.RegularExpense{
		UserID: userID, Category: "Subscription", Amount: 299, Frequency: freq, Description: "music",
	})
	require.NoError(t, err)
	return re
}

func TestReminderProcessor_ProcessDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.svc.Reminders
	require.NotNil(t, p)

	daily := addRegular(t, env, testUser, core.Daily)
	monthly := addRegular(t, env, testUser, core.Monthly)

	// nothing is due yet
	n, err := p.ProcessDue(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, n)

	tomorrow := testNow.Add(24 * time.Hour)
	n, err = p.ProcessDue(ctx, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, env.pub.reminders, 1)
	msg := env.pub.reminders[0]
	assert.Equal(t, daily.ID, msg.RegularExpenseID)
	assert.Equal(t, "daily", msg.Frequency)
	assert.NotEmpty(t, msg.ID)

	// the same tick does not fire twice
	n, err = p.ProcessDue(ctx, tomorrow.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = p.ProcessDue(ctx, testNow.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "daily again and the monthly one")

	list, err := env.svc.Notifications.RegularExpenses(ctx, testUser)
	require.NoError(t, err)
	for _, re := range list {
		if re.ID == monthly.ID {
			assert.Equal(t, testNow.AddDate(0, 0, 60), re.NextReminder)
			assert.Equal(t, testNow.AddDate(0, 0, 30), re.LastReminder)
		}
	}
}

func TestReminderProcessor_MutedStillAdvances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	re := addRegular(t, env, testUser, core.Weekly)
	s := core.DefaultNotificationSettings(testUser)
	s.RegularReminders = false
	require.NoError(t, env.svc.Notifications.UpdateSettings(ctx, s))

	at := testNow.AddDate(0, 0, 7)
	n, err := env.svc.Reminders.ProcessDue(ctx, at)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, env.pub.reminders)

	due, err := env.store.ListDueRegular(ctx, at)
	require.NoError(t, err)
	assert.Empty(t, due, "muted reminder is rescheduled, id %d", re.ID)
}

func TestReminderProcessor_PublishFailureRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	addRegular(t, env, testUser, core.Daily)
	env.pub.err = errBroker

	at := testNow.Add(24 * time.Hour)
	n, err := env.svc.Reminders.ProcessDue(ctx, at)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.pub.err = nil
	n, err = env.svc.Reminders.ProcessDue(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed publish is retried on the next run")
}

func TestReminderProcessor_NotInitialized(t *testing.T) {
	p := NewReminderProcessor(nil, nil)
	_, err := p.ProcessDue(context.Background(), testNow)
	assert.Error(t, err)
}
