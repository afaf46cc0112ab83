package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/ports"
)

// ReminderProcessor publishes reminders for regular expenses whose next
// reminder is due and schedules the following one.
type ReminderProcessor struct {
	store     ports.Store
	publisher Publisher
}

func NewReminderProcessor(store ports.Store, publisher Publisher) *ReminderProcessor {
	return &ReminderProcessor{store: store, publisher: publisher}
}

// ProcessDue handles every active regular expense due at now and returns how
// many reminders were published. A failed publish leaves the expense due so
// the next run retries it.
func (p *ReminderProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.store.ListDueRegular(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due regular expenses: %w", err)
	}

	slog.InfoContext(ctx, "Processing regular expense reminders",
		"due", len(due),
		"processing_date", now.Format("2006-01-02"))

	sent := 0
	for _, re := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		checker, err := GetDuenessChecker(re.Frequency)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping regular expense",
				"regular_id", re.ID,
				"error", err)
			continue
		}
		if !checker.IsDue(re.LastReminder, now) {
			continue
		}

		settings, err := p.settings(ctx, re.UserID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load notification settings",
				"user_id", re.UserID,
				"error", err)
			continue
		}

		if settings.RegularReminders {
			if err := p.publisher.PublishReminder(ctx, reminderFor(re, now)); err != nil {
				slog.ErrorContext(ctx, "Failed to publish reminder",
					"regular_id", re.ID,
					"user_id", re.UserID,
					"error", err)
				continue
			}
			sent++
		}

		// muted reminders still advance so they do not pile up
		if err := p.store.MarkReminded(ctx, re.ID, now, re.Frequency.Next(now)); err != nil {
			slog.ErrorContext(ctx, "Failed to schedule next reminder",
				"regular_id", re.ID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Regular expense reminders complete",
		"sent", sent,
		"total_checked", len(due))

	return sent, nil
}

func (p *ReminderProcessor) settings(ctx context.Context, userID int64) (core.NotificationSettings, error) {
	s, _, err := p.store.GetSettings(ctx, userID)
	return s, err
}

func reminderFor(re core.RegularExpense, now time.Time) *amqp.ReminderMessage {
	return &amqp.ReminderMessage{
		ID:               uuid.NewString(),
		UserID:           re.UserID,
		RegularExpenseID: re.ID,
		Category:         re.Category,
		Amount:           re.Amount,
		Frequency:        string(re.Frequency),
		Description:      re.Description,
		DueAt:            re.NextReminder,
		Timestamp:        now,
	}
}
