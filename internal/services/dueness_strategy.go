// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for regular expense reminders.
// Each frequency (daily, weekly, monthly) has its own strategy that decides
// whether enough time passed since the last reminder.

package services

import (
	"fmt"
	"time"

	"kopilka/internal/core"
)

// DuenessChecker is the strategy interface for checking if a reminder is due.
type DuenessChecker interface {
	// IsDue returns true if a reminder should be sent at now given the time
	// of the previous one. A zero lastReminder means never reminded.
	IsDue(lastReminder, now time.Time) bool
}

// DailyChecker implements DuenessChecker for daily reminders.
type DailyChecker struct{}

// IsDue returns true if the last reminder was on an earlier calendar day.
func (DailyChecker) IsDue(lastReminder, now time.Time) bool {
	if lastReminder.IsZero() {
		return true
	}
	return lastReminder.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker implements DuenessChecker for weekly reminders.
type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed since the last reminder.
func (WeeklyChecker) IsDue(lastReminder, now time.Time) bool {
	if lastReminder.IsZero() {
		return true
	}
	return now.Sub(lastReminder).Hours()/24 >= 7
}

// MonthlyChecker implements DuenessChecker for monthly reminders. A month is
// a fixed 30 days, matching core.Monthly.Next.
type MonthlyChecker struct{}

// IsDue returns true if 30 or more days have passed since the last reminder.
func (MonthlyChecker) IsDue(lastReminder, now time.Time) bool {
	if lastReminder.IsZero() {
		return true
	}
	return now.Sub(lastReminder).Hours()/24 >= 30
}

// duenessStrategies maps frequencies to their checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
