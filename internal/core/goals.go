package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxGoalNameLen bounds savings goal names.
const MaxGoalNameLen = 100

var ErrEmptyGoalName = fmt.Errorf("%w: empty goal name", ErrValidation)

type (
	// Goal is a savings target. Contributions only move CurrentAmount; they
	// never touch the ledger or the balance.
	Goal struct {
		ID            int64      `json:"id"`
		UserID        int64      `json:"user_id"`
		Name          string     `json:"name"`
		TargetAmount  float64    `json:"target_amount"`
		CurrentAmount float64    `json:"current_amount"`
		Deadline      *time.Time `json:"deadline,omitempty"`
		Icon          string     `json:"icon,omitempty"`
		Description   string     `json:"description,omitempty"`
		Completed     bool       `json:"completed"`
		CreatedAt     time.Time  `json:"created_at"`
		CompletedAt   *time.Time `json:"completed_at,omitempty"`
	}

	GoalContribution struct {
		ID        int64     `json:"id"`
		GoalID    int64     `json:"goal_id"`
		UserID    int64     `json:"user_id"`
		Amount    float64   `json:"amount"`
		Note      string    `json:"note,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
)

func (g Goal) Validate() error {
	if g.UserID == 0 {
		return ErrInvalidUser
	}
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrEmptyGoalName
	}
	if len(name) > MaxGoalNameLen {
		return fmt.Errorf("%w: goal name too long (max %d characters)", ErrValidation, MaxGoalNameLen)
	}
	if err := ValidateAmount(g.TargetAmount); err != nil {
		return err
	}
	if len(g.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// Progress is the saved share of the target in percent. It may exceed 100.
func (g Goal) Progress() float64 {
	return Percent(g.CurrentAmount, g.TargetAmount)
}

// Remaining is what is still missing, never negative.
func (g Goal) Remaining() float64 {
	return math.Max(0, g.TargetAmount-g.CurrentAmount)
}

// DaysLeft counts whole days until the deadline, clamped at zero. It reports
// false for goals without a deadline.
func (g Goal) DaysLeft(now time.Time) (int, bool) {
	if g.Deadline == nil {
		return 0, false
	}
	days := int(g.Deadline.Sub(now).Hours() / 24)
	return max(0, days), true
}

// Contribute adds amount and marks the goal completed once the target is met.
func (g Goal) Contribute(amount float64, at time.Time) Goal {
	g.CurrentAmount = Round2(g.CurrentAmount + amount)
	if !g.Completed && g.CurrentAmount >= g.TargetAmount {
		g.Completed = true
		g.CompletedAt = &at
	}
	return g
}
