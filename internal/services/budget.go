package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

// Budget alert thresholds in percent of the limit, inclusive.
const (
	budgetWarningPercent  = 80
	budgetExceededPercent = 100

	// budgetWindowDays is the spend window budgets are checked against.
	budgetWindowDays = 30
)

type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

// BudgetAlert is raised when a category reached 80% (warning) or 100%
// (exceeded) of its limit. Over is set for exceeded alerts, Remaining for
// warnings.
type BudgetAlert struct {
	Level     AlertLevel `json:"level"`
	Category  string     `json:"category"`
	Limit     float64    `json:"limit"`
	Spent     float64    `json:"spent"`
	Over      float64    `json:"over"`
	Remaining float64    `json:"remaining"`
	Percent   float64    `json:"percent"`
}

type BudgetSummary struct {
	TotalLimit     float64             `json:"total_limit"`
	TotalSpent     float64             `json:"total_spent"`
	TotalRemaining float64             `json:"total_remaining"`
	Count          int                 `json:"count"`
	Exceeded       []core.BudgetStatus `json:"exceeded"`
	Warning        []core.BudgetStatus `json:"warning"`
	Safe           []core.BudgetStatus `json:"safe"`
}

type BudgetTracker struct {
	store ports.Store
	stats *StatisticsAggregator
}

func NewBudgetTracker(store ports.Store, stats *StatisticsAggregator) *BudgetTracker {
	return &BudgetTracker{store: store, stats: stats}
}

// SetBudget upserts the limit for (user, category, period). An empty period
// means monthly.
func (t *BudgetTracker) SetBudget(ctx context.Context, userID int64, category string, limit float64, period core.BudgetPeriod) error {
	if period == "" {
		period = core.PeriodMonthly
	}
	b := core.Budget{UserID: userID, Category: strings.TrimSpace(category), LimitAmount: limit, Period: period}
	if err := b.Validate(); err != nil {
		return err
	}

	err := t.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, userID); err != nil {
			return err
		}
		return tx.UpsertBudget(ctx, b)
	})
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"user_id", userID,
		"category", b.Category,
		"limit", limit)
	return nil
}

// DeleteBudget removes the monthly budget of category; false when none existed.
func (t *BudgetTracker) DeleteBudget(ctx context.Context, userID int64, category string) (bool, error) {
	ok, err := t.store.DeleteBudget(ctx, userID, strings.TrimSpace(category), core.PeriodMonthly)
	if err != nil {
		return false, fmt.Errorf("delete budget: %w", err)
	}
	return ok, nil
}

// GetBudgets joins the configured budgets with the 30-day spend per category.
func (t *BudgetTracker) GetBudgets(ctx context.Context, userID int64) ([]core.BudgetStatus, error) {
	budgets, err := t.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	stats, err := t.stats.GetStatistics(ctx, userID, budgetWindowDays)
	if err != nil {
		return nil, fmt.Errorf("budget statistics: %w", err)
	}

	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent := stats.ExpensesByCategory[b.Category]
		out = append(out, core.BudgetStatus{
			Budget:      b,
			Spent:       spent,
			Remaining:   b.LimitAmount - spent,
			PercentUsed: core.Percent(spent, b.LimitAmount),
		})
	}
	return out, nil
}

// CheckAlert evaluates the budget of category, matched case-insensitively.
// No budget, or spend under 80%, yields nil.
func (t *BudgetTracker) CheckAlert(ctx context.Context, userID int64, category string) (*BudgetAlert, error) {
	statuses, err := t.GetBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		if strings.EqualFold(s.Category, strings.TrimSpace(category)) {
			return alertFor(s), nil
		}
	}
	return nil, nil
}

func alertFor(s core.BudgetStatus) *BudgetAlert {
	switch {
	case s.PercentUsed >= budgetExceededPercent:
		return &BudgetAlert{
			Level:    AlertExceeded,
			Category: s.Category,
			Limit:    s.LimitAmount,
			Spent:    s.Spent,
			Over:     s.Spent - s.LimitAmount,
			Percent:  s.PercentUsed,
		}
	case s.PercentUsed >= budgetWarningPercent:
		return &BudgetAlert{
			Level:     AlertWarning,
			Category:  s.Category,
			Limit:     s.LimitAmount,
			Spent:     s.Spent,
			Remaining: s.Remaining,
			Percent:   s.PercentUsed,
		}
	default:
		return nil
	}
}

// Summary totals every budget and buckets them with the alert thresholds.
func (t *BudgetTracker) Summary(ctx context.Context, userID int64) (BudgetSummary, error) {
	statuses, err := t.GetBudgets(ctx, userID)
	if err != nil {
		return BudgetSummary{}, err
	}

	var s BudgetSummary
	for _, b := range statuses {
		s.TotalLimit += b.LimitAmount
		s.TotalSpent += b.Spent
		switch {
		case b.PercentUsed >= budgetExceededPercent:
			s.Exceeded = append(s.Exceeded, b)
		case b.PercentUsed >= budgetWarningPercent:
			s.Warning = append(s.Warning, b)
		default:
			s.Safe = append(s.Safe, b)
		}
	}
	s.Count = len(statuses)
	s.TotalRemaining = s.TotalLimit - s.TotalSpent
	return s, nil
}
