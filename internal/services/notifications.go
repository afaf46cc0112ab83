package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

const (
	dailySummaryTop = 3
	weeklyReportTop = 5
)

// LargeExpenseAlert flags an expense at or above the user's threshold.
type LargeExpenseAlert struct {
	Amount    float64 `json:"amount"`
	Threshold float64 `json:"threshold"`
}

// PeriodSummary backs the daily summary and the weekly report.
type PeriodSummary struct {
	Days          int                   `json:"days"`
	TotalExpenses float64               `json:"total_expenses"`
	TotalIncome   float64               `json:"total_income"`
	Balance       float64               `json:"balance"`
	ExpenseCount  int                   `json:"expense_count"`
	IncomeCount   int                   `json:"income_count"`
	TopCategories []core.CategoryAmount `json:"top_categories"`
}

// NotificationService owns per-user notification settings and the regular
// expense reminders.
type NotificationService struct {
	store ports.Store
	stats *StatisticsAggregator
	now   func() time.Time

	// threshold replaces the default large-expense threshold when positive.
	threshold float64
}

func NewNotificationService(store ports.Store, stats *StatisticsAggregator) *NotificationService {
	return &NotificationService{store: store, stats: stats, now: time.Now}
}

// SetDefaultThreshold sets the large-expense threshold of users that never
// saved their settings.
func (n *NotificationService) SetDefaultThreshold(v float64) {
	n.threshold = v
}

// Settings returns the stored settings or the defaults.
func (n *NotificationService) Settings(ctx context.Context, userID int64) (core.NotificationSettings, error) {
	s, found, err := n.store.GetSettings(ctx, userID)
	if err != nil {
		return core.NotificationSettings{}, fmt.Errorf("get notification settings: %w", err)
	}
	if !found && n.threshold > 0 {
		s.LargeExpenseThreshold = n.threshold
	}
	return s, nil
}

func (n *NotificationService) UpdateSettings(ctx context.Context, s core.NotificationSettings) error {
	if s.UserID == 0 {
		return core.ErrInvalidUser
	}
	if err := core.ValidateAmount(s.LargeExpenseThreshold); err != nil {
		return err
	}
	err := n.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, s.UserID); err != nil {
			return err
		}
		return tx.PutSettings(ctx, s)
	})
	if err != nil {
		return fmt.Errorf("update notification settings: %w", err)
	}
	return nil
}

// CheckLargeExpense returns an alert when the alert is enabled and amount
// reaches the threshold.
func (n *NotificationService) CheckLargeExpense(ctx context.Context, userID int64, amount float64) (*LargeExpenseAlert, error) {
	s, err := n.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.LargeExpenseAlert || amount < s.LargeExpenseThreshold {
		return nil, nil
	}
	return &LargeExpenseAlert{Amount: amount, Threshold: s.LargeExpenseThreshold}, nil
}

// BudgetAlertsEnabled reports the user's budget alert preference.
func (n *NotificationService) BudgetAlertsEnabled(ctx context.Context, userID int64) (bool, error) {
	s, err := n.Settings(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.BudgetAlerts, nil
}

func (n *NotificationService) DailySummary(ctx context.Context, userID int64) (PeriodSummary, error) {
	return n.PeriodSummary(ctx, userID, 1, dailySummaryTop)
}

func (n *NotificationService) WeeklyReport(ctx context.Context, userID int64) (PeriodSummary, error) {
	return n.PeriodSummary(ctx, userID, 7, weeklyReportTop)
}

// PeriodSummary aggregates the last days and ranks the top expense
// categories.
func (n *NotificationService) PeriodSummary(ctx context.Context, userID int64, days, top int) (PeriodSummary, error) {
	stats, err := n.stats.GetStatistics(ctx, userID, days)
	if err != nil {
		return PeriodSummary{}, err
	}
	return PeriodSummary{
		Days:          days,
		TotalExpenses: stats.TotalExpenses,
		TotalIncome:   stats.TotalIncome,
		Balance:       stats.Balance,
		ExpenseCount:  stats.ExpenseCount,
		IncomeCount:   stats.IncomeCount,
		TopCategories: TopN(stats.ExpensesByCategory, top),
	}, nil
}

// AddRegularExpense registers a recurring payment. The first reminder is
// due one period from now.
func (n *NotificationService) AddRegularExpense(ctx context.Context, re core.RegularExpense) (core.RegularExpense, error) {
	re.Category = strings.TrimSpace(re.Category)
	if err := re.Validate(); err != nil {
		return core.RegularExpense{}, err
	}
	re.NextReminder = re.Frequency.Next(n.now())
	re.Active = true

	err := n.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, re.UserID); err != nil {
			return err
		}
		id, err := tx.InsertRegular(ctx, re)
		re.ID = id
		return err
	})
	if err != nil {
		return core.RegularExpense{}, fmt.Errorf("add regular expense: %w", err)
	}
	return re, nil
}

func (n *NotificationService) RegularExpenses(ctx context.Context, userID int64) ([]core.RegularExpense, error) {
	out, err := n.store.ListRegular(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list regular expenses: %w", err)
	}
	return out, nil
}

// RemoveRegularExpense deactivates a regular expense; false when unknown.
func (n *NotificationService) RemoveRegularExpense(ctx context.Context, userID, id int64) (bool, error) {
	ok, err := n.store.DeactivateRegular(ctx, userID, id)
	if err != nil {
		return false, fmt.Errorf("remove regular expense: %w", err)
	}
	return ok, nil
}
