package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category, limit_amount, period, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, category, period) DO UPDATE SET
		    limit_amount = excluded.limit_amount,
		    updated_at = excluded.updated_at`,
		b.UserID, b.Category, b.LimitAmount, string(b.Period), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert budget %q: %w", b.Category, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID int64, category string, period core.BudgetPeriod) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM budgets WHERE user_id = ? AND category = ? AND period = ?`,
		userID, category, string(period))
	if err != nil {
		return false, fmt.Errorf("delete budget %q: %w", category, err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT category, limit_amount, period FROM budgets WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b := core.Budget{UserID: userID}
		var period string
		if err := rows.Scan(&b.Category, &b.LimitAmount, &period); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Period = core.BudgetPeriod(period)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertRule(ctx context.Context, rule core.FilterRule) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO category_filters (user_id, category, mode, kind) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, category, kind) DO UPDATE SET mode = excluded.mode`,
		rule.UserID, rule.Category, string(rule.Mode), string(rule.Kind))
	if err != nil {
		return fmt.Errorf("upsert filter %q: %w", rule.Category, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, userID int64, category string, kind core.EntryKind) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM category_filters WHERE user_id = ? AND category = ? AND kind = ?`,
		userID, category, string(kind))
	if err != nil {
		return false, fmt.Errorf("delete filter %q: %w", category, err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (r *SQLiteRepository) ListRules(ctx context.Context, userID int64) ([]core.FilterRule, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT category, mode, kind FROM category_filters WHERE user_id = ? ORDER BY kind, mode, category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	defer rows.Close()

	var out []core.FilterRule
	for rows.Next() {
		rule := core.FilterRule{UserID: userID}
		var mode, kind string
		if err := rows.Scan(&rule.Category, &mode, &kind); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		rule.Mode = core.FilterMode(mode)
		rule.Kind = core.EntryKind(kind)
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ClearRules(ctx context.Context, userID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM category_filters WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear filters: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) GetSettings(ctx context.Context, userID int64) (core.NotificationSettings, bool, error) {
	s := core.NotificationSettings{UserID: userID}
	var daily, weekly, budgets, large, regular int
	err := r.q.QueryRowContext(ctx,
		`SELECT daily_summary, weekly_report, budget_alerts, large_expense_alert,
		        large_expense_threshold, regular_reminders
		 FROM notification_settings WHERE user_id = ?`, userID).
		Scan(&daily, &weekly, &budgets, &large, &s.LargeExpenseThreshold, &regular)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultNotificationSettings(userID), false, nil
	}
	if err != nil {
		return core.NotificationSettings{}, false, fmt.Errorf("get notification settings: %w", err)
	}
	s.DailySummary = daily != 0
	s.WeeklyReport = weekly != 0
	s.BudgetAlerts = budgets != 0
	s.LargeExpenseAlert = large != 0
	s.RegularReminders = regular != 0
	return s, true, nil
}

func (r *SQLiteRepository) PutSettings(ctx context.Context, s core.NotificationSettings) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO notification_settings (user_id, daily_summary, weekly_report, budget_alerts,
		    large_expense_alert, large_expense_threshold, regular_reminders)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		    daily_summary = excluded.daily_summary,
		    weekly_report = excluded.weekly_report,
		    budget_alerts = excluded.budget_alerts,
		    large_expense_alert = excluded.large_expense_alert,
		    large_expense_threshold = excluded.large_expense_threshold,
		    regular_reminders = excluded.regular_reminders`,
		s.UserID, boolToInt(s.DailySummary), boolToInt(s.WeeklyReport), boolToInt(s.BudgetAlerts),
		boolToInt(s.LargeExpenseAlert), s.LargeExpenseThreshold, boolToInt(s.RegularReminders))
	if err != nil {
		return fmt.Errorf("put notification settings: %w", err)
	}
	return nil
}
