package storage

import (
	"context"
	"fmt"
	"time"

	"kopilka/internal/core"
)

const regularColumns = `id, user_id, category, amount, frequency, description, next_reminder, last_reminder, is_active`

func (r *SQLiteRepository) InsertRegular(ctx context.Context, re core.RegularExpense) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO regular_expenses (user_id, category, amount, frequency, description, next_reminder, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		re.UserID, re.Category, re.Amount, string(re.Frequency), re.Description,
		toUnix(re.NextReminder), time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("create regular expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read regular expense id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListRegular(ctx context.Context, userID int64) ([]core.RegularExpense, error) {
	return r.queryRegular(ctx,
		`SELECT `+regularColumns+` FROM regular_expenses
		 WHERE user_id = ? AND is_active = 1 ORDER BY next_reminder, id`, userID)
}

func (r *SQLiteRepository) ListDueRegular(ctx context.Context, now time.Time) ([]core.RegularExpense, error) {
	return r.queryRegular(ctx,
		`SELECT `+regularColumns+` FROM regular_expenses
		 WHERE is_active = 1 AND next_reminder <= ? ORDER BY next_reminder, id`, toUnix(now))
}

func (r *SQLiteRepository) MarkReminded(ctx context.Context, id int64, at, next time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE regular_expenses SET last_reminder = ?, next_reminder = ? WHERE id = ?`,
		toUnix(at), toUnix(next), id)
	if err != nil {
		return fmt.Errorf("mark regular expense %d reminded: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeactivateRegular(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE regular_expenses SET is_active = 0 WHERE id = ? AND user_id = ? AND is_active = 1`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate regular expense %d: %w", id, err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (r *SQLiteRepository) queryRegular(ctx context.Context, query string, args ...any) ([]core.RegularExpense, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list regular expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RegularExpense
	for rows.Next() {
		var (
			re         core.RegularExpense
			freq       string
			next, last int64
			active     int
		)
		if err := rows.Scan(&re.ID, &re.UserID, &re.Category, &re.Amount, &freq,
			&re.Description, &next, &last, &active); err != nil {
			return nil, fmt.Errorf("scan regular expense: %w", err)
		}
		re.Frequency = core.Frequency(freq)
		re.NextReminder = fromUnix(next)
		re.LastReminder = fromUnix(last)
		re.Active = active != 0
		out = append(out, re)
	}
	return out, rows.Err()
}
