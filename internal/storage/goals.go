package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

const goalColumns = `id, user_id, name, target_amount, current_amount, deadline, icon, description, is_completed, created_at, completed_at`

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.Goal) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO goals (user_id, name, target_amount, current_amount, deadline, icon, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, g.TargetAmount, g.CurrentAmount, unixPtr(g.Deadline),
		g.Icon, g.Description, toUnix(g.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("create goal %q: %w", g.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read goal id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %d: %w", id, err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID int64, includeCompleted bool) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	if !includeCompleted {
		query += ` AND is_completed = 0`
	}
	query += ` ORDER BY is_completed, created_at DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveGoalProgress(ctx context.Context, g core.Goal) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE goals SET current_amount = ?, is_completed = ?, completed_at = ?
		 WHERE id = ? AND user_id = ?`,
		g.CurrentAmount, boolToInt(g.Completed), unixPtr(g.CompletedAt), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete goal %d: %w", id, err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (r *SQLiteRepository) InsertContribution(ctx context.Context, c core.GoalContribution) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO goal_contributions (goal_id, user_id, amount, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.GoalID, c.UserID, c.Amount, c.Note, toUnix(c.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("record contribution to goal %d: %w", c.GoalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read contribution id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListContributions(ctx context.Context, userID, goalID int64, limit int) ([]core.GoalContribution, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, goal_id, user_id, amount, note, created_at FROM goal_contributions
		 WHERE goal_id = ? AND user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		goalID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var out []core.GoalContribution
	for rows.Next() {
		var (
			c  core.GoalContribution
			ts int64
		)
		if err := rows.Scan(&c.ID, &c.GoalID, &c.UserID, &c.Amount, &c.Note, &ts); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.CreatedAt = fromUnix(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanGoal(s rowScanner) (core.Goal, error) {
	var (
		g                            core.Goal
		deadline, created, completed int64
		done                         int
	)
	if err := s.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline,
		&g.Icon, &g.Description, &done, &created, &completed); err != nil {
		return core.Goal{}, err
	}
	g.Deadline = timePtr(deadline)
	g.Completed = done != 0
	g.CreatedAt = fromUnix(created)
	g.CompletedAt = timePtr(completed)
	return g, nil
}

func unixPtr(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return toUnix(*t)
}

func timePtr(n int64) *time.Time {
	if n == 0 {
		return nil
	}
	t := fromUnix(n)
	return &t
}
