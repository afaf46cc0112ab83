package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

const ledgerColumns = `id, user_id, kind, amount, category, description, created_at`

// EnsureUser registers the user with an idempotent upsert.
func (r *SQLiteRepository) EnsureUser(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (user_id, created_at) VALUES (?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) PremiumUntil(ctx context.Context, userID int64) (time.Time, error) {
	var until int64
	err := r.q.QueryRowContext(ctx, `SELECT premium_until FROM users WHERE user_id = ?`, userID).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get premium for user %d: %w", userID, err)
	}
	return fromUnix(until), nil
}

func (r *SQLiteRepository) SetPremiumUntil(ctx context.Context, userID int64, until time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (user_id, premium_until, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET premium_until = excluded.premium_until`,
		userID, toUnix(until), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("set premium for user %d: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) InsertEntry(ctx context.Context, e core.LedgerEntry) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, kind, amount, category, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.Kind), e.Amount, e.Category, e.Description, toUnix(e.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("create %s entry: %w", e.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read entry id: %w", err)
	}

	slog.DebugContext(ctx, "Ledger entry saved to SQLite",
		"id", id,
		"user_id", e.UserID,
		"kind", e.Kind,
		"amount", e.Amount,
		"category", e.Category)

	return id, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, userID, id int64) (core.LedgerEntry, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, userID, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete entry %d: %w", id, err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, userID int64, f ports.EntryFilter) ([]core.LedgerEntry, error) {
	var sb strings.Builder
	args := []any{userID}

	sb.WriteString(`SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE user_id = ?`)
	if f.Kind != "" {
		sb.WriteString(` AND kind = ?`)
		args = append(args, string(f.Kind))
	}
	if !f.From.IsZero() {
		sb.WriteString(` AND created_at >= ?`)
		args = append(args, toUnix(f.From))
	}
	if !f.To.IsZero() {
		sb.WriteString(` AND created_at < ?`)
		args = append(args, toUnix(f.To))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SumEntries(ctx context.Context, userID int64) (float64, float64, int, error) {
	var income, expenses float64
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0),
		    COUNT(*)
		 FROM ledger_entries WHERE user_id = ?`, userID).Scan(&income, &expenses, &count)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("sum entries for user %d: %w", userID, err)
	}
	return income, expenses, count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (core.LedgerEntry, error) {
	var (
		e    core.LedgerEntry
		kind string
		ts   int64
	)
	if err := s.Scan(&e.ID, &e.UserID, &kind, &e.Amount, &e.Category, &e.Description, &ts); err != nil {
		return core.LedgerEntry{}, err
	}
	e.Kind = core.EntryKind(kind)
	e.Timestamp = fromUnix(ts)
	return e, nil
}
