package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kopilka/internal/core"
)

func (r *SQLiteRepository) GetBalance(ctx context.Context, userID int64) (core.Balance, bool, error) {
	b := core.Balance{UserID: userID}
	var updated int64
	err := r.q.QueryRowContext(ctx,
		`SELECT main, hidden, updated_at FROM balances WHERE user_id = ?`, userID).
		Scan(&b.Main, &b.Hidden, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Balance{UserID: userID}, false, nil
	}
	if err != nil {
		return core.Balance{}, false, fmt.Errorf("get balance for user %d: %w", userID, err)
	}
	b.LastUpdated = fromUnix(updated)
	return b, true, nil
}

// PutBalance overwrites the cached balance in one upsert.
func (r *SQLiteRepository) PutBalance(ctx context.Context, b core.Balance) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO balances (user_id, main, hidden, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		    main = excluded.main,
		    hidden = excluded.hidden,
		    updated_at = excluded.updated_at`,
		b.UserID, b.Main, b.Hidden, toUnix(b.LastUpdated))
	if err != nil {
		return fmt.Errorf("put balance for user %d: %w", b.UserID, err)
	}
	return nil
}

func (r *SQLiteRepository) AdjustMain(ctx context.Context, userID int64, delta float64, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO balances (user_id, main, hidden, updated_at) VALUES (?, ?, 0, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		    main = balances.main + excluded.main,
		    updated_at = excluded.updated_at`,
		userID, delta, toUnix(at))
	if err != nil {
		return fmt.Errorf("adjust balance for user %d: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) MoveHidden(ctx context.Context, userID int64, amount float64, dir core.Direction, at time.Time) (bool, error) {
	var query string
	switch dir {
	case core.ToHidden:
		query = `UPDATE balances SET main = main - ?, hidden = hidden + ?, updated_at = ?
		         WHERE user_id = ? AND main >= ?`
	case core.FromHidden:
		query = `UPDATE balances SET main = main + ?, hidden = hidden - ?, updated_at = ?
		         WHERE user_id = ? AND hidden >= ?`
	default:
		return false, core.ErrInvalidDirection
	}

	res, err := r.q.ExecContext(ctx, query, amount, amount, toUnix(at), userID, amount)
	if err != nil {
		return false, fmt.Errorf("move %s for user %d: %w", dir, userID, err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (r *SQLiteRepository) InsertTransfer(ctx context.Context, t core.HiddenTransfer) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO hidden_transfers (id, user_id, amount, direction, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount, string(t.Direction), t.Reason, toUnix(t.Timestamp))
	if err != nil {
		return fmt.Errorf("create hidden transfer: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListTransfers(ctx context.Context, userID int64, limit int) ([]core.HiddenTransfer, error) {
	query := `SELECT id, user_id, amount, direction, reason, created_at
	          FROM hidden_transfers WHERE user_id = ?
	          ORDER BY created_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hidden transfers: %w", err)
	}
	defer rows.Close()

	var out []core.HiddenTransfer
	for rows.Next() {
		var (
			t   core.HiddenTransfer
			dir string
			ts  int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &dir, &t.Reason, &ts); err != nil {
			return nil, fmt.Errorf("scan hidden transfer: %w", err)
		}
		t.Direction = core.Direction(dir)
		t.Timestamp = fromUnix(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) NetHidden(ctx context.Context, userID int64) (float64, int, error) {
	var net float64
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN direction = 'to_hidden' THEN amount ELSE -amount END), 0),
		    COUNT(*)
		 FROM hidden_transfers WHERE user_id = ?`, userID).Scan(&net, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum hidden transfers for user %d: %w", userID, err)
	}
	return net, count, nil
}
