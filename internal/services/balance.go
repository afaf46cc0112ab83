package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/ports"
)

// DefaultHistoryLimit caps HiddenHistory when the caller passes no limit.
const DefaultHistoryLimit = 20

// BalanceReconciler keeps the cached (main, hidden) pair consistent with
// the ledger and the hidden transfer log.
//
// Incremental updates are single SQL expressions run under a per-user lock.
// Recalculate rebuilds the cache from scratch and is always authoritative.
type BalanceReconciler struct {
	store     ports.Store
	publisher Publisher
	locks     *userLocks
	init      singleflight.Group
	now       func() time.Time
}

func NewBalanceReconciler(store ports.Store, publisher Publisher) *BalanceReconciler {
	return &BalanceReconciler{
		store:     store,
		publisher: publisher,
		locks:     newUserLocks(),
		now:       time.Now,
	}
}

// GetBalance returns the cached balance, initializing it on first access.
func (r *BalanceReconciler) GetBalance(ctx context.Context, userID int64) (core.Balance, error) {
	b, found, err := r.store.GetBalance(ctx, userID)
	if err != nil {
		return core.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	if found {
		return b, nil
	}

	v, err, _ := r.init.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		unlock := r.locks.lock(userID)
		defer unlock()

		var out core.Balance
		err := r.store.Atomically(ctx, func(tx ports.Store) error {
			var err error
			out, err = r.ensure(ctx, tx, userID)
			return err
		})
		return out, err
	})
	if err != nil {
		return core.Balance{}, fmt.Errorf("initialize balance: %w", err)
	}
	return v.(core.Balance), nil
}

// ensure returns the cached row, creating it when missing: by full
// recomputation if the user has any history, else as zeros. The caller holds
// the user lock and passes a transaction-bound store.
func (r *BalanceReconciler) ensure(ctx context.Context, tx ports.Store, userID int64) (core.Balance, error) {
	b, found, err := tx.GetBalance(ctx, userID)
	if err != nil {
		return core.Balance{}, err
	}
	if found {
		return b, nil
	}

	if err := tx.EnsureUser(ctx, userID); err != nil {
		return core.Balance{}, err
	}

	_, _, entries, err := tx.SumEntries(ctx, userID)
	if err != nil {
		return core.Balance{}, err
	}
	_, transfers, err := tx.NetHidden(ctx, userID)
	if err != nil {
		return core.Balance{}, err
	}
	if entries > 0 || transfers > 0 {
		slog.InfoContext(ctx, "Initializing balance from history",
			"user_id", userID,
			"entries", entries,
			"transfers", transfers)
		return r.recalculate(ctx, tx, userID)
	}

	b = core.Balance{UserID: userID, LastUpdated: r.now()}
	if err := tx.PutBalance(ctx, b); err != nil {
		return core.Balance{}, err
	}
	return b, nil
}

func (r *BalanceReconciler) recalculate(ctx context.Context, tx ports.Store, userID int64) (core.Balance, error) {
	income, expenses, _, err := tx.SumEntries(ctx, userID)
	if err != nil {
		return core.Balance{}, err
	}
	netHidden, _, err := tx.NetHidden(ctx, userID)
	if err != nil {
		return core.Balance{}, err
	}

	b := core.Balance{
		UserID:      userID,
		Main:        income - expenses - netHidden,
		Hidden:      netHidden,
		LastUpdated: r.now(),
	}
	if err := tx.EnsureUser(ctx, userID); err != nil {
		return core.Balance{}, err
	}
	if err := tx.PutBalance(ctx, b); err != nil {
		return core.Balance{}, err
	}
	return b, nil
}

// Recalculate re-derives the balance from the ledger and the transfer log and
// overwrites the cache. Idempotent.
func (r *BalanceReconciler) Recalculate(ctx context.Context, userID int64) (core.Balance, error) {
	unlock := r.locks.lock(userID)
	defer unlock()

	var b core.Balance
	err := r.store.Atomically(ctx, func(tx ports.Store) error {
		var err error
		b, err = r.recalculate(ctx, tx, userID)
		return err
	})
	if err != nil {
		return core.Balance{}, fmt.Errorf("recalculate balance for user %d: %w", userID, err)
	}

	slog.InfoContext(ctx, "Balance recalculated",
		"user_id", userID,
		"main", b.Main,
		"hidden", b.Hidden)

	ev := amqp.NewLedgerEvent(amqp.EventBalanceRecalculated, userID)
	ev.Main, ev.Hidden = b.Main, b.Hidden
	r.publish(ctx, ev)

	return b, nil
}

// RecalculateAll runs Recalculate for every known user. It keeps going past
// individual failures and returns them joined.
func (r *BalanceReconciler) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := r.Recalculate(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// RequestRecalculate queues a recalculation for the worker, or runs it
// inline when no broker is configured. userID 0 targets every user.
func (r *BalanceReconciler) RequestRecalculate(ctx context.Context, userID int64, reason string) (queued bool, err error) {
	if r.publisher != nil {
		err := r.publisher.PublishReconcileRequest(ctx, amqp.NewReconcileRequest(userID, reason))
		if err == nil {
			return true, nil
		}
		slog.WarnContext(ctx, "Failed to queue reconcile request, running inline",
			"user_id", userID,
			"error", err)
	}

	if userID == 0 {
		_, err = r.RecalculateAll(ctx)
	} else {
		_, err = r.Recalculate(ctx, userID)
	}
	return false, err
}

// ApplyIncome adds amount to the main balance.
func (r *BalanceReconciler) ApplyIncome(ctx context.Context, userID int64, amount float64) error {
	return r.applyDelta(ctx, userID, amount)
}

// ApplyExpense subtracts amount from the main balance.
func (r *BalanceReconciler) ApplyExpense(ctx context.Context, userID int64, amount float64) error {
	return r.applyDelta(ctx, userID, -amount)
}

func (r *BalanceReconciler) applyDelta(ctx context.Context, userID int64, delta float64) error {
	if err := core.ValidateAmount(abs(delta)); err != nil {
		return err
	}

	unlock := r.locks.lock(userID)
	defer unlock()

	return r.store.Atomically(ctx, func(tx ports.Store) error {
		if _, err := r.ensure(ctx, tx, userID); err != nil {
			return err
		}
		return tx.AdjustMain(ctx, userID, delta, r.now())
	})
}

// TransferToHidden moves amount from main to hidden. It fails with
// core.ErrInsufficientFunds, changing nothing, when main < amount.
func (r *BalanceReconciler) TransferToHidden(ctx context.Context, userID int64, amount float64, reason string) (core.HiddenTransfer, error) {
	return r.transfer(ctx, userID, amount, core.ToHidden, reason)
}

// TransferFromHidden moves amount from hidden back to main. It fails with
// core.ErrInsufficientFunds when hidden < amount.
func (r *BalanceReconciler) TransferFromHidden(ctx context.Context, userID int64, amount float64, reason string) (core.HiddenTransfer, error) {
	return r.transfer(ctx, userID, amount, core.FromHidden, reason)
}

func (r *BalanceReconciler) transfer(ctx context.Context, userID int64, amount float64, dir core.Direction, reason string) (core.HiddenTransfer, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return core.HiddenTransfer{}, err
	}
	if len(reason) > core.MaxDescriptionLen {
		return core.HiddenTransfer{}, core.ErrDescriptionTooLong
	}

	unlock := r.locks.lock(userID)
	defer unlock()

	t := core.HiddenTransfer{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Direction: dir,
		Reason:    reason,
		Timestamp: r.now(),
	}

	err := r.store.Atomically(ctx, func(tx ports.Store) error {
		if _, err := r.ensure(ctx, tx, userID); err != nil {
			return err
		}
		moved, err := tx.MoveHidden(ctx, userID, amount, dir, t.Timestamp)
		if err != nil {
			return err
		}
		if !moved {
			return core.ErrInsufficientFunds
		}
		return tx.InsertTransfer(ctx, t)
	})
	if err != nil {
		if errors.Is(err, core.ErrInsufficientFunds) {
			return core.HiddenTransfer{}, err
		}
		return core.HiddenTransfer{}, fmt.Errorf("transfer %s: %w", dir, err)
	}

	slog.InfoContext(ctx, "Hidden transfer recorded",
		"user_id", userID,
		"direction", dir,
		"amount", amount)

	return t, nil
}

// HiddenHistory returns the latest transfers, newest first.
func (r *BalanceReconciler) HiddenHistory(ctx context.Context, userID int64, limit int) ([]core.HiddenTransfer, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out, err := r.store.ListTransfers(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("hidden history: %w", err)
	}
	return out, nil
}

func (r *BalanceReconciler) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		// the state change is committed; the event is best effort
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"user_id", ev.UserID,
			"error", err)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
