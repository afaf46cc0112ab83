package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/ports"
)

// DefaultSearchLimit caps search results per kind.
const DefaultSearchLimit = 15

// AppendResult is what a successful append reports back. The alerts are only
// set for expenses that crossed a threshold.
type AppendResult struct {
	Entry        core.LedgerEntry   `json:"entry"`
	BudgetAlert  *BudgetAlert       `json:"budget_alert,omitempty"`
	LargeExpense *LargeExpenseAlert `json:"large_expense,omitempty"`
}

type SearchResult struct {
	Expenses []core.LedgerEntry `json:"expenses"`
	Income   []core.LedgerEntry `json:"income"`
}

// LedgerService is the only writer of ledger entries. Every append and
// delete adjusts the cached main balance in the same transaction.
type LedgerService struct {
	store         ports.Store
	balance       *BalanceReconciler
	budgets       *BudgetTracker
	notifications *NotificationService
	publisher     Publisher
	now           func() time.Time
}

func NewLedgerService(store ports.Store, balance *BalanceReconciler, budgets *BudgetTracker, notifications *NotificationService, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:         store,
		balance:       balance,
		budgets:       budgets,
		notifications: notifications,
		publisher:     publisher,
		now:           time.Now,
	}
}

func (s *LedgerService) AddExpense(ctx context.Context, userID int64, amount float64, category, description string) (AppendResult, error) {
	return s.Append(ctx, core.LedgerEntry{
		UserID:      userID,
		Kind:        core.KindExpense,
		Amount:      amount,
		Category:    category,
		Description: description,
	})
}

func (s *LedgerService) AddIncome(ctx context.Context, userID int64, amount float64, source, description string) (AppendResult, error) {
	return s.Append(ctx, core.LedgerEntry{
		UserID:      userID,
		Kind:        core.KindIncome,
		Amount:      amount,
		Category:    source,
		Description: description,
	})
}

// Append validates and stores e, then runs the post-append checks for
// expenses. Check failures are logged and never fail the append.
func (s *LedgerService) Append(ctx context.Context, e core.LedgerEntry) (AppendResult, error) {
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return AppendResult{}, err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}

	if err := s.write(ctx, e.UserID, func(tx ports.Store) error {
		id, err := tx.InsertEntry(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		return tx.AdjustMain(ctx, e.UserID, signed(e.Kind, e.Amount), s.now())
	}); err != nil {
		return AppendResult{}, fmt.Errorf("append %s: %w", e.Kind, err)
	}

	slog.InfoContext(ctx, "Ledger entry added",
		"user_id", e.UserID,
		"entry_id", e.ID,
		"kind", e.Kind,
		"amount", e.Amount,
		"category", e.Category)

	s.publishEntry(ctx, amqp.EventEntryAdded, e)

	result := AppendResult{Entry: e}
	if e.Kind == core.KindExpense {
		result.BudgetAlert = s.budgetAlert(ctx, e)
		result.LargeExpense = s.largeExpense(ctx, e)
	}
	return result, nil
}

// Delete removes one entry and reverses its balance effect. Unknown ids
// report false.
func (s *LedgerService) Delete(ctx context.Context, userID, id int64) (bool, error) {
	var (
		deleted bool
		entry   core.LedgerEntry
	)
	err := s.write(ctx, userID, func(tx ports.Store) error {
		var err error
		deleted, entry, err = s.deleteOne(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete entry %d: %w", id, err)
	}
	if deleted {
		s.publishEntry(ctx, amqp.EventEntryDeleted, entry)
	}
	return deleted, nil
}

// BulkDelete removes every id that exists and returns how many did.
func (s *LedgerService) BulkDelete(ctx context.Context, userID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var removed []core.LedgerEntry
	err := s.write(ctx, userID, func(tx ports.Store) error {
		for _, id := range ids {
			ok, e, err := s.deleteOne(ctx, tx, userID, id)
			if err != nil {
				return err
			}
			if ok {
				removed = append(removed, e)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}

	for _, e := range removed {
		s.publishEntry(ctx, amqp.EventEntryDeleted, e)
	}
	slog.InfoContext(ctx, "Ledger entries deleted",
		"user_id", userID,
		"requested", len(ids),
		"deleted", len(removed))
	return len(removed), nil
}

func (s *LedgerService) deleteOne(ctx context.Context, tx ports.Store, userID, id int64) (bool, core.LedgerEntry, error) {
	e, err := tx.GetEntry(ctx, userID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, core.LedgerEntry{}, nil
		}
		return false, core.LedgerEntry{}, err
	}
	ok, err := tx.DeleteEntry(ctx, userID, id)
	if err != nil || !ok {
		return false, core.LedgerEntry{}, err
	}
	if err := tx.AdjustMain(ctx, userID, -signed(e.Kind, e.Amount), s.now()); err != nil {
		return false, core.LedgerEntry{}, err
	}
	return true, e, nil
}

// write runs fn under the user lock in a transaction whose balance row is
// guaranteed to exist before fn touches the ledger.
func (s *LedgerService) write(ctx context.Context, userID int64, fn func(tx ports.Store) error) error {
	if userID == 0 {
		return core.ErrInvalidUser
	}
	unlock := s.balance.locks.lock(userID)
	defer unlock()

	return s.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, userID); err != nil {
			return err
		}
		if _, err := s.balance.ensure(ctx, tx, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// Query returns entries newer than since, newest first. since == 0 returns
// the whole ledger.
func (s *LedgerService) Query(ctx context.Context, userID int64, since time.Duration) ([]core.LedgerEntry, error) {
	var f ports.EntryFilter
	if since > 0 {
		f.From = s.now().Add(-since)
	}
	out, err := s.store.ListEntries(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return out, nil
}

// Search matches text case-insensitively against category and description.
// An empty kind searches both kinds.
func (s *LedgerService) Search(ctx context.Context, userID int64, text string, kind core.EntryKind) (SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SearchResult{}, nil
	}
	if kind != "" {
		if err := kind.Validate(); err != nil {
			return SearchResult{}, err
		}
	}

	var res SearchResult
	for _, k := range []core.EntryKind{core.KindExpense, core.KindIncome} {
		if kind != "" && kind != k {
			continue
		}
		entries, err := s.store.ListEntries(ctx, userID, ports.EntryFilter{Kind: k})
		if err != nil {
			return SearchResult{}, fmt.Errorf("search ledger: %w", err)
		}
		var hits []core.LedgerEntry
		for _, e := range entries {
			if e.Matches(text) {
				hits = append(hits, e)
				if len(hits) == DefaultSearchLimit {
					break
				}
			}
		}
		if k == core.KindExpense {
			res.Expenses = hits
		} else {
			res.Income = hits
		}
	}
	return res, nil
}

func (s *LedgerService) budgetAlert(ctx context.Context, e core.LedgerEntry) *BudgetAlert {
	if s.budgets == nil {
		return nil
	}
	if s.notifications != nil {
		enabled, err := s.notifications.BudgetAlertsEnabled(ctx, e.UserID)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read budget alert setting", "user_id", e.UserID, "error", err)
			return nil
		}
		if !enabled {
			return nil
		}
	}
	alert, err := s.budgets.CheckAlert(ctx, e.UserID, e.Category)
	if err != nil {
		slog.WarnContext(ctx, "Budget check failed",
			"user_id", e.UserID,
			"category", e.Category,
			"error", err)
		return nil
	}
	return alert
}

func (s *LedgerService) largeExpense(ctx context.Context, e core.LedgerEntry) *LargeExpenseAlert {
	if s.notifications == nil {
		return nil
	}
	alert, err := s.notifications.CheckLargeExpense(ctx, e.UserID, e.Amount)
	if err != nil {
		slog.WarnContext(ctx, "Large expense check failed", "user_id", e.UserID, "error", err)
		return nil
	}
	return alert
}

func (s *LedgerService) publishEntry(ctx context.Context, typ amqp.EventType, e core.LedgerEntry) {
	if s.publisher == nil {
		return
	}
	ev := amqp.NewLedgerEvent(typ, e.UserID)
	ev.EntryID = e.ID
	ev.Kind = string(e.Kind)
	ev.Amount = e.Amount
	ev.Category = e.Category
	if b, found, err := s.store.GetBalance(ctx, e.UserID); err == nil && found {
		ev.Main, ev.Hidden = b.Main, b.Hidden
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		// Don't fail the request - the entry is stored
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", typ,
			"entry_id", e.ID,
			"error", err)
	}
}

func signed(kind core.EntryKind, amount float64) float64 {
	if kind == core.KindExpense {
		return -amount
	}
	return amount
}
