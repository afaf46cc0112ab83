// Package ports declares the storage contracts the services depend on.
// internal/storage implements them on SQLite, internal/storage/memory in
// process.
package ports

import (
	"context"
	"time"

	"kopilka/internal/core"
)

// EntryFilter narrows a ledger listing. Zero values mean unbounded.
type EntryFilter struct {
	Kind  core.EntryKind // empty for both kinds
	From  time.Time      // inclusive
	To    time.Time      // exclusive
	Limit int
}

// Ports for outbound adapters.
type (
	UserStore interface {
		// EnsureUser registers the user if unknown. Idempotent.
		EnsureUser(ctx context.Context, userID int64) error
		ListUserIDs(ctx context.Context) ([]int64, error)
		PremiumUntil(ctx context.Context, userID int64) (time.Time, error)
		SetPremiumUntil(ctx context.Context, userID int64, until time.Time) error
	}

	LedgerStore interface {
		InsertEntry(ctx context.Context, e core.LedgerEntry) (int64, error)
		// GetEntry returns core.ErrNotFound for unknown ids or foreign entries.
		GetEntry(ctx context.Context, userID, id int64) (core.LedgerEntry, error)
		DeleteEntry(ctx context.Context, userID, id int64) (bool, error)
		// ListEntries returns matching entries newest first.
		ListEntries(ctx context.Context, userID int64, f EntryFilter) ([]core.LedgerEntry, error)
		// SumEntries returns all-time income and expense totals and the entry count.
		SumEntries(ctx context.Context, userID int64) (income, expenses float64, count int, err error)
	}

	TransferStore interface {
		InsertTransfer(ctx context.Context, t core.HiddenTransfer) error
		// ListTransfers returns transfers newest first.
		ListTransfers(ctx context.Context, userID int64, limit int) ([]core.HiddenTransfer, error)
		// NetHidden is sum(to_hidden) - sum(from_hidden) with the transfer count.
		NetHidden(ctx context.Context, userID int64) (net float64, count int, err error)
	}

	BalanceStore interface {
		// GetBalance reports false when the user has no cached row yet.
		GetBalance(ctx context.Context, userID int64) (core.Balance, bool, error)
		PutBalance(ctx context.Context, b core.Balance) error
		// AdjustMain adds delta to the main balance in a single statement.
		AdjustMain(ctx context.Context, userID int64, delta float64, at time.Time) error
		// MoveHidden shifts amount between main and hidden when the source
		// side covers it. It reports false and changes nothing otherwise.
		MoveHidden(ctx context.Context, userID int64, amount float64, dir core.Direction, at time.Time) (bool, error)
	}

	BudgetStore interface {
		UpsertBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID int64, category string, period core.BudgetPeriod) (bool, error)
		ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	}

	FilterStore interface {
		UpsertRule(ctx context.Context, r core.FilterRule) error
		DeleteRule(ctx context.Context, userID int64, category string, kind core.EntryKind) (bool, error)
		ListRules(ctx context.Context, userID int64) ([]core.FilterRule, error)
		ClearRules(ctx context.Context, userID int64) (int64, error)
	}

	SettingsStore interface {
		// GetSettings reports false when the user kept the defaults.
		GetSettings(ctx context.Context, userID int64) (core.NotificationSettings, bool, error)
		PutSettings(ctx context.Context, s core.NotificationSettings) error
	}

	RegularExpenseStore interface {
		InsertRegular(ctx context.Context, re core.RegularExpense) (int64, error)
		// ListRegular returns the active regular expenses ordered by next reminder.
		ListRegular(ctx context.Context, userID int64) ([]core.RegularExpense, error)
		// ListDueRegular returns active regular expenses of all users due at now.
		ListDueRegular(ctx context.Context, now time.Time) ([]core.RegularExpense, error)
		MarkReminded(ctx context.Context, id int64, at, next time.Time) error
		DeactivateRegular(ctx context.Context, userID, id int64) (bool, error)
	}

	GoalStore interface {
		InsertGoal(ctx context.Context, g core.Goal) (int64, error)
		// GetGoal returns core.ErrNotFound for unknown ids or foreign goals.
		GetGoal(ctx context.Context, userID, id int64) (core.Goal, error)
		// ListGoals returns active goals newest first. With includeCompleted
		// the completed ones follow them.
		ListGoals(ctx context.Context, userID int64, includeCompleted bool) ([]core.Goal, error)
		// SaveGoalProgress stores the current amount and completion state.
		SaveGoalProgress(ctx context.Context, g core.Goal) error
		// DeleteGoal removes the goal together with its contributions.
		DeleteGoal(ctx context.Context, userID, id int64) (bool, error)
		InsertContribution(ctx context.Context, c core.GoalContribution) (int64, error)
		// ListContributions returns a goal's contributions newest first.
		ListContributions(ctx context.Context, userID, goalID int64, limit int) ([]core.GoalContribution, error)
	}

	// Store aggregates every port. Atomically runs fn against a store bound
	// to a single transaction, committing only when fn returns nil.
	Store interface {
		UserStore
		LedgerStore
		TransferStore
		BalanceStore
		BudgetStore
		FilterStore
		SettingsStore
		RegularExpenseStore
		GoalStore

		Atomically(ctx context.Context, fn func(tx Store) error) error
		Close() error
	}
)
