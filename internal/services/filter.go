package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kopilka/internal/cache"
	"kopilka/internal/core"
	"kopilka/internal/ports"
)

const (
	ruleCacheSize = 1000
	ruleCacheTTL  = 10 * time.Minute
)

// FilterSet is a user's rules grouped by kind and mode.
type FilterSet struct {
	ExcludedExpenses []string `json:"excluded_expenses"`
	IncludedExpenses []string `json:"included_expenses"`
	ExcludedIncome   []string `json:"excluded_income"`
	IncludedIncome   []string `json:"included_income"`
}

// NewFilterSet groups rules.
func NewFilterSet(rules []core.FilterRule) FilterSet {
	var fs FilterSet
	for _, r := range rules {
		switch {
		case r.Kind == core.KindExpense && r.Mode == core.Excluded:
			fs.ExcludedExpenses = append(fs.ExcludedExpenses, r.Category)
		case r.Kind == core.KindExpense && r.Mode == core.IncludedOnly:
			fs.IncludedExpenses = append(fs.IncludedExpenses, r.Category)
		case r.Kind == core.KindIncome && r.Mode == core.Excluded:
			fs.ExcludedIncome = append(fs.ExcludedIncome, r.Category)
		case r.Kind == core.KindIncome && r.Mode == core.IncludedOnly:
			fs.IncludedIncome = append(fs.IncludedIncome, r.Category)
		}
	}
	return fs
}

// Empty reports whether no rule is configured.
func (fs FilterSet) Empty() bool {
	return len(fs.ExcludedExpenses)+len(fs.IncludedExpenses)+len(fs.ExcludedIncome)+len(fs.IncludedIncome) == 0
}

func (fs FilterSet) forKind(kind core.EntryKind) (excluded, included []string) {
	if kind == core.KindIncome {
		return fs.ExcludedIncome, fs.IncludedIncome
	}
	return fs.ExcludedExpenses, fs.IncludedExpenses
}

// Keeps reports whether category survives the rules for kind. Included-only
// rules take precedence over exclusions.
func (fs FilterSet) Keeps(kind core.EntryKind, category string) bool {
	excluded, included := fs.forKind(kind)
	if len(included) > 0 {
		return contains(included, category)
	}
	return !contains(excluded, category)
}

// Apply projects totals through the rules for kind. Dropped categories are
// removed, not zeroed. The input map is never modified.
func (fs FilterSet) Apply(totals map[string]float64, kind core.EntryKind) map[string]float64 {
	out := make(map[string]float64, len(totals))
	for category, amount := range totals {
		if fs.Keeps(kind, category) {
			out[category] = amount
		}
	}
	return out
}

// Project filters statistics and recomputes every derived total from the
// projected maps and entry lists.
func (fs FilterSet) Project(stats core.Statistics) core.Statistics {
	out := stats
	out.ExpensesByCategory = fs.Apply(stats.ExpensesByCategory, core.KindExpense)
	out.IncomeBySource = fs.Apply(stats.IncomeBySource, core.KindIncome)

	out.Expenses = nil
	for _, e := range stats.Expenses {
		if fs.Keeps(core.KindExpense, e.Category) {
			out.Expenses = append(out.Expenses, e)
		}
	}
	out.Income = nil
	for _, e := range stats.Income {
		if fs.Keeps(core.KindIncome, e.Category) {
			out.Income = append(out.Income, e)
		}
	}

	out.TotalExpenses = sum(out.ExpensesByCategory)
	out.TotalIncome = sum(out.IncomeBySource)
	out.Balance = out.TotalIncome - out.TotalExpenses
	out.ExpenseCount = len(out.Expenses)
	out.IncomeCount = len(out.Income)
	return out
}

// CategoryFilter stores per-user projection rules. Rule sets are cached and
// invalidated on every mutation.
type CategoryFilter struct {
	store ports.Store
	cache *cache.LRUCache[int64, FilterSet]
}

func NewCategoryFilter(store ports.Store) *CategoryFilter {
	return &CategoryFilter{
		store: store,
		cache: cache.NewLRUCache[int64, FilterSet](ruleCacheSize, ruleCacheTTL),
	}
}

// Cache exposes the rule cache so a cache.Manager can expire it.
func (f *CategoryFilter) Cache() cache.Cleaner {
	return f.cache
}

// AddRule upserts a rule. A rule for an already filtered category overwrites
// its mode.
func (f *CategoryFilter) AddRule(ctx context.Context, userID int64, category string, mode core.FilterMode, kind core.EntryKind) error {
	rule := core.FilterRule{UserID: userID, Category: strings.TrimSpace(category), Mode: mode, Kind: kind}
	if err := rule.Validate(); err != nil {
		return err
	}

	err := f.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, userID); err != nil {
			return err
		}
		return tx.UpsertRule(ctx, rule)
	})
	if err != nil {
		return fmt.Errorf("add filter rule: %w", err)
	}
	f.invalidate(userID)

	slog.InfoContext(ctx, "Category filter saved",
		"user_id", userID,
		"category", rule.Category,
		"mode", mode,
		"kind", kind)
	return nil
}

// RemoveRule deletes one rule; false when it did not exist.
func (f *CategoryFilter) RemoveRule(ctx context.Context, userID int64, category string, kind core.EntryKind) (bool, error) {
	if err := kind.Validate(); err != nil {
		return false, err
	}
	ok, err := f.store.DeleteRule(ctx, userID, strings.TrimSpace(category), kind)
	if err != nil {
		return false, fmt.Errorf("remove filter rule: %w", err)
	}
	f.invalidate(userID)
	return ok, nil
}

// ClearAll removes every rule of the user; false when there were none.
func (f *CategoryFilter) ClearAll(ctx context.Context, userID int64) (bool, error) {
	n, err := f.store.ClearRules(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("clear filter rules: %w", err)
	}
	f.invalidate(userID)
	return n > 0, nil
}

// Rules returns the user's grouped rules.
func (f *CategoryFilter) Rules(ctx context.Context, userID int64) (FilterSet, error) {
	if fs, ok := f.cache.Get(userID); ok {
		return fs, nil
	}

	rules, err := f.store.ListRules(ctx, userID)
	if err != nil {
		return FilterSet{}, fmt.Errorf("load filter rules: %w", err)
	}
	fs := NewFilterSet(rules)
	f.cache.Set(userID, fs)
	return fs, nil
}

// Apply projects category totals of kind through the user's rules.
func (f *CategoryFilter) Apply(ctx context.Context, userID int64, totals map[string]float64, kind core.EntryKind) (map[string]float64, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	fs, err := f.Rules(ctx, userID)
	if err != nil {
		return nil, err
	}
	return fs.Apply(totals, kind), nil
}

// Project applies the user's rules to statistics.
func (f *CategoryFilter) Project(ctx context.Context, userID int64, stats core.Statistics) (core.Statistics, error) {
	fs, err := f.Rules(ctx, userID)
	if err != nil {
		return core.Statistics{}, err
	}
	return fs.Project(stats), nil
}

func (f *CategoryFilter) invalidate(userID int64) {
	f.cache.Delete(userID)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func sum(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
