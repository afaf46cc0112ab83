package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

// StatisticsAggregator is the single aggregation primitive over the ledger.
// Budgets, analytics and summaries all build on it.
type StatisticsAggregator struct {
	store ports.LedgerStore
	now   func() time.Time
}

func NewStatisticsAggregator(store ports.LedgerStore) *StatisticsAggregator {
	return &StatisticsAggregator{store: store, now: time.Now}
}

// GetStatistics aggregates entries with timestamp >= now - days. days ==
// core.AllTime selects the whole ledger.
func (a *StatisticsAggregator) GetStatistics(ctx context.Context, userID int64, days int) (core.Statistics, error) {
	if days < 0 {
		return core.Statistics{}, core.ErrInvalidDays
	}

	now := a.now()
	var from time.Time
	if days != core.AllTime {
		from = now.AddDate(0, 0, -days)
	}

	stats, err := a.aggregate(ctx, userID, from, time.Time{})
	if err != nil {
		return core.Statistics{}, err
	}
	stats.Days = days
	stats.To = now
	return stats, nil
}

// GetStatisticsRange aggregates entries in [from, to).
func (a *StatisticsAggregator) GetStatisticsRange(ctx context.Context, userID int64, from, to time.Time) (core.Statistics, error) {
	return a.aggregate(ctx, userID, from, to)
}

func (a *StatisticsAggregator) aggregate(ctx context.Context, userID int64, from, to time.Time) (core.Statistics, error) {
	entries, err := a.store.ListEntries(ctx, userID, ports.EntryFilter{From: from, To: to})
	if err != nil {
		return core.Statistics{}, fmt.Errorf("load ledger: %w", err)
	}
	stats := Aggregate(userID, entries)
	stats.From = from
	stats.To = to
	return stats, nil
}

// Aggregate folds newest-first entries into statistics. Sums are plain
// float additions.
func Aggregate(userID int64, entries []core.LedgerEntry) core.Statistics {
	stats := core.Statistics{
		UserID:             userID,
		ExpensesByCategory: make(map[string]float64),
		IncomeBySource:     make(map[string]float64),
	}
	for _, e := range entries {
		switch e.Kind {
		case core.KindExpense:
			stats.TotalExpenses += e.Amount
			stats.ExpensesByCategory[e.Category] += e.Amount
			stats.Expenses = append(stats.Expenses, e)
		case core.KindIncome:
			stats.TotalIncome += e.Amount
			stats.IncomeBySource[e.Category] += e.Amount
			stats.Income = append(stats.Income, e)
		}
	}
	stats.ExpenseCount = len(stats.Expenses)
	stats.IncomeCount = len(stats.Income)
	stats.Balance = stats.TotalIncome - stats.TotalExpenses
	return stats
}

// TopN ranks totals by descending amount, ties by name. n <= 0 returns all.
// Percent is relative to the sum of the whole map.
func TopN(totals map[string]float64, n int) []core.CategoryAmount {
	var sum float64
	out := make([]core.CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		sum += amount
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Percent = core.Percent(out[i].Amount, sum)
	}
	return out
}
