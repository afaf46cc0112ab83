package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopilka/internal/core"
)

func TestFilterSet_Apply(t *testing.T) {
	totals := map[string]float64{"Food": 1000, "Rent": 2000, "Fun": 300}

	tests := []struct {
		name  string
		rules []core.FilterRule
		want  map[string]float64
	}{
		{
			name: "no rules copies",
			want: map[string]float64{"Food": 1000, "Rent": 2000, "Fun": 300},
		},
		{
			name: "excluded removes",
			rules: []core.FilterRule{
				{Category: "Rent", Mode: core.Excluded, Kind: core.KindExpense},
			},
			want: map[string]float64{"Food": 1000, "Fun": 300},
		},
		{
			name: "included only restricts",
			rules: []core.FilterRule{
				{Category: "Food", Mode: core.IncludedOnly, Kind: core.KindExpense},
				{Category: "Missing", Mode: core.IncludedOnly, Kind: core.KindExpense},
			},
			want: map[string]float64{"Food": 1000},
		},
		{
			name: "included wins over excluded",
			rules: []core.FilterRule{
				{Category: "Food", Mode: core.IncludedOnly, Kind: core.KindExpense},
				{Category: "Fun", Mode: core.Excluded, Kind: core.KindExpense},
			},
			want: map[string]float64{"Food": 1000},
		},
		{
			name: "income rules do not touch expenses",
			rules: []core.FilterRule{
				{Category: "Food", Mode: core.Excluded, Kind: core.KindIncome},
			},
			want: map[string]float64{"Food": 1000, "Rent": 2000, "Fun": 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := NewFilterSet(tt.rules)
			got := fs.Apply(totals, core.KindExpense)
			assert.Equal(t, tt.want, got)
			assert.Len(t, totals, 3, "input is never modified")
		})
	}
}

func TestFilterSet_Project(t *testing.T) {
	entries := []core.LedgerEntry{
		{ID: 4, Kind: core.KindIncome, Amount: 5000, Category: "Salary"},
		{ID: 3, Kind: core.KindIncome, Amount: 700, Category: "Gift"},
		{ID: 2, Kind: core.KindExpense, Amount: 2000, Category: "Rent"},
		{ID: 1, Kind: core.KindExpense, Amount: 1000, Category: "Food"},
	}
	stats := Aggregate(testUser, entries)

	fs := NewFilterSet([]core.FilterRule{
		{Category: "Rent", Mode: core.Excluded, Kind: core.KindExpense},
		{Category: "Salary", Mode: core.IncludedOnly, Kind: core.KindIncome},
	})
	got := fs.Project(stats)

	assert.InDelta(t, 1000, got.TotalExpenses, 1e-9)
	assert.InDelta(t, 5000, got.TotalIncome, 1e-9)
	assert.InDelta(t, 4000, got.Balance, 1e-9)
	assert.Equal(t, 1, got.ExpenseCount)
	assert.Equal(t, 1, got.IncomeCount)
	assert.Equal(t, map[string]float64{"Food": 1000}, got.ExpensesByCategory)
	assert.Equal(t, map[string]float64{"Salary": 5000}, got.IncomeBySource)

	// totals always equal the sum of the projected map
	var sum float64
	for _, v := range got.ExpensesByCategory {
		sum += v
	}
	assert.InDelta(t, sum, got.TotalExpenses, 1e-9)

	assert.InDelta(t, 3000, stats.TotalExpenses, 1e-9, "source statistics untouched")
}

func TestCategoryFilter_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.svc.Filter

	require.ErrorIs(t, f.AddRule(ctx, testUser, "Food", "sometimes", core.KindExpense), core.ErrInvalidMode)
	require.ErrorIs(t, f.AddRule(ctx, testUser, "", core.Excluded, core.KindExpense), core.ErrEmptyCategory)

	require.NoError(t, f.AddRule(ctx, testUser, "Rent", core.Excluded, core.KindExpense))
	rules, err := f.Rules(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rent"}, rules.ExcludedExpenses)

	// a cached read must observe the overwrite
	require.NoError(t, f.AddRule(ctx, testUser, "Rent", core.IncludedOnly, core.KindExpense))
	rules, err = f.Rules(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, rules.ExcludedExpenses)
	assert.Equal(t, []string{"Rent"}, rules.IncludedExpenses)

	got, err := f.Apply(ctx, testUser, map[string]float64{"Rent": 1, "Food": 2}, core.KindExpense)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Rent": 1}, got)

	ok, err := f.RemoveRule(ctx, testUser, "Rent", core.KindExpense)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.RemoveRule(ctx, testUser, "Rent", core.KindExpense)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.AddRule(ctx, testUser, "Gift", core.Excluded, core.KindIncome))
	cleared, err := f.ClearAll(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, cleared)
	cleared, err = f.ClearAll(ctx, testUser)
	require.NoError(t, err)
	assert.False(t, cleared)

	rules, err = f.Rules(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, rules.Empty())
}
