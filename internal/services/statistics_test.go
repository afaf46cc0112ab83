package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopilka/internal/core"
)

func TestStatisticsAggregator_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.income(t, 5000, "Salary", 20)
	env.expense(t, 1000, "Food", 10)
	env.expense(t, 2000, "Rent", 2)
	env.expense(t, 999, "Food", 31) // outside the window

	stats, err := env.svc.Statistics.GetStatistics(ctx, testUser, 30)
	require.NoError(t, err)
	assert.InDelta(t, 5000, stats.TotalIncome, 1e-9)
	assert.InDelta(t, 3000, stats.TotalExpenses, 1e-9)
	assert.InDelta(t, 2000, stats.Balance, 1e-9)
	assert.Equal(t, map[string]float64{"Food": 1000, "Rent": 2000}, stats.ExpensesByCategory)
	assert.Equal(t, map[string]float64{"Salary": 5000}, stats.IncomeBySource)
	assert.Equal(t, 2, stats.ExpenseCount)
	assert.Equal(t, 1, stats.IncomeCount)
	assert.Equal(t, 3, stats.OperationCount())
	require.Len(t, stats.Expenses, 2)
	assert.Equal(t, "Rent", stats.Expenses[0].Category, "newest first")

	all, err := env.svc.Statistics.GetStatistics(ctx, testUser, core.AllTime)
	require.NoError(t, err)
	assert.InDelta(t, 3999, all.TotalExpenses, 1e-9)
	assert.True(t, all.From.IsZero())
}

func TestStatisticsAggregator_Empty(t *testing.T) {
	env := newTestEnv(t)

	stats, err := env.svc.Statistics.GetStatistics(context.Background(), testUser, 7)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalExpenses)
	assert.Zero(t, stats.OperationCount())
	assert.NotNil(t, stats.ExpensesByCategory)

	_, err = env.svc.Statistics.GetStatistics(context.Background(), testUser, -1)
	assert.ErrorIs(t, err, core.ErrInvalidDays)
}

func TestStatisticsAggregator_Range(t *testing.T) {
	env := newTestEnv(t)

	env.expense(t, 10, "Food", 5)
	env.expense(t, 20, "Food", 35)
	env.expense(t, 40, "Food", 65)

	to := testNow.AddDate(0, 0, -30)
	stats, err := env.svc.Statistics.GetStatisticsRange(context.Background(), testUser, to.AddDate(0, 0, -30), to)
	require.NoError(t, err)
	assert.InDelta(t, 20, stats.TotalExpenses, 1e-9)
	assert.Equal(t, 1, stats.ExpenseCount)
}

func TestTopN(t *testing.T) {
	totals := map[string]float64{"Food": 300, "Rent": 600, "Fun": 100, "Cafe": 100}

	top := TopN(totals, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "Rent", top[0].Name)
	assert.InDelta(t, 50, top[0].Percent, 1e-9)
	assert.Equal(t, "Food", top[1].Name)
	assert.Equal(t, "Cafe", top[2].Name, "ties break by name")

	assert.Len(t, TopN(totals, 0), 4)
	assert.Empty(t, TopN(nil, 3))
}
