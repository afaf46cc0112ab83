package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kopilka/internal/core"
)

const (
	analyticsWindowDays = 30
	analyticsWeekDays   = 7

	// weeksPerMonth turns a 30-day total into a weekly rate.
	weeksPerMonth = 4.3

	trendUpFactor   = 1.2
	trendDownFactor = 0.8

	unusualFactor      = 3
	unusualScanLimit   = 10
	dominantPercent    = 40
	savingsShare       = 0.2
	healthyReserveRate = 0.3
	fewRecords         = 10

	forecastMonthDays = 30
)

type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// TipCode identifies a piece of advice; rendering is left to the caller.
type TipCode string

const (
	TipNegativeBalance  TipCode = "negative_balance"
	TipHealthyReserve   TipCode = "healthy_reserve"
	TipDominantCategory TipCode = "dominant_category"
	TipTrendUp          TipCode = "trend_up"
	TipTrendDown        TipCode = "trend_down"
	TipUnusualExpense   TipCode = "unusual_expense"
	TipFewRecords       TipCode = "few_records"
	TipNoTips           TipCode = "no_tips"
)

type Tip struct {
	Code     TipCode `json:"code"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Percent  float64 `json:"percent"`
	// Target is the suggested cut for TipNegativeBalance.
	Target float64 `json:"target"`
}

type AchievementCode string

const (
	AchievementMaster     AchievementCode = "operations_100"
	AchievementApprentice AchievementCode = "operations_50"
	AchievementNovice     AchievementCode = "operations_10"
	AchievementInPlus     AchievementCode = "positive_balance"
	AchievementDiscipline AchievementCode = "regular_records"
	AchievementVariety    AchievementCode = "many_categories"
	AchievementPiggyBank  AchievementCode = "high_savings"
)

type Achievement struct {
	Code AchievementCode `json:"code"`
	// Value carries the savings rate for AchievementPiggyBank.
	Value float64 `json:"value"`
}

// Insights summarizes the last 30 days against the last 7.
type Insights struct {
	DailyAverage       float64            `json:"daily_average"`
	WeeklyTrend        Trend              `json:"weekly_trend"`
	TopCategory        string             `json:"top_category"`
	TopCategoryPercent float64            `json:"top_category_percent"`
	Dominant           bool               `json:"dominant"`
	Unusual            []core.LedgerEntry `json:"unusual"`
	SavingsPotential   float64            `json:"savings_potential"`
}

type PeriodTotals struct {
	TotalExpenses float64 `json:"total_expenses"`
	TotalIncome   float64 `json:"total_income"`
	Balance       float64 `json:"balance"`
}

// Comparison holds the last 30 days against the 30 before them. Expense and
// income changes are percentages; BalanceChange is absolute.
type Comparison struct {
	Current        core.Statistics `json:"current"`
	Previous       PeriodTotals    `json:"previous"`
	ExpensesChange float64         `json:"expenses_change"`
	IncomeChange   float64         `json:"income_change"`
	BalanceChange  float64         `json:"balance_change"`
}

type Forecast struct {
	CurrentExpenses    float64 `json:"current_expenses"`
	PredictedTotal     float64 `json:"predicted_total"`
	PredictedRemaining float64 `json:"predicted_remaining"`
	DailyAverage       float64 `json:"daily_average"`
	DaysPassed         int     `json:"days_passed"`
	DaysRemaining      int     `json:"days_remaining"`
}

type Facts struct {
	TotalSpent       float64 `json:"total_spent"`
	TotalEarned      float64 `json:"total_earned"`
	FavoriteCategory string  `json:"favorite_category"`
	AverageExpense   float64 `json:"average_expense"`
	TotalOperations  int     `json:"total_operations"`
}

type AchievementReport struct {
	Achievements []Achievement `json:"achievements"`
	Facts        Facts         `json:"facts"`
}

// AnalyticsEngine derives insights, tips, comparisons and forecasts from the
// statistics aggregator. Premium users get the category filter projection.
type AnalyticsEngine struct {
	stats  *StatisticsAggregator
	filter *CategoryFilter
	now    func() time.Time
}

func NewAnalyticsEngine(stats *StatisticsAggregator, filter *CategoryFilter) *AnalyticsEngine {
	return &AnalyticsEngine{stats: stats, filter: filter, now: time.Now}
}

// window pulls the 30-day and 7-day statistics concurrently.
func (a *AnalyticsEngine) window(ctx context.Context, userID int64, sub core.SubscriptionStatus) (month, week core.Statistics, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		month, err = a.statistics(gctx, userID, analyticsWindowDays, sub)
		return err
	})
	g.Go(func() error {
		var err error
		week, err = a.statistics(gctx, userID, analyticsWeekDays, sub)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Statistics{}, core.Statistics{}, err
	}
	return month, week, nil
}

func (a *AnalyticsEngine) statistics(ctx context.Context, userID int64, days int, sub core.SubscriptionStatus) (core.Statistics, error) {
	stats, err := a.stats.GetStatistics(ctx, userID, days)
	if err != nil {
		return core.Statistics{}, err
	}
	return a.project(ctx, userID, stats, sub)
}

func (a *AnalyticsEngine) project(ctx context.Context, userID int64, stats core.Statistics, sub core.SubscriptionStatus) (core.Statistics, error) {
	if !sub.Premium || a.filter == nil {
		return stats, nil
	}
	return a.filter.Project(ctx, userID, stats)
}

func (a *AnalyticsEngine) Insights(ctx context.Context, userID int64, sub core.SubscriptionStatus) (Insights, error) {
	month, week, err := a.window(ctx, userID, sub)
	if err != nil {
		return Insights{}, fmt.Errorf("insights: %w", err)
	}
	return ComputeInsights(month, week), nil
}

// ComputeInsights is the pure part of Insights.
func ComputeInsights(month, week core.Statistics) Insights {
	in := Insights{WeeklyTrend: TrendStable}

	if month.ExpenseCount > 0 {
		in.DailyAverage = month.TotalExpenses / analyticsWindowDays
	}

	if week.TotalExpenses > 0 && month.TotalExpenses > 0 {
		rate := month.TotalExpenses / weeksPerMonth
		switch {
		case week.TotalExpenses > rate*trendUpFactor:
			in.WeeklyTrend = TrendIncreasing
		case week.TotalExpenses < rate*trendDownFactor:
			in.WeeklyTrend = TrendDecreasing
		}
	}

	if top := TopN(month.ExpensesByCategory, 1); len(top) == 1 {
		in.TopCategory = top[0].Name
		if month.TotalExpenses > 0 {
			in.TopCategoryPercent = top[0].Amount / month.TotalExpenses * 100
		}
		in.Dominant = in.TopCategoryPercent > dominantPercent
	}

	if month.ExpenseCount > 0 {
		avg := month.TotalExpenses / float64(month.ExpenseCount)
		scan := month.Expenses
		if len(scan) > unusualScanLimit {
			scan = scan[:unusualScanLimit]
		}
		for _, e := range scan {
			if e.Amount > avg*unusualFactor {
				in.Unusual = append(in.Unusual, e)
			}
		}
	}

	if month.Balance < 0 {
		in.SavingsPotential = -month.Balance * savingsShare
	}
	return in
}

func (a *AnalyticsEngine) Tips(ctx context.Context, userID int64, sub core.SubscriptionStatus) ([]Tip, error) {
	month, week, err := a.window(ctx, userID, sub)
	if err != nil {
		return nil, fmt.Errorf("tips: %w", err)
	}
	return ComputeTips(month, ComputeInsights(month, week)), nil
}

// ComputeTips turns insights into ordered advice. It never returns an empty
// list.
func ComputeTips(month core.Statistics, in Insights) []Tip {
	var tips []Tip

	switch {
	case month.Balance < 0:
		tips = append(tips, Tip{Code: TipNegativeBalance, Amount: -month.Balance, Target: in.SavingsPotential})
	case month.Balance > month.TotalExpenses*healthyReserveRate:
		tips = append(tips, Tip{Code: TipHealthyReserve, Amount: month.Balance})
	}

	if in.TopCategory != "" && in.Dominant {
		tips = append(tips, Tip{Code: TipDominantCategory, Category: in.TopCategory, Percent: in.TopCategoryPercent})
	}

	switch in.WeeklyTrend {
	case TrendIncreasing:
		tips = append(tips, Tip{Code: TipTrendUp, Amount: in.DailyAverage})
	case TrendDecreasing:
		tips = append(tips, Tip{Code: TipTrendDown})
	}

	if len(in.Unusual) > 0 {
		e := in.Unusual[0]
		tips = append(tips, Tip{Code: TipUnusualExpense, Category: e.Category, Amount: e.Amount})
	}

	if month.ExpenseCount < fewRecords {
		tips = append(tips, Tip{Code: TipFewRecords})
	}

	if len(tips) == 0 {
		tips = append(tips, Tip{Code: TipNoTips})
	}
	return tips
}

// Compare pits the last 30 days against the range [now-60d, now-30d).
func (a *AnalyticsEngine) Compare(ctx context.Context, userID int64, sub core.SubscriptionStatus) (Comparison, error) {
	now := a.now()
	cutoff := now.AddDate(0, 0, -analyticsWindowDays)

	var current, previous core.Statistics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = a.statistics(gctx, userID, analyticsWindowDays, sub)
		return err
	})
	g.Go(func() error {
		stats, err := a.stats.GetStatisticsRange(gctx, userID, cutoff.AddDate(0, 0, -analyticsWindowDays), cutoff)
		if err != nil {
			return err
		}
		previous, err = a.project(gctx, userID, stats, sub)
		return err
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, fmt.Errorf("compare periods: %w", err)
	}
	return ComputeComparison(current, previous), nil
}

// ComputeComparison guards percentage changes against a zero previous value,
// which reports 0.
func ComputeComparison(current, previous core.Statistics) Comparison {
	return Comparison{
		Current: current,
		Previous: PeriodTotals{
			TotalExpenses: previous.TotalExpenses,
			TotalIncome:   previous.TotalIncome,
			Balance:       previous.Balance,
		},
		ExpensesChange: change(current.TotalExpenses, previous.TotalExpenses),
		IncomeChange:   change(current.TotalIncome, previous.TotalIncome),
		BalanceChange:  current.Balance - previous.Balance,
	}
}

func change(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// Forecast predicts this month's expenses from the 30-day and 7-day totals.
// The month is a fixed 30 days and the day of month comes from the clock.
func (a *AnalyticsEngine) Forecast(ctx context.Context, userID int64, sub core.SubscriptionStatus) (Forecast, error) {
	month, week, err := a.window(ctx, userID, sub)
	if err != nil {
		return Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	return ComputeForecast(month.TotalExpenses, week.TotalExpenses, a.now().Day()), nil
}

func ComputeForecast(exp30, exp7 float64, day int) Forecast {
	if day < 1 {
		day = 1
	}
	remaining := max(forecastMonthDays-day, 0)

	fromWeek := exp30 + exp7*float64(remaining)/analyticsWeekDays
	fromDaily := exp30 / float64(day) * forecastMonthDays
	predicted := (fromWeek + fromDaily) / 2

	return Forecast{
		CurrentExpenses:    exp30,
		PredictedTotal:     predicted,
		PredictedRemaining: predicted - exp30,
		DailyAverage:       exp30 / float64(day),
		DaysPassed:         day,
		DaysRemaining:      remaining,
	}
}

// Achievements evaluates badges over all-time and 30-day statistics.
func (a *AnalyticsEngine) Achievements(ctx context.Context, userID int64, sub core.SubscriptionStatus) (AchievementReport, error) {
	var all, month core.Statistics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = a.statistics(gctx, userID, core.AllTime, sub)
		return err
	})
	g.Go(func() error {
		var err error
		month, err = a.statistics(gctx, userID, analyticsWindowDays, sub)
		return err
	})
	if err := g.Wait(); err != nil {
		return AchievementReport{}, fmt.Errorf("achievements: %w", err)
	}
	return ComputeAchievements(all, month), nil
}

func ComputeAchievements(all, month core.Statistics) AchievementReport {
	var list []Achievement

	ops := all.OperationCount()
	switch {
	case ops >= 100:
		list = append(list, Achievement{Code: AchievementMaster})
	case ops >= 50:
		list = append(list, Achievement{Code: AchievementApprentice})
	case ops >= 10:
		list = append(list, Achievement{Code: AchievementNovice})
	}

	if month.Balance > 0 {
		list = append(list, Achievement{Code: AchievementInPlus})
	}
	if month.ExpenseCount >= 20 {
		list = append(list, Achievement{Code: AchievementDiscipline})
	}
	if len(month.ExpensesByCategory) >= 5 {
		list = append(list, Achievement{Code: AchievementVariety})
	}
	if month.TotalIncome > 0 {
		if rate := month.Balance / month.TotalIncome * 100; rate > 30 {
			list = append(list, Achievement{Code: AchievementPiggyBank, Value: rate})
		}
	}

	facts := Facts{
		TotalSpent:      all.TotalExpenses,
		TotalEarned:     all.TotalIncome,
		TotalOperations: ops,
	}
	if top := TopN(month.ExpensesByCategory, 1); len(top) == 1 {
		facts.FavoriteCategory = top[0].Name
	}
	if all.ExpenseCount > 0 {
		facts.AverageExpense = all.TotalExpenses / float64(all.ExpenseCount)
	}

	return AchievementReport{Achievements: list, Facts: facts}
}
