package core

import "time"

// AllTime selects the whole ledger when passed as a window length.
const AllTime = 0

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// Statistics is the aggregate of a user's ledger over one window.
type Statistics struct {
	UserID int64     `json:"user_id"`
	Days   int       `json:"days"` // AllTime for the whole ledger
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`

	TotalExpenses float64 `json:"total_expenses"`
	TotalIncome   float64 `json:"total_income"`
	Balance       float64 `json:"balance"`

	ExpensesByCategory map[string]float64 `json:"expenses_by_category"`
	IncomeBySource     map[string]float64 `json:"income_by_source"`

	Expenses []LedgerEntry `json:"expenses"` // newest first
	Income   []LedgerEntry `json:"income"`   // newest first

	ExpenseCount int `json:"expense_count"`
	IncomeCount  int `json:"income_count"`
}

// OperationCount is the number of ledger entries in the window.
func (s Statistics) OperationCount() int {
	return s.ExpenseCount + s.IncomeCount
}

// BudgetStatus is a budget enriched with the read-time spend of the last
// 30 days.
type BudgetStatus struct {
	Budget
	Spent       float64 `json:"spent"`
	Remaining   float64 `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
}
