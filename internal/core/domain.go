package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindExpense EntryKind = "expense"
	KindIncome  EntryKind = "income"

	ToHidden   Direction = "to_hidden"
	FromHidden Direction = "from_hidden"

	Excluded     FilterMode = "excluded"
	IncludedOnly FilterMode = "included_only"

	PeriodMonthly BudgetPeriod = "monthly"

	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// MaxDescriptionLen bounds free-text descriptions and transfer reasons.
const MaxDescriptionLen = 200

type (
	EntryKind    string
	Direction    string
	FilterMode   string
	BudgetPeriod string
	Frequency    string

	// LedgerEntry is a single expense or income record. Category holds the
	// income source when Kind is KindIncome.
	LedgerEntry struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"user_id"`
		Kind        EntryKind `json:"kind"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Timestamp   time.Time `json:"timestamp"`
	}

	Balance struct {
		UserID      int64     `json:"user_id"`
		Main        float64   `json:"main"`
		Hidden      float64   `json:"hidden"`
		LastUpdated time.Time `json:"last_updated"`
	}

	HiddenTransfer struct {
		ID        string    `json:"id"`
		UserID    int64     `json:"user_id"`
		Amount    float64   `json:"amount"`
		Direction Direction `json:"direction"`
		Reason    string    `json:"reason"`
		Timestamp time.Time `json:"timestamp"`
	}

	Budget struct {
		UserID      int64        `json:"user_id"`
		Category    string       `json:"category"`
		LimitAmount float64      `json:"limit_amount"`
		Period      BudgetPeriod `json:"period"`
	}

	FilterRule struct {
		UserID   int64      `json:"user_id"`
		Category string     `json:"category"`
		Mode     FilterMode `json:"mode"`
		Kind     EntryKind  `json:"kind"`
	}

	RegularExpense struct {
		ID           int64     `json:"id"`
		UserID       int64     `json:"user_id"`
		Category     string    `json:"category"`
		Amount       float64   `json:"amount"`
		Frequency    Frequency `json:"frequency"`
		Description  string    `json:"description"`
		NextReminder time.Time `json:"next_reminder"`
		LastReminder time.Time `json:"last_reminder"`
		Active       bool      `json:"active"`
	}

	NotificationSettings struct {
		UserID                int64   `json:"user_id"`
		DailySummary          bool    `json:"daily_summary"`
		WeeklyReport          bool    `json:"weekly_report"`
		BudgetAlerts          bool    `json:"budget_alerts"`
		LargeExpenseAlert     bool    `json:"large_expense_alert"`
		LargeExpenseThreshold float64 `json:"large_expense_threshold"`
		RegularReminders      bool    `json:"regular_reminders"`
	}

	// SubscriptionStatus is the premium capability passed into analytics.
	SubscriptionStatus struct {
		Premium  bool      `json:"premium"`
		Until    time.Time `json:"until"`
		DaysLeft int       `json:"days_left"`
	}
)

var (
	ErrValidation = errors.New("validation error")

	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrEmptyCategory      = fmt.Errorf("%w: empty category", ErrValidation)
	ErrInvalidKind        = fmt.Errorf("%w: invalid entry kind", ErrValidation)
	ErrInvalidMode        = fmt.Errorf("%w: invalid filter mode", ErrValidation)
	ErrInvalidPeriod      = fmt.Errorf("%w: invalid budget period", ErrValidation)
	ErrInvalidDirection   = fmt.Errorf("%w: invalid transfer direction", ErrValidation)
	ErrInvalidFrequency   = fmt.Errorf("%w: invalid frequency", ErrValidation)
	ErrInvalidUser        = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, MaxDescriptionLen)
	ErrInvalidDays        = fmt.Errorf("%w: days must not be negative", ErrValidation)
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotFound           = errors.New("not found")
)

func (k EntryKind) Validate() error {
	switch k {
	case KindExpense, KindIncome:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (m FilterMode) Validate() error {
	switch m {
	case Excluded, IncludedOnly:
		return nil
	default:
		return ErrInvalidMode
	}
}

func (p BudgetPeriod) Validate() error {
	if p != PeriodMonthly {
		return ErrInvalidPeriod
	}
	return nil
}

func (d Direction) Validate() error {
	switch d {
	case ToHidden, FromHidden:
		return nil
	default:
		return ErrInvalidDirection
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func ValidateAmount(amount float64) error {
	// NaN fails every comparison, so it is rejected here as well
	if !(amount > 0) {
		return ErrInvalidAmount
	}
	return nil
}

func ValidateCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (e LedgerEntry) Validate() error {
	if e.UserID == 0 {
		return ErrInvalidUser
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if err := ValidateCategory(e.Category); err != nil {
		return err
	}
	if len(e.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// Matches reports whether text occurs in the category or the description,
// ignoring case. Folding is Unicode-aware.
func (e LedgerEntry) Matches(text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(e.Category), needle) ||
		strings.Contains(strings.ToLower(e.Description), needle)
}

// Total is main plus hidden.
func (b Balance) Total() float64 {
	return b.Main + b.Hidden
}

func (b Budget) Validate() error {
	if b.UserID == 0 {
		return ErrInvalidUser
	}
	if err := ValidateCategory(b.Category); err != nil {
		return err
	}
	if err := ValidateAmount(b.LimitAmount); err != nil {
		return err
	}
	return b.Period.Validate()
}

func (r FilterRule) Validate() error {
	if r.UserID == 0 {
		return ErrInvalidUser
	}
	if err := ValidateCategory(r.Category); err != nil {
		return err
	}
	if err := r.Mode.Validate(); err != nil {
		return err
	}
	return r.Kind.Validate()
}

func (re RegularExpense) Validate() error {
	if re.UserID == 0 {
		return ErrInvalidUser
	}
	if err := ValidateCategory(re.Category); err != nil {
		return err
	}
	if err := ValidateAmount(re.Amount); err != nil {
		return err
	}
	if err := re.Frequency.Validate(); err != nil {
		return err
	}
	if len(re.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// Next returns the reminder time that follows t.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 30)
	}
}

// DefaultNotificationSettings are applied to users that never changed theirs.
func DefaultNotificationSettings(userID int64) NotificationSettings {
	return NotificationSettings{
		UserID:                userID,
		DailySummary:          true,
		WeeklyReport:          true,
		BudgetAlerts:          true,
		LargeExpenseAlert:     true,
		LargeExpenseThreshold: 5000,
		RegularReminders:      true,
	}
}

// SubscriptionFrom derives the capability from a premium expiry.
func SubscriptionFrom(premiumUntil, now time.Time) SubscriptionStatus {
	if premiumUntil.IsZero() || !premiumUntil.After(now) {
		return SubscriptionStatus{}
	}
	return SubscriptionStatus{
		Premium:  true,
		Until:    premiumUntil,
		DaysLeft: int(premiumUntil.Sub(now).Hours() / 24),
	}
}
