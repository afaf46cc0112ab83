package services

import (
	"kopilka/internal/ports"
)

// Services wires every service over one store. A nil publisher disables
// broker events and makes reconcile requests run inline.
type Services struct {
	Ledger        *LedgerService
	Balance       *BalanceReconciler
	Budgets       *BudgetTracker
	Filter        *CategoryFilter
	Statistics    *StatisticsAggregator
	Analytics     *AnalyticsEngine
	Notifications *NotificationService
	Subscriptions *SubscriptionService
	Reminders     *ReminderProcessor
	Goals         *GoalService
}

func New(store ports.Store, publisher Publisher) *Services {
	stats := NewStatisticsAggregator(store)
	balance := NewBalanceReconciler(store, publisher)
	budgets := NewBudgetTracker(store, stats)
	filter := NewCategoryFilter(store)
	notifications := NewNotificationService(store, stats)

	s := &Services{
		Ledger:        NewLedgerService(store, balance, budgets, notifications, publisher),
		Balance:       balance,
		Budgets:       budgets,
		Filter:        filter,
		Statistics:    stats,
		Analytics:     NewAnalyticsEngine(stats, filter),
		Notifications: notifications,
		Subscriptions: NewSubscriptionService(store),
		Goals:         NewGoalService(store),
	}
	if publisher != nil {
		s.Reminders = NewReminderProcessor(store, publisher)
	}
	return s
}
