package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

// premiumMonthDays is the length of one paid month.
const premiumMonthDays = 30

// SubscriptionService reads and extends the premium window of a user. Its
// status is the capability analytics calls receive.
type SubscriptionService struct {
	store ports.Store
	now   func() time.Time
}

func NewSubscriptionService(store ports.Store) *SubscriptionService {
	return &SubscriptionService{store: store, now: time.Now}
}

func (s *SubscriptionService) Status(ctx context.Context, userID int64) (core.SubscriptionStatus, error) {
	until, err := s.store.PremiumUntil(ctx, userID)
	if err != nil {
		return core.SubscriptionStatus{}, fmt.Errorf("get subscription: %w", err)
	}
	return core.SubscriptionFrom(until, s.now()), nil
}

// ActivatePremium adds months of premium, extending an active window rather
// than restarting it.
func (s *SubscriptionService) ActivatePremium(ctx context.Context, userID int64, months int) (core.SubscriptionStatus, error) {
	if userID == 0 {
		return core.SubscriptionStatus{}, core.ErrInvalidUser
	}
	if months <= 0 {
		return core.SubscriptionStatus{}, fmt.Errorf("%w: months must be positive", core.ErrValidation)
	}

	now := s.now()
	var until time.Time
	err := s.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, userID); err != nil {
			return err
		}
		current, err := tx.PremiumUntil(ctx, userID)
		if err != nil {
			return err
		}
		start := now
		if current.After(now) {
			start = current
		}
		until = start.AddDate(0, 0, premiumMonthDays*months)
		return tx.SetPremiumUntil(ctx, userID, until)
	})
	if err != nil {
		return core.SubscriptionStatus{}, fmt.Errorf("activate premium: %w", err)
	}

	slog.InfoContext(ctx, "Premium activated",
		"user_id", userID,
		"months", months,
		"until", until)
	return core.SubscriptionFrom(until, now), nil
}
