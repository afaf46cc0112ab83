package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

const DefaultContributionLimit = 20

// GoalStatus is a goal with its derived progress. DaysLeft is nil for goals
// without a deadline.
type GoalStatus struct {
	core.Goal
	Progress  float64 `json:"progress"`
	Remaining float64 `json:"remaining"`
	DaysLeft  *int    `json:"days_left"`
}

// GoalSummary totals the active goals. CompletedGoals only counts.
type GoalSummary struct {
	ActiveGoals     int     `json:"active_goals"`
	CompletedGoals  int     `json:"completed_goals"`
	TotalTarget     float64 `json:"total_target"`
	TotalSaved      float64 `json:"total_saved"`
	TotalRemaining  float64 `json:"total_remaining"`
	OverallProgress float64 `json:"overall_progress"`
}

// GoalService tracks savings goals. Contributions are bookkeeping on the
// goal only and leave the ledger and the balance untouched.
type GoalService struct {
	store ports.Store
	locks *userLocks
	now   func() time.Time
}

func NewGoalService(store ports.Store) *GoalService {
	return &GoalService{
		store: store,
		locks: newUserLocks(),
		now:   time.Now,
	}
}

// CreateGoal stores a new goal with nothing saved yet.
func (s *GoalService) CreateGoal(ctx context.Context, g core.Goal) (GoalStatus, error) {
	g.Name = strings.TrimSpace(g.Name)
	g.Icon = strings.TrimSpace(g.Icon)
	if err := g.Validate(); err != nil {
		return GoalStatus{}, err
	}
	now := s.now()
	g.ID = 0
	g.CurrentAmount = 0
	g.Completed = false
	g.CompletedAt = nil
	g.CreatedAt = now

	err := s.store.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, g.UserID); err != nil {
			return err
		}
		id, err := tx.InsertGoal(ctx, g)
		if err != nil {
			return err
		}
		g.ID = id
		return nil
	})
	if err != nil {
		return GoalStatus{}, fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Goal created",
		"user_id", g.UserID,
		"goal_id", g.ID,
		"target", g.TargetAmount)
	return s.status(g, now), nil
}

// Goals lists the active goals newest first, followed by the completed ones
// when includeCompleted is set.
func (s *GoalService) Goals(ctx context.Context, userID int64, includeCompleted bool) ([]GoalStatus, error) {
	goals, err := s.store.ListGoals(ctx, userID, includeCompleted)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	now := s.now()
	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		out = append(out, s.status(g, now))
	}
	return out, nil
}

// Contribute records amount towards the goal and completes it once the
// target is reached. Unknown or foreign goals yield core.ErrNotFound.
func (s *GoalService) Contribute(ctx context.Context, userID, goalID int64, amount float64, note string) (GoalStatus, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return GoalStatus{}, err
	}
	if len(note) > core.MaxDescriptionLen {
		return GoalStatus{}, core.ErrDescriptionTooLong
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	var g core.Goal
	err := s.store.Atomically(ctx, func(tx ports.Store) error {
		var err error
		g, err = tx.GetGoal(ctx, userID, goalID)
		if err != nil {
			return err
		}
		c := core.GoalContribution{GoalID: goalID, UserID: userID, Amount: amount, Note: note, CreatedAt: now}
		if _, err := tx.InsertContribution(ctx, c); err != nil {
			return err
		}
		g = g.Contribute(amount, now)
		return tx.SaveGoalProgress(ctx, g)
	})
	if err != nil {
		return GoalStatus{}, fmt.Errorf("contribute to goal %d: %w", goalID, err)
	}

	if g.Completed && g.CompletedAt != nil && g.CompletedAt.Equal(now) {
		slog.InfoContext(ctx, "Goal completed",
			"user_id", userID,
			"goal_id", goalID,
			"target", g.TargetAmount)
	}
	return s.status(g, now), nil
}

// Contributions returns the latest contributions to a goal, newest first.
func (s *GoalService) Contributions(ctx context.Context, userID, goalID int64, limit int) ([]core.GoalContribution, error) {
	if limit <= 0 {
		limit = DefaultContributionLimit
	}
	if _, err := s.store.GetGoal(ctx, userID, goalID); err != nil {
		return nil, fmt.Errorf("goal %d: %w", goalID, err)
	}
	out, err := s.store.ListContributions(ctx, userID, goalID, limit)
	if err != nil {
		return nil, fmt.Errorf("goal contributions: %w", err)
	}
	return out, nil
}

// DeleteGoal removes the goal and its contributions; false when none existed.
func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID int64) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	ok, err := s.store.DeleteGoal(ctx, userID, goalID)
	if err != nil {
		return false, fmt.Errorf("delete goal: %w", err)
	}
	return ok, nil
}

func (s *GoalService) Summary(ctx context.Context, userID int64) (GoalSummary, error) {
	goals, err := s.store.ListGoals(ctx, userID, true)
	if err != nil {
		return GoalSummary{}, fmt.Errorf("goal summary: %w", err)
	}

	var sum GoalSummary
	for _, g := range goals {
		if g.Completed {
			sum.CompletedGoals++
			continue
		}
		sum.ActiveGoals++
		sum.TotalTarget += g.TargetAmount
		sum.TotalSaved += g.CurrentAmount
		sum.TotalRemaining += g.Remaining()
	}
	sum.TotalTarget = core.Round2(sum.TotalTarget)
	sum.TotalSaved = core.Round2(sum.TotalSaved)
	sum.TotalRemaining = core.Round2(sum.TotalRemaining)
	sum.OverallProgress = core.Percent(sum.TotalSaved, sum.TotalTarget)
	return sum, nil
}

func (s *GoalService) status(g core.Goal, now time.Time) GoalStatus {
	st := GoalStatus{Goal: g, Progress: g.Progress(), Remaining: g.Remaining()}
	if days, ok := g.DaysLeft(now); ok {
		st.DaysLeft = &days
	}
	return st
}
