package memory

import (
	"context"
	"slices"
	"sort"

	"kopilka/internal/core"
)

func (s *Store) InsertGoal(_ context.Context, g core.Goal) (int64, error) {
	defer s.lockWrite()()
	s.st.nextGoalID++
	g.ID = s.st.nextGoalID
	s.st.goals[g.ID] = g
	return g.ID, nil
}

func (s *Store) GetGoal(_ context.Context, userID, id int64) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.st.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, core.ErrNotFound
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, userID int64, includeCompleted bool) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.st.goals {
		if g.UserID == userID && (includeCompleted || !g.Completed) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) SaveGoalProgress(_ context.Context, g core.Goal) error {
	defer s.lockWrite()()
	cur, ok := s.st.goals[g.ID]
	if !ok || cur.UserID != g.UserID {
		return core.ErrNotFound
	}
	cur.CurrentAmount = g.CurrentAmount
	cur.Completed = g.Completed
	cur.CompletedAt = g.CompletedAt
	s.st.goals[g.ID] = cur
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, id int64) (bool, error) {
	defer s.lockWrite()()
	g, ok := s.st.goals[id]
	if !ok || g.UserID != userID {
		return false, nil
	}
	delete(s.st.goals, id)
	s.st.contributions = slices.DeleteFunc(s.st.contributions, func(c core.GoalContribution) bool {
		return c.GoalID == id
	})
	return true, nil
}

func (s *Store) InsertContribution(_ context.Context, c core.GoalContribution) (int64, error) {
	defer s.lockWrite()()
	s.st.nextContribID++
	c.ID = s.st.nextContribID
	s.st.contributions = append(s.st.contributions, c)
	return c.ID, nil
}

func (s *Store) ListContributions(_ context.Context, userID, goalID int64, limit int) ([]core.GoalContribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GoalContribution
	for _, c := range s.st.contributions {
		if c.GoalID == goalID && c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
