// Package memory is an in-process ports.Store used by the memory backend and
// by tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

type budgetKey struct {
	userID   int64
	category string
	period   core.BudgetPeriod
}

type ruleKey struct {
	userID   int64
	category string
	kind     core.EntryKind
}

type state struct {
	users         map[int64]time.Time // premium expiry
	entries       []core.LedgerEntry
	nextEntryID   int64
	balances      map[int64]core.Balance
	transfers     []core.HiddenTransfer
	budgets       map[budgetKey]core.Budget
	rules         map[ruleKey]core.FilterRule
	settings      map[int64]core.NotificationSettings
	regular       map[int64]core.RegularExpense
	nextRegularID int64
	goals         map[int64]core.Goal
	nextGoalID    int64
	contributions []core.GoalContribution
	nextContribID int64
}

func newState() state {
	return state{
		users:    map[int64]time.Time{},
		balances: map[int64]core.Balance{},
		budgets:  map[budgetKey]core.Budget{},
		rules:    map[ruleKey]core.FilterRule{},
		settings: map[int64]core.NotificationSettings{},
		regular:  map[int64]core.RegularExpense{},
		goals:    map[int64]core.Goal{},
	}
}

func (st state) clone() state {
	return state{
		users:         maps.Clone(st.users),
		entries:       slices.Clone(st.entries),
		nextEntryID:   st.nextEntryID,
		balances:      maps.Clone(st.balances),
		transfers:     slices.Clone(st.transfers),
		budgets:       maps.Clone(st.budgets),
		rules:         maps.Clone(st.rules),
		settings:      maps.Clone(st.settings),
		regular:       maps.Clone(st.regular),
		nextRegularID: st.nextRegularID,
		goals:         maps.Clone(st.goals),
		nextGoalID:    st.nextGoalID,
		contributions: slices.Clone(st.contributions),
		nextContribID: st.nextContribID,
	}
}

// Store keeps everything in memory. Transactions are serialized and roll
// back by restoring a snapshot, so every write outside a transaction also
// waits for open transactions. Otherwise a rollback would discard it.
type Store struct {
	*shared
	inTx bool
}

type shared struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   state
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{shared: &shared{st: newState()}}
}

func (s *Store) Close() error { return nil }

// Atomically runs fn on a transaction-bound view of the store. Nested calls
// on that view run inline.
func (s *Store) Atomically(_ context.Context, fn func(tx ports.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(&Store{shared: s.shared, inTx: true}); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite locks the state for a mutation. Outside a transaction it first
// waits for any open transaction to finish.
func (s *Store) lockWrite() (unlock func()) {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !s.inTx {
			s.txMu.Unlock()
		}
	}
}

func (s *Store) EnsureUser(_ context.Context, userID int64) error {
	defer s.lockWrite()()
	if _, ok := s.st.users[userID]; !ok {
		s.st.users[userID] = time.Time{}
	}
	return nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Collect(maps.Keys(s.st.users))
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) PremiumUntil(_ context.Context, userID int64) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.users[userID], nil
}

func (s *Store) SetPremiumUntil(_ context.Context, userID int64, until time.Time) error {
	defer s.lockWrite()()
	s.st.users[userID] = until
	return nil
}

func (s *Store) InsertEntry(_ context.Context, e core.LedgerEntry) (int64, error) {
	defer s.lockWrite()()
	s.st.nextEntryID++
	e.ID = s.st.nextEntryID
	s.st.entries = append(s.st.entries, e)
	return e.ID, nil
}

func (s *Store) GetEntry(_ context.Context, userID, id int64) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.st.entries {
		if e.ID == id && e.UserID == userID {
			return e, nil
		}
	}
	return core.LedgerEntry{}, core.ErrNotFound
}

func (s *Store) DeleteEntry(_ context.Context, userID, id int64) (bool, error) {
	defer s.lockWrite()()
	for i, e := range s.st.entries {
		if e.ID == id && e.UserID == userID {
			s.st.entries = slices.Delete(s.st.entries, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListEntries(_ context.Context, userID int64, f ports.EntryFilter) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.LedgerEntry
	for _, e := range s.st.entries {
		if e.UserID != userID {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) SumEntries(_ context.Context, userID int64) (float64, float64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var income, expenses float64
	count := 0
	for _, e := range s.st.entries {
		if e.UserID != userID {
			continue
		}
		count++
		if e.Kind == core.KindIncome {
			income += e.Amount
		} else {
			expenses += e.Amount
		}
	}
	return income, expenses, count, nil
}

func (s *Store) InsertTransfer(_ context.Context, t core.HiddenTransfer) error {
	defer s.lockWrite()()
	s.st.transfers = append(s.st.transfers, t)
	return nil
}

func (s *Store) ListTransfers(_ context.Context, userID int64, limit int) ([]core.HiddenTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.HiddenTransfer
	for i := len(s.st.transfers) - 1; i >= 0; i-- {
		t := s.st.transfers[i]
		if t.UserID != userID {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) NetHidden(_ context.Context, userID int64) (float64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var net float64
	count := 0
	for _, t := range s.st.transfers {
		if t.UserID != userID {
			continue
		}
		count++
		if t.Direction == core.ToHidden {
			net += t.Amount
		} else {
			net -= t.Amount
		}
	}
	return net, count, nil
}

func (s *Store) GetBalance(_ context.Context, userID int64) (core.Balance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.balances[userID]
	if !ok {
		return core.Balance{UserID: userID}, false, nil
	}
	return b, true, nil
}

func (s *Store) PutBalance(_ context.Context, b core.Balance) error {
	defer s.lockWrite()()
	s.st.balances[b.UserID] = b
	return nil
}

func (s *Store) AdjustMain(_ context.Context, userID int64, delta float64, at time.Time) error {
	defer s.lockWrite()()
	b := s.st.balances[userID]
	b.UserID = userID
	b.Main += delta
	b.LastUpdated = at
	s.st.balances[userID] = b
	return nil
}

func (s *Store) MoveHidden(_ context.Context, userID int64, amount float64, dir core.Direction, at time.Time) (bool, error) {
	defer s.lockWrite()()
	b, ok := s.st.balances[userID]
	if !ok {
		return false, nil
	}
	switch dir {
	case core.ToHidden:
		if b.Main < amount {
			return false, nil
		}
		b.Main -= amount
		b.Hidden += amount
	case core.FromHidden:
		if b.Hidden < amount {
			return false, nil
		}
		b.Main += amount
		b.Hidden -= amount
	default:
		return false, core.ErrInvalidDirection
	}
	b.LastUpdated = at
	s.st.balances[userID] = b
	return true, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.Budget) error {
	defer s.lockWrite()()
	s.st.budgets[budgetKey{b.UserID, b.Category, b.Period}] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID int64, category string, period core.BudgetPeriod) (bool, error) {
	defer s.lockWrite()()
	k := budgetKey{userID, category, period}
	if _, ok := s.st.budgets[k]; !ok {
		return false, nil
	}
	delete(s.st.budgets, k)
	return true, nil
}

func (s *Store) ListBudgets(_ context.Context, userID int64) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for k, b := range s.st.budgets {
		if k.userID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) UpsertRule(_ context.Context, r core.FilterRule) error {
	defer s.lockWrite()()
	s.st.rules[ruleKey{r.UserID, r.Category, r.Kind}] = r
	return nil
}

func (s *Store) DeleteRule(_ context.Context, userID int64, category string, kind core.EntryKind) (bool, error) {
	defer s.lockWrite()()
	k := ruleKey{userID, category, kind}
	if _, ok := s.st.rules[k]; !ok {
		return false, nil
	}
	delete(s.st.rules, k)
	return true, nil
}

func (s *Store) ListRules(_ context.Context, userID int64) ([]core.FilterRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.FilterRule
	for k, r := range s.st.rules {
		if k.userID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) ClearRules(_ context.Context, userID int64) (int64, error) {
	defer s.lockWrite()()
	var n int64
	for k := range s.st.rules {
		if k.userID == userID {
			delete(s.st.rules, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) GetSettings(_ context.Context, userID int64) (core.NotificationSettings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.st.settings[userID]; ok {
		return st, true, nil
	}
	return core.DefaultNotificationSettings(userID), false, nil
}

func (s *Store) PutSettings(_ context.Context, ns core.NotificationSettings) error {
	defer s.lockWrite()()
	s.st.settings[ns.UserID] = ns
	return nil
}

func (s *Store) InsertRegular(_ context.Context, re core.RegularExpense) (int64, error) {
	defer s.lockWrite()()
	s.st.nextRegularID++
	re.ID = s.st.nextRegularID
	re.Active = true
	s.st.regular[re.ID] = re
	return re.ID, nil
}

func (s *Store) ListRegular(_ context.Context, userID int64) ([]core.RegularExpense, error) {
	return s.filterRegular(func(re core.RegularExpense) bool { return re.UserID == userID }), nil
}

func (s *Store) ListDueRegular(_ context.Context, now time.Time) ([]core.RegularExpense, error) {
	return s.filterRegular(func(re core.RegularExpense) bool { return !re.NextReminder.After(now) }), nil
}

func (s *Store) MarkReminded(_ context.Context, id int64, at, next time.Time) error {
	defer s.lockWrite()()
	re, ok := s.st.regular[id]
	if !ok {
		return nil
	}
	re.LastReminder = at
	re.NextReminder = next
	s.st.regular[id] = re
	return nil
}

func (s *Store) DeactivateRegular(_ context.Context, userID, id int64) (bool, error) {
	defer s.lockWrite()()
	re, ok := s.st.regular[id]
	if !ok || re.UserID != userID || !re.Active {
		return false, nil
	}
	re.Active = false
	s.st.regular[id] = re
	return true, nil
}

func (s *Store) filterRegular(keep func(core.RegularExpense) bool) []core.RegularExpense {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RegularExpense
	for _, re := range s.st.regular {
		if re.Active && keep(re) {
			out = append(out, re)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextReminder.Equal(out[j].NextReminder) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextReminder.Before(out[j].NextReminder)
	})
	return out
}
