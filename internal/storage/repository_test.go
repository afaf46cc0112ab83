package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kopilka.db")
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kopilka.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(dbPath); err != nil {
			t.Fatalf("run %d: RunMigrations() error = %v", i, err)
		}
	}
	version, dirty, err := MigrationVersion(dbPath)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("MigrationVersion() = %d dirty=%v, want 2 clean", version, dirty)
	}
}

func TestLedgerEntries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	const user = int64(42)

	if err := repo.EnsureUser(ctx, user); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if err := repo.EnsureUser(ctx, user); err != nil {
		t.Fatalf("second EnsureUser() error = %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []core.LedgerEntry{
		{UserID: user, Kind: core.KindIncome, Amount: 5000, Category: "Salary", Timestamp: base},
		{UserID: user, Kind: core.KindExpense, Amount: 1000, Category: "Food", Description: "groceries", Timestamp: base.Add(time.Hour)},
		{UserID: user, Kind: core.KindExpense, Amount: 2000, Category: "Rent", Timestamp: base.Add(2 * time.Hour)},
	}
	var ids []int64
	for _, e := range entries {
		id, err := repo.InsertEntry(ctx, e)
		if err != nil {
			t.Fatalf("InsertEntry() error = %v", err)
		}
		ids = append(ids, id)
	}

	all, err := repo.ListEntries(ctx, user, ports.EntryFilter{})
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListEntries() returned %d entries, want 3", len(all))
	}
	if all[0].Category != "Rent" || all[2].Category != "Salary" {
		t.Errorf("ListEntries() not newest first: %v, %v", all[0].Category, all[2].Category)
	}
	if !all[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("timestamp round trip = %v", all[0].Timestamp)
	}

	expenses, err := repo.ListEntries(ctx, user, ports.EntryFilter{Kind: core.KindExpense, From: base.Add(30 * time.Minute), To: base.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("ListEntries(range) error = %v", err)
	}
	if len(expenses) != 1 || expenses[0].Category != "Food" {
		t.Fatalf("range query = %+v, want only Food", expenses)
	}

	income, spent, count, err := repo.SumEntries(ctx, user)
	if err != nil {
		t.Fatalf("SumEntries() error = %v", err)
	}
	if income != 5000 || spent != 3000 || count != 3 {
		t.Fatalf("SumEntries() = %v, %v, %d", income, spent, count)
	}

	if _, err := repo.GetEntry(ctx, user+1, ids[1]); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetEntry(foreign user) error = %v, want ErrNotFound", err)
	}
	ok, err := repo.DeleteEntry(ctx, user, ids[1])
	if err != nil || !ok {
		t.Fatalf("DeleteEntry() = %v, %v", ok, err)
	}
	ok, err = repo.DeleteEntry(ctx, user, ids[1])
	if err != nil || ok {
		t.Fatalf("second DeleteEntry() = %v, %v, want false", ok, err)
	}
}

func TestBalanceUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	const user = int64(7)
	now := time.Now().UTC()

	if err := repo.EnsureUser(ctx, user); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if _, found, err := repo.GetBalance(ctx, user); err != nil || found {
		t.Fatalf("GetBalance() before init = found %v, err %v", found, err)
	}

	if err := repo.AdjustMain(ctx, user, 2000, now); err != nil {
		t.Fatalf("AdjustMain() error = %v", err)
	}
	if err := repo.AdjustMain(ctx, user, -250, now); err != nil {
		t.Fatalf("AdjustMain() error = %v", err)
	}

	moved, err := repo.MoveHidden(ctx, user, 500, core.ToHidden, now)
	if err != nil || !moved {
		t.Fatalf("MoveHidden(to) = %v, %v", moved, err)
	}
	moved, err = repo.MoveHidden(ctx, user, 5000, core.ToHidden, now)
	if err != nil || moved {
		t.Fatalf("MoveHidden(to, too much) = %v, %v, want false", moved, err)
	}
	moved, err = repo.MoveHidden(ctx, user, 600, core.FromHidden, now)
	if err != nil || moved {
		t.Fatalf("MoveHidden(from, too much) = %v, %v, want false", moved, err)
	}

	b, found, err := repo.GetBalance(ctx, user)
	if err != nil || !found {
		t.Fatalf("GetBalance() = found %v, err %v", found, err)
	}
	if b.Main != 1250 || b.Hidden != 500 {
		t.Fatalf("balance = %v/%v, want 1250/500", b.Main, b.Hidden)
	}

	if err := repo.PutBalance(ctx, core.Balance{UserID: user, Main: 1, Hidden: 2, LastUpdated: now}); err != nil {
		t.Fatalf("PutBalance() error = %v", err)
	}
	b, _, _ = repo.GetBalance(ctx, user)
	if b.Main != 1 || b.Hidden != 2 {
		t.Fatalf("balance after put = %v/%v, want 1/2", b.Main, b.Hidden)
	}
}

func TestAtomically_RollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	const user = int64(9)
	boom := errors.New("boom")

	err := repo.Atomically(ctx, func(tx ports.Store) error {
		if err := tx.EnsureUser(ctx, user); err != nil {
			return err
		}
		if _, err := tx.InsertEntry(ctx, core.LedgerEntry{UserID: user, Kind: core.KindIncome, Amount: 10, Category: "Gift", Timestamp: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomically() error = %v, want boom", err)
	}

	_, _, count, err := repo.SumEntries(ctx, user)
	if err != nil {
		t.Fatalf("SumEntries() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("entries after rollback = %d, want 0", count)
	}
	ids, _ := repo.ListUserIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("users after rollback = %v, want none", ids)
	}
}

func TestTransfersBudgetsFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	const user = int64(3)
	now := time.Now().UTC()

	if err := repo.EnsureUser(ctx, user); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}

	for i, tr := range []core.HiddenTransfer{
		{ID: "a", UserID: user, Amount: 300, Direction: core.ToHidden, Timestamp: now},
		{ID: "b", UserID: user, Amount: 100, Direction: core.FromHidden, Timestamp: now.Add(time.Minute)},
	} {
		if err := repo.InsertTransfer(ctx, tr); err != nil {
			t.Fatalf("InsertTransfer(%d) error = %v", i, err)
		}
	}
	net, count, err := repo.NetHidden(ctx, user)
	if err != nil || net != 200 || count != 2 {
		t.Fatalf("NetHidden() = %v, %d, %v", net, count, err)
	}
	history, err := repo.ListTransfers(ctx, user, 1)
	if err != nil || len(history) != 1 || history[0].ID != "b" {
		t.Fatalf("ListTransfers() = %+v, %v", history, err)
	}

	budget := core.Budget{UserID: user, Category: "Food", LimitAmount: 1000, Period: core.PeriodMonthly}
	if err := repo.UpsertBudget(ctx, budget); err != nil {
		t.Fatalf("UpsertBudget() error = %v", err)
	}
	budget.LimitAmount = 1500
	if err := repo.UpsertBudget(ctx, budget); err != nil {
		t.Fatalf("UpsertBudget(update) error = %v", err)
	}
	budgets, err := repo.ListBudgets(ctx, user)
	if err != nil || len(budgets) != 1 || budgets[0].LimitAmount != 1500 {
		t.Fatalf("ListBudgets() = %+v, %v", budgets, err)
	}
	if ok, _ := repo.DeleteBudget(ctx, user, "Food", core.PeriodMonthly); !ok {
		t.Fatalf("DeleteBudget() = false, want true")
	}

	rules := []core.FilterRule{
		{UserID: user, Category: "Taxi", Mode: core.Excluded, Kind: core.KindExpense},
		{UserID: user, Category: "Taxi", Mode: core.IncludedOnly, Kind: core.KindExpense},
		{UserID: user, Category: "Salary", Mode: core.IncludedOnly, Kind: core.KindIncome},
	}
	for _, r := range rules {
		if err := repo.UpsertRule(ctx, r); err != nil {
			t.Fatalf("UpsertRule() error = %v", err)
		}
	}
	got, err := repo.ListRules(ctx, user)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListRules() = %+v, %v, want 2 rules", got, err)
	}
	n, err := repo.ClearRules(ctx, user)
	if err != nil || n != 2 {
		t.Fatalf("ClearRules() = %d, %v", n, err)
	}
}

func TestSettingsAndRegular(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	const user = int64(11)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	if err := repo.EnsureUser(ctx, user); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}

	s, found, err := repo.GetSettings(ctx, user)
	if err != nil || found || s.LargeExpenseThreshold != 5000 {
		t.Fatalf("GetSettings() default = %+v, %v, %v", s, found, err)
	}
	s.DailySummary = false
	s.LargeExpenseThreshold = 10000
	if err := repo.PutSettings(ctx, s); err != nil {
		t.Fatalf("PutSettings() error = %v", err)
	}
	s, found, _ = repo.GetSettings(ctx, user)
	if !found || s.DailySummary || s.LargeExpenseThreshold != 10000 {
		t.Fatalf("GetSettings() after put = %+v", s)
	}

	id, err := repo.InsertRegular(ctx, core.RegularExpense{
		UserID: user, Category: "Internet", Amount: 600, Frequency: core.Monthly, NextReminder: now,
	})
	if err != nil {
		t.Fatalf("InsertRegular() error = %v", err)
	}
	due, err := repo.ListDueRegular(ctx, now)
	if err != nil || len(due) != 1 || due[0].ID != id || !due[0].Active {
		t.Fatalf("ListDueRegular() = %+v, %v", due, err)
	}
	if err := repo.MarkReminded(ctx, id, now, core.Monthly.Next(now)); err != nil {
		t.Fatalf("MarkReminded() error = %v", err)
	}
	due, _ = repo.ListDueRegular(ctx, now)
	if len(due) != 0 {
		t.Fatalf("ListDueRegular() after remind = %d, want 0", len(due))
	}
	if ok, _ := repo.DeactivateRegular(ctx, user, id); !ok {
		t.Fatalf("DeactivateRegular() = false")
	}
	list, _ := repo.ListRegular(ctx, user)
	if len(list) != 0 {
		t.Fatalf("ListRegular() after deactivate = %d, want 0", len(list))
	}
}

func TestGoalsAndContributions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	const user = int64(9)
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	deadline := base.AddDate(0, 3, 0)

	if err := repo.EnsureUser(ctx, user); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	bikeID, err := repo.InsertGoal(ctx, core.Goal{UserID: user, Name: "Bike", TargetAmount: 500, Deadline: &deadline, CreatedAt: base})
	if err != nil {
		t.Fatalf("InsertGoal() error = %v", err)
	}
	tripID, err := repo.InsertGoal(ctx, core.Goal{UserID: user, Name: "Trip", TargetAmount: 100, Icon: "plane", CreatedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("InsertGoal() error = %v", err)
	}

	bike, err := repo.GetGoal(ctx, user, bikeID)
	if err != nil {
		t.Fatalf("GetGoal() error = %v", err)
	}
	if bike.Deadline == nil || !bike.Deadline.Equal(deadline) || bike.CompletedAt != nil {
		t.Fatalf("GetGoal() = %+v, want deadline %v and no completion", bike, deadline)
	}
	if _, err := repo.GetGoal(ctx, user+1, bikeID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetGoal(foreign) error = %v, want ErrNotFound", err)
	}

	trip, _ := repo.GetGoal(ctx, user, tripID)
	for i, amount := range []float64{60, 40} {
		at := base.Add(time.Duration(i+2) * time.Hour)
		if _, err := repo.InsertContribution(ctx, core.GoalContribution{GoalID: tripID, UserID: user, Amount: amount, CreatedAt: at}); err != nil {
			t.Fatalf("InsertContribution() error = %v", err)
		}
		trip = trip.Contribute(amount, at)
		if err := repo.SaveGoalProgress(ctx, trip); err != nil {
			t.Fatalf("SaveGoalProgress() error = %v", err)
		}
	}

	active, err := repo.ListGoals(ctx, user, false)
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != bikeID {
		t.Fatalf("ListGoals(active) = %+v, want only the bike", active)
	}
	all, _ := repo.ListGoals(ctx, user, true)
	if len(all) != 2 || all[1].ID != tripID || !all[1].Completed || all[1].CompletedAt == nil {
		t.Fatalf("ListGoals(all) = %+v, want the completed trip last", all)
	}

	contribs, err := repo.ListContributions(ctx, user, tripID, 1)
	if err != nil {
		t.Fatalf("ListContributions() error = %v", err)
	}
	if len(contribs) != 1 || contribs[0].Amount != 40 {
		t.Fatalf("ListContributions(limit 1) = %+v, want the latest 40", contribs)
	}

	if ok, err := repo.DeleteGoal(ctx, user, tripID); err != nil || !ok {
		t.Fatalf("DeleteGoal() = %v, %v, want true", ok, err)
	}
	if ok, _ := repo.DeleteGoal(ctx, user, tripID); ok {
		t.Fatalf("second DeleteGoal() reported a deletion")
	}
	if contribs, _ := repo.ListContributions(ctx, user, tripID, 10); len(contribs) != 0 {
		t.Fatalf("contributions survived their goal: %+v", contribs)
	}
	if err := repo.SaveGoalProgress(ctx, trip); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("SaveGoalProgress(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestRollbackMigrations_DropsGoals(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kopilka.db")
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := RollbackMigrations(dbPath, 1); err != nil {
		t.Fatalf("RollbackMigrations() error = %v", err)
	}
	version, dirty, err := MigrationVersion(dbPath)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("MigrationVersion() = %d dirty=%v, want 1 clean", version, dirty)
	}
}
