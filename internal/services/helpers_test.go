package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/storage/memory"
)

// testNow is the 10th of the month, which the forecast tests rely on.
var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

const testUser int64 = 1001

type fakePublisher struct {
	mu         sync.Mutex
	events     []*amqp.LedgerEvent
	reminders  []*amqp.ReminderMessage
	reconciles []*amqp.ReconcileRequest
	err        error
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) PublishReminder(_ context.Context, msg *amqp.ReminderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reminders = append(p.reminders, msg)
	return nil
}

func (p *fakePublisher) PublishReconcileRequest(_ context.Context, req *amqp.ReconcileRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reconciles = append(p.reconciles, req)
	return nil
}

func (p *fakePublisher) eventTypes() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var errBroker = errors.New("broker unavailable")

type testEnv struct {
	store *memory.Store
	pub   *fakePublisher
	svc   *Services
}

// newTestEnv wires every service over a fresh memory store with the clock
// frozen at testNow.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	pub := &fakePublisher{}
	svc := New(store, pub)
	setClock(svc, func() time.Time { return testNow })
	return &testEnv{store: store, pub: pub, svc: svc}
}

func setClock(svc *Services, now func() time.Time) {
	svc.Ledger.now = now
	svc.Balance.now = now
	svc.Statistics.now = now
	svc.Analytics.now = now
	svc.Notifications.now = now
	svc.Subscriptions.now = now
	svc.Goals.now = now
}

// at appends an entry dated daysAgo before testNow.
func (e *testEnv) at(t *testing.T, kind core.EntryKind, amount float64, category string, daysAgo int) core.LedgerEntry {
	t.Helper()
	res, err := e.svc.Ledger.Append(context.Background(), core.LedgerEntry{
		UserID:    testUser,
		Kind:      kind,
		Amount:    amount,
		Category:  category,
		Timestamp: testNow.Add(-time.Duration(daysAgo)*24*time.Hour - time.Minute),
	})
	if err != nil {
		t.Fatalf("Append(%s %v %s) error = %v", kind, amount, category, err)
	}
	return res.Entry
}

func (e *testEnv) expense(t *testing.T, amount float64, category string, daysAgo int) core.LedgerEntry {
	t.Helper()
	return e.at(t, core.KindExpense, amount, category, daysAgo)
}

func (e *testEnv) income(t *testing.T, amount float64, source string, daysAgo int) core.LedgerEntry {
	t.Helper()
	return e.at(t, core.KindIncome, amount, source, daysAgo)
}
