package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the kopilka exchange. Reconcile requests are routed with
// the configured queue name.
const (
	RoutingLedgerEvents = "ledger.events"
	RoutingReminders    = "reminders"
)

type EventType string

const (
	EventEntryAdded          EventType = "entry_added"
	EventEntryDeleted        EventType = "entry_deleted"
	EventBalanceRecalculated EventType = "balance_recalculated"
)

// LedgerEvent notifies downstream consumers (exports, charts, chat
// transport) that a user's ledger or balance changed.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    int64     `json:"user_id"`
	EntryID   int64     `json:"entry_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Category  string    `json:"category,omitempty"`
	Main      float64   `json:"main"`
	Hidden    float64   `json:"hidden"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(typ EventType, userID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReconcileRequest asks the worker to rebuild cached balances from the
// ledger. UserID 0 means every known user.
type ReconcileRequest struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReconcileRequest(userID int64, reason string) *ReconcileRequest {
	return &ReconcileRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *ReconcileRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReconcileRequestFromJSON(data []byte) (*ReconcileRequest, error) {
	var msg ReconcileRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage announces that a regular expense is due.
type ReminderMessage struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"user_id"`
	RegularExpenseID int64     `json:"regular_expense_id"`
	Category         string    `json:"category"`
	Amount           float64   `json:"amount"`
	Frequency        string    `json:"frequency"`
	Description      string    `json:"description,omitempty"`
	DueAt            time.Time `json:"due_at"`
	Timestamp        time.Time `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
