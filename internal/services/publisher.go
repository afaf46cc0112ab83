package services

import (
	"context"

	"kopilka/internal/amqp"
)

// Publisher delivers domain events to the message broker. *amqp.Client
// implements it; a nil Publisher disables publishing.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
	PublishReconcileRequest(ctx context.Context, req *amqp.ReconcileRequest) error
}
