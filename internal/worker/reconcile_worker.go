package worker

import (
	"context"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
)

// Reconciler is the part of the balance reconciler the worker drives.
type Reconciler interface {
	Recalculate(ctx context.Context, userID int64) (core.Balance, error)
	RecalculateAll(ctx context.Context) (int, error)
}

// ReconcileWorker rebuilds cached balances on request and at startup.
type ReconcileWorker struct {
	reconciler Reconciler
}

func NewReconcileWorker(reconciler Reconciler) *ReconcileWorker {
	return &ReconcileWorker{reconciler: reconciler}
}

// HandleReconcileRequest processes a single reconcile request from AMQP.
// UserID 0 rebuilds every user.
func (w *ReconcileWorker) HandleReconcileRequest(ctx context.Context, req *amqp.ReconcileRequest) error {
	slog.InfoContext(ctx, "Processing reconcile request",
		"id", req.ID,
		"user_id", req.UserID,
		"reason", req.Reason)

	if req.UserID == 0 {
		n, err := w.reconciler.RecalculateAll(ctx)
		if err != nil {
			return fmt.Errorf("reconcile all users: %w", err)
		}
		slog.InfoContext(ctx, "Reconciled all users", "id", req.ID, "count", n)
		return nil
	}

	b, err := w.reconciler.Recalculate(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("reconcile user %d: %w", req.UserID, err)
	}

	slog.InfoContext(ctx, "Successfully reconciled balance",
		"id", req.ID,
		"user_id", req.UserID,
		"main", b.Main,
		"hidden", b.Hidden)
	return nil
}

// StartupReconcile rebuilds every balance once so that drift accumulated
// while the worker was down is repaired before consuming requests.
func (w *ReconcileWorker) StartupReconcile(ctx context.Context) error {
	n, err := w.reconciler.RecalculateAll(ctx)
	if err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}
	slog.InfoContext(ctx, "Startup reconcile completed", "users", n)
	return nil
}
