package worker

import (
	"context"
	"errors"
	"testing"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
)

type fakeReconciler struct {
	single []int64
	all    int
	err    error
}

func (f *fakeReconciler) Recalculate(_ context.Context, userID int64) (core.Balance, error) {
	f.single = append(f.single, userID)
	return core.Balance{UserID: userID, Main: 10}, f.err
}

func (f *fakeReconciler) RecalculateAll(_ context.Context) (int, error) {
	f.all++
	return 3, f.err
}

func TestReconcileWorker_HandleReconcileRequest(t *testing.T) {
	tests := []struct {
		name       string
		userID     int64
		err        error
		wantSingle int
		wantAll    int
		wantErr    bool
	}{
		{name: "single user", userID: 42, wantSingle: 1},
		{name: "all users", userID: 0, wantAll: 1},
		{name: "single user failure", userID: 7, err: errors.New("boom"), wantSingle: 1, wantErr: true},
		{name: "all users failure", userID: 0, err: errors.New("boom"), wantAll: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeReconciler{err: tt.err}
			w := NewReconcileWorker(f)

			err := w.HandleReconcileRequest(context.Background(), amqp.NewReconcileRequest(tt.userID, "test"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleReconcileRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(f.single) != tt.wantSingle {
				t.Errorf("Recalculate calls = %d, want %d", len(f.single), tt.wantSingle)
			}
			if f.all != tt.wantAll {
				t.Errorf("RecalculateAll calls = %d, want %d", f.all, tt.wantAll)
			}
			if tt.wantSingle == 1 && f.single[0] != tt.userID {
				t.Errorf("Recalculate user = %d, want %d", f.single[0], tt.userID)
			}
		})
	}
}

func TestReconcileWorker_StartupReconcile(t *testing.T) {
	f := &fakeReconciler{}
	w := NewReconcileWorker(f)

	if err := w.StartupReconcile(context.Background()); err != nil {
		t.Fatalf("StartupReconcile() error = %v", err)
	}
	if f.all != 1 {
		t.Errorf("RecalculateAll calls = %d, want 1", f.all)
	}
}
