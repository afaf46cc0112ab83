package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf})

	logger.WithComponent(ComponentLedger).WithUser(7).InfoContext(context.Background(), "Entry added",
		NewFields().WithEntry(3, "expense", 12.5, "Food").ToSlice()...)

	out := buf.String()
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, "user_id=7")
	assert.Contains(t, out, "entry_id=3")
	assert.Contains(t, out, "category=Food")
	assert.Equal(t, ComponentApp, logger.Component())
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.InfoContext(context.Background(), "hidden")
	logger.WarnContext(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())

	logger := New(DefaultConfig()).WithComponent(ComponentWorker)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/5", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], "request_id=")
		assert.Contains(t, lines[1], "level=WARN")
		assert.Contains(t, lines[1], "status_code=418")
		assert.Contains(t, lines[1], "route=/users/{userID}")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithRequestID("").
		WithOperation(OpReconcile).
		WithError(nil).
		WithHTTPResponse(500, 12)

	assert.NotContains(t, f, FieldRequestID)
	assert.NotContains(t, f, FieldError)
	assert.Equal(t, OpReconcile, f[FieldOperation])
	assert.Equal(t, false, f[FieldSuccess])
	assert.Len(t, f.ToSlice(), len(f)*2)
}
