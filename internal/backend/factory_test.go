package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kopilka/internal/config"
	"kopilka/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	_, err := FromAppConfig(&config.Config{DataBackend: "postgres"})
	if err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPExchange: "kopilka"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" || cfg.AMQPExchange != "kopilka" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "memory", config: Config{Type: MemoryBackend}},
		{name: "sqlite", config: Config{Type: SQLiteBackend, SQLiteDBPath: "k.db"}},
		{name: "sqlite without path", config: Config{Type: SQLiteBackend}, wantErr: true},
		{name: "unknown type", config: Config{Type: "csv"}, wantErr: true},
		{name: "amqp without queue", config: Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "data", "kopilka.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := factory.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					t.Errorf("Cleanup() error = %v", err)
				}
			}()

			if res.Publisher() != nil {
				t.Error("Publisher() should be nil without a broker")
			}

			// the store is usable right away, schema included
			if err := res.Store.EnsureUser(ctx, 1); err != nil {
				t.Fatalf("EnsureUser() error = %v", err)
			}
			id, err := res.Store.InsertEntry(ctx, core.LedgerEntry{
				UserID: 1, Kind: core.KindExpense, Amount: 10, Category: "Food", Timestamp: time.Now(),
			})
			if err != nil {
				t.Fatalf("InsertEntry() error = %v", err)
			}
			if id == 0 {
				t.Error("InsertEntry() returned zero id")
			}
		})
	}
}
