package main

import (
	"flag"
	"fmt"
	"os"

	"kopilka/internal/cli"
	"kopilka/internal/log"
	"kopilka/internal/storage"
)

const usage = `usage: kopilka-migrate [-db path] <command>

commands:
  up        apply every pending migration
  down [n]  roll back n migrations (default 1)
  version   print the current schema version
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentMigrate)
	cfg := cli.LoadAndValidateConfig(logger)

	dbPath := flag.String("db", cfg.SQLiteDBPath, "sqlite database path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = storage.RunMigrations(*dbPath)
	case "down":
		steps := 1
		if flag.NArg() > 1 {
			if _, scanErr := fmt.Sscanf(flag.Arg(1), "%d", &steps); scanErr != nil || steps < 1 {
				logger.Error("Invalid step count", "steps", flag.Arg(1))
				os.Exit(2)
			}
		}
		err = storage.RollbackMigrations(*dbPath, steps)
	case "version":
		version, dirty, verr := storage.MigrationVersion(*dbPath)
		if verr == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
		err = verr
	default:
		logger.Error("Unknown command", "command", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Migration command failed", "error", err, log.FieldOperation, flag.Arg(0), "db", *dbPath)
		os.Exit(1)
	}
	logger.Info("Migration command completed", log.FieldOperation, flag.Arg(0), "db", *dbPath)
}
