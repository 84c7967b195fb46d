package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/paissahouse/paissadb/admin/internal/admin"
	"github.com/paissahouse/paissadb/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// PostgreSQL configuration
	dbURIFlag := flag.String("db-uri", "postgres://postgres@localhost:5432/paissadb", "PostgreSQL connection string (or set DB_URI env var)")

	// Gamedata configuration
	gamedataDirFlag := flag.String("gamedata-dir", "gamedata", "directory holding the EXD CSV exports (or set GAMEDATA_DIR env var)")

	// Commands
	pgMigrateFlag := flag.Bool("pg-migrate", false, "Run PostgreSQL database migrations using goose")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the most recent PostgreSQL migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show PostgreSQL database migration status")
	importGamedataFlag := flag.Bool("import-gamedata", false, "Import worlds, districts and plot info from EXD CSV exports")
	resetDBFlag := flag.Bool("reset-db", false, "Drop all database tables in the public schema")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	// Override flags with environment variables if set
	if envDBURI := os.Getenv("DB_URI"); envDBURI != "" {
		*dbURIFlag = envDBURI
	}
	if envGamedataDir := os.Getenv("GAMEDATA_DIR"); envGamedataDir != "" {
		*gamedataDirFlag = envGamedataDir
	}

	// Execute commands
	if *pgMigrateFlag {
		return admin.PgMigrateUp(log, *dbURIFlag)
	}

	if *pgMigrateDownFlag {
		return admin.PgMigrateDown(log, *dbURIFlag)
	}

	if *pgMigrateStatusFlag {
		return admin.PgMigrateStatus(log, *dbURIFlag)
	}

	if *importGamedataFlag {
		return admin.ImportGamedata(log, *dbURIFlag, *gamedataDirFlag)
	}

	if *resetDBFlag {
		return admin.ResetDB(log, *dbURIFlag, *dryRunFlag, *yesFlag)
	}

	flag.Usage()
	return nil
}
