package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/lumen/internal/core/db"
	"github.com/solatis/lumen/internal/logging"
)

// Version is the lumen release.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:     "lumen",
	Short:   "Lumen condition host for lighting render elements",
	Long:    `Lumen evaluates condition trees over live plugin data and drives the timelines of lighting render elements.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...), defaults to LUMEN_DB_URL or "+db.DefaultURL)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// newLogger builds the process logger from the persistent flags.
func newLogger() (*slog.Logger, error) {
	logger, err := logging.New(logLevel, logFormat, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("invalid logging flags: %w", err)
	}
	return logger, nil
}

// resolveDBURL picks --db-url, then LUMEN_DB_URL, then the default file.
func resolveDBURL() string {
	if dbURL != "" {
		return dbURL
	}
	if env := os.Getenv("LUMEN_DB_URL"); env != "" {
		return env
	}
	return db.DefaultURL
}

// openDatabase opens the database and loads the named queries.
func openDatabase(ctx context.Context) (*sqlx.DB, *db.Queries, error) {
	database, err := db.Open(ctx, resolveDBURL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// requireMigrated fails when migrations are pending.
func requireMigrated(ctx context.Context, database *sqlx.DB) error {
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'lumen migrate up' first", s.ID)
		}
	}
	return nil
}
