package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adiprasetyo/biolock/internal/biolock/store/sqlite"
	"github.com/adiprasetyo/biolock/internal/config"
	"github.com/adiprasetyo/biolock/internal/db"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "biolock",
	Short: "Two-factor biometric door controller",
	Long:  "Runs a fingerprint-then-face door access controller: a fingerprint match opens a bounded face-verification window, and only a face match within it unlocks the door.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file (optional; BIOLOCK_* env vars apply on top)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// stores bundles the sqlite-backed persistence layer the subcommands
// share, plus the handles needed to shut it down.
type stores struct {
	DB         *sql.DB
	Worker     *db.Worker
	Identities *sqlite.IdentityStore
	Events     *sqlite.AccessEventStore
	Captures   *sqlite.UnknownCaptureStore
}

func (s *stores) Close() {
	s.Worker.Close()
	_ = s.DB.Close()
}

// openStores opens and migrates the database, seeds it in dev, and
// returns the store set backed by it.
func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("seed dev db: %w", err)
		}
	}

	worker := db.NewWorker(sqlDB)
	return &stores{
		DB:         sqlDB,
		Worker:     worker,
		Identities: sqlite.NewIdentityStore(sqlDB, worker),
		Events:     sqlite.NewAccessEventStore(sqlDB, worker),
		Captures:   sqlite.NewUnknownCaptureStore(sqlDB, worker),
	}, nil
}
