package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orchepy/internal/config"
	"orchepy/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() { _ = database.Close() }()

		if err := database.Migrate(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}
