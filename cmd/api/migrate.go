package main

import (
	"errors"
	"fmt"

	"CommunityHub/internal/config"
	"CommunityHub/internal/repository/mysql"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Parse(path)
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return errors.New("db.dsn is required")
			}
			db, err := mysql.Open(cfg.DB.DSN)
			if err != nil {
				return err
			}
			if err := mysql.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}
