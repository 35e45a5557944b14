package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Pulth-Team/Pulth-sub000/internal/infrastructure/database"
)

var listMigrations bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&listMigrations, "list", false, "print the embedded migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if listMigrations {
		names, err := database.Migrations()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	pool, err := database.Connect(cmd.Context(), cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := database.ApplyMigrations(cmd.Context(), pool)
	for _, version := range applied {
		fmt.Fprintf(out, "applied %s\n", version)
	}
	if err != nil {
		return err
	}

	logger.Info("migrations applied", zap.Strings("versions", applied))
	if len(applied) == 0 {
		fmt.Fprintln(out, "database is up to date")
	}
	return nil
}
