package main

import (
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-account-go/pkg/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Apply all pending schema migrations to the database named by DATABASE_URL.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer db.Close()

	cmd.Println("Running migrations...")
	if err := database.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
