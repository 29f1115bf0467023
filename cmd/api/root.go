package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the account-api command tree. Running it without a
// subcommand serves the API.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()
	cmd := &cobra.Command{
		Use:   "account-api",
		Short: "Pitchfork account service",
		Long: `account-api registers users, verifies email addresses with one-time codes,
resets passwords and issues RS256 access and refresh tokens.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// best-effort: a missing .env just means the real environment is used
			_ = godotenv.Load()
		},
		RunE: serve.RunE,
	}
	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}
