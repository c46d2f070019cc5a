package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "questctl",
		Short:         "Play and inspect BanglaBot language quests",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.serverURL, "server", "", "Quest backend URL; when empty progress is kept in a local database")
	flags.StringVar(&ctx.token, "token", "", "Bearer token sent to the quest backend")
	flags.StringVar(&ctx.dbPath, "db", "quest.db", "Local SQLite database path")
	flags.StringVar(&ctx.catalogPath, "catalog", "", "Region catalog YAML or TOML file (defaults to the built-in map)")
	flags.StringVarP(&ctx.userID, "user", "u", "local-player", "Player identifier")
	flags.DurationVar(&ctx.revealDelay, "reveal", 1500*time.Millisecond, "How long answer feedback is shown")

	rootCmd.AddCommand(newRegionsCommand(ctx))
	rootCmd.AddCommand(newBadgesCommand(ctx))
	rootCmd.AddCommand(newPlayCommand(ctx))
	rootCmd.AddCommand(newPublishCommand())

	return rootCmd
}
