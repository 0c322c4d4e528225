package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"freelancehub/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhctl",
		Short: "fhctl - operator tool for freelancehub",
		Long: `fhctl runs schema migrations, replays outbox events, seeds skills and
issues tokens for local testing. It reads the same config/ directory as the
API server (CONFIG_ENV, CONFIG_DIR).`,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.OutboxCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.SkillsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
