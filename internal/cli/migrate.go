package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"freelancehub/internal/repository"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every embedded migration newer than the recorded schema version.

Examples:
  fhctl migrate           # apply pending migrations
  fhctl migrate --list    # list embedded migrations without touching the database`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, _ := cmd.Flags().GetBool("list")
			if list {
				return listMigrations(cmd)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			applied, err := repository.Migrate(cmd.Context(), a.pool, a.logger)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "migrate: %s\n", failLabel)
				return err
			}
			if applied == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "migrate: %s (schema up to date)\n", okLabel)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate: %s (%d applied)\n", okLabel, applied)
			return nil
		},
	}
	cmd.Flags().Bool("list", false, "List embedded migrations only")
	return cmd
}

func listMigrations(cmd *cobra.Command) error {
	ms, err := repository.Migrations()
	if err != nil {
		return err
	}
	for _, m := range ms {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.FgCyan).Sprintf("%04d", m.Version), m.Name)
	}
	return nil
}
