package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"freelancehub/pkg/mq"
	"freelancehub/pkg/outbox"
)

// OutboxCmd returns the outbox command
func OutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay outbox events",
	}
	cmd.AddCommand(outboxReplayCmd())
	return cmd
}

func outboxReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-publish one event or every failed event",
		Long: `Re-publish outbox events to the events exchange.

Examples:
  fhctl outbox replay --id 42
  fhctl outbox replay --failed --limit 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetInt64("id")
			failed, _ := cmd.Flags().GetBool("failed")
			limit, _ := cmd.Flags().GetInt("limit")
			if (id > 0) == failed {
				return fmt.Errorf("exactly one of --id or --failed is required")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			publisher, err := mq.NewPublisher(a.cfg.MQ.URL)
			if err != nil {
				return err
			}
			defer publisher.Close()

			replay := outbox.NewReplayService(outbox.NewRepository(a.pool), publisher, a.logger)
			if id > 0 {
				ev, err := replay.ReplayEvent(cmd.Context(), id)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "event %d: %s\n", id, failLabel)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "event %d (%s): %s\n", id, ev.RoutingKey, okLabel)
				return nil
			}

			report, err := replay.ReplayFailedEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for key, n := range report.ByRoutingKey {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d\n", key, n)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d failed events: %s\n", report.Replayed, okLabel)
			if len(report.FailedIDs) > 0 {
				return fmt.Errorf("%d events still failing: %v", len(report.FailedIDs), report.FailedIDs)
			}
			return nil
		},
	}
	cmd.Flags().Int64("id", 0, "Outbox row id to replay")
	cmd.Flags().Bool("failed", false, "Replay every failed event")
	cmd.Flags().Int("limit", 100, "Maximum failed events to replay")
	return cmd
}
