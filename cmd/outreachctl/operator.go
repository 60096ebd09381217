package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type operatorAction func(context.Context, usecase.OperatorActionInput) (*usecase.OperatorActionOutput, error)

func (c *cli) operatorCmd(use, short string) *cobra.Command {
	var actor, reason string
	cmd := &cobra.Command{
		Use:   use + " [campaign-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireWorkspace(); err != nil {
				return err
			}
			out, err := c.action(use)(cmd.Context(), usecase.OperatorActionInput{
				WorkspaceID: c.workspace,
				CampaignID:  args[0],
				Actor:       actor,
				Reason:      reason,
			})
			if err != nil {
				return fmt.Errorf("%s %s: %w", use, args[0], err)
			}
			if c.asJSON {
				return c.printJSON(out)
			}
			c.ok("%d prospects moved %s -> %s", len(out.ProspectIDs), colorStatus(out.From), colorStatus(out.To))
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "outreachctl", "name recorded in the status history")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the status history")
	return cmd
}

func (c *cli) action(use string) operatorAction {
	switch use {
	case "reset-queued":
		return c.app.Operator.ResetQueuedToPending
	case "fail-queued":
		return c.app.Operator.MarkQueuedFailed
	default:
		return c.app.Operator.ResetFailedToPending
	}
}
