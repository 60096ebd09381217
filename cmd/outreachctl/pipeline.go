package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

func (c *cli) promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote [session-id]",
		Short: "Promote an approval session's staged rows into pending prospects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireWorkspace(); err != nil {
				return err
			}
			out, err := c.app.Promote.Execute(cmd.Context(), usecase.PromoteSessionInput{
				WorkspaceID: c.workspace,
				SessionID:   args[0],
			})
			if err != nil {
				return fmt.Errorf("promote session %s: %w", args[0], err)
			}
			if c.asJSON {
				return c.printJSON(out)
			}

			c.ok("session %s: %d promoted, %d already promoted, %d declined, %d rejected",
				out.SessionID, out.Promoted, out.AlreadyPromoted, out.Declined, len(out.Rejected))
			if out.Discrepancy != 0 {
				c.warn("session declares %d prospects but %d rows are staged", out.Declared, out.Staged)
			}
			for _, r := range out.Rejected {
				c.warn("row %s: %s", r.StagedID, usecase.ValidationErrors(r.Errors).Error())
			}
			return nil
		},
	}
}

func (c *cli) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [campaign-id]",
		Short: "Assign send slots to a campaign's pending prospects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireWorkspace(); err != nil {
				return err
			}
			out, err := c.app.Schedule.Execute(cmd.Context(), usecase.ScheduleCampaignInput{
				WorkspaceID: c.workspace,
				CampaignID:  args[0],
			})
			if err != nil {
				return fmt.Errorf("schedule campaign %s: %w", args[0], err)
			}
			if c.asJSON {
				return c.printJSON(out)
			}

			c.ok("campaign %s on account %s: %d scheduled", out.CampaignID, out.AccountID, len(out.Slots))
			w := newTable(c.out, "PROSPECT", "SEND AT")
			for _, s := range out.Slots {
				w.row(s.ProspectID, s.ScheduledAt.Format(time.RFC3339))
			}
			w.flush()
			if out.Conflicts > 0 {
				c.warn("%d prospects left pending concurrently", out.Conflicts)
			}
			if out.Deferral != nil {
				c.warn("%v", out.Deferral)
			}
			return nil
		},
	}
}

func (c *cli) dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [campaign-id]",
		Short: "Send a campaign's due prospects to the automation engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireWorkspace(); err != nil {
				return err
			}
			receipt, err := c.app.Dispatch.Execute(cmd.Context(), usecase.DispatchCampaignInput{
				WorkspaceID: c.workspace,
				CampaignID:  args[0],
			})
			var transport *usecase.DispatchTransportError
			if errors.As(err, &transport) {
				c.warn("engine unreachable, %d prospects will be retried", transport.Prospects)
			}
			if err != nil {
				return fmt.Errorf("dispatch campaign %s: %w", args[0], err)
			}
			if receipt == nil {
				c.ok("nothing due for campaign %s", args[0])
				return nil
			}
			if c.asJSON {
				return c.printJSON(receipt)
			}
			c.ok("execution %s accepted %d prospects", receipt.ExecutionID, len(receipt.ProspectIDs))
			return nil
		},
	}
}

func (c *cli) reconcilePollCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reconcile-poll",
		Short: "Ask the automation engine for outcomes of prospects awaiting one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			updated, err := c.app.Reconcile.Poll(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reconcile poll: %w", err)
			}
			if c.asJSON {
				return c.printJSON(map[string]any{"updated": updated})
			}
			c.ok("%d prospects updated", len(updated))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 200, "max prospects to poll")
	return cmd
}
