package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

func (c *cli) prospectsCmd() *cobra.Command {
	var (
		campaign string
		status   string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "prospects",
		Short: "List prospects of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireWorkspace(); err != nil {
				return err
			}
			prospects, err := c.app.Query.ListProspects(cmd.Context(), entity.ProspectFilter{
				WorkspaceID: c.workspace,
				CampaignID:  campaign,
				Status:      entity.Status(status),
				Limit:       limit,
			})
			if err != nil {
				return fmt.Errorf("list prospects: %w", err)
			}
			if c.asJSON {
				return c.printJSON(prospects)
			}
			if len(prospects) == 0 {
				fmt.Fprintln(c.out, "No prospects found.")
				return nil
			}

			w := newTable(c.out, "ID", "CAMPAIGN", "NAME", "STATUS", "SEND AT", "PROFILE")
			for _, p := range prospects {
				w.row(p.ID, p.CampaignID, p.FirstName+" "+p.LastName, colorStatus(p.Status), formatTime(p.ScheduledSendAt), p.ProfileID)
			}
			w.flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&campaign, "campaign", "", "filter by campaign id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func (c *cli) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List approval sessions with declared and staged counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireWorkspace(); err != nil {
				return err
			}
			sessions, err := c.app.Query.ListSessions(cmd.Context(), c.workspace)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if c.asJSON {
				return c.printJSON(sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(c.out, "No approval sessions found.")
				return nil
			}

			w := newTable(c.out, "ID", "CAMPAIGN", "DECLARED", "STAGED", "")
			for _, s := range sessions {
				mark := ""
				if s.Discrepancy() != 0 {
					mark = color.RedString("mismatch")
				}
				w.row(s.ID, s.CampaignID, strconv.Itoa(s.DeclaredTotal), strconv.Itoa(s.StagedCount), mark)
			}
			w.flush()
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [prospect-id]",
		Short: "Show the status history of a prospect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := c.app.Query.History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("history of %s: %w", args[0], err)
			}
			if c.asJSON {
				return c.printJSON(events)
			}

			w := newTable(c.out, "AT", "FROM", "TO", "ACTOR", "REASON")
			for _, ev := range events {
				from := "-"
				if ev.From != "" {
					from = colorStatus(ev.From)
				}
				w.row(ev.At.Format(time.RFC3339), from, colorStatus(ev.To), ev.Actor, ev.Reason)
			}
			w.flush()
			return nil
		},
	}
}

func colorStatus(s entity.Status) string {
	switch s {
	case entity.StatusPending:
		return color.CyanString(string(s))
	case entity.StatusQueued, entity.StatusConnectionRequested:
		return color.YellowString(string(s))
	case entity.StatusConnectionRequestSent:
		return color.GreenString(string(s))
	case entity.StatusFailed:
		return color.RedString(string(s))
	}
	return string(s)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	t.row(headers...)
	return t
}

func (t *table) row(cols ...string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(t.w, "\t")
		}
		fmt.Fprint(t.w, c)
	}
	fmt.Fprintln(t.w)
}

func (t *table) flush() {
	t.w.Flush()
}
