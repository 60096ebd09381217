package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xavierca1/linkedin-outreach/internal/app"
)

type builder func(ctx context.Context) (*app.App, error)

// cli carries state shared by every subcommand. The app graph is built
// once, before the first command that needs it runs.
type cli struct {
	build     builder
	out       io.Writer
	app       *app.App
	workspace string
	asJSON    bool
}

func newRootCmd(build builder, out io.Writer) *cobra.Command {
	c := &cli{build: build, out: out}

	root := &cobra.Command{
		Use:   "outreachctl",
		Short: "Operate the LinkedIn outreach pipeline",
		Long: `outreachctl runs the outreach components on demand and exposes the
operator actions: promote approval sessions, schedule and dispatch
campaigns, poll for outcomes, and repair stuck prospects.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			a, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&c.workspace, "workspace", "w", "", "workspace id")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		c.promoteCmd(),
		c.scheduleCmd(),
		c.dispatchCmd(),
		c.reconcilePollCmd(),
		c.operatorCmd("reset-queued", "Return a campaign's queued prospects to pending"),
		c.operatorCmd("fail-queued", "Mark a campaign's queued prospects failed"),
		c.operatorCmd("reset-failed", "Return a campaign's failed prospects to pending"),
		c.prospectsCmd(),
		c.sessionsCmd(),
		c.historyCmd(),
	)
	return root
}

func (c *cli) requireWorkspace() error {
	if c.workspace == "" {
		return errors.New("--workspace is required")
	}
	return nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) ok(format string, args ...any) {
	fmt.Fprintln(c.out, color.GreenString("✓ ")+fmt.Sprintf(format, args...))
}

func (c *cli) warn(format string, args ...any) {
	fmt.Fprintln(c.out, color.YellowString("! ")+fmt.Sprintf(format, args...))
}
