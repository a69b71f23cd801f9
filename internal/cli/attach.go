package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/sqwatch/internal/dispatch"
	"github.com/s22625/sqwatch/internal/engine"
)

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach JOB_ID",
		Short: "Attach to a running job's step",
		Long: `Attach to step 0 of a running job with sattach.

With attach_in_tmux set and $TMUX present, the session opens in a new tmux
window instead of taking over this terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobAction(commandContext(cmd), os.Stdout, engine.ActionAttach, args[0])
		},
	}
}

func newSshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ssh JOB_ID",
		Short: "Open a shell on the first node of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobAction(commandContext(cmd), os.Stdout, engine.ActionSsh, args[0])
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect JOB_ID",
		Short: "Show scheduler details for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobAction(commandContext(cmd), os.Stdout, engine.ActionInspect, args[0])
		},
	}
}

// runJobAction resolves a non-destructive action against the current listing
// and runs it. Terminal actions take over stdio unless they open in tmux.
func runJobAction(ctx context.Context, out io.Writer, action engine.Action, id string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	src, err := getSource(cfg)
	if err != nil {
		return err
	}
	snap, err := src.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	eng := getEngine(cfg)
	eng.Ingest(snap)
	commit, err := eng.Resolve(action, id)
	if err != nil {
		return err
	}

	d := getDispatcher(cfg)
	if interactive, ok := d.(dispatch.Interactive); ok && action != engine.ActionInspect && !opensWindow(d) {
		c, err := interactive.Command(commit)
		if err != nil {
			return fmt.Errorf("%s %s: %w", action, id, err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	}

	outcome := runCommit(ctx, d, commit)
	if outcome.Err != nil {
		return fmt.Errorf("%s %s: %w", action, id, outcome.Err)
	}
	if globalOpts.Quiet {
		return nil
	}
	if action == engine.ActionInspect && outcome.Output != "" {
		_, err := io.WriteString(out, outcome.Output)
		return err
	}
	_, err = fmt.Fprintln(out, outcome.Summary())
	return err
}

func opensWindow(d dispatch.Dispatcher) bool {
	t, ok := d.(interface{ InTmux() bool })
	return ok && t.InTmux()
}
