package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/model"
)

type cancelOptions struct {
	Yes bool
}

func newCancelCmd() *cobra.Command {
	opts := &cancelOptions{}

	cmd := &cobra.Command{
		Use:   "cancel JOB_ID...",
		Short: "Cancel jobs after confirmation",
		Long: `Cancel one or more listed jobs with scancel.

Every id must appear in the current listing. Without --yes the command
asks for confirmation on the terminal first.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: at least one JOB_ID required", errUsage)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(commandContext(cmd), cmd.InOrStdin(), os.Stdout, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func runCancel(ctx context.Context, in io.Reader, out io.Writer, ids []string, opts *cancelOptions) error {
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

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one JOB_ID required", errUsage)
	}
	for _, id := range ids {
		if err := eng.RequestKill(id); err != nil {
			return err
		}
	}

	if !opts.Yes && !confirmPrompt(in, out, describeKill(snap.Index(), ids)) {
		for _, id := range ids {
			_ = eng.CancelKill(id)
		}
		if !globalOpts.Quiet {
			fmt.Fprintln(out, "aborted")
		}
		return nil
	}

	commit := engine.Commit{Action: engine.ActionKill}
	for _, id := range ids {
		c, err := eng.ConfirmKill(id)
		if err != nil {
			return err
		}
		commit.JobIDs = append(commit.JobIDs, c.JobIDs...)
		commit.Jobs = append(commit.Jobs, c.Jobs...)
	}

	outcome := runCommit(ctx, getDispatcher(cfg), commit)
	eng.HandleOutcome(outcome)
	if outcome.Err != nil {
		return fmt.Errorf("cancel %s: %w", strings.Join(ids, ","), outcome.Err)
	}
	if !globalOpts.Quiet {
		fmt.Fprintln(out, outcome.Summary())
	}
	return nil
}

func describeKill(index map[string]model.Job, ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (%s)", id, index[id].DisplayName()))
	}
	if len(ids) == 1 {
		return fmt.Sprintf("cancel job %s?", parts[0])
	}
	return fmt.Sprintf("cancel %d jobs: %s?", len(ids), strings.Join(parts, ", "))
}

func confirmPrompt(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
