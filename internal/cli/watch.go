package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/s22625/sqwatch/internal/driver"
	"github.com/s22625/sqwatch/internal/engine"
)

const watchHelp = `commands:
  toggle ID | all | none
  filter RE | filter | arm | bulk
  expand scheduled|historical | collapse scheduled|historical
  kill ID | confirm ID | cancel ID
  killsel | confirm-batch | cancel-batch
  inspect ID | refresh | help | quit`

var errQuit = errors.New("quit")

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Headless watcher driven by commands on stdin",
		Long: `Poll the scheduler and print the job listing whenever it changes.
Commands are read from stdin, one per line.

` + watchHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(commandContext(cmd), cmd.InOrStdin(), os.Stdout, os.Stderr)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	src, err := getSource(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &textRenderer{w: out, now: time.Now}
	drv := driver.New(driver.Config{PollInterval: cfg.PollInterval}, getEngine(cfg), src, getDispatcher(cfg), r)

	go func() {
		defer cancel()
		readCommands(in, drv, errOut)
	}()
	return drv.Run(ctx)
}

// intentSink is the part of the driver the command reader needs.
type intentSink interface {
	Do(fn func(*engine.Engine))
	Dispatch(commit engine.Commit) string
	RefreshNow()
}

// readCommands applies stdin commands until quit or EOF.
func readCommands(in io.Reader, sink intentSink, errOut io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "help" || line == "?" {
			fmt.Fprintln(errOut, watchHelp)
			continue
		}
		err := applyCommand(sink, line)
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}

// applyCommand runs one command line against sink. Commits are dispatched
// after the engine lock is released.
func applyCommand(sink intentSink, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	needID := func() (string, error) {
		if rest == "" {
			return "", fmt.Errorf("%s: missing job id", verb)
		}
		return rest, nil
	}

	var (
		err    error
		commit *engine.Commit
	)
	switch verb {
	case "quit", "exit", "q":
		return errQuit
	case "refresh", "r":
		sink.RefreshNow()
		return nil
	case "toggle", "t":
		id, idErr := needID()
		if idErr != nil {
			return idErr
		}
		sink.Do(func(e *engine.Engine) { e.Toggle(id) })
	case "all":
		sink.Do(func(e *engine.Engine) { e.SelectAllVisible() })
	case "none":
		sink.Do(func(e *engine.Engine) { e.ClearSelection() })
	case "filter", "/":
		sink.Do(func(e *engine.Engine) {
			if rest == "" {
				e.ClearFilter()
				return
			}
			err = e.SetFilter(rest)
		})
	case "arm":
		sink.Do(func(e *engine.Engine) { err = e.ArmFilter() })
	case "bulk", "*":
		sink.Do(func(e *engine.Engine) { _, err = e.BulkToggle() })
	case "expand", "collapse":
		section, ok := engine.ParseSection(rest)
		if !ok {
			return fmt.Errorf("%s: unknown section %q", verb, rest)
		}
		sink.Do(func(e *engine.Engine) { err = e.SetSectionExpanded(section, verb == "expand") })
	case "kill":
		id, idErr := needID()
		if idErr != nil {
			return idErr
		}
		sink.Do(func(e *engine.Engine) { err = e.RequestKill(id) })
	case "confirm", "y":
		id, idErr := needID()
		if idErr != nil {
			return idErr
		}
		sink.Do(func(e *engine.Engine) {
			c, confirmErr := e.ConfirmKill(id)
			if confirmErr != nil {
				err = confirmErr
				return
			}
			commit = &c
		})
	case "cancel", "n":
		id, idErr := needID()
		if idErr != nil {
			return idErr
		}
		sink.Do(func(e *engine.Engine) { err = e.CancelKill(id) })
	case "killsel":
		sink.Do(func(e *engine.Engine) { err = e.RequestBatchKill() })
	case "confirm-batch":
		sink.Do(func(e *engine.Engine) {
			c, confirmErr := e.ConfirmBatchKill()
			if confirmErr != nil {
				err = confirmErr
				return
			}
			commit = &c
		})
	case "cancel-batch":
		sink.Do(func(e *engine.Engine) { err = e.CancelBatchKill() })
	case "inspect", "attach", "ssh":
		id, idErr := needID()
		if idErr != nil {
			return idErr
		}
		action, parseErr := engine.ParseAction(verb)
		if parseErr != nil {
			return parseErr
		}
		sink.Do(func(e *engine.Engine) {
			c, resolveErr := e.Resolve(action, id)
			if resolveErr != nil {
				err = resolveErr
				return
			}
			commit = &c
		})
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}

	if err != nil {
		return err
	}
	if commit != nil {
		sink.Dispatch(*commit)
	}
	return nil
}

// textRenderer prints each coalesced view model as a plain-text block.
type textRenderer struct {
	w   io.Writer
	now func() time.Time
}

func (r *textRenderer) Render(vm engine.ViewModel) {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)

	status := fmt.Sprintf("-- %s  %s %d/%d selected", r.now().Format("15:04:05"), triLabel(vm.Header), vm.VisibleSelected, vm.VisibleCount)
	if hidden := vm.SelectedTotal - vm.VisibleSelected; hidden > 0 {
		status += fmt.Sprintf(" (+%d not shown)", hidden)
	}
	if !vm.Source.Polled {
		status += "  waiting for first poll"
	}
	fmt.Fprintln(tw, status)

	if vm.Source.Unavailable {
		fmt.Fprintf(tw, "source unavailable: %s\n", vm.Source.Error)
	}
	if vm.Filter.Pattern != "" {
		switch {
		case vm.Filter.Error != "":
			fmt.Fprintf(tw, "filter: %s\n", vm.Filter.Error)
		default:
			fmt.Fprintf(tw, "filter /%s/ %s, %d matches\n", vm.Filter.Pattern, vm.Filter.Mode, vm.HighlightCount())
		}
	}
	if vm.Batch.Armed {
		fmt.Fprintf(tw, "kill %d selected jobs (%s)? confirm-batch / cancel-batch\n", len(vm.Batch.Targets), strings.Join(vm.Batch.Targets, ","))
	}

	for _, section := range vm.Sections {
		fmt.Fprintln(tw, sectionLabel(section))
		for _, row := range section.Jobs {
			mark := " "
			if row.Highlighted {
				mark = "*"
			}
			line := fmt.Sprintf("  %s%s\t%s\t%s\t%s\t%s\t%s",
				checkboxLabel(row.Selected), mark, row.Job.ID, row.Job.DisplayName(), row.Job.Status, row.Job.Elapsed, row.Job.NodeList)
			if row.PendingKill {
				line += "\tkill? confirm " + row.Job.ID + " / cancel " + row.Job.ID
			}
			fmt.Fprintln(tw, line)
		}
	}
	if vm.Message != "" {
		fmt.Fprintf(tw, "> %s\n", vm.Message)
	}
	_ = tw.Flush()
}

func checkboxLabel(selected bool) string {
	if selected {
		return "[x]"
	}
	return "[ ]"
}

func triLabel(t engine.TriState) string {
	switch t {
	case engine.TriChecked:
		return "[x]"
	case engine.TriIndeterminate:
		return "[-]"
	default:
		return "[ ]"
	}
}
