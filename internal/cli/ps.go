package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/model"
)

type psOptions struct {
	All           bool
	Filter        string
	HistoryCap    int
	HistoryCapSet bool
}

func newPsCmd() *cobra.Command {
	opts := &psOptions{}

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List jobs",
		Long: `List jobs once, grouped into active, scheduled and historical sections.
Collapsed sections only report how many jobs they hide.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HistoryCapSet = cmd.Flags().Changed("history-cap")
			return runPs(commandContext(cmd), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "Expand every section")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Only show jobs whose name matches this regex (case-insensitive)")
	cmd.Flags().IntVar(&opts.HistoryCap, "history-cap", 0, "Maximum number of historical jobs to show")

	return cmd
}

func runPs(ctx context.Context, opts *psOptions) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	if opts.HistoryCapSet {
		if opts.HistoryCap < 0 {
			return fmt.Errorf("%w: --history-cap must be >= 0, got %d", errUsage, opts.HistoryCap)
		}
		c := *cfg
		c.HistoryCap = opts.HistoryCap
		cfg = &c
	}
	if opts.All {
		c := *cfg
		c.ShowScheduled = true
		c.ShowHistorical = true
		cfg = &c
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
	if opts.Filter != "" {
		if err := eng.SetFilter(opts.Filter); err != nil {
			return err
		}
	}
	vm := eng.View()
	if vm.Filter.Pattern != "" {
		vm = onlyHighlighted(vm)
	}

	if globalOpts.JSON {
		return outputJSON(os.Stdout, vm)
	}
	if globalOpts.TSV {
		return outputTSV(os.Stdout, vm)
	}
	return outputTable(os.Stdout, vm)
}

// onlyHighlighted drops rows that do not match the filter.
func onlyHighlighted(vm engine.ViewModel) engine.ViewModel {
	out := vm
	out.Sections = make([]engine.SectionView, len(vm.Sections))
	for i, section := range vm.Sections {
		kept := section
		kept.Jobs = nil
		for _, row := range section.Jobs {
			if row.Highlighted {
				kept.Jobs = append(kept.Jobs, row)
			}
		}
		out.Sections[i] = kept
	}
	return out
}

type jobOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Section   string `json:"section"`
	Nodes     string `json:"nodes,omitempty"`
	Elapsed   string `json:"elapsed,omitempty"`
	Partition string `json:"partition,omitempty"`
	User      string `json:"user,omitempty"`
}

func outputJSON(w io.Writer, vm engine.ViewModel) error {
	output := struct {
		OK     bool           `json:"ok"`
		Items  []jobOutput    `json:"items"`
		Hidden map[string]int `json:"hidden"`
	}{
		OK:     true,
		Items:  []jobOutput{},
		Hidden: map[string]int{},
	}

	for _, section := range vm.Sections {
		output.Hidden[section.Section.String()] = section.Hidden
		for _, row := range section.Jobs {
			j := row.Job
			output.Items = append(output.Items, jobOutput{
				ID:        j.ID,
				Name:      j.Name,
				Status:    string(j.Status),
				Section:   section.Section.String(),
				Nodes:     j.NodeList,
				Elapsed:   j.Elapsed,
				Partition: j.Partition,
				User:      j.User,
			})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// TSV columns (fixed order):
// id, name, status, section, nodes, elapsed, partition, user
func outputTSV(w io.Writer, vm engine.ViewModel) error {
	for _, section := range vm.Sections {
		for _, row := range section.Jobs {
			j := row.Job
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				j.ID,
				j.Name,
				j.Status,
				section.Section,
				j.NodeList,
				j.Elapsed,
				j.Partition,
				j.User,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func outputTable(w io.Writer, vm engine.ViewModel) error {
	if vm.VisibleCount == 0 && totalJobs(vm) == 0 {
		if !globalOpts.Quiet {
			fmt.Fprintln(w, "No jobs found")
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, section := range vm.Sections {
		fmt.Fprintln(tw, sectionLabel(section))
		if len(section.Jobs) == 0 {
			continue
		}
		fmt.Fprintln(tw, "  ID\tNAME\tSTATUS\tELAPSED\tNODES\tPARTITION")
		for _, row := range section.Jobs {
			j := row.Job
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
				j.ID,
				truncateName(j.DisplayName(), 40),
				colorStatus(j.Status),
				j.Elapsed,
				j.NodeList,
				j.Partition,
			)
		}
	}
	return tw.Flush()
}

func totalJobs(vm engine.ViewModel) int {
	n := 0
	for _, section := range vm.Sections {
		n += section.Total
	}
	return n
}

// sectionLabel renders "▾ ACTIVE (2)" or "▸ SCHEDULED (3 hidden)".
func sectionLabel(section engine.SectionView) string {
	label := strings.ToUpper(section.Section.String())
	switch {
	case !section.Expanded:
		return fmt.Sprintf("▸ %s (%d hidden)", label, section.Hidden)
	case section.Hidden > 0:
		return fmt.Sprintf("▾ %s (%d, %d hidden)", label, len(section.Jobs), section.Hidden)
	default:
		return fmt.Sprintf("▾ %s (%d)", label, len(section.Jobs))
	}
}

func truncateName(name string, width int) string {
	runes := []rune(name)
	if len(runes) <= width {
		return name
	}
	return string(runes[:width-3]) + "..."
}

func colorStatus(status model.Status) string {
	// ANSI color codes for terminal
	colors := map[model.Status]string{
		model.StatusRunning:    "\033[32m", // green
		model.StatusPending:    "\033[33m", // yellow
		model.StatusCompleting: "\033[36m", // cyan
		model.StatusCompleted:  "\033[34m", // blue
		model.StatusFailed:     "\033[31m", // red
		model.StatusUnknown:    "\033[35m", // magenta
	}

	reset := "\033[0m"
	if color, ok := colors[status]; ok {
		return color + string(status) + reset
	}
	return string(status)
}
