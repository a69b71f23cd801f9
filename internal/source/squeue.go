package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/s22625/sqwatch/internal/model"
)

var execCommandContext = exec.CommandContext

const (
	squeueFormat = "%i|%j|%T|%N|%M|%P|%u"
	sacctFormat  = "JobID,JobName,State,NodeList,Elapsed,Partition,User"
)

// Squeue lists jobs with squeue and, when a history window is set, recent
// finished jobs with sacct.
type Squeue struct {
	User          string
	Partition     string
	HistoryWindow time.Duration

	log zerolog.Logger
}

// NewSqueue creates a Slurm-backed source.
func NewSqueue(opts Options) *Squeue {
	return &Squeue{
		User:          opts.User,
		Partition:     opts.Partition,
		HistoryWindow: opts.HistoryWindow,
		log:           opts.logger(),
	}
}

// FetchSnapshot runs squeue and, optionally, sacct. A failing sacct only
// drops the history; a failing squeue fails the fetch.
func (s *Squeue) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	out, err := run(ctx, "squeue", s.squeueArgs()...)
	if err != nil {
		return nil, err
	}
	snap := parseRows(out, 7)
	if s.HistoryWindow <= 0 {
		return snap, nil
	}

	out, err = run(ctx, "sacct", s.sacctArgs()...)
	if err != nil {
		s.log.Warn().Err(err).Msg("sacct failed, history omitted")
		return snap, nil
	}
	return mergeHistory(snap, parseRows(out, 7)), nil
}

func (s *Squeue) squeueArgs() []string {
	args := []string{"--noheader", "--format=" + squeueFormat}
	if s.User != "" {
		args = append(args, "--user="+s.User)
	}
	if s.Partition != "" {
		args = append(args, "--partition="+s.Partition)
	}
	return args
}

func (s *Squeue) sacctArgs() []string {
	seconds := int64(s.HistoryWindow / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	args := []string{
		"-n", "-P", "-X",
		"--format=" + sacctFormat,
		"--starttime", "now-" + strconv.FormatInt(seconds, 10),
	}
	if s.User != "" {
		args = append(args, "--user="+s.User)
	}
	if s.Partition != "" {
		args = append(args, "--partition="+s.Partition)
	}
	return args
}

// mergeHistory appends finished jobs that squeue no longer lists. sacct
// reports oldest first; history is appended newest first.
func mergeHistory(live, history model.Snapshot) model.Snapshot {
	seen := make(map[string]struct{}, len(live))
	for _, job := range live {
		seen[job.ID] = struct{}{}
	}
	merged := live
	for i := len(history) - 1; i >= 0; i-- {
		job := history[i]
		if !job.Status.IsTerminal() {
			continue
		}
		if _, ok := seen[job.ID]; ok {
			continue
		}
		seen[job.ID] = struct{}{}
		merged = append(merged, job)
	}
	return merged
}

// parseRows parses pipe-separated rows in id|name|state|nodes|elapsed|partition|user
// order. Rows without at least id, name and state are skipped.
func parseRows(out string, width int) model.Snapshot {
	var snap model.Snapshot
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			continue
		}
		// job names may contain the separator
		if extra := len(fields) - width; extra > 0 {
			name := strings.Join(fields[1:2+extra], "|")
			fields = append([]string{fields[0], name}, fields[2+extra:]...)
		}
		for len(fields) < width {
			fields = append(fields, "")
		}
		id := strings.TrimSpace(fields[0])
		if id == "" {
			continue
		}
		snap = append(snap, model.Job{
			ID:        id,
			Name:      strings.TrimSpace(fields[1]),
			Status:    model.ParseStatus(fields[2]),
			NodeList:  cleanNodeList(fields[3]),
			Elapsed:   strings.TrimSpace(fields[4]),
			Partition: strings.TrimSpace(fields[5]),
			User:      strings.TrimSpace(fields[6]),
		})
	}
	return snap
}

func cleanNodeList(raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "(null)", "None assigned", "n/a":
		return ""
	}
	return trimmed
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := execCommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err == nil {
		return string(out), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "", fmt.Errorf("%w: %s not found", ErrSourceUnavailable, name)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(string(exitErr.Stderr))
		if msg == "" {
			msg = exitErr.Error()
		}
		return "", fmt.Errorf("%w: %s: %s", ErrSourceUnavailable, name, msg)
	}
	return "", fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
}
