// Package dispatch runs committed job actions against the scheduler.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/logging"
	"github.com/s22625/sqwatch/internal/tmux"
)

var execCommandContext = exec.CommandContext

var (
	// ErrNeedsTerminal is reported for attach/ssh outside a terminal surface
	// when no tmux window can be opened.
	ErrNeedsTerminal = errors.New("action needs an interactive terminal")

	// ErrNoNode is reported for ssh on a job without allocated nodes.
	ErrNoNode = errors.New("job has no allocated node")

	// ErrNoJobs is reported for commits without job ids.
	ErrNoJobs = errors.New("no jobs to act on")
)

// Dispatcher runs a commit in the background and reports the outcome through
// done, called from another goroutine. It returns the request id.
type Dispatcher interface {
	Dispatch(ctx context.Context, commit engine.Commit, done func(engine.Outcome)) string
}

// Interactive builds commands that take over the terminal.
type Interactive interface {
	Command(commit engine.Commit) (*exec.Cmd, error)
}

// Options configures the Slurm dispatcher.
type Options struct {
	SSHCommand   string
	AttachInTmux bool
	Logger       *zerolog.Logger
}

// Slurm dispatches actions with scancel, scontrol, sattach and ssh.
type Slurm struct {
	sshCommand   []string
	attachInTmux bool
	log          zerolog.Logger
	now          func() time.Time
}

// NewSlurm creates a dispatcher.
func NewSlurm(opts Options) *Slurm {
	ssh := strings.Fields(opts.SSHCommand)
	if len(ssh) == 0 {
		ssh = []string{"ssh"}
	}
	log := logging.Component("dispatch")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	attachInTmux := opts.AttachInTmux
	if attachInTmux && tmux.IsInsideTmux() && !tmux.IsTmuxAvailable() {
		log.Warn().Msg("tmux binary not found, attach will use the terminal")
		attachInTmux = false
	}
	return &Slurm{
		sshCommand:   ssh,
		attachInTmux: attachInTmux,
		log:          log,
		now:          time.Now,
	}
}

// Dispatch runs commit asynchronously.
func (s *Slurm) Dispatch(ctx context.Context, commit engine.Commit, done func(engine.Outcome)) string {
	id := uuid.NewString()
	s.log.Debug().Str("request_id", id).Str("action", string(commit.Action)).Strs("job_ids", commit.JobIDs).Msg("dispatch")
	go func() {
		outcome := s.Run(ctx, commit)
		outcome.RequestID = id
		if done != nil {
			done(outcome)
		}
	}()
	return id
}

// Run executes commit synchronously.
func (s *Slurm) Run(ctx context.Context, commit engine.Commit) engine.Outcome {
	outcome := engine.Outcome{
		Action:  commit.Action,
		JobIDs:  append([]string(nil), commit.JobIDs...),
		Started: s.now(),
	}
	outcome.Output, outcome.Err = s.run(ctx, commit)
	outcome.Finished = s.now()
	return outcome
}

func (s *Slurm) run(ctx context.Context, commit engine.Commit) (string, error) {
	if len(commit.JobIDs) == 0 {
		return "", ErrNoJobs
	}
	switch commit.Action {
	case engine.ActionKill:
		return output(ctx, "scancel", commit.JobIDs...)
	case engine.ActionInspect:
		return output(ctx, "scontrol", "show", "job", commit.JobIDs[0])
	case engine.ActionAttach, engine.ActionSsh:
		if !s.attachInTmux || !tmux.IsInsideTmux() {
			return "", ErrNeedsTerminal
		}
		argv, err := s.argv(commit)
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("%s-%s", commit.Action, commit.JobIDs[0])
		return "", tmux.OpenWindow(name, argv)
	default:
		return "", fmt.Errorf("unsupported action %q", commit.Action)
	}
}

// Command returns the terminal command for attach and ssh.
func (s *Slurm) Command(commit engine.Commit) (*exec.Cmd, error) {
	argv, err := s.argv(commit)
	if err != nil {
		return nil, err
	}
	return exec.Command(argv[0], argv[1:]...), nil
}

// InTmux reports whether interactive actions open in a tmux window instead of
// taking over the current terminal.
func (s *Slurm) InTmux() bool {
	return s.attachInTmux && tmux.IsInsideTmux()
}

func (s *Slurm) argv(commit engine.Commit) ([]string, error) {
	if len(commit.JobIDs) == 0 {
		return nil, ErrNoJobs
	}
	id := commit.JobIDs[0]
	switch commit.Action {
	case engine.ActionAttach:
		return []string{"sattach", id + ".0"}, nil
	case engine.ActionSsh:
		var nodes string
		for _, job := range commit.Jobs {
			if job.ID == id {
				nodes = job.NodeList
			}
		}
		host := FirstNode(nodes)
		if host == "" {
			return nil, fmt.Errorf("ssh %s: %w", id, ErrNoNode)
		}
		return append(append([]string(nil), s.sshCommand...), host), nil
	default:
		return nil, fmt.Errorf("%s is not interactive", commit.Action)
	}
}

// FirstNode returns the first host of a compressed Slurm node list:
// "gpu[01-03,07],cpu1" yields "gpu01".
func FirstNode(nodeList string) string {
	nodeList = strings.TrimSpace(nodeList)
	if nodeList == "" {
		return ""
	}
	depth := 0
	end := len(nodeList)
	for i, r := range nodeList {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				end = i
			}
		}
		if end != len(nodeList) {
			break
		}
	}
	first := nodeList[:end]

	open := strings.IndexByte(first, '[')
	if open < 0 {
		return first
	}
	closing := strings.IndexByte(first[open:], ']')
	if closing < 0 {
		return first[:open]
	}
	prefix := first[:open]
	suffix := first[open+closing+1:]
	inner := first[open+1 : open+closing]
	item := strings.SplitN(inner, ",", 2)[0]
	item = strings.SplitN(item, "-", 2)[0]
	return prefix + item + suffix
}

func output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := execCommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return string(out), fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return string(out), nil
}
