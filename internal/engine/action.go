package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/s22625/sqwatch/internal/model"
)

// Action is an operation the dispatcher can run against jobs.
type Action string

const (
	ActionKill    Action = "kill"
	ActionAttach  Action = "attach"
	ActionSsh     Action = "ssh"
	ActionInspect Action = "inspect"
)

// Destructive reports whether the action needs an explicit confirmation.
func (a Action) Destructive() bool {
	return a == ActionKill
}

// ParseAction converts a command word to an Action.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionKill, "cancel", "scancel":
		return ActionKill, nil
	case ActionAttach:
		return ActionAttach, nil
	case ActionSsh:
		return ActionSsh, nil
	case ActionInspect, "show":
		return ActionInspect, nil
	default:
		return "", fmt.Errorf("unknown action %q", raw)
	}
}

// Commit is an action the engine has cleared for dispatch.
type Commit struct {
	Action Action
	JobIDs []string
	// Jobs holds the listed jobs at commit time; ids no longer listed are
	// absent.
	Jobs []model.Job
}

// Outcome is the dispatcher's report for one commit.
type Outcome struct {
	RequestID string
	Action    Action
	JobIDs    []string
	Output    string
	Err       error
	Started   time.Time
	Finished  time.Time
}

// Summary renders the outcome as a one-line operator message.
func (o Outcome) Summary() string {
	target := strings.Join(o.JobIDs, ",")
	if o.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", o.Action, target, o.Err)
	}
	switch o.Action {
	case ActionKill:
		if len(o.JobIDs) == 1 {
			return fmt.Sprintf("cancelled job %s", target)
		}
		return fmt.Sprintf("cancelled %d jobs", len(o.JobIDs))
	case ActionInspect:
		line := strings.TrimSpace(o.Output)
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		if line == "" {
			return fmt.Sprintf("inspected job %s", target)
		}
		return line
	default:
		return fmt.Sprintf("%s %s done", o.Action, target)
	}
}
