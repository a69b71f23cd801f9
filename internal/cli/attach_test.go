package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/s22625/sqwatch/internal/engine"
)

type inspectDispatcher struct {
	recordingDispatcher
	output string
}

func (d *inspectDispatcher) Dispatch(ctx context.Context, commit engine.Commit, done func(engine.Outcome)) string {
	return d.recordingDispatcher.Dispatch(ctx, commit, func(o engine.Outcome) {
		o.Output = d.output
		done(o)
	})
}

func TestRunJobActionInspect(t *testing.T) {
	setupEnv(t)
	disp := &inspectDispatcher{output: "JobId=1 JobName=train\n   JobState=RUNNING\n"}
	useDispatcher(t, disp)

	var out bytes.Buffer
	if err := runJobAction(context.Background(), &out, engine.ActionInspect, "1"); err != nil {
		t.Fatalf("runJobAction: %v", err)
	}
	if out.String() != disp.output {
		t.Fatalf("output = %q", out.String())
	}
	commits := disp.recorded()
	if len(commits) != 1 || commits[0].Action != engine.ActionInspect || commits[0].Jobs[0].Name != "train" {
		t.Fatalf("commits = %+v", commits)
	}
}

func TestRunJobActionDispatchesWithoutTerminal(t *testing.T) {
	setupEnv(t)
	disp := &recordingDispatcher{}
	useDispatcher(t, disp)

	var out bytes.Buffer
	if err := runJobAction(context.Background(), &out, engine.ActionSsh, "2"); err != nil {
		t.Fatalf("runJobAction: %v", err)
	}
	if strings.TrimSpace(out.String()) != "ssh 2 done" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunJobActionErrors(t *testing.T) {
	setupEnv(t)
	useDispatcher(t, &recordingDispatcher{})

	err := runJobAction(context.Background(), &bytes.Buffer{}, engine.ActionAttach, "404")
	if !errors.Is(err, engine.ErrUnknownJob) {
		t.Fatalf("expected unknown job, got %v", err)
	}
	if exitCode(err) != ExitUsage {
		t.Fatalf("exit code = %d", exitCode(err))
	}

	err = runJobAction(context.Background(), &bytes.Buffer{}, engine.ActionKill, "1")
	if !errors.Is(err, engine.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation required, got %v", err)
	}
}
