// Package monitor is the interactive terminal dashboard. The dashboard is the
// engine's renderer and the only goroutine that touches the engine.
package monitor

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/s22625/sqwatch/internal/dispatch"
	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/logging"
	"github.com/s22625/sqwatch/internal/source"
)

// Options configures the monitor behavior.
type Options struct {
	PollInterval time.Duration
	Logger       *zerolog.Logger
}

// Monitor wires an engine to a job source and a dispatcher.
type Monitor struct {
	engine      *engine.Engine
	source      source.JobSource
	dispatcher  dispatch.Dispatcher
	interactive dispatch.Interactive
	interval    time.Duration
	log         zerolog.Logger
	ctx         context.Context
}

type tmuxAware interface {
	InTmux() bool
}

// New creates a monitor. When dispatcher also implements
// dispatch.Interactive, attach and ssh take over the terminal.
func New(eng *engine.Engine, src source.JobSource, dispatcher dispatch.Dispatcher, opts Options) *Monitor {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	log := logging.Component("monitor")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	m := &Monitor{
		engine:     eng,
		source:     src,
		dispatcher: dispatcher,
		interval:   interval,
		log:        log,
		ctx:        context.Background(),
	}
	if interactive, ok := dispatcher.(dispatch.Interactive); ok {
		m.interactive = interactive
	}
	return m
}

// Run launches the dashboard and blocks until the user quits or ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	m.ctx = ctx
	d := NewDashboard(m)
	program := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Monitor) opensWindows() bool {
	aware, ok := m.dispatcher.(tmuxAware)
	return ok && aware.InTmux()
}
