// Package driver runs the poll loop around an engine for hosts that take
// input on other goroutines.
package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/s22625/sqwatch/internal/dispatch"
	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/logging"
	"github.com/s22625/sqwatch/internal/source"
)

// Driver errors.
var (
	ErrAlreadyRunning = errors.New("driver already running")
	ErrPollInFlight   = errors.New("poll already in flight")
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultRenderInterval = 100 * time.Millisecond
)

// Config contains driver timing.
type Config struct {
	// PollInterval is how often the source is fetched.
	// Default: 2s
	PollInterval time.Duration

	// RenderInterval is the coalescing window for redraws.
	// Default: 100ms
	RenderInterval time.Duration

	Logger *zerolog.Logger
}

// Driver serialises every engine call behind one mutex, keeps at most one
// fetch in flight and renders at most once per render tick.
type Driver struct {
	cfg        Config
	engine     *engine.Engine
	source     source.JobSource
	dispatcher dispatch.Dispatcher
	renderer   engine.Renderer
	logger     zerolog.Logger

	mu       sync.Mutex
	fetching atomic.Bool
	pollReq  chan struct{}

	runMu      sync.Mutex
	running    bool
	ctx        context.Context
	wg         sync.WaitGroup
	dispatches sync.WaitGroup
}

// New creates a driver. dispatcher and renderer may be nil.
func New(cfg Config, eng *engine.Engine, src source.JobSource, dispatcher dispatch.Dispatcher, renderer engine.Renderer) *Driver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RenderInterval <= 0 {
		cfg.RenderInterval = defaultRenderInterval
	}
	logger := logging.Component("driver")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Driver{
		cfg:        cfg,
		engine:     eng,
		source:     src,
		dispatcher: dispatcher,
		renderer:   renderer,
		logger:     logger,
		pollReq:    make(chan struct{}, 1),
		ctx:        context.Background(),
	}
}

// Run polls and renders until ctx is cancelled. The first poll starts
// immediately. On cancellation Run waits for dispatched actions to report
// their outcome and renders once more.
func (d *Driver) Run(ctx context.Context) error {
	d.runMu.Lock()
	if d.running {
		d.runMu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.ctx = ctx
	d.runMu.Unlock()

	defer func() {
		d.wg.Wait()
		d.runMu.Lock()
		d.running = false
		d.ctx = context.Background()
		d.runMu.Unlock()
	}()

	d.logger.Debug().
		Dur("poll_interval", d.cfg.PollInterval).
		Dur("render_interval", d.cfg.RenderInterval).
		Msg("driver starting")

	pollTicker := time.NewTicker(d.cfg.PollInterval)
	defer pollTicker.Stop()
	renderTicker := time.NewTicker(d.cfg.RenderInterval)
	defer renderTicker.Stop()

	d.startPoll(ctx)
	d.Flush()

	for {
		select {
		case <-ctx.Done():
			d.dispatches.Wait()
			d.Flush()
			return nil
		case <-pollTicker.C:
			d.startPoll(ctx)
		case <-d.pollReq:
			d.startPoll(ctx)
		case <-renderTicker.C:
			d.Flush()
		}
	}
}

// Do applies fn to the engine under the driver's lock. It never waits on a
// fetch.
func (d *Driver) Do(fn func(*engine.Engine)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.engine)
}

// View returns the current view model.
func (d *Driver) View() engine.ViewModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.View()
}

// Flush renders if the engine changed since the last flush.
func (d *Driver) Flush() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Flush(d.renderer)
}

// RefreshNow asks the running loop for a poll outside the ticker.
func (d *Driver) RefreshNow() {
	select {
	case d.pollReq <- struct{}{}:
	default:
	}
}

// Dispatch hands commit to the dispatcher. The outcome is applied to the
// engine and followed by a poll. Stopping the driver does not cancel a
// dispatched action.
func (d *Driver) Dispatch(commit engine.Commit) string {
	if d.dispatcher == nil {
		d.Do(func(e *engine.Engine) {
			e.HandleOutcome(engine.Outcome{Action: commit.Action, JobIDs: commit.JobIDs, Err: errors.New("no dispatcher configured")})
		})
		return ""
	}
	d.runMu.Lock()
	ctx := context.WithoutCancel(d.ctx)
	d.runMu.Unlock()

	d.dispatches.Add(1)
	return d.dispatcher.Dispatch(ctx, commit, func(o engine.Outcome) {
		defer d.dispatches.Done()
		d.Do(func(e *engine.Engine) { e.HandleOutcome(o) })
		d.RefreshNow()
	})
}

// Poll fetches synchronously. It fails with ErrPollInFlight when another
// fetch is running.
func (d *Driver) Poll(ctx context.Context) error {
	if !d.fetching.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer d.fetching.Store(false)
	return d.fetch(ctx)
}

// Polling reports whether a fetch is in flight.
func (d *Driver) Polling() bool {
	return d.fetching.Load()
}

func (d *Driver) startPoll(ctx context.Context) bool {
	if !d.fetching.CompareAndSwap(false, true) {
		d.logger.Debug().Msg("poll skipped, previous fetch still running")
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.fetching.Store(false)
		_ = d.fetch(ctx)
	}()
	return true
}

func (d *Driver) fetch(ctx context.Context) error {
	snap, err := d.source.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.Do(func(e *engine.Engine) { e.ReportSourceError(err) })
		return err
	}
	d.Do(func(e *engine.Engine) { e.Ingest(snap) })
	return nil
}
