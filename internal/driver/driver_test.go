package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s22625/sqwatch/internal/engine"
	"github.com/s22625/sqwatch/internal/model"
	"github.com/s22625/sqwatch/internal/source"
)

type blockingSource struct {
	calls   atomic.Int32
	release chan struct{}
	snap    model.Snapshot
	err     error
}

func (s *blockingSource) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.snap, s.err
}

type recordingRenderer struct {
	mu    sync.Mutex
	views []engine.ViewModel
}

func (r *recordingRenderer) Render(vm engine.ViewModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, vm)
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingRenderer) last() engine.ViewModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

type fakeDispatcher struct {
	mu      sync.Mutex
	commits []engine.Commit
	err     error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, commit engine.Commit, done func(engine.Outcome)) string {
	f.mu.Lock()
	f.commits = append(f.commits, commit)
	f.mu.Unlock()
	go done(engine.Outcome{RequestID: "req-1", Action: commit.Action, JobIDs: commit.JobIDs, Err: f.err})
	return "req-1"
}

func newTestDriver(src source.JobSource, r engine.Renderer, disp *fakeDispatcher) *Driver {
	log := zerolog.Nop()
	eng := engine.New(engine.Options{HistoryCap: 10, Logger: &log})
	cfg := Config{PollInterval: time.Hour, RenderInterval: 5 * time.Millisecond, Logger: &log}
	if disp == nil {
		return New(cfg, eng, src, nil, r)
	}
	return New(cfg, eng, src, disp, r)
}

func snapshot() model.Snapshot {
	return model.Snapshot{
		{ID: "1", Name: "train", Status: model.StatusRunning},
		{ID: "2", Name: "eval", Status: model.StatusPending},
	}
}

func TestSingleFlightPolling(t *testing.T) {
	src := &blockingSource{release: make(chan struct{}), snap: snapshot()}
	d := newTestDriver(src, nil, nil)

	ctx := context.Background()
	require.True(t, d.startPoll(ctx))
	assert.False(t, d.startPoll(ctx))
	assert.ErrorIs(t, d.Poll(ctx), ErrPollInFlight)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	// intents are applied while the fetch is blocked
	done := make(chan struct{})
	go func() {
		d.Do(func(e *engine.Engine) { e.Toggle("1") })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("intent blocked by in-flight fetch")
	}

	close(src.release)
	require.Eventually(t, func() bool { return !d.Polling() }, time.Second, time.Millisecond)
	d.wg.Wait()

	vm := d.View()
	assert.True(t, vm.Source.Polled)
	assert.Equal(t, 1, vm.VisibleSelected)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestPollSourceError(t *testing.T) {
	src := &blockingSource{err: errors.New("boom")}
	d := newTestDriver(src, nil, nil)

	err := d.Poll(context.Background())
	require.Error(t, err)
	vm := d.View()
	assert.True(t, vm.Source.Unavailable)
	assert.Equal(t, "boom", vm.Source.Error)
}

func TestFlushCoalescesMutations(t *testing.T) {
	src := &blockingSource{snap: snapshot()}
	r := &recordingRenderer{}
	d := newTestDriver(src, r, nil)
	require.NoError(t, d.Poll(context.Background()))

	assert.True(t, d.Flush())
	for i := 0; i < 10; i++ {
		d.Do(func(e *engine.Engine) { e.Toggle("1") })
	}
	d.Do(func(e *engine.Engine) { _ = e.ToggleSection(engine.SectionScheduled) })
	assert.True(t, d.Flush())
	assert.False(t, d.Flush())

	assert.Equal(t, 2, r.count())
	assert.Equal(t, 2, r.last().VisibleCount)
}

func TestRunRendersAndStops(t *testing.T) {
	src := &blockingSource{snap: snapshot()}
	r := &recordingRenderer{}
	d := newTestDriver(src, r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return r.count() > 0 && r.last().Source.Polled
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, r.last().VisibleCount)

	d.RefreshNow()
	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunTwice(t *testing.T) {
	src := &blockingSource{snap: snapshot()}
	d := newTestDriver(src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()
	require.Eventually(t, func() bool {
		d.runMu.Lock()
		defer d.runMu.Unlock()
		return d.running
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, d.Run(ctx), ErrAlreadyRunning)
}

func TestDispatchAppliesOutcomeAndRefreshes(t *testing.T) {
	src := &blockingSource{snap: snapshot()}
	disp := &fakeDispatcher{err: errors.New("scancel: exit status 1")}
	d := newTestDriver(src, nil, disp)
	require.NoError(t, d.Poll(context.Background()))

	var commit engine.Commit
	d.Do(func(e *engine.Engine) {
		require.NoError(t, e.RequestKill("1"))
		var err error
		commit, err = e.ConfirmKill("1")
		require.NoError(t, err)
	})
	assert.Equal(t, "req-1", d.Dispatch(commit))

	require.Eventually(t, func() bool {
		return d.View().Message != ""
	}, time.Second, time.Millisecond)
	assert.Contains(t, d.View().Message, "failed")

	select {
	case <-d.pollReq:
	case <-time.After(time.Second):
		t.Fatal("no refresh requested after outcome")
	}
}

type slowDispatcher struct {
	release chan struct{}
	ctxErr  chan error
}

func (s *slowDispatcher) Dispatch(ctx context.Context, commit engine.Commit, done func(engine.Outcome)) string {
	go func() {
		<-s.release
		s.ctxErr <- ctx.Err()
		done(engine.Outcome{Action: commit.Action, JobIDs: commit.JobIDs, Err: ctx.Err()})
	}()
	return "req-slow"
}

func TestStopWaitsForDispatchedAction(t *testing.T) {
	src := &blockingSource{snap: snapshot()}
	r := &recordingRenderer{}
	log := zerolog.Nop()
	eng := engine.New(engine.Options{HistoryCap: 10, Logger: &log})
	disp := &slowDispatcher{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	d := New(Config{PollInterval: time.Hour, RenderInterval: 5 * time.Millisecond, Logger: &log}, eng, src, disp, r)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	require.Eventually(t, func() bool { return d.View().Source.Polled }, 2*time.Second, 5*time.Millisecond)

	var commit engine.Commit
	d.Do(func(e *engine.Engine) {
		require.NoError(t, e.RequestKill("1"))
		var err error
		commit, err = e.ConfirmKill("1")
		require.NoError(t, err)
	})
	d.Dispatch(commit)
	cancel()

	select {
	case <-errCh:
		t.Fatal("Run returned before the dispatched kill finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(disp.release)
	assert.NoError(t, <-disp.ctxErr, "dispatch context must survive shutdown")
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, "cancelled job 1", r.last().Message)
}

func TestDispatchWithoutDispatcher(t *testing.T) {
	d := newTestDriver(&blockingSource{}, nil, nil)
	assert.Empty(t, d.Dispatch(engine.Commit{Action: engine.ActionKill, JobIDs: []string{"1"}}))
	assert.Contains(t, d.View().Message, "no dispatcher")
}
