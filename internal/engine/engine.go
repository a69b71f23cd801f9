// Package engine holds the job selection and confirmation state behind every
// sqwatch surface. It performs no I/O and is not safe for concurrent use;
// hosts with more than one goroutine serialise calls themselves.
package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/s22625/sqwatch/internal/logging"
	"github.com/s22625/sqwatch/internal/model"
)

// Options configures a new Engine.
type Options struct {
	HistoryCap     int
	ShowScheduled  bool
	ShowHistorical bool
	Logger         *zerolog.Logger
}

// Engine owns the store, selection, filter, visibility and confirmation state
// and is the only mutation surface for renderers.
type Engine struct {
	store      *JobStore
	selection  *SelectionSet
	filter     FilterState
	visibility *VisibilityPolicy
	confirm    *ConfirmationController

	sourceErr error
	message   string
	dirty     bool

	log zerolog.Logger
}

// New creates an engine. The first Flush always renders.
func New(opts Options) *Engine {
	log := logging.Component("engine")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	e := &Engine{
		store:      NewJobStore(),
		selection:  NewSelectionSet(),
		visibility: NewVisibilityPolicy(opts.HistoryCap, opts.ShowScheduled, opts.ShowHistorical),
		confirm:    NewConfirmationController(),
		dirty:      true,
		log:        log,
	}
	e.store.OnVanished(func(id string, last model.Job) {
		e.log.Info().Str("job_id", id).Str("name", last.Name).Str("status", string(last.Status)).Msg("job vanished")
	})
	return e
}

// OnVanished registers an observer for jobs that disappear between polls.
func (e *Engine) OnVanished(fn VanishedFunc) {
	e.store.OnVanished(fn)
}

// Ingest applies a fresh snapshot.
func (e *Engine) Ingest(snap model.Snapshot) IngestResult {
	recovered := e.sourceErr != nil
	e.sourceErr = nil
	result := e.store.Ingest(snap)
	if result.Changed || recovered {
		e.markDirty()
	}
	return result
}

// ReportSourceError records a failed poll. The last snapshot stays in place.
func (e *Engine) ReportSourceError(err error) {
	if err == nil {
		return
	}
	if e.sourceErr == nil || e.sourceErr.Error() != err.Error() {
		e.log.Warn().Err(err).Msg("job source unavailable")
		e.markDirty()
	}
	e.sourceErr = err
}

// Toggle flips selection of id.
func (e *Engine) Toggle(id string) {
	e.selection.Toggle(id)
	e.markDirty()
}

// SelectAllVisible selects every visible job, or deselects them all when they
// are already all selected.
func (e *Engine) SelectAllVisible() {
	ids := jobIDs(e.visible())
	if e.selection.IsAllSelected(ids) {
		e.selection.RemoveAll(ids)
	} else {
		e.selection.AddAll(ids)
	}
	e.markDirty()
}

// ClearSelection deselects everything, including ids no longer listed.
func (e *Engine) ClearSelection() {
	e.selection.Clear()
	e.markDirty()
}

// SetFilter replaces the pattern. An invalid pattern is kept for display and
// its error returned; nothing else changes.
func (e *Engine) SetFilter(pattern string) error {
	err := e.filter.Set(pattern)
	if err != nil {
		e.log.Debug().Err(err).Msg("filter rejected")
	}
	e.markDirty()
	return err
}

// ClearFilter drops the pattern.
func (e *Engine) ClearFilter() {
	e.filter.Clear()
	e.markDirty()
}

// ArmFilter switches the current pattern from highlighting to bulk mode.
func (e *Engine) ArmFilter() error {
	if e.filter.Err != nil {
		return e.filter.Err
	}
	if !e.filter.Active() {
		return ErrNoFilter
	}
	e.filter.Mode = FilterArmed
	e.markDirty()
	return nil
}

// BulkToggle applies the all-or-nothing toggle to visible matches and returns
// the filter to highlight mode.
func (e *Engine) BulkToggle() (BulkResult, error) {
	if e.filter.Err != nil {
		return BulkResult{}, e.filter.Err
	}
	m := e.filter.Matcher()
	if m == nil {
		return BulkResult{}, ErrNoFilter
	}
	result := BulkToggle(e.visible(), m, e.selection)
	e.filter.Mode = FilterHighlight
	switch {
	case result.Matched == 0:
		e.message = fmt.Sprintf("no visible job matches %q", m.String())
	case result.Removed > 0:
		e.message = fmt.Sprintf("deselected %d jobs matching %q", result.Removed, m.String())
	default:
		e.message = fmt.Sprintf("selected %d jobs matching %q", result.Matched, m.String())
	}
	e.markDirty()
	return result, nil
}

// ToggleSection expands or collapses a section.
func (e *Engine) ToggleSection(section Section) error {
	if err := e.visibility.ToggleExpanded(section); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

// SetSectionExpanded forces the expansion flag of a section.
func (e *Engine) SetSectionExpanded(section Section, expanded bool) error {
	if err := e.visibility.SetExpanded(section, expanded); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

// RequestKill arms the kill confirmation for a listed job.
func (e *Engine) RequestKill(id string) error {
	if _, ok := e.store.Lookup(id); !ok {
		return fmt.Errorf("kill %s: %w", id, ErrUnknownJob)
	}
	e.confirm.RequestKill(id)
	e.markDirty()
	return nil
}

// ConfirmKill returns the kill commit for a pending job.
func (e *Engine) ConfirmKill(id string) (Commit, error) {
	commit, err := e.confirm.ConfirmKill(id)
	if err != nil {
		e.log.Warn().Err(err).Str("job_id", id).Msg("confirm without request")
		return Commit{}, err
	}
	commit.Jobs = e.lookupAll(commit.JobIDs)
	e.markDirty()
	return commit, nil
}

// CancelKill drops a pending kill.
func (e *Engine) CancelKill(id string) error {
	if err := e.confirm.CancelKill(id); err != nil {
		e.log.Warn().Err(err).Str("job_id", id).Msg("cancel without request")
		return err
	}
	e.markDirty()
	return nil
}

// RequestBatchKill arms a batch kill over the selected jobs that are still
// listed. Selected ids that left the snapshot stay selected but are not
// targeted.
func (e *Engine) RequestBatchKill() error {
	var targets []string
	for _, id := range e.selection.IDs() {
		if _, ok := e.store.Lookup(id); ok {
			targets = append(targets, id)
		}
	}
	if err := e.confirm.RequestBatchKill(targets); err != nil {
		e.log.Warn().Err(err).Msg("batch kill requested with empty selection")
		return err
	}
	e.markDirty()
	return nil
}

// ConfirmBatchKill returns the batch commit and deselects its targets.
func (e *Engine) ConfirmBatchKill() (Commit, error) {
	commit, err := e.confirm.ConfirmBatchKill()
	if err != nil {
		e.log.Warn().Err(err).Msg("batch confirm without request")
		return Commit{}, err
	}
	e.selection.RemoveAll(commit.JobIDs)
	commit.Jobs = e.lookupAll(commit.JobIDs)
	e.markDirty()
	return commit, nil
}

// CancelBatchKill disarms the batch kill.
func (e *Engine) CancelBatchKill() error {
	if err := e.confirm.CancelBatchKill(); err != nil {
		e.log.Warn().Err(err).Msg("batch cancel without request")
		return err
	}
	e.markDirty()
	return nil
}

// Resolve builds a commit for a non-destructive action on a listed job.
func (e *Engine) Resolve(action Action, id string) (Commit, error) {
	if action.Destructive() {
		return Commit{}, ErrConfirmationRequired
	}
	job, ok := e.store.Lookup(id)
	if !ok {
		return Commit{}, fmt.Errorf("%s %s: %w", action, id, ErrUnknownJob)
	}
	return Commit{Action: action, JobIDs: []string{id}, Jobs: []model.Job{job}}, nil
}

// HandleOutcome records a dispatcher result. Pending kills for the affected
// jobs are cleared whether or not the attempt succeeded.
func (e *Engine) HandleOutcome(o Outcome) {
	if o.Action == ActionKill {
		for _, id := range o.JobIDs {
			_ = e.confirm.CancelKill(id)
		}
	}
	evt := e.log.Info()
	if o.Err != nil {
		evt = e.log.Error().Err(o.Err)
	}
	evt.Str("request_id", o.RequestID).
		Str("action", string(o.Action)).
		Strs("job_ids", o.JobIDs).
		Dur("took", o.Finished.Sub(o.Started)).
		Msg("dispatch finished")
	e.message = o.Summary()
	e.markDirty()
}

// SetMessage replaces the operator message line.
func (e *Engine) SetMessage(text string) {
	e.message = text
	e.markDirty()
}

// Selected returns the selected ids, sorted.
func (e *Engine) Selected() []string {
	return e.selection.IDs()
}

// Dirty reports whether a render is owed.
func (e *Engine) Dirty() bool {
	return e.dirty
}

// Flush renders once if anything changed since the last flush.
func (e *Engine) Flush(r Renderer) bool {
	if !e.dirty {
		return false
	}
	vm := e.View()
	e.dirty = false
	if r != nil {
		r.Render(vm)
	}
	return true
}

// View builds the current view model without clearing the dirty flag.
func (e *Engine) View() ViewModel {
	snap, err := e.store.Current()
	if err != nil && !errors.Is(err, ErrNotYetPolled) {
		e.log.Error().Err(err).Msg("read snapshot")
	}

	highlight := make(map[string]struct{})
	groups := e.visibility.Group(snap)
	var visibleIDs []string
	for _, group := range groups {
		visibleIDs = append(visibleIDs, jobIDs(group.Jobs)...)
	}
	if m := e.filter.Matcher(); m != nil {
		for _, group := range groups {
			for id := range HighlightSet(group.Jobs, m) {
				highlight[id] = struct{}{}
			}
		}
	}

	vm := ViewModel{
		Sections:        make([]SectionView, 0, len(groups)),
		VisibleCount:    len(visibleIDs),
		VisibleSelected: e.selection.CountIn(visibleIDs),
		SelectedTotal:   e.selection.Len(),
		Header:          e.selection.Tri(visibleIDs),
		Filter: FilterView{
			Pattern: e.filter.Pattern,
			Mode:    e.filter.Mode,
		},
		Batch: BatchView{
			Armed:   e.confirm.BatchArmed(),
			Targets: e.confirm.BatchTargets(),
		},
		Source: SourceView{
			Polled:      e.store.Polled(),
			Unavailable: e.sourceErr != nil,
			LastPoll:    e.store.LastIngest(),
		},
		Message: e.message,
	}
	if e.filter.Err != nil {
		vm.Filter.Error = e.filter.Err.Error()
	}
	if e.sourceErr != nil {
		vm.Source.Error = e.sourceErr.Error()
	}

	for _, group := range groups {
		section := SectionView{
			Section:  group.Section,
			Expanded: group.Expanded,
			Total:    group.Total,
			Hidden:   group.Hidden,
			Jobs:     make([]JobView, 0, len(group.Jobs)),
		}
		for _, job := range group.Jobs {
			_, lit := highlight[job.ID]
			section.Jobs = append(section.Jobs, JobView{
				Job:         job,
				Selected:    e.selection.Contains(job.ID),
				Highlighted: lit,
				PendingKill: e.confirm.IsPending(job.ID),
			})
		}
		vm.Sections = append(vm.Sections, section)
	}
	return vm
}

func (e *Engine) visible() []model.Job {
	snap, err := e.store.Current()
	if err != nil {
		return nil
	}
	return e.visibility.VisibleJobs(snap)
}

func (e *Engine) lookupAll(ids []string) []model.Job {
	jobs := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := e.store.Lookup(id); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func (e *Engine) markDirty() {
	e.dirty = true
}
