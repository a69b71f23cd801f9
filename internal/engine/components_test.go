package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s22625/sqwatch/internal/model"
)

func TestJobStoreNotYetPolled(t *testing.T) {
	s := NewJobStore()
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNotYetPolled)
	assert.False(t, s.Polled())

	res := s.Ingest(nil)
	assert.True(t, res.Changed, "first ingest always changes")
	snap, err := s.Current()
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestJobStoreChangeDetection(t *testing.T) {
	s := NewJobStore()
	s.Ingest(trainEval())

	assert.False(t, s.Ingest(trainEval()).Changed)

	moved := trainEval()
	moved[1].Status = model.StatusRunning
	assert.True(t, s.Ingest(moved).Changed)

	reordered := model.Snapshot{moved[1], moved[0]}
	assert.True(t, s.Ingest(reordered).Changed)
}

func TestJobStoreIngestCopiesInput(t *testing.T) {
	s := NewJobStore()
	snap := trainEval()
	s.Ingest(snap)
	snap[0].Name = "mutated"

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "train", cur[0].Name)
}

func TestJobStoreVanishedOrder(t *testing.T) {
	s := NewJobStore()
	var got []string
	s.OnVanished(func(id string, _ model.Job) { got = append(got, id) })
	s.OnVanished(nil)

	s.Ingest(model.Snapshot{{ID: "3"}, {ID: "1"}, {ID: "2"}})
	res := s.Ingest(model.Snapshot{{ID: "1"}})

	assert.Equal(t, []string{"3", "2"}, got)
	require.Len(t, res.Vanished, 2)
	assert.Equal(t, "3", res.Vanished[0].ID)
}

func TestSelectionToggleIdempotence(t *testing.T) {
	ids := []string{"", "1", "42", "a b"}
	for _, id := range ids {
		s := NewSelectionSet()
		s.Add("other")
		before := s.IDs()
		s.Toggle(id)
		s.Toggle(id)
		assert.Equal(t, before, s.IDs(), "id %q", id)
	}
}

func TestSelectionAddRemoveIdempotent(t *testing.T) {
	s := NewSelectionSet()
	s.Add("1")
	s.Add("1")
	assert.Equal(t, 1, s.Len())
	s.Remove("1")
	s.Remove("1")
	assert.Zero(t, s.Len())
}

func TestSelectionNoSubstringMembership(t *testing.T) {
	s := NewSelectionSet()
	s.Add("12")
	assert.False(t, s.Contains("1"))
	assert.False(t, s.Contains("2"))
}

func TestSelectionTri(t *testing.T) {
	s := NewSelectionSet()
	visible := []string{"1", "2"}

	assert.False(t, s.IsAllSelected(nil))
	assert.Equal(t, TriUnchecked, s.Tri(visible))
	s.Add("1")
	assert.Equal(t, TriIndeterminate, s.Tri(visible))
	s.Add("2")
	assert.Equal(t, TriChecked, s.Tri(visible))
	assert.True(t, s.IsAllSelected(visible))
	assert.Equal(t, TriUnchecked, s.Tri(nil))
}

func TestCompile(t *testing.T) {
	m, err := Compile("  ")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = Compile("^TRAIN")
	require.NoError(t, err)
	assert.True(t, m.Match(model.Job{Name: "train-7"}), "case-insensitive")
	assert.False(t, m.Match(model.Job{ID: "train", Name: "eval"}), "id is not matched")
	assert.False(t, m.Match(model.Job{Name: "eval", Status: "train", NodeList: "train01"}))

	_, err = Compile("(")
	assert.ErrorIs(t, err, ErrInvalidPattern)

	m, err = Compile("a ")
	require.NoError(t, err)
	assert.Equal(t, "a ", m.String())
	assert.False(t, m.Match(model.Job{Name: "ab"}), "whitespace is part of the pattern")
	assert.True(t, m.Match(model.Job{Name: "a b"}))
}

func TestHighlightSetNeverMutatesSelection(t *testing.T) {
	m, err := Compile("a")
	require.NoError(t, err)
	jobs := []model.Job{{ID: "1", Name: "alpha"}, {ID: "2", Name: "zed"}}

	set := HighlightSet(jobs, m)
	assert.Equal(t, map[string]struct{}{"1": {}}, set)
	assert.Empty(t, HighlightSet(jobs, nil))
}

func TestBulkToggleNoMatchIsNoop(t *testing.T) {
	m, err := Compile("nomatch")
	require.NoError(t, err)
	sel := NewSelectionSet()
	sel.Add("1")
	res := BulkToggle([]model.Job{{ID: "1", Name: "alpha"}}, m, sel)
	assert.Equal(t, BulkResult{}, res)
	assert.Equal(t, []string{"1"}, sel.IDs())
}

func TestFilterStateInvalidMatchesNothing(t *testing.T) {
	var f FilterState
	require.NoError(t, f.Set("train"))
	assert.True(t, f.Active())

	require.Error(t, f.Set("["))
	assert.Equal(t, "[", f.Pattern)
	assert.Nil(t, f.Matcher())
	assert.False(t, f.Active())

	f.Clear()
	assert.NoError(t, f.Err)
	assert.Empty(t, f.Pattern)
}

func historyJobs() model.Snapshot {
	return model.Snapshot{
		{ID: "10", Name: "e", Status: model.StatusCompleted},
		{ID: "11", Name: "d", Status: model.StatusFailed},
		{ID: "12", Name: "c", Status: model.StatusCompleted},
		{ID: "13", Name: "b", Status: model.StatusUnknown},
		{ID: "14", Name: "a", Status: model.StatusCompleted},
		{ID: "1", Name: "run", Status: model.StatusRunning},
		{ID: "2", Name: "wait", Status: model.StatusPending},
	}
}

func TestSectionOf(t *testing.T) {
	tests := map[model.Status]Section{
		model.StatusRunning:    SectionActive,
		model.StatusCompleting: SectionActive,
		model.StatusPending:    SectionScheduled,
		model.StatusCompleted:  SectionHistorical,
		model.StatusFailed:     SectionHistorical,
		model.StatusUnknown:    SectionHistorical,
	}
	for status, want := range tests {
		assert.Equal(t, want, SectionOf(model.Job{Status: status}), "status %s", status)
	}
}

func TestVisibleJobsHistoryCap(t *testing.T) {
	p := NewVisibilityPolicy(2, false, true)
	visible := p.VisibleJobs(historyJobs())
	require.Len(t, visible, 3)
	assert.Equal(t, "1", visible[0].ID)
	// failed sorts before completed; then completed by name
	assert.Equal(t, "11", visible[1].ID)
	assert.Equal(t, "14", visible[2].ID)

	groups := p.Group(historyJobs())
	assert.Equal(t, 5, groups[2].Total)
	assert.Equal(t, 3, groups[2].Hidden)
}

func TestVisibleJobsZeroCap(t *testing.T) {
	p := NewVisibilityPolicy(-1, true, true)
	for _, job := range p.VisibleJobs(historyJobs()) {
		assert.NotEqual(t, SectionHistorical, SectionOf(job))
	}
}

func TestGroupNegativeCapAfterConstruction(t *testing.T) {
	p := NewVisibilityPolicy(5, true, true)
	p.HistoryCap = -3

	groups := p.Group(historyJobs())
	assert.Empty(t, groups[2].Jobs)
	assert.Equal(t, 5, groups[2].Hidden)
}

func TestVisibilityMonotonicity(t *testing.T) {
	p := NewVisibilityPolicy(10, true, true)
	all := p.VisibleJobs(historyJobs())

	require.NoError(t, p.ToggleExpanded(SectionScheduled))
	collapsed := p.VisibleJobs(historyJobs())

	assert.Len(t, collapsed, len(all)-1)
	for _, job := range collapsed {
		assert.NotEqual(t, SectionScheduled, SectionOf(job))
	}
	assert.Equal(t, "1", collapsed[0].ID, "active jobs unaffected")
	assert.ErrorIs(t, p.ToggleExpanded(SectionActive), ErrNotCollapsible)
	assert.True(t, p.Expanded(SectionActive))
}

func TestVisibleJobsOrdering(t *testing.T) {
	p := NewVisibilityPolicy(0, false, false)
	snap := model.Snapshot{
		{ID: "3", Name: "b", Status: model.StatusCompleting},
		{ID: "2", Name: "b", Status: model.StatusRunning},
		{ID: "1", Name: "b", Status: model.StatusRunning},
		{ID: "4", Name: "a", Status: model.StatusRunning},
	}
	assert.Equal(t, []string{"4", "1", "2", "3"}, jobIDs(p.VisibleJobs(snap)))
	assert.Equal(t, "3", snap[0].ID, "input is not reordered")
}

func TestConfirmationBatchDedup(t *testing.T) {
	c := NewConfirmationController()
	targets := []string{"1", "2", "1"}
	require.NoError(t, c.RequestBatchKill(targets))
	targets[1] = "changed"

	assert.Equal(t, []string{"1", "2"}, c.BatchTargets())
	commit, err := c.ConfirmBatchKill()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, commit.JobIDs)
	assert.False(t, c.BatchArmed())
	assert.Nil(t, c.BatchTargets())
}

func TestConfirmationRearmKeepsTargets(t *testing.T) {
	c := NewConfirmationController()
	require.NoError(t, c.RequestBatchKill([]string{"1"}))
	require.NoError(t, c.RequestBatchKill([]string{"1", "2", "3"}))
	assert.Equal(t, []string{"1"}, c.BatchTargets())

	require.NoError(t, c.CancelBatchKill())
	require.NoError(t, c.RequestBatchKill([]string{"2"}))
	assert.Equal(t, []string{"2"}, c.BatchTargets())
}

func TestConfirmationEmptyBatch(t *testing.T) {
	c := NewConfirmationController()
	c.RequestKill("5")
	assert.ErrorIs(t, c.RequestBatchKill(nil), ErrEmptyTarget)
	assert.False(t, c.BatchArmed())
	assert.Equal(t, []string{"5"}, c.PendingIDs())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("scancel")
	require.NoError(t, err)
	assert.Equal(t, ActionKill, a)
	assert.True(t, a.Destructive())

	a, err = ParseAction("SSH")
	require.NoError(t, err)
	assert.Equal(t, ActionSsh, a)
	assert.False(t, a.Destructive())

	_, err = ParseAction("reboot")
	assert.Error(t, err)
}

func TestOutcomeSummary(t *testing.T) {
	assert.Equal(t, "cancelled job 1", Outcome{Action: ActionKill, JobIDs: []string{"1"}}.Summary())
	assert.Equal(t, "cancelled 2 jobs", Outcome{Action: ActionKill, JobIDs: []string{"1", "2"}}.Summary())
	assert.Equal(t, "JobId=1 JobName=train",
		Outcome{Action: ActionInspect, JobIDs: []string{"1"}, Output: "JobId=1 JobName=train\n   UserId=me\n"}.Summary())
}
