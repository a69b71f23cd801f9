package engine

import (
	"time"

	"github.com/s22625/sqwatch/internal/model"
)

// Renderer draws a view model. Render is called at most once per flush.
type Renderer interface {
	Render(ViewModel)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ViewModel)

// Render calls f(vm).
func (f RendererFunc) Render(vm ViewModel) {
	f(vm)
}

// JobView is one visible row.
type JobView struct {
	Job         model.Job
	Selected    bool
	Highlighted bool
	PendingKill bool
}

// SectionView is one section header plus its visible rows.
type SectionView struct {
	Section  Section
	Expanded bool
	Total    int
	Hidden   int
	Jobs     []JobView
}

// FilterView describes the current pattern.
type FilterView struct {
	Pattern string
	Mode    FilterMode
	Error   string
}

// BatchView describes an armed batch kill.
type BatchView struct {
	Armed   bool
	Targets []string
}

// SourceView describes the health of the job source.
type SourceView struct {
	Polled      bool
	Unavailable bool
	Error       string
	LastPoll    time.Time
}

// ViewModel is everything a renderer needs. Renderers must not reach into
// engine state any other way.
type ViewModel struct {
	Sections        []SectionView
	VisibleCount    int
	VisibleSelected int
	SelectedTotal   int
	Header          TriState
	Filter          FilterView
	Batch           BatchView
	Source          SourceView
	Message         string
}

// Rows flattens the visible rows in display order.
func (vm ViewModel) Rows() []JobView {
	rows := make([]JobView, 0, vm.VisibleCount)
	for _, section := range vm.Sections {
		rows = append(rows, section.Jobs...)
	}
	return rows
}

// Row returns the visible row for id.
func (vm ViewModel) Row(id string) (JobView, bool) {
	for _, section := range vm.Sections {
		for _, row := range section.Jobs {
			if row.Job.ID == id {
				return row, true
			}
		}
	}
	return JobView{}, false
}

// HighlightCount returns how many visible rows match the filter.
func (vm ViewModel) HighlightCount() int {
	n := 0
	for _, row := range vm.Rows() {
		if row.Highlighted {
			n++
		}
	}
	return n
}
