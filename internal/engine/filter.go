package engine

import (
	"regexp"
	"strings"

	"github.com/s22625/sqwatch/internal/model"
)

// Matcher is a compiled name filter.
type Matcher struct {
	source string
	re     *regexp.Regexp
}

// Compile builds a case-insensitive matcher from the pattern as typed. A
// blank pattern yields a nil matcher, meaning no filter.
func Compile(pattern string) (*Matcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &FilterError{Kind: InvalidPattern, Pattern: pattern, Err: err}
	}
	return &Matcher{source: pattern, re: re}, nil
}

// Match reports whether the job name matches. Only the name is considered.
func (m *Matcher) Match(job model.Job) bool {
	if m == nil {
		return false
	}
	return m.re.MatchString(job.Name)
}

// String returns the pattern the matcher was compiled from.
func (m *Matcher) String() string {
	if m == nil {
		return ""
	}
	return m.source
}

// HighlightSet returns the ids of visible jobs that match m.
func HighlightSet(visible []model.Job, m *Matcher) map[string]struct{} {
	set := make(map[string]struct{})
	if m == nil {
		return set
	}
	for _, job := range visible {
		if m.Match(job) {
			set[job.ID] = struct{}{}
		}
	}
	return set
}

// BulkResult reports what a bulk toggle did.
type BulkResult struct {
	Matched int
	Added   int
	Removed int
}

// BulkToggle selects every visible match, or deselects them all when every
// match is already selected.
func BulkToggle(visible []model.Job, m *Matcher, sel *SelectionSet) BulkResult {
	var matched []string
	for _, job := range visible {
		if m.Match(job) {
			matched = append(matched, job.ID)
		}
	}
	result := BulkResult{Matched: len(matched)}
	if len(matched) == 0 {
		return result
	}
	if sel.IsAllSelected(matched) {
		sel.RemoveAll(matched)
		result.Removed = len(matched)
		return result
	}
	result.Added = len(matched) - sel.CountIn(matched)
	sel.AddAll(matched)
	return result
}

// FilterMode tells what the current pattern is used for.
type FilterMode int

const (
	// FilterHighlight only emphasises matching rows.
	FilterHighlight FilterMode = iota
	// FilterArmed means the next bulk gesture applies to the matches.
	FilterArmed
)

func (m FilterMode) String() string {
	if m == FilterArmed {
		return "armed"
	}
	return "highlight"
}

// FilterState is the pattern currently typed by the operator.
type FilterState struct {
	Pattern string
	Mode    FilterMode
	Err     error

	matcher *Matcher
}

// Set compiles pattern. On failure the raw text and error are kept and the
// state matches nothing.
func (f *FilterState) Set(pattern string) error {
	m, err := Compile(pattern)
	f.Pattern = pattern
	f.matcher = m
	f.Err = err
	if err != nil || m == nil {
		f.Mode = FilterHighlight
	}
	return err
}

// Clear drops the pattern and any error.
func (f *FilterState) Clear() {
	*f = FilterState{}
}

// Matcher returns the usable matcher, or nil when the pattern is empty or
// invalid.
func (f *FilterState) Matcher() *Matcher {
	if f.Err != nil {
		return nil
	}
	return f.matcher
}

// Active reports whether a valid, non-empty pattern is set.
func (f *FilterState) Active() bool {
	return f.Matcher() != nil
}
