package engine

import "sort"

// TriState is the header checkbox state for a visible set.
type TriState int

const (
	TriUnchecked TriState = iota
	TriChecked
	TriIndeterminate
)

func (t TriState) String() string {
	switch t {
	case TriChecked:
		return "checked"
	case TriIndeterminate:
		return "indeterminate"
	default:
		return "unchecked"
	}
}

// SelectionSet is the set of job ids the operator explicitly chose. Ids stay
// selected after their job leaves the snapshot until cleared.
type SelectionSet struct {
	ids map[string]struct{}
}

// NewSelectionSet creates an empty selection.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{ids: make(map[string]struct{})}
}

// Toggle flips membership of id.
func (s *SelectionSet) Toggle(id string) {
	if s.Contains(id) {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// Add selects id.
func (s *SelectionSet) Add(id string) {
	s.ids[id] = struct{}{}
}

// Remove deselects id.
func (s *SelectionSet) Remove(id string) {
	delete(s.ids, id)
}

// AddAll selects every id.
func (s *SelectionSet) AddAll(ids []string) {
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// RemoveAll deselects every id.
func (s *SelectionSet) RemoveAll(ids []string) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.ids = make(map[string]struct{})
}

// Contains reports membership.
func (s *SelectionSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids, including ids no longer listed.
func (s *SelectionSet) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids sorted for deterministic output.
func (s *SelectionSet) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CountIn returns how many of visibleIDs are selected.
func (s *SelectionSet) CountIn(visibleIDs []string) int {
	n := 0
	for _, id := range visibleIDs {
		if s.Contains(id) {
			n++
		}
	}
	return n
}

// IsAllSelected reports whether every visible id is selected. An empty
// visible set is never "all selected".
func (s *SelectionSet) IsAllSelected(visibleIDs []string) bool {
	if len(visibleIDs) == 0 {
		return false
	}
	return s.CountIn(visibleIDs) == len(visibleIDs)
}

// Tri computes the header checkbox state for visibleIDs.
func (s *SelectionSet) Tri(visibleIDs []string) TriState {
	n := s.CountIn(visibleIDs)
	switch {
	case n == 0:
		return TriUnchecked
	case n == len(visibleIDs):
		return TriChecked
	default:
		return TriIndeterminate
	}
}
