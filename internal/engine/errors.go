package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotYetPolled is returned by JobStore.Current before the first
	// successful ingest. Callers treat it as an empty listing.
	ErrNotYetPolled = errors.New("no snapshot ingested yet")

	// ErrInvalidPattern is the kind carried by FilterError.
	ErrInvalidPattern = errors.New("invalid filter pattern")

	// ErrNotPending is returned when confirming or cancelling something that
	// was never armed.
	ErrNotPending = errors.New("no pending confirmation")

	// ErrEmptyTarget is returned when arming a batch kill with no targets.
	ErrEmptyTarget = errors.New("batch target list is empty")

	// ErrNotCollapsible is returned when toggling the active section.
	ErrNotCollapsible = errors.New("section cannot be collapsed")

	// ErrConfirmationRequired is returned when resolving a destructive action
	// without going through the confirmation controller.
	ErrConfirmationRequired = errors.New("action requires confirmation")

	// ErrUnknownJob is returned for job ids absent from the latest snapshot.
	ErrUnknownJob = errors.New("job not in current snapshot")

	// ErrNoFilter is returned by bulk operations when no pattern is set.
	ErrNoFilter = errors.New("no filter pattern set")
)

// FilterErrorKind classifies filter failures.
type FilterErrorKind int

const (
	// InvalidPattern means the expression did not compile.
	InvalidPattern FilterErrorKind = iota
)

func (k FilterErrorKind) String() string {
	switch k {
	case InvalidPattern:
		return "invalid_pattern"
	default:
		return "unknown"
	}
}

// FilterError reports a pattern that failed to compile.
type FilterError struct {
	Kind    FilterErrorKind
	Pattern string
	Err     error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

// Is makes errors.Is(err, ErrInvalidPattern) hold for every FilterError.
func (e *FilterError) Is(target error) bool {
	return target == ErrInvalidPattern
}

func (e *FilterError) Unwrap() error {
	return e.Err
}
