package engine

import "sort"

// ConfirmationController tracks two-step confirmation for kills. Each job is
// either idle or pending; the batch is either idle or armed with a frozen
// target list.
type ConfirmationController struct {
	pending      map[string]struct{}
	batchArmed   bool
	batchTargets []string
}

// NewConfirmationController creates an idle controller.
func NewConfirmationController() *ConfirmationController {
	return &ConfirmationController{pending: make(map[string]struct{})}
}

// RequestKill moves id to pending. Requesting twice is a no-op.
func (c *ConfirmationController) RequestKill(id string) {
	c.pending[id] = struct{}{}
}

// ConfirmKill returns the kill commit for a pending id and returns it to idle.
func (c *ConfirmationController) ConfirmKill(id string) (Commit, error) {
	if !c.IsPending(id) {
		return Commit{}, ErrNotPending
	}
	delete(c.pending, id)
	return Commit{Action: ActionKill, JobIDs: []string{id}}, nil
}

// CancelKill returns id to idle without producing a commit.
func (c *ConfirmationController) CancelKill(id string) error {
	if !c.IsPending(id) {
		return ErrNotPending
	}
	delete(c.pending, id)
	return nil
}

// IsPending reports whether id awaits confirmation.
func (c *ConfirmationController) IsPending(id string) bool {
	_, ok := c.pending[id]
	return ok
}

// PendingIDs returns pending ids, sorted.
func (c *ConfirmationController) PendingIDs() []string {
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RequestBatchKill arms the batch with a copy of targets. Later changes to the
// caller's slice or selection do not affect the armed list, and requesting
// again while armed keeps the first list.
func (c *ConfirmationController) RequestBatchKill(targets []string) error {
	if c.batchArmed {
		return nil
	}
	if len(targets) == 0 {
		return ErrEmptyTarget
	}
	seen := make(map[string]struct{}, len(targets))
	frozen := make([]string, 0, len(targets))
	for _, id := range targets {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		frozen = append(frozen, id)
	}
	c.batchArmed = true
	c.batchTargets = frozen
	return nil
}

// ConfirmBatchKill returns the batch commit and disarms.
func (c *ConfirmationController) ConfirmBatchKill() (Commit, error) {
	if !c.batchArmed {
		return Commit{}, ErrNotPending
	}
	commit := Commit{Action: ActionKill, JobIDs: c.batchTargets}
	c.batchArmed = false
	c.batchTargets = nil
	return commit, nil
}

// CancelBatchKill disarms without producing a commit.
func (c *ConfirmationController) CancelBatchKill() error {
	if !c.batchArmed {
		return ErrNotPending
	}
	c.batchArmed = false
	c.batchTargets = nil
	return nil
}

// BatchArmed reports whether a batch kill awaits confirmation.
func (c *ConfirmationController) BatchArmed() bool {
	return c.batchArmed
}

// BatchTargets returns a copy of the armed targets.
func (c *ConfirmationController) BatchTargets() []string {
	if !c.batchArmed {
		return nil
	}
	out := make([]string, len(c.batchTargets))
	copy(out, c.batchTargets)
	return out
}
