package engine

import (
	"time"

	"github.com/s22625/sqwatch/internal/model"
)

// VanishedFunc observes jobs that were present in one poll and absent from
// the next.
type VanishedFunc func(id string, last model.Job)

// IngestResult describes the effect of one ingest.
type IngestResult struct {
	Changed  bool
	Vanished []model.Job
}

// JobStore holds the last ingested snapshot and detects changes between polls.
type JobStore struct {
	current   model.Snapshot
	lastKnown map[string]model.Job
	polled    bool
	lastAt    time.Time
	observers []VanishedFunc
	now       func() time.Time
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{
		lastKnown: make(map[string]model.Job),
		now:       time.Now,
	}
}

// OnVanished registers an observer for jobs that disappear between polls.
func (s *JobStore) OnVanished(fn VanishedFunc) {
	if fn == nil {
		return
	}
	s.observers = append(s.observers, fn)
}

// Ingest replaces the held snapshot. Changed is true when the snapshot differs
// from the previous one; the first ingest always counts as a change.
func (s *JobStore) Ingest(snap model.Snapshot) IngestResult {
	snap = snap.Clone()
	result := IngestResult{Changed: !s.polled || !s.current.Equal(snap)}

	present := make(map[string]struct{}, len(snap))
	for _, job := range snap {
		present[job.ID] = struct{}{}
	}
	// Walk the previous snapshot so vanished jobs are reported in a stable order.
	for _, prev := range s.current {
		if _, ok := present[prev.ID]; ok {
			continue
		}
		if last, ok := s.lastKnown[prev.ID]; ok {
			result.Vanished = append(result.Vanished, last)
		}
	}

	s.current = snap
	s.lastKnown = make(map[string]model.Job, len(snap))
	for _, job := range snap {
		s.lastKnown[job.ID] = job
	}
	s.polled = true
	s.lastAt = s.now()

	for _, job := range result.Vanished {
		for _, fn := range s.observers {
			fn(job.ID, job)
		}
	}
	return result
}

// Current returns the latest snapshot, or ErrNotYetPolled.
func (s *JobStore) Current() (model.Snapshot, error) {
	if !s.polled {
		return nil, ErrNotYetPolled
	}
	return s.current, nil
}

// Polled reports whether at least one snapshot has been ingested.
func (s *JobStore) Polled() bool {
	return s.polled
}

// LastIngest returns when the latest snapshot was ingested.
func (s *JobStore) LastIngest() time.Time {
	return s.lastAt
}

// Lookup returns a job from the latest snapshot.
func (s *JobStore) Lookup(id string) (model.Job, bool) {
	job, ok := s.lastKnown[id]
	return job, ok
}
