package model

import (
	"strings"
)

// Status represents a job's lifecycle state as reported by the scheduler.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown" // Any state this build does not recognise
)

// Statuses lists every known status in rank order.
var Statuses = []Status{
	StatusRunning,
	StatusCompleting,
	StatusPending,
	StatusFailed,
	StatusCompleted,
	StatusUnknown,
}

var statusOrder = map[Status]int{
	StatusRunning:    0,
	StatusCompleting: 1,
	StatusPending:    2,
	StatusFailed:     3,
	StatusCompleted:  4,
	StatusUnknown:    5,
}

// Rank returns the display priority of a status. Lower ranks sort first.
func (s Status) Rank() int {
	if rank, ok := statusOrder[s]; ok {
		return rank
	}
	return len(statusOrder)
}

// IsActive reports whether the job currently holds resources.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusCompleting
}

// IsTerminal reports whether the job has left the queue for good.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusUnknown:
		return true
	default:
		return false
	}
}

// ParseStatus maps a scheduler state string (long or compact form) to a Status.
// Unrecognised values map to StatusUnknown.
func ParseStatus(raw string) Status {
	state := strings.ToUpper(strings.TrimSpace(raw))
	// sacct reports "CANCELLED by 1234"
	if i := strings.IndexAny(state, " +"); i > 0 {
		state = state[:i]
	}
	switch state {
	case "PENDING", "PD", "CONFIGURING", "CF", "REQUEUED", "RQ", "SUSPENDED", "S":
		return StatusPending
	case "RUNNING", "R":
		return StatusRunning
	case "COMPLETING", "CG", "STAGE_OUT", "SO":
		return StatusCompleting
	case "COMPLETED", "CD":
		return StatusCompleted
	case "FAILED", "F", "CANCELLED", "CA", "TIMEOUT", "TO", "NODE_FAIL", "NF",
		"OUT_OF_MEMORY", "OOM", "BOOT_FAIL", "BF", "DEADLINE", "DL", "PREEMPTED", "PR":
		return StatusFailed
	}
	for _, s := range Statuses {
		if strings.EqualFold(state, string(s)) {
			return s
		}
	}
	return StatusUnknown
}

// Job is one entry of a scheduler listing. Jobs are replaced wholesale on
// every poll and never mutated field by field.
type Job struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Status    Status `json:"status" yaml:"status"`
	NodeList  string `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Elapsed   string `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
	Partition string `json:"partition,omitempty" yaml:"partition,omitempty"`
	User      string `json:"user,omitempty" yaml:"user,omitempty"`
}

// DisplayName returns the job name, falling back to the ID.
func (j Job) DisplayName() string {
	if strings.TrimSpace(j.Name) == "" {
		return j.ID
	}
	return j.Name
}

// Snapshot is one full, ordered poll result.
type Snapshot []Job

// Equal reports whether both snapshots list the same jobs in the same order
// with identical fields.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// IDs returns job identifiers in snapshot order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s))
	for i, job := range s {
		ids[i] = job.ID
	}
	return ids
}

// Index maps job identifiers to jobs.
func (s Snapshot) Index() map[string]Job {
	index := make(map[string]Job, len(s))
	for _, job := range s {
		index[job.ID] = job
	}
	return index
}

// Clone returns a copy that does not share backing storage.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
