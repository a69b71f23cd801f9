package engine

import (
	"sort"

	"github.com/s22625/sqwatch/internal/model"
)

// Section is a status-derived group of jobs.
type Section int

const (
	SectionActive Section = iota
	SectionScheduled
	SectionHistorical
)

// Sections lists sections in display order.
var Sections = []Section{SectionActive, SectionScheduled, SectionHistorical}

func (s Section) String() string {
	switch s {
	case SectionActive:
		return "active"
	case SectionScheduled:
		return "scheduled"
	case SectionHistorical:
		return "historical"
	default:
		return "unknown"
	}
}

// ParseSection accepts the section names used on the command line.
func ParseSection(raw string) (Section, bool) {
	switch raw {
	case "active", "a":
		return SectionActive, true
	case "scheduled", "pending", "s":
		return SectionScheduled, true
	case "historical", "history", "h":
		return SectionHistorical, true
	default:
		return 0, false
	}
}

// SectionOf classifies a job by status.
func SectionOf(job model.Job) Section {
	switch {
	case job.Status.IsActive():
		return SectionActive
	case job.Status == model.StatusPending:
		return SectionScheduled
	default:
		return SectionHistorical
	}
}

// SectionGroup is one section of the visible listing.
type SectionGroup struct {
	Section  Section
	Expanded bool
	Jobs     []model.Job
	Total    int
	Hidden   int
}

// VisibilityPolicy decides which jobs are eligible for display, filtering and
// select-all.
type VisibilityPolicy struct {
	HistoryCap int

	showScheduled  bool
	showHistorical bool
}

// NewVisibilityPolicy creates a policy with the given defaults. A negative cap
// is treated as zero.
func NewVisibilityPolicy(historyCap int, showScheduled, showHistorical bool) *VisibilityPolicy {
	if historyCap < 0 {
		historyCap = 0
	}
	return &VisibilityPolicy{
		HistoryCap:     historyCap,
		showScheduled:  showScheduled,
		showHistorical: showHistorical,
	}
}

// Expanded reports whether a section is shown. Active is always shown.
func (p *VisibilityPolicy) Expanded(section Section) bool {
	switch section {
	case SectionScheduled:
		return p.showScheduled
	case SectionHistorical:
		return p.showHistorical
	default:
		return true
	}
}

// SetExpanded sets the expansion flag of a collapsible section.
func (p *VisibilityPolicy) SetExpanded(section Section, expanded bool) error {
	switch section {
	case SectionScheduled:
		p.showScheduled = expanded
	case SectionHistorical:
		p.showHistorical = expanded
	default:
		return ErrNotCollapsible
	}
	return nil
}

// ToggleExpanded flips the expansion flag of a collapsible section.
func (p *VisibilityPolicy) ToggleExpanded(section Section) error {
	return p.SetExpanded(section, !p.Expanded(section))
}

// Group splits a snapshot into ordered sections, applying the history cap.
func (p *VisibilityPolicy) Group(snap model.Snapshot) []SectionGroup {
	buckets := make(map[Section][]model.Job, len(Sections))
	for _, job := range snap {
		section := SectionOf(job)
		buckets[section] = append(buckets[section], job)
	}

	groups := make([]SectionGroup, 0, len(Sections))
	for _, section := range Sections {
		jobs := buckets[section]
		sortJobs(jobs)
		total := len(jobs)
		if section == SectionHistorical {
			limit := max(p.HistoryCap, 0)
			if len(jobs) > limit {
				jobs = jobs[:limit]
			}
		}
		group := SectionGroup{
			Section:  section,
			Expanded: p.Expanded(section),
			Total:    total,
		}
		if group.Expanded {
			group.Jobs = jobs
			group.Hidden = total - len(jobs)
		} else {
			group.Hidden = total
		}
		groups = append(groups, group)
	}
	return groups
}

// VisibleJobs returns the ordered visible set.
func (p *VisibilityPolicy) VisibleJobs(snap model.Snapshot) []model.Job {
	var visible []model.Job
	for _, group := range p.Group(snap) {
		visible = append(visible, group.Jobs...)
	}
	return visible
}

func sortJobs(jobs []model.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		ri, rj := jobs[i].Status.Rank(), jobs[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		if jobs[i].Name != jobs[j].Name {
			return jobs[i].Name < jobs[j].Name
		}
		return jobs[i].ID < jobs[j].ID
	})
}

func jobIDs(jobs []model.Job) []string {
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	return ids
}
