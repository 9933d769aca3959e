package model

import (
	"time"
)

// TaskFilter describes a task query. Zero-valued fields do not constrain.
// Stores translate what their backend can index and apply Matches to the rest.
type TaskFilter struct {
	Statuses   []string
	Priorities []string

	// DueFrom is inclusive, DueBefore is exclusive.
	DueFrom   *time.Time
	DueBefore *time.Time
	// DueAfter is exclusive, DueUntil is inclusive.
	DueAfter *time.Time
	DueUntil *time.Time

	UpdatedBefore *time.Time

	// Marker selects tasks whose marker is unset or strictly older than MarkerBefore.
	Marker       Marker
	MarkerBefore time.Time
}

func (f TaskFilter) Matches(t Tasks) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}

	hasDueBound := f.DueFrom != nil || f.DueBefore != nil || f.DueAfter != nil || f.DueUntil != nil
	if hasDueBound {
		if t.DueDate == nil {
			return false
		}
		due := *t.DueDate
		if f.DueFrom != nil && due.Before(*f.DueFrom) {
			return false
		}
		if f.DueBefore != nil && !due.Before(*f.DueBefore) {
			return false
		}
		if f.DueAfter != nil && !due.After(*f.DueAfter) {
			return false
		}
		if f.DueUntil != nil && due.After(*f.DueUntil) {
			return false
		}
	}

	if f.UpdatedBefore != nil && !t.UpdatedAt.Before(*f.UpdatedBefore) {
		return false
	}

	if f.Marker != "" {
		if last := t.MarkerValue(f.Marker); last != nil && !last.Before(f.MarkerBefore) {
			return false
		}
	}
	return true
}

// NotificationFilter describes a notification query or deletion.
type NotificationFilter struct {
	UserID *string
	Read   *bool

	CreatedBefore     *time.Time
	ExcludePriorities []string

	Limit int
}

func (f NotificationFilter) Matches(n Notification) bool {
	if f.UserID != nil && (n.UserID == nil || *n.UserID != *f.UserID) {
		return false
	}
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	if f.CreatedBefore != nil && !n.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if len(f.ExcludePriorities) > 0 && contains(f.ExcludePriorities, n.Priority) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
