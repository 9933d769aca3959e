package model

import (
	"time"
)

const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ActiveStatuses are the statuses a task can still be notified about.
var ActiveStatuses = []string{StatusNotStarted, StatusInProgress, StatusPaused}

// Marker names a per-task cooldown timestamp. The value is also the stored field name.
type Marker string

const (
	MarkerOverdue  Marker = "last_overdue_notification"
	MarkerReminder Marker = "last_reminder_notification"
	MarkerWeekly   Marker = "last_weekly_reminder"
	MarkerStuck    Marker = "last_stuck_notification"
)

type Tasks struct {
	TaskID    string     `firestore:"taskid,omitempty" json:"taskid"`
	Title     string     `firestore:"title,omitempty" json:"title"`
	Assignee  string     `firestore:"assignee,omitempty" json:"assignee"`
	Status    string     `firestore:"status,omitempty" json:"status"`
	Priority  string     `firestore:"priority,omitempty" json:"priority"`
	DueDate   *time.Time `firestore:"due_date,omitempty" json:"due_date,omitempty"`
	UpdatedAt time.Time  `firestore:"updated_at,omitempty" json:"updated_at"`

	LastOverdueNotification  *time.Time `firestore:"last_overdue_notification,omitempty" json:"last_overdue_notification,omitempty"`
	LastReminderNotification *time.Time `firestore:"last_reminder_notification,omitempty" json:"last_reminder_notification,omitempty"`
	LastWeeklyReminder       *time.Time `firestore:"last_weekly_reminder,omitempty" json:"last_weekly_reminder,omitempty"`
	LastStuckNotification    *time.Time `firestore:"last_stuck_notification,omitempty" json:"last_stuck_notification,omitempty"`
}

// MarkerValue returns the timestamp stored under m, or nil when it was never set.
func (t *Tasks) MarkerValue(m Marker) *time.Time {
	switch m {
	case MarkerOverdue:
		return t.LastOverdueNotification
	case MarkerReminder:
		return t.LastReminderNotification
	case MarkerWeekly:
		return t.LastWeeklyReminder
	case MarkerStuck:
		return t.LastStuckNotification
	}
	return nil
}

// SetMarker stores at under m. It never moves a marker backwards.
func (t *Tasks) SetMarker(m Marker, at time.Time) {
	if cur := t.MarkerValue(m); cur != nil && !at.After(*cur) {
		return
	}
	v := at
	switch m {
	case MarkerOverdue:
		t.LastOverdueNotification = &v
	case MarkerReminder:
		t.LastReminderNotification = &v
	case MarkerWeekly:
		t.LastWeeklyReminder = &v
	case MarkerStuck:
		t.LastStuckNotification = &v
	}
}

func (m Marker) Valid() bool {
	switch m {
	case MarkerOverdue, MarkerReminder, MarkerWeekly, MarkerStuck:
		return true
	}
	return false
}

// IsActive reports whether status is neither completed nor cancelled.
func IsActive(status string) bool {
	return status != StatusCompleted && status != StatusCancelled
}

// IsElevated reports whether priority is high or urgent.
func IsElevated(priority string) bool {
	return priority == PriorityHigh || priority == PriorityUrgent
}
