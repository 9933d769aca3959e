package model

import (
	"time"
)

const (
	NotificationTaskOverdue = "task_overdue"
	NotificationTaskDue     = "task_due"
	NotificationWarning     = "warning"
	NotificationInfo        = "info"
)

// Notification is a record for the delivery side to pick up. A nil UserID
// addresses the admin channel.
type Notification struct {
	NotificationID string                 `firestore:"notificationid,omitempty" json:"notificationid"`
	UserID         *string                `firestore:"user_id" json:"user_id"`
	Type           string                 `firestore:"type,omitempty" json:"type"`
	Priority       string                 `firestore:"priority,omitempty" json:"priority"`
	Title          string                 `firestore:"title,omitempty" json:"title"`
	Message        string                 `firestore:"message,omitempty" json:"message"`
	TaskID         string                 `firestore:"taskid,omitempty" json:"taskid,omitempty"`
	Metadata       map[string]interface{} `firestore:"metadata,omitempty" json:"metadata,omitempty"`
	Read           bool                   `firestore:"read" json:"read"`
	ReadAt         *time.Time             `firestore:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt      time.Time              `firestore:"created_at" json:"created_at"`
	ExpiresAt      *time.Time             `firestore:"expires_at,omitempty" json:"expires_at,omitempty"`
}

func (n *Notification) IsBroadcast() bool {
	return n.UserID == nil
}
