package dto

import (
	"time"

	"tasknotify/model"
)

type NotificationResponse struct {
	NotificationID string                 `json:"notificationid"`
	Type           string                 `json:"type"`
	Priority       string                 `json:"priority"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	TaskID         string                 `json:"taskid,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Read           bool                   `json:"read"`
	ReadAt         *time.Time             `json:"read_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Count         int                    `json:"count"`
}

type NotificationListQuery struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=500"`
}

func NewNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		NotificationID: n.NotificationID,
		Type:           n.Type,
		Priority:       n.Priority,
		Title:          n.Title,
		Message:        n.Message,
		TaskID:         n.TaskID,
		Metadata:       n.Metadata,
		Read:           n.Read,
		ReadAt:         n.ReadAt,
		CreatedAt:      n.CreatedAt,
	}
}

func NewNotificationListResponse(ns []model.Notification) NotificationListResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, NewNotificationResponse(n))
	}
	return NotificationListResponse{Notifications: out, Count: len(out)}
}
