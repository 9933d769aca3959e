package services

import (
	"context"
	"errors"
	"time"

	"tasknotify/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrWriteConflict = errors.New("write conflict")
)

// TaskRepository is the read side of task storage plus the notification markers.
type TaskRepository interface {
	FindTasks(ctx context.Context, filter model.TaskFilter) ([]model.Tasks, error)
	// UpdateTaskMarker sets marker to at unless the stored value is already at or after it.
	UpdateTaskMarker(ctx context.Context, taskID string, marker model.Marker, at time.Time) error
}

type NotificationStore interface {
	Insert(ctx context.Context, n model.Notification) (string, error)
	Get(ctx context.Context, id string) (*model.Notification, error)
	List(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	DeleteWhere(ctx context.Context, filter model.NotificationFilter) (int, error)
}
