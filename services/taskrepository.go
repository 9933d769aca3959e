package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tasknotify/model"
)

const TasksCollection = "Tasks"

type FirestoreTaskRepository struct {
	client *firestore.Client
}

func NewFirestoreTaskRepository(client *firestore.Client) *FirestoreTaskRepository {
	return &FirestoreTaskRepository{client: client}
}

// FindTasks pushes the status set and one range field down to Firestore so no
// composite index on several inequality fields is needed; the rest of the
// filter is applied to the returned documents.
func (r *FirestoreTaskRepository) FindTasks(ctx context.Context, filter model.TaskFilter) ([]model.Tasks, error) {
	q := r.client.Collection(TasksCollection).Query
	if len(filter.Statuses) == 1 {
		q = q.Where("status", "==", filter.Statuses[0])
	} else if len(filter.Statuses) > 1 {
		q = q.Where("status", "in", filter.Statuses)
	}

	switch {
	case filter.DueFrom != nil || filter.DueBefore != nil || filter.DueAfter != nil || filter.DueUntil != nil:
		if filter.DueFrom != nil {
			q = q.Where("due_date", ">=", *filter.DueFrom)
		}
		if filter.DueAfter != nil {
			q = q.Where("due_date", ">", *filter.DueAfter)
		}
		if filter.DueBefore != nil {
			q = q.Where("due_date", "<", *filter.DueBefore)
		}
		if filter.DueUntil != nil {
			q = q.Where("due_date", "<=", *filter.DueUntil)
		}
	case filter.UpdatedBefore != nil:
		q = q.Where("updated_at", "<", *filter.UpdatedBefore)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var tasks []model.Tasks
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying tasks: %w", err)
		}

		var task model.Tasks
		if err := doc.DataTo(&task); err != nil {
			return nil, fmt.Errorf("decoding task %s: %w", doc.Ref.ID, err)
		}
		if task.TaskID == "" {
			task.TaskID = doc.Ref.ID
		}
		if filter.Matches(task) {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (r *FirestoreTaskRepository) UpdateTaskMarker(ctx context.Context, taskID string, marker model.Marker, at time.Time) error {
	if !marker.Valid() {
		return fmt.Errorf("unknown marker %q", marker)
	}
	ref := r.client.Collection(TasksCollection).Doc(taskID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var task model.Tasks
		if err := doc.DataTo(&task); err != nil {
			return fmt.Errorf("decoding task %s: %w", taskID, err)
		}
		if cur := task.MarkerValue(marker); cur != nil && !at.After(*cur) {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: string(marker), Value: at},
		})
	}, firestore.MaxAttempts(1))

	return mapFirestoreError(err, "task "+taskID)
}

func mapFirestoreError(err error, what string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case codes.Aborted, codes.FailedPrecondition:
		return fmt.Errorf("%s: %w: %v", what, ErrWriteConflict, err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrWriteConflict) {
		return err
	}
	return fmt.Errorf("%s: %w", what, err)
}
