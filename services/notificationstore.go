package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"tasknotify/model"
)

const NotificationsCollection = "Notifications"

type FirestoreNotificationStore struct {
	client *firestore.Client
}

func NewFirestoreNotificationStore(client *firestore.Client) *FirestoreNotificationStore {
	return &FirestoreNotificationStore{client: client}
}

func (s *FirestoreNotificationStore) Insert(ctx context.Context, n model.Notification) (string, error) {
	if n.NotificationID == "" {
		n.NotificationID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.client.Collection(NotificationsCollection).Doc(n.NotificationID).Set(ctx, n)
	if err != nil {
		return "", mapFirestoreError(err, "inserting notification "+n.NotificationID)
	}
	return n.NotificationID, nil
}

func (s *FirestoreNotificationStore) Get(ctx context.Context, id string) (*model.Notification, error) {
	doc, err := s.client.Collection(NotificationsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err, "notification "+id)
	}

	var n model.Notification
	if err := doc.DataTo(&n); err != nil {
		return nil, fmt.Errorf("decoding notification %s: %w", id, err)
	}
	return &n, nil
}

// List returns matching notifications, newest first.
func (s *FirestoreNotificationStore) List(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	docs, err := s.query(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *FirestoreNotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := s.client.Collection(NotificationsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "read_at", Value: at},
	})
	return mapFirestoreError(err, "notification "+id)
}

// DeleteWhere removes every matching notification through a BulkWriter and
// returns how many deletes succeeded.
func (s *FirestoreNotificationStore) DeleteWhere(ctx context.Context, filter model.NotificationFilter) (int, error) {
	docs, err := s.query(ctx, filter)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, d := range docs {
		job, err := bw.Delete(d.ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("queueing delete of notification %s: %w", d.ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	var firstErr error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("deleting notification %s: %w", docs[i].ref.ID, err)
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}

type notificationDoc struct {
	ref *firestore.DocumentRef
	n   model.Notification
}

func (s *FirestoreNotificationStore) query(ctx context.Context, filter model.NotificationFilter) ([]notificationDoc, error) {
	q := s.client.Collection(NotificationsCollection).Query
	if filter.UserID != nil {
		q = q.Where("user_id", "==", *filter.UserID)
	}
	if filter.Read != nil {
		q = q.Where("read", "==", *filter.Read)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at", "<", *filter.CreatedBefore)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []notificationDoc
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying notifications: %w", err)
		}

		var n model.Notification
		if err := doc.DataTo(&n); err != nil {
			return nil, fmt.Errorf("decoding notification %s: %w", doc.Ref.ID, err)
		}
		if n.NotificationID == "" {
			n.NotificationID = doc.Ref.ID
		}
		if filter.Matches(n) {
			docs = append(docs, notificationDoc{ref: doc.Ref, n: n})
		}
	}
	return docs, nil
}
