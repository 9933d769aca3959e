package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tasknotify/model"
	"tasknotify/services"
)

type fakeTasks struct {
	tasks map[string]*model.Tasks

	findErr   func(model.TaskFilter) error
	markerErr func(taskID string, m model.Marker) error
	findCalls int
}

func newFakeTasks(tasks ...model.Tasks) *fakeTasks {
	f := &fakeTasks{tasks: make(map[string]*model.Tasks)}
	for i := range tasks {
		t := tasks[i]
		f.tasks[t.TaskID] = &t
	}
	return f
}

func (f *fakeTasks) FindTasks(_ context.Context, filter model.TaskFilter) ([]model.Tasks, error) {
	f.findCalls++
	if f.findErr != nil {
		if err := f.findErr(filter); err != nil {
			return nil, err
		}
	}
	ids := make([]string, 0, len(f.tasks))
	for id := range f.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []model.Tasks
	for _, id := range ids {
		if t := f.tasks[id]; filter.Matches(*t) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) UpdateTaskMarker(_ context.Context, taskID string, m model.Marker, at time.Time) error {
	if f.markerErr != nil {
		if err := f.markerErr(taskID, m); err != nil {
			return err
		}
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, services.ErrNotFound)
	}
	t.SetMarker(m, at)
	return nil
}

func (f *fakeTasks) get(id string) model.Tasks {
	return *f.tasks[id]
}

type fakeNotifications struct {
	items []model.Notification
	seq   int

	insertErr func(model.Notification) error
	deleteErr func(model.NotificationFilter) error
}

func (f *fakeNotifications) Insert(_ context.Context, n model.Notification) (string, error) {
	if f.insertErr != nil {
		if err := f.insertErr(n); err != nil {
			return "", err
		}
	}
	f.seq++
	if n.NotificationID == "" {
		n.NotificationID = fmt.Sprintf("n%d", f.seq)
	}
	f.items = append(f.items, n)
	return n.NotificationID, nil
}

func (f *fakeNotifications) Get(_ context.Context, id string) (*model.Notification, error) {
	for i := range f.items {
		if f.items[i].NotificationID == id {
			n := f.items[i]
			return &n, nil
		}
	}
	return nil, services.ErrNotFound
}

func (f *fakeNotifications) List(_ context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range f.items {
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id string, at time.Time) error {
	for i := range f.items {
		if f.items[i].NotificationID == id {
			f.items[i].Read = true
			f.items[i].ReadAt = &at
			return nil
		}
	}
	return services.ErrNotFound
}

func (f *fakeNotifications) DeleteWhere(_ context.Context, filter model.NotificationFilter) (int, error) {
	if f.deleteErr != nil {
		if err := f.deleteErr(filter); err != nil {
			return 0, err
		}
	}
	kept := f.items[:0]
	deleted := 0
	for _, n := range f.items {
		if filter.Matches(n) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.items = kept
	return deleted, nil
}

func (f *fakeNotifications) ofType(kind string) []model.Notification {
	var out []model.Notification
	for _, n := range f.items {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}
