package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasknotify/model"
)

func (e *Engine) sweepOverdue(ctx context.Context, now time.Time, res *SweepResult) error {
	filter := model.TaskFilter{
		Statuses:     model.ActiveStatuses,
		DueBefore:    &now,
		Marker:       model.MarkerOverdue,
		MarkerBefore: now.Add(-e.rules.OverdueCooldown),
	}
	tasks, err := e.tasks.FindTasks(ctx, filter)
	if err != nil {
		return fmt.Errorf("finding overdue tasks: %w", err)
	}

	var errs []error
	for _, t := range tasks {
		if !filter.Matches(t) {
			continue
		}
		res.Matched++

		days := daysCeil(now.Sub(*t.DueDate))
		metadata := map[string]interface{}{
			"days_overdue": days,
			"due_date":     *t.DueDate,
			"priority":     t.Priority,
		}

		batch := []model.Notification{{
			UserID:   assignee(t),
			Type:     model.NotificationTaskOverdue,
			Priority: t.Priority,
			Title:    "Task overdue",
			Message:  fmt.Sprintf("Task %q is %d day(s) overdue", t.Title, days),
		}}
		if model.IsElevated(t.Priority) {
			batch = append(batch, model.Notification{
				Type:     model.NotificationTaskOverdue,
				Priority: model.PriorityUrgent,
				Title:    fmt.Sprintf("Escalation: %s priority task overdue", t.Priority),
				Message:  fmt.Sprintf("Task %q assigned to %s is %d day(s) overdue", t.Title, assigneeLabel(t), days),
			})
		}

		if err := e.emit(ctx, SweepOverdue, t, now, metadata, batch, res); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.markTask(ctx, SweepOverdue, t.TaskID, model.MarkerOverdue, now, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sweepUpcoming checks the 24-hour and the 3-day window. The windows have
// separate markers and fail independently.
func (e *Engine) sweepUpcoming(ctx context.Context, now time.Time, res *SweepResult) error {
	soon := now.Add(e.rules.DueSoonWindow)
	later := now.Add(e.rules.DueLaterWindow)

	windows := []struct {
		label  string
		filter model.TaskFilter
		marker model.Marker
	}{
		{
			label: "24 hours",
			filter: model.TaskFilter{
				Statuses:     model.ActiveStatuses,
				DueFrom:      &now,
				DueUntil:     &soon,
				Marker:       model.MarkerReminder,
				MarkerBefore: now.Add(-e.rules.ReminderCooldown),
			},
			marker: model.MarkerReminder,
		},
		{
			label: "3 days",
			filter: model.TaskFilter{
				Statuses:     model.ActiveStatuses,
				Priorities:   []string{model.PriorityHigh, model.PriorityUrgent},
				DueAfter:     &soon,
				DueUntil:     &later,
				Marker:       model.MarkerWeekly,
				MarkerBefore: now.Add(-e.rules.WeeklyCooldown),
			},
			marker: model.MarkerWeekly,
		},
	}

	var errs []error
	for _, w := range windows {
		tasks, err := e.tasks.FindTasks(ctx, w.filter)
		if err != nil {
			errs = append(errs, fmt.Errorf("finding tasks due within %s: %w", w.label, err))
			continue
		}

		for _, t := range tasks {
			if !w.filter.Matches(t) {
				continue
			}
			res.Matched++

			metadata := map[string]interface{}{
				"timeframe":       w.label,
				"due_date":        *t.DueDate,
				"hours_remaining": int(t.DueDate.Sub(now).Hours()),
				"priority":        t.Priority,
			}
			batch := []model.Notification{{
				UserID:   assignee(t),
				Type:     model.NotificationTaskDue,
				Priority: t.Priority,
				Title:    "Task due soon",
				Message:  fmt.Sprintf("Task %q is due within %s", t.Title, w.label),
			}}

			if err := e.emit(ctx, SweepUpcoming, t, now, metadata, batch, res); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := e.markTask(ctx, SweepUpcoming, t.TaskID, w.marker, now, res); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) sweepStuck(ctx context.Context, now time.Time, res *SweepResult) error {
	idleSince := now.Add(-e.rules.StuckAfter)
	filter := model.TaskFilter{
		Statuses:      []string{model.StatusInProgress},
		UpdatedBefore: &idleSince,
		Marker:        model.MarkerStuck,
		MarkerBefore:  now.Add(-e.rules.StuckCooldown),
	}
	tasks, err := e.tasks.FindTasks(ctx, filter)
	if err != nil {
		return fmt.Errorf("finding stuck tasks: %w", err)
	}

	var errs []error
	for _, t := range tasks {
		if !filter.Matches(t) {
			continue
		}
		res.Matched++

		days := daysCeil(now.Sub(t.UpdatedAt))
		metadata := map[string]interface{}{
			"days_inactive": days,
			"updated_at":    t.UpdatedAt,
		}
		batch := []model.Notification{{
			UserID:   assignee(t),
			Type:     model.NotificationWarning,
			Priority: model.PriorityMedium,
			Title:    "Task has not moved",
			Message:  fmt.Sprintf("Task %q has been in progress without updates for %d days", t.Title, days),
		}}

		if err := e.emit(ctx, SweepStuck, t, now, metadata, batch, res); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.markTask(ctx, SweepStuck, t.TaskID, model.MarkerStuck, now, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sweepRetention deletes read notifications after ReadRetention and unread
// ones after UnreadRetention. Unread high and urgent notifications stay until
// someone deletes them.
func (e *Engine) sweepRetention(ctx context.Context, now time.Time, res *SweepResult) error {
	read, unread := true, false
	readCutoff := now.Add(-e.rules.ReadRetention)
	unreadCutoff := now.Add(-e.rules.UnreadRetention)

	batches := []struct {
		label  string
		filter model.NotificationFilter
	}{
		{"read", model.NotificationFilter{Read: &read, CreatedBefore: &readCutoff}},
		{"unread", model.NotificationFilter{
			Read:              &unread,
			CreatedBefore:     &unreadCutoff,
			ExcludePriorities: []string{model.PriorityHigh, model.PriorityUrgent},
		}},
	}

	var errs []error
	for _, b := range batches {
		n, err := e.notifications.DeleteWhere(ctx, b.filter)
		res.Deleted += n
		if err != nil {
			e.log.Errorw("purge failed", "sweep", SweepRetention, "batch", b.label, "deleted", n, "error", err)
			errs = append(errs, fmt.Errorf("purging %s notifications: %w", b.label, err))
			continue
		}
		e.log.Debugw("purged notifications", "sweep", SweepRetention, "batch", b.label, "deleted", n)
	}
	return errors.Join(errs...)
}

// emit inserts every notification of batch for task t, in order. It stops at
// the first failure so the caller leaves the marker untouched and the next
// run retries the whole batch.
func (e *Engine) emit(ctx context.Context, sweep string, t model.Tasks, now time.Time, metadata map[string]interface{}, batch []model.Notification, res *SweepResult) error {
	for _, n := range batch {
		n.TaskID = t.TaskID
		n.CreatedAt = now
		n.Metadata = metadata

		id, err := e.notifications.Insert(ctx, n)
		if err != nil {
			e.log.Errorw("notification insert failed", "sweep", sweep, "task", t.TaskID, "type", n.Type, "broadcast", n.IsBroadcast(), "error", err)
			return fmt.Errorf("task %s: inserting %s notification: %w", t.TaskID, n.Type, err)
		}
		res.Created++
		e.log.Debugw("notification created", "sweep", sweep, "task", t.TaskID, "notification", id, "broadcast", n.IsBroadcast())
	}
	return nil
}

// assignee addresses unassigned tasks to the admin channel.
func assignee(t model.Tasks) *string {
	if t.Assignee == "" {
		return nil
	}
	a := t.Assignee
	return &a
}

func assigneeLabel(t model.Tasks) string {
	if t.Assignee == "" {
		return "nobody"
	}
	return t.Assignee
}
