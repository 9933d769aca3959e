package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasknotify/model"
	"tasknotify/services"
)

var now = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func ts(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func newEngine(tasks *fakeTasks, notes *fakeNotifications, clock *time.Time) *Engine {
	return New(tasks, notes, nil, WithClock(func() time.Time { return *clock }))
}

func run(t *testing.T, e *Engine) Report {
	t.Helper()
	return e.Run(context.Background())
}

func sweep(t *testing.T, r Report, name string) SweepResult {
	t.Helper()
	s, ok := r.Sweep(name)
	require.True(t, ok, "sweep %s missing from report", name)
	return s
}

func TestOverdueEscalatesHighPriority(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{
		TaskID: "t1", Title: "Ship release", Assignee: "u1",
		Status: model.StatusInProgress, Priority: model.PriorityHigh,
		DueDate: ts(-50 * time.Hour), UpdatedAt: now,
	})
	notes := &fakeNotifications{}
	clock := now

	report := run(t, newEngine(tasks, notes, &clock))
	require.False(t, report.Failed())

	overdue := notes.ofType(model.NotificationTaskOverdue)
	require.Len(t, overdue, 2)

	direct, broadcast := overdue[0], overdue[1]
	require.NotNil(t, direct.UserID)
	assert.Equal(t, "u1", *direct.UserID)
	assert.Equal(t, 3, direct.Metadata["days_overdue"])
	assert.Contains(t, direct.Message, "Ship release")
	assert.Contains(t, direct.Message, "3 day(s) overdue")
	assert.Equal(t, "t1", direct.TaskID)
	assert.Equal(t, now, direct.CreatedAt)

	assert.True(t, broadcast.IsBroadcast())
	assert.Contains(t, broadcast.Title, "Escalation")
	assert.Equal(t, direct.Metadata, broadcast.Metadata)

	marker := tasks.get("t1").LastOverdueNotification
	require.NotNil(t, marker)
	assert.Equal(t, now, *marker)

	s := sweep(t, report, SweepOverdue)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 2, s.Created)
	assert.Equal(t, 1, s.Marked)
}

func TestOverdueNoEscalationForNormalPriority(t *testing.T) {
	tasks := newFakeTasks(
		model.Tasks{TaskID: "low", Assignee: "u1", Status: model.StatusNotStarted, Priority: model.PriorityLow, DueDate: ts(-time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "medium", Assignee: "u2", Status: model.StatusPaused, Priority: model.PriorityMedium, DueDate: ts(-30 * time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "urgent", Assignee: "u3", Status: model.StatusNotStarted, Priority: model.PriorityUrgent, DueDate: ts(-time.Minute), UpdatedAt: now},
		model.Tasks{TaskID: "completed", Assignee: "u4", Status: model.StatusCompleted, Priority: model.PriorityUrgent, DueDate: ts(-time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "cancelled", Assignee: "u5", Status: model.StatusCancelled, Priority: model.PriorityHigh, DueDate: ts(-time.Hour), UpdatedAt: now},
	)
	notes := &fakeNotifications{}
	clock := now

	run(t, newEngine(tasks, notes, &clock))

	perTask := map[string]int{}
	broadcasts := 0
	for _, n := range notes.ofType(model.NotificationTaskOverdue) {
		perTask[n.TaskID]++
		if n.IsBroadcast() {
			broadcasts++
		}
	}
	assert.Equal(t, map[string]int{"low": 1, "medium": 1, "urgent": 2}, perTask)
	assert.Equal(t, 1, broadcasts)

	for _, id := range []string{"low", "medium", "urgent"} {
		assert.NotNil(t, tasks.get(id).LastOverdueNotification, id)
	}
	assert.Nil(t, tasks.get("completed").LastOverdueNotification)
	assert.Nil(t, tasks.get("cancelled").LastOverdueNotification)
}

func TestOverdueCooldown(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{
		TaskID: "t1", Assignee: "u1", Status: model.StatusInProgress, Priority: model.PriorityUrgent,
		DueDate: ts(-2 * time.Hour), UpdatedAt: now,
	})
	notes := &fakeNotifications{}
	clock := now
	e := newEngine(tasks, notes, &clock)

	run(t, e)
	require.Len(t, notes.ofType(model.NotificationTaskOverdue), 2)

	clock = now.Add(23 * time.Hour)
	second := run(t, e)
	assert.Len(t, notes.ofType(model.NotificationTaskOverdue), 2, "no new notifications inside the cooldown")
	assert.Equal(t, 0, sweep(t, second, SweepOverdue).Created)

	clock = now.Add(25 * time.Hour)
	run(t, e)
	assert.Len(t, notes.ofType(model.NotificationTaskOverdue), 4)
	assert.Equal(t, now.Add(25*time.Hour), *tasks.get("t1").LastOverdueNotification)
}

func TestOverdueUnassignedGoesToAdminChannel(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{
		TaskID: "t1", Status: model.StatusNotStarted, Priority: model.PriorityLow,
		DueDate: ts(-time.Hour), UpdatedAt: now,
	})
	notes := &fakeNotifications{}
	clock := now

	run(t, newEngine(tasks, notes, &clock))

	overdue := notes.ofType(model.NotificationTaskOverdue)
	require.Len(t, overdue, 1)
	assert.True(t, overdue[0].IsBroadcast())
	assert.Equal(t, 1, overdue[0].Metadata["days_overdue"])
}

func TestUpcomingTwentyFourHourWindow(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{
		TaskID: "t1", Title: "Prepare demo", Assignee: "u1",
		Status: model.StatusNotStarted, Priority: model.PriorityUrgent,
		DueDate: ts(12 * time.Hour), UpdatedAt: now,
	})
	notes := &fakeNotifications{}
	clock := now

	report := run(t, newEngine(tasks, notes, &clock))

	due := notes.ofType(model.NotificationTaskDue)
	require.Len(t, due, 1)
	assert.Equal(t, "24 hours", due[0].Metadata["timeframe"])
	assert.Contains(t, due[0].Message, "Prepare demo")
	assert.Equal(t, "u1", *due[0].UserID)

	task := tasks.get("t1")
	require.NotNil(t, task.LastReminderNotification)
	assert.Equal(t, now, *task.LastReminderNotification)
	assert.Nil(t, task.LastWeeklyReminder, "the 3-day window must not fire for a task due in 12 hours")
	assert.Equal(t, 1, sweep(t, report, SweepUpcoming).Created)
	assert.Empty(t, notes.ofType(model.NotificationTaskOverdue))
}

func TestUpcomingReminderCooldown(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{
		TaskID: "t1", Assignee: "u1", Status: model.StatusInProgress, Priority: model.PriorityLow,
		DueDate: ts(20 * time.Hour), UpdatedAt: now,
		LastReminderNotification: ts(-6 * time.Hour),
	})
	notes := &fakeNotifications{}
	clock := now
	e := newEngine(tasks, notes, &clock)

	run(t, e)
	assert.Empty(t, notes.ofType(model.NotificationTaskDue))

	clock = now.Add(7 * time.Hour)
	run(t, e)
	assert.Len(t, notes.ofType(model.NotificationTaskDue), 1)
}

func TestUpcomingThreeDayWindowIsPriorityGated(t *testing.T) {
	tasks := newFakeTasks(
		model.Tasks{TaskID: "urgent", Assignee: "u1", Status: model.StatusNotStarted, Priority: model.PriorityUrgent, DueDate: ts(48 * time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "high", Assignee: "u1", Status: model.StatusPaused, Priority: model.PriorityHigh, DueDate: ts(72 * time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "low", Assignee: "u2", Status: model.StatusNotStarted, Priority: model.PriorityLow, DueDate: ts(48 * time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "too-far", Assignee: "u3", Status: model.StatusNotStarted, Priority: model.PriorityUrgent, DueDate: ts(73 * time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "recent-weekly", Assignee: "u4", Status: model.StatusNotStarted, Priority: model.PriorityUrgent, DueDate: ts(48 * time.Hour), UpdatedAt: now, LastWeeklyReminder: ts(-6 * 24 * time.Hour)},
	)
	notes := &fakeNotifications{}
	clock := now

	run(t, newEngine(tasks, notes, &clock))

	got := map[string]string{}
	for _, n := range notes.ofType(model.NotificationTaskDue) {
		got[n.TaskID] = n.Metadata["timeframe"].(string)
	}
	assert.Equal(t, map[string]string{"urgent": "3 days", "high": "3 days"}, got)

	assert.Equal(t, now, *tasks.get("urgent").LastWeeklyReminder)
	assert.Nil(t, tasks.get("urgent").LastReminderNotification)
	assert.Nil(t, tasks.get("low").LastWeeklyReminder)
}

func TestUpcomingWindowsUseSeparateMarkers(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{
		TaskID: "t1", Assignee: "u1", Status: model.StatusNotStarted, Priority: model.PriorityHigh,
		DueDate: ts(60 * time.Hour), UpdatedAt: now,
	})
	notes := &fakeNotifications{}
	clock := now
	e := newEngine(tasks, notes, &clock)

	run(t, e)
	require.Len(t, notes.ofType(model.NotificationTaskDue), 1)

	// A day and a half later the task enters the 24-hour window; the weekly
	// marker set earlier does not suppress the daily reminder.
	clock = now.Add(40 * time.Hour)
	run(t, e)

	due := notes.ofType(model.NotificationTaskDue)
	require.Len(t, due, 2)
	assert.Equal(t, "3 days", due[0].Metadata["timeframe"])
	assert.Equal(t, "24 hours", due[1].Metadata["timeframe"])

	task := tasks.get("t1")
	assert.Equal(t, now, *task.LastWeeklyReminder)
	assert.Equal(t, now.Add(40*time.Hour), *task.LastReminderNotification)
}

func TestStuckTask(t *testing.T) {
	tasks := newFakeTasks(
		model.Tasks{TaskID: "stuck", Title: "Refactor", Assignee: "u1", Status: model.StatusInProgress, Priority: model.PriorityLow, UpdatedAt: now.Add(-8 * 24 * time.Hour)},
		model.Tasks{TaskID: "paused", Assignee: "u1", Status: model.StatusPaused, UpdatedAt: now.Add(-30 * 24 * time.Hour)},
		model.Tasks{TaskID: "fresh", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-6 * 24 * time.Hour)},
		model.Tasks{TaskID: "cooling", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-20 * 24 * time.Hour), LastStuckNotification: ts(-2 * 24 * time.Hour)},
		model.Tasks{TaskID: "cooled", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-20*24*time.Hour - time.Hour), LastStuckNotification: ts(-4 * 24 * time.Hour)},
	)
	notes := &fakeNotifications{}
	clock := now

	report := run(t, newEngine(tasks, notes, &clock))

	warnings := notes.ofType(model.NotificationWarning)
	require.Len(t, warnings, 2)

	byTask := map[string]model.Notification{}
	for _, n := range warnings {
		byTask[n.TaskID] = n
	}
	require.Contains(t, byTask, "stuck")
	assert.Equal(t, 8, byTask["stuck"].Metadata["days_inactive"])
	assert.Contains(t, byTask["stuck"].Message, "8 days")
	require.Contains(t, byTask, "cooled")
	assert.Equal(t, 21, byTask["cooled"].Metadata["days_inactive"])

	assert.Equal(t, now, *tasks.get("stuck").LastStuckNotification)
	assert.Equal(t, now.Add(-2*24*time.Hour), *tasks.get("cooling").LastStuckNotification)
	assert.Equal(t, 2, sweep(t, report, SweepStuck).Marked)
}

func TestRetention(t *testing.T) {
	day := 24 * time.Hour
	notes := &fakeNotifications{items: []model.Notification{
		{NotificationID: "read-31", Priority: model.PriorityLow, Read: true, CreatedAt: now.Add(-31 * day)},
		{NotificationID: "read-29", Priority: model.PriorityLow, Read: true, CreatedAt: now.Add(-29 * day)},
		{NotificationID: "read-urgent-31", Priority: model.PriorityUrgent, Read: true, CreatedAt: now.Add(-31 * day)},
		{NotificationID: "unread-urgent-200", Priority: model.PriorityUrgent, CreatedAt: now.Add(-200 * day)},
		{NotificationID: "unread-high-120", Priority: model.PriorityHigh, CreatedAt: now.Add(-120 * day)},
		{NotificationID: "unread-low-91", Priority: model.PriorityLow, CreatedAt: now.Add(-91 * day)},
		{NotificationID: "unread-medium-89", Priority: model.PriorityMedium, CreatedAt: now.Add(-89 * day)},
	}}
	clock := now

	report := run(t, newEngine(newFakeTasks(), notes, &clock))

	var left []string
	for _, n := range notes.items {
		left = append(left, n.NotificationID)
	}
	assert.ElementsMatch(t, []string{"read-29", "unread-urgent-200", "unread-high-120", "unread-medium-89"}, left)
	assert.Equal(t, 3, sweep(t, report, SweepRetention).Deleted)
}

func TestSweepFailureDoesNotStopLaterSweeps(t *testing.T) {
	tasks := newFakeTasks(
		model.Tasks{TaskID: "overdue", Assignee: "u1", Status: model.StatusInProgress, Priority: model.PriorityLow, DueDate: ts(-time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "stuck", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-10 * 24 * time.Hour)},
	)
	tasks.findErr = func(f model.TaskFilter) error {
		if f.Marker == model.MarkerOverdue {
			return assert.AnError
		}
		return nil
	}
	notes := &fakeNotifications{items: []model.Notification{
		{NotificationID: "old", Read: true, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}}
	clock := now

	report := run(t, newEngine(tasks, notes, &clock))

	assert.True(t, report.Failed())
	assert.NotEmpty(t, sweep(t, report, SweepOverdue).Err)
	assert.Empty(t, sweep(t, report, SweepUpcoming).Err)
	assert.Empty(t, sweep(t, report, SweepStuck).Err)
	assert.Len(t, notes.ofType(model.NotificationWarning), 1)
	assert.Equal(t, 1, sweep(t, report, SweepRetention).Deleted)
	assert.Nil(t, tasks.get("overdue").LastOverdueNotification)
}

func TestSweepPanicIsRecovered(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{TaskID: "stuck", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-10 * 24 * time.Hour)})
	tasks.findErr = func(f model.TaskFilter) error {
		if f.DueFrom != nil {
			panic("index out of range")
		}
		return nil
	}
	notes := &fakeNotifications{}
	clock := now

	report := run(t, newEngine(tasks, notes, &clock))

	assert.Contains(t, sweep(t, report, SweepUpcoming).Err, "panic")
	assert.Empty(t, sweep(t, report, SweepStuck).Err)
	assert.Len(t, notes.ofType(model.NotificationWarning), 1)
}

func TestInsertFailureLeavesMarkerUnset(t *testing.T) {
	tasks := newFakeTasks(
		model.Tasks{TaskID: "a", Assignee: "u1", Status: model.StatusInProgress, Priority: model.PriorityHigh, DueDate: ts(-time.Hour), UpdatedAt: now},
		model.Tasks{TaskID: "b", Assignee: "u2", Status: model.StatusInProgress, Priority: model.PriorityLow, DueDate: ts(-time.Hour), UpdatedAt: now},
	)
	notes := &fakeNotifications{}
	notes.insertErr = func(n model.Notification) error {
		if n.IsBroadcast() {
			return assert.AnError
		}
		return nil
	}
	clock := now
	e := newEngine(tasks, notes, &clock)

	report := run(t, e)
	s := sweep(t, report, SweepOverdue)
	assert.NotEmpty(t, s.Err)
	assert.Equal(t, 2, s.Created)
	assert.Nil(t, tasks.get("a").LastOverdueNotification, "marker stays unset when part of the batch failed")
	assert.NotNil(t, tasks.get("b").LastOverdueNotification, "other tasks in the sweep are unaffected")

	// The next run delivers the whole batch again.
	notes.insertErr = nil
	clock = now.Add(time.Minute)
	report = run(t, e)
	assert.Equal(t, 2, sweep(t, report, SweepOverdue).Created)
	assert.NotNil(t, tasks.get("a").LastOverdueNotification)
}

func TestWriteConflictIsNotAFailure(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{TaskID: "t1", Assignee: "u1", Status: model.StatusInProgress, Priority: model.PriorityLow, DueDate: ts(-time.Hour), UpdatedAt: now})
	tasks.markerErr = func(string, model.Marker) error { return services.ErrWriteConflict }
	notes := &fakeNotifications{}
	clock := now

	report := run(t, newEngine(tasks, notes, &clock))

	s := sweep(t, report, SweepOverdue)
	assert.Empty(t, s.Err)
	assert.Equal(t, 1, s.Conflicts)
	assert.Equal(t, 0, s.Marked)
	assert.False(t, report.Failed())
	assert.Len(t, notes.ofType(model.NotificationTaskOverdue), 1)
}

func TestMarkerStoreErrorFailsSweep(t *testing.T) {
	tasks := newFakeTasks(model.Tasks{TaskID: "t1", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-9 * 24 * time.Hour)})
	tasks.markerErr = func(string, model.Marker) error { return assert.AnError }
	clock := now

	report := run(t, newEngine(tasks, &fakeNotifications{}, &clock))
	assert.Contains(t, sweep(t, report, SweepStuck).Err, "last_stuck_notification")
}

func TestCancelledContextSkipsSweeps(t *testing.T) {
	tasks := newFakeTasks()
	clock := now
	e := newEngine(tasks, &fakeNotifications{}, &clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := e.Run(ctx)

	require.Len(t, report.Sweeps, 4)
	for _, s := range report.Sweeps {
		assert.Equal(t, context.Canceled.Error(), s.Err, s.Name)
	}
	assert.Zero(t, tasks.findCalls)
}

func TestCustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.StuckAfter = 2 * 24 * time.Hour
	tasks := newFakeTasks(model.Tasks{TaskID: "t1", Assignee: "u1", Status: model.StatusInProgress, UpdatedAt: now.Add(-3 * 24 * time.Hour)})
	notes := &fakeNotifications{}

	e := New(tasks, notes, nil, WithRules(rules), WithClock(func() time.Time { return now }))
	e.Run(context.Background())

	require.Len(t, notes.ofType(model.NotificationWarning), 1)
	assert.Equal(t, 3, notes.items[0].Metadata["days_inactive"])
}

func TestDaysCeil(t *testing.T) {
	assert.Equal(t, 0, daysCeil(0))
	assert.Equal(t, 0, daysCeil(-time.Hour))
	assert.Equal(t, 1, daysCeil(time.Minute))
	assert.Equal(t, 1, daysCeil(24*time.Hour))
	assert.Equal(t, 3, daysCeil(50*time.Hour))
	assert.Equal(t, 8, daysCeil(8*24*time.Hour))
}
