// Package scanner decides which task notifications should exist. A run
// executes the overdue, upcoming, stuck and retention sweeps in order; each
// sweep re-derives eligibility from the current task fields and the per-task
// cooldown markers, so no other notification state is kept.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tasknotify/model"
	"tasknotify/services"
)

const day = 24 * time.Hour

const (
	SweepOverdue   = "overdue"
	SweepUpcoming  = "upcoming"
	SweepStuck     = "stuck"
	SweepRetention = "retention"
)

// Rules holds the windows and cooldowns of every sweep.
type Rules struct {
	OverdueCooldown time.Duration

	DueSoonWindow    time.Duration
	ReminderCooldown time.Duration
	DueLaterWindow   time.Duration
	WeeklyCooldown   time.Duration

	StuckAfter    time.Duration
	StuckCooldown time.Duration

	ReadRetention   time.Duration
	UnreadRetention time.Duration
}

func DefaultRules() Rules {
	return Rules{
		OverdueCooldown:  24 * time.Hour,
		DueSoonWindow:    24 * time.Hour,
		ReminderCooldown: 12 * time.Hour,
		DueLaterWindow:   3 * day,
		WeeklyCooldown:   7 * day,
		StuckAfter:       7 * day,
		StuckCooldown:    3 * day,
		ReadRetention:    30 * day,
		UnreadRetention:  90 * day,
	}
}

type Engine struct {
	tasks         services.TaskRepository
	notifications services.NotificationStore
	log           *zap.SugaredLogger
	now           func() time.Time
	rules         Rules
}

type Option func(*Engine)

// WithClock replaces time.Now. Every sweep of a run sees the same instant.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRules(r Rules) Option {
	return func(e *Engine) { e.rules = r }
}

func New(tasks services.TaskRepository, notifications services.NotificationStore, log *zap.SugaredLogger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	e := &Engine{
		tasks:         tasks,
		notifications: notifications,
		log:           log,
		now:           time.Now,
		rules:         DefaultRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes all sweeps once. A failing sweep is recorded in the report and
// never stops the sweeps after it.
func (e *Engine) Run(ctx context.Context) Report {
	now := e.now()
	report := Report{StartedAt: now}

	sweeps := []struct {
		name string
		fn   func(context.Context, time.Time, *SweepResult) error
	}{
		{SweepOverdue, e.sweepOverdue},
		{SweepUpcoming, e.sweepUpcoming},
		{SweepStuck, e.sweepStuck},
		{SweepRetention, e.sweepRetention},
	}

	for _, s := range sweeps {
		report.Sweeps = append(report.Sweeps, e.runSweep(ctx, now, s.name, s.fn))
	}
	report.Duration = e.now().Sub(now)

	if report.Failed() {
		e.log.Warnw("scan finished with failures", "started_at", now, "sweeps", report.summary())
	} else {
		e.log.Infow("scan finished", "started_at", now, "sweeps", report.summary())
	}
	return report
}

func (e *Engine) runSweep(ctx context.Context, now time.Time, name string, fn func(context.Context, time.Time, *SweepResult) error) (res SweepResult) {
	res.Name = name
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			e.log.Errorw("sweep panicked", "sweep", name, "error", err)
			res.Err = err.Error()
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err.Error()
		e.log.Errorw("sweep skipped", "sweep", name, "error", err)
		return res
	}

	if err := fn(ctx, now, &res); err != nil {
		res.Err = err.Error()
		e.log.Errorw("sweep failed", "sweep", name, "matched", res.Matched, "created", res.Created, "error", err)
	}
	return res
}

// markTask records that a notification kind was emitted. Lost races and
// vanished tasks are left to the next run.
func (e *Engine) markTask(ctx context.Context, sweep, taskID string, marker model.Marker, at time.Time, res *SweepResult) error {
	err := e.tasks.UpdateTaskMarker(ctx, taskID, marker, at)
	switch {
	case err == nil:
		res.Marked++
		return nil
	case errors.Is(err, services.ErrWriteConflict), errors.Is(err, services.ErrNotFound):
		res.Conflicts++
		e.log.Warnw("marker not updated", "sweep", sweep, "task", taskID, "marker", marker, "at", at, "error", err)
		return nil
	default:
		e.log.Errorw("marker update failed", "sweep", sweep, "task", taskID, "marker", marker, "error", err)
		return fmt.Errorf("task %s: updating %s: %w", taskID, marker, err)
	}
}

// daysCeil rounds d up to whole days.
func daysCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
