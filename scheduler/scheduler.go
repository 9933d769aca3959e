package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tasknotify/scanner"
)

var (
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotRunning     = errors.New("scheduler: not running")
)

type Runner interface {
	Run(ctx context.Context) scanner.Report
}

type request struct {
	reply chan scanner.Report
}

// Scheduler runs scans on a fixed interval. Ticks and manual triggers are
// served by one goroutine, so two scans never overlap inside a process.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	log        *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan request
	last    *scanner.Report
	runs    int
}

type Option func(*Scheduler)

// WithTimeout bounds every scan. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithRunOnStart(v bool) Option {
	return func(s *Scheduler) { s.runOnStart = v }
}

func New(runner Runner, interval time.Duration, log *zap.SugaredLogger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
		trigger:  make(chan request),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)
	s.log.Infow("scheduler started", "interval", s.interval, "run_on_start", s.runOnStart)
	return nil
}

// Stop halts the loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.log.Infow("scheduler stopped")
}

// Trigger runs a scan now, queued behind any scan already in progress, and
// returns its report.
func (s *Scheduler) Trigger(ctx context.Context) (scanner.Report, error) {
	s.mu.Lock()
	running, done := s.running, s.doneCh
	s.mu.Unlock()
	if !running {
		return scanner.Report{}, ErrNotRunning
	}

	req := request{reply: make(chan scanner.Report, 1)}
	select {
	case s.trigger <- req:
	case <-done:
		return scanner.Report{}, ErrNotRunning
	case <-ctx.Done():
		return scanner.Report{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return scanner.Report{}, ctx.Err()
	}
}

func (s *Scheduler) LastReport() (scanner.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return scanner.Report{}, false
	}
	return *s.last, true
}

func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.runOnce(ctx, "start")
	}
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.runOnce(ctx, "tick")
		case req := <-s.trigger:
			req.reply <- s.runOnce(ctx, "trigger")
		}
	}
}

func (s *Scheduler) runOnce(parent context.Context, cause string) scanner.Report {
	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	s.log.Debugw("scan starting", "cause", cause)
	report := s.runner.Run(ctx)

	s.mu.Lock()
	s.last = &report
	s.runs++
	s.mu.Unlock()
	return report
}
