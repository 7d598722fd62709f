// Package scheduler runs a task immediately and then on a fixed interval
// until it is stopped, logging failures without interrupting the schedule.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"cellar_monitor/internal/logger"
)

// State of a Scheduler. Stopped is terminal.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyRunning  = errors.New("scheduler already running")
	ErrStopped         = errors.New("scheduler stopped; create a new one")
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler fires a Task on a fixed cadence.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	log      *logger.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle scheduler.
func New(name string, interval time.Duration, task Task, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		task:     task,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start runs the task now and then every interval until the returned stop
// function is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) (func(), error) {
	if s.interval <= 0 {
		return nil, ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Running:
		return nil, ErrAlreadyRunning
	case Stopped:
		return nil, ErrStopped
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Running
	go s.run(runCtx)

	s.log.Debugw("scheduler_started", "task", s.name, "interval", s.interval)
	return s.Stop, nil
}

// Stop cancels future ticks and waits for the loop to exit. Safe to call
// more than once and on a scheduler that never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.state = Stopped
		close(s.done)
		s.mu.Unlock()
		return
	case Stopped:
		s.mu.Unlock()
		<-s.done
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.done
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.state = Stopped
		s.mu.Unlock()
		close(s.done)
		s.log.Debugw("scheduler_stopped", "task", s.name)
	}()

	s.tick(ctx)

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick runs the task once; a failure is logged and the schedule continues.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.task(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warnw("scheduled_task_failed", "task", s.name, "err", err)
	}
}
