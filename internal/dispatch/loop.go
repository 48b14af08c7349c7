// Package dispatch runs every state mutation of the server on one goroutine.
//
// Event handlers, connection changes and timer jobs are posted to a Loop and
// executed in order, so the maps they touch need no locking.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler schedules jobs onto the dispatch loop.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
	After(d time.Duration, fn func()) Timer
}

// Timer is a scheduled job. Stop must be called from the loop goroutine; once it
// returns the job never runs again.
type Timer interface {
	Stop()
}

// Loop is a sequential job queue.
type Loop struct {
	jobs chan func()
	done chan struct{}
	log  zerolog.Logger
}

// New returns a loop with room for size queued jobs.
func New(size int, log zerolog.Logger) *Loop {
	return &Loop{
		jobs: make(chan func(), size),
		done: make(chan struct{}),
		log:  log,
	}
}

// Run executes jobs until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	l.log.Info().Msg("dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("dispatch loop stopped")
			return
		case job := <-l.jobs:
			l.run(job)
		}
	}
}

func (l *Loop) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("dispatch job panicked")
		}
	}()
	job()
}

// Post queues fn. It returns false when the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.jobs <- fn:
		return true
	}
}

// Do queues fn and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return context.Canceled
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every posts fn to the loop every d until stopped.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	return l.schedule(d, fn, true)
}

// After posts fn to the loop once, after d.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	return l.schedule(d, fn, false)
}

func (l *Loop) schedule(d time.Duration, fn func(), repeat bool) Timer {
	t := &timer{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				// stopped is only read and written on the loop goroutine.
				l.Post(func() {
					if t.stopped {
						return
					}
					if !repeat {
						t.stopped = true
					}
					fn()
				})
				if !repeat {
					return
				}
			}
		}
	}()
	return t
}

type timer struct {
	stop     chan struct{}
	stopOnce sync.Once
	stopped  bool
}

func (t *timer) Stop() {
	t.stopped = true
	t.stopOnce.Do(func() { close(t.stop) })
}
