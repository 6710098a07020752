package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CycleFunc runs one poll-and-reconcile cycle for the scheduler's device
// group. The context is the scheduler's lifetime context: it survives a
// Reset, so a reset never aborts an in-flight cycle. Stale responses are
// the reconciler's problem, not the timer's.
type CycleFunc func(ctx context.Context)

// Scheduler is a resettable repeating timer for one device group.
//
// A scheduler is either stopped or running with a period. On every tick it
// fires the group's cycle function in its own goroutine and immediately
// re-arms; a slow cycle never delays the next tick or sibling groups.
//
// Reset restarts the timer so the next tick lands a full period away. It
// is called after every user interaction, giving the operator time for
// further edits before anything is sent. PauseForEdit and ResumeAfterEdit
// bracket focus/blur on an input field: while paused no tick fires, and a
// Reset requested mid-edit is remembered and applied on resume.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	name   string
	cycle  CycleFunc
	logger *slog.Logger

	mu               sync.Mutex
	running          bool
	period           time.Duration
	editDepth        int
	resetWhilePaused bool
	lifeCtx          context.Context
	lifeCancel       context.CancelFunc
	loopCancel       context.CancelFunc

	wg      sync.WaitGroup // timer loops
	cycleWG sync.WaitGroup // in-flight cycles
}

// NewScheduler creates a stopped [Scheduler] for the named device group.
func NewScheduler(name string, cycle CycleFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:   name,
		cycle:  cycle,
		logger: logger,
	}
}

// Start moves the scheduler to the running state with the given period.
// The first tick fires one full period after Start; callers wanting an
// immediate poll run the cycle themselves before starting the timer.
//
// Start is a no-op when already running or when period is not positive.
// If ctx is nil, context.Background() is used.
func (s *Scheduler) Start(ctx context.Context, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || period <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.running = true
	s.period = period
	s.lifeCtx, s.lifeCancel = context.WithCancel(ctx)
	s.startLoopLocked()
}

// Stop halts the timer and waits for the loop and all in-flight cycles to
// finish. Idempotent; safe before Start. The scheduler may be started
// again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		s.editDepth = 0
		s.resetWhilePaused = false
		s.loopCancel()
		s.lifeCancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.cycleWG.Wait()
}

// Reset is stop-then-start: the timer is re-armed so the next tick lands a
// full period away. A non-positive period keeps the current one. While
// paused for an edit the reset is deferred until ResumeAfterEdit; when
// stopped it is a no-op.
func (s *Scheduler) Reset(period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if period > 0 {
		s.period = period
	}
	if s.editDepth > 0 {
		s.resetWhilePaused = true
		return
	}
	s.restartLoopLocked()
}

// PauseForEdit suspends ticking while the operator is typing into a field.
// Calls nest; each PauseForEdit must be matched by a ResumeAfterEdit.
func (s *Scheduler) PauseForEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editDepth++
}

// ResumeAfterEdit releases one edit hold. When the last hold is released,
// a Reset requested during the edit takes effect; otherwise the timer
// keeps its original cadence. Unbalanced calls are ignored.
func (s *Scheduler) ResumeAfterEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editDepth == 0 {
		return
	}
	s.editDepth--
	if s.editDepth == 0 && s.resetWhilePaused && s.running {
		s.resetWhilePaused = false
		s.restartLoopLocked()
	}
}

// Running reports whether the scheduler is in the running state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Period returns the current tick period.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// restartLoopLocked cancels the current timer loop and arms a fresh one.
// Caller must hold s.mu.
func (s *Scheduler) restartLoopLocked() {
	s.loopCancel()
	s.startLoopLocked()
}

// startLoopLocked spawns a timer loop for the current period. Caller must
// hold s.mu.
func (s *Scheduler) startLoopLocked() {
	loopCtx, loopCancel := context.WithCancel(s.lifeCtx)
	s.loopCancel = loopCancel
	cycleCtx := s.lifeCtx
	period := s.period

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if s.pausedForEdit() {
					continue
				}
				s.cycleWG.Add(1)
				go func() {
					defer s.cycleWG.Done()
					s.runCycle(cycleCtx)
				}()
			}
		}
	}()
}

// pausedForEdit reports whether an edit hold is active.
func (s *Scheduler) pausedForEdit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editDepth > 0
}

// runCycle invokes the cycle function with panic recovery. A panicking
// cycle is logged with a correlation ID and a stack trace; it never takes
// down the timer or sibling groups.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("poll cycle panic",
				"group", s.name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.cycle(ctx)
}
