package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler("test", func(context.Context) {}, testLogger())

	// this must not panic
	s.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent and can be
// called multiple times without panic or deadlock.
func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler("test", func(context.Context) {}, testLogger())
	s.Start(context.Background(), time.Minute)

	s.Stop()
	s.Stop()
}

// TestScheduler_TicksFireCycles verifies that a running scheduler fires
// the cycle function once per period.
func TestScheduler_TicksFireCycles(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(context.Background(), 20*time.Millisecond)
	time.Sleep(110 * time.Millisecond)
	s.Stop()

	got := cycles.Load()
	if got < 3 || got > 6 {
		t.Errorf("expected roughly 5 cycles over 110ms at 20ms period, got %d", got)
	}
}

// TestScheduler_NoImmediateTick verifies that the first tick lands a full
// period after Start, not immediately.
func TestScheduler_NoImmediateTick(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if got := cycles.Load(); got != 0 {
		t.Errorf("expected no cycle before the first period elapsed, got %d", got)
	}
	s.Stop()
}

// TestScheduler_ResetPushesNextTick verifies that Reset re-arms the timer:
// repeatedly resetting before the period elapses keeps any tick from firing.
func TestScheduler_ResetPushesNextTick(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(context.Background(), 60*time.Millisecond)
	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		s.Reset(0)
	}
	if got := cycles.Load(); got != 0 {
		t.Errorf("expected no cycle while resets kept arriving, got %d", got)
	}
	s.Stop()
}

// TestScheduler_PauseSuppressesTicks verifies the pause invariant: after
// PauseForEdit, several periods' worth of elapsed time produce zero cycles
// until ResumeAfterEdit.
func TestScheduler_PauseSuppressesTicks(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(context.Background(), 20*time.Millisecond)
	s.PauseForEdit()
	time.Sleep(120 * time.Millisecond)
	if got := cycles.Load(); got != 0 {
		t.Fatalf("expected zero cycles while paused, got %d", got)
	}

	s.ResumeAfterEdit()
	time.Sleep(60 * time.Millisecond)
	if got := cycles.Load(); got == 0 {
		t.Error("expected cycles to resume after the edit ended")
	}
	s.Stop()
}

// TestScheduler_ResetWhilePausedDefers verifies that a Reset arriving
// mid-edit is a no-op until resumed, and takes effect on resume by pushing
// the next tick a full period away.
func TestScheduler_ResetWhilePausedDefers(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(context.Background(), 50*time.Millisecond)
	s.PauseForEdit()
	s.Reset(200 * time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	if got := cycles.Load(); got != 0 {
		t.Fatalf("expected zero cycles while paused, got %d", got)
	}

	s.ResumeAfterEdit()
	// the deferred reset installs the 200ms period; well under that no
	// tick may fire
	time.Sleep(100 * time.Millisecond)
	if got := cycles.Load(); got != 0 {
		t.Errorf("expected the deferred reset to push the next tick out, got %d cycles", got)
	}
	if p := s.Period(); p != 200*time.Millisecond {
		t.Errorf("expected period 200ms after deferred reset, got %s", p)
	}
	s.Stop()
}

// TestScheduler_NestedPauses verifies that edit holds nest: ticking only
// resumes once every hold is released.
func TestScheduler_NestedPauses(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(context.Background(), 20*time.Millisecond)
	s.PauseForEdit()
	s.PauseForEdit()
	s.ResumeAfterEdit()
	time.Sleep(80 * time.Millisecond)
	if got := cycles.Load(); got != 0 {
		t.Fatalf("expected zero cycles while one hold remains, got %d", got)
	}
	s.ResumeAfterEdit()
	time.Sleep(60 * time.Millisecond)
	if got := cycles.Load(); got == 0 {
		t.Error("expected cycles after the last hold was released")
	}
	s.Stop()
}

// TestScheduler_SlowCycleDoesNotBlockTimer verifies that the timer keeps
// ticking while a cycle is still in flight.
func TestScheduler_SlowCycleDoesNotBlockTimer(t *testing.T) {
	var started atomic.Int64
	release := make(chan struct{})
	s := NewScheduler("test", func(ctx context.Context) {
		started.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}, testLogger())

	s.Start(context.Background(), 20*time.Millisecond)
	time.Sleep(110 * time.Millisecond)

	if got := started.Load(); got < 2 {
		t.Errorf("expected the timer to keep firing with a cycle in flight, got %d starts", got)
	}
	close(release)
	s.Stop()
}

// TestScheduler_StopWaitsForCycles verifies that Stop blocks until
// in-flight cycles observe cancellation and return.
func TestScheduler_StopWaitsForCycles(t *testing.T) {
	var finished atomic.Bool
	s := NewScheduler("test", func(ctx context.Context) {
		<-ctx.Done()
		finished.Store(true)
	}, testLogger())

	s.Start(context.Background(), 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the in-flight cycle finished")
	}
}

// TestScheduler_CyclePanicRecovered verifies that a panicking cycle is
// contained and ticking continues.
func TestScheduler_CyclePanicRecovered(t *testing.T) {
	var cycles atomic.Int64
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
		panic("boom")
	}, testLogger())

	s.Start(context.Background(), 20*time.Millisecond)
	time.Sleep(90 * time.Millisecond)
	s.Stop()

	if got := cycles.Load(); got < 2 {
		t.Errorf("expected the scheduler to survive panics and keep ticking, got %d cycles", got)
	}
}

// TestScheduler_ConcurrentLifecycle verifies that Start, Reset, and Stop
// racing each other do not panic or deadlock. Run with -race.
func TestScheduler_ConcurrentLifecycle(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := NewScheduler("test", func(context.Context) {}, testLogger())

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.Start(context.Background(), time.Minute)
		}()
		go func() {
			defer wg.Done()
			s.Reset(time.Minute)
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()
		wg.Wait()
		s.Stop()
	}
}

// TestScheduler_ContextCancelStopsTicks verifies that cancelling the
// parent context halts cycle dispatch.
func TestScheduler_ContextCancelStopsTicks(t *testing.T) {
	var cycles atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler("test", func(context.Context) {
		cycles.Add(1)
	}, testLogger())

	s.Start(ctx, 20*time.Millisecond)
	cancel()
	time.Sleep(80 * time.Millisecond)
	if got := cycles.Load(); got > 1 {
		t.Errorf("expected ticking to stop after context cancel, got %d cycles", got)
	}
	s.Stop()
}
