package autosave

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) Timer {
	timer := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (c *fakeClock) active() []*fakeTimer {
	var out []*fakeTimer
	for _, timer := range c.timers {
		if !timer.stopped {
			out = append(out, timer)
		}
	}
	return out
}

func TestTouchRestartsQuietPeriod(t *testing.T) {
	clock := &fakeClock{}
	fired := 0
	d := NewWithTimer(8*time.Second, func() { fired++ }, clock.afterFunc)

	d.Touch()
	d.Touch()
	d.Touch()

	if len(clock.timers) != 3 {
		t.Fatalf("expected 3 timers scheduled, got %d", len(clock.timers))
	}
	active := clock.active()
	if len(active) != 1 {
		t.Fatalf("expected exactly one pending timer, got %d", len(active))
	}
	if active[0].d != 8*time.Second {
		t.Fatalf("quiet period = %v, want 8s", active[0].d)
	}

	active[0].f()
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if d.Pending() {
		t.Fatal("no save should be pending after firing")
	}
}

func TestSupersededTimerDoesNotFire(t *testing.T) {
	clock := &fakeClock{}
	fired := 0
	d := NewWithTimer(time.Second, func() { fired++ }, clock.afterFunc)

	d.Touch()
	stale := clock.timers[0]
	d.Touch()

	// A stale timer that was already running when it got stopped.
	stale.f()
	if fired != 0 {
		t.Fatalf("stale timer fired the save")
	}
	clock.timers[1].f()
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestStopCancelsPendingSave(t *testing.T) {
	clock := &fakeClock{}
	fired := 0
	d := NewWithTimer(time.Second, func() { fired++ }, clock.afterFunc)

	d.Touch()
	d.Stop()
	clock.timers[0].f()
	d.Touch()

	if fired != 0 {
		t.Fatalf("fired = %d after Stop", fired)
	}
	if len(clock.timers) != 1 {
		t.Fatal("Touch after Stop should not schedule")
	}
}

func TestFlush(t *testing.T) {
	clock := &fakeClock{}
	fired := 0
	d := NewWithTimer(time.Second, func() { fired++ }, clock.afterFunc)

	d.Flush()
	if fired != 0 {
		t.Fatal("Flush without a pending save should do nothing")
	}
	d.Touch()
	d.Flush()
	if fired != 1 || !clock.timers[0].stopped {
		t.Fatalf("fired = %d, timer stopped = %v", fired, clock.timers[0].stopped)
	}
	clock.timers[0].f()
	if fired != 1 {
		t.Fatal("flushed timer fired again")
	}
}

func TestDefaultQuiet(t *testing.T) {
	clock := &fakeClock{}
	d := NewWithTimer(0, func() {}, clock.afterFunc)
	d.Touch()
	if clock.timers[0].d != DefaultQuiet {
		t.Fatalf("quiet = %v, want %v", clock.timers[0].d, DefaultQuiet)
	}
}

func TestRealTimerFires(t *testing.T) {
	var fired atomic.Int32
	done := make(chan struct{})
	d := New(10*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})
	d.Touch()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("save did not fire")
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d", fired.Load())
	}
}
