package scheduler

import (
	"testing"
	"time"
)

func TestManualRunsTasksInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var order []string

	m.Schedule(3*time.Second, func() { order = append(order, "late") })
	m.Schedule(time.Second, func() { order = append(order, "early") })
	m.Schedule(2*time.Second, func() { order = append(order, "middle") })

	m.Advance(500 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("tasks fired before their deadlines: %v", order)
	}

	m.Advance(3 * time.Second)
	want := []string{"early", "middle", "late"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual()
	fired := false
	cancel := m.Schedule(time.Second, func() { fired = true })

	if !cancel() {
		t.Error("first cancel reported false")
	}
	if cancel() {
		t.Error("second cancel reported true")
	}
	m.Advance(time.Minute)
	if fired {
		t.Error("cancelled task fired")
	}
	if m.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", m.Pending())
	}
}

func TestManualHonorsTasksScheduledWhileRunning(t *testing.T) {
	m := NewManual()
	var fired []string
	m.Schedule(time.Second, func() {
		fired = append(fired, "first")
		m.Schedule(time.Second, func() { fired = append(fired, "chained") })
	})

	m.Advance(2 * time.Second)
	if len(fired) != 2 || fired[1] != "chained" {
		t.Errorf("fired %v, want [first chained]", fired)
	}
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	m := NewManual()
	runs := 0
	d := NewDebouncer(m, time.Second, func() { runs++ })

	for n := 0; n < 10; n++ {
		d.Trigger()
	}
	if m.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 coalesced task", m.Pending())
	}
	m.Advance(time.Second)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestDebouncerTriggerRestartsWindow(t *testing.T) {
	m := NewManual()
	runs := 0
	d := NewDebouncer(m, 2*time.Second, func() { runs++ })

	d.Trigger()
	m.Advance(time.Second)
	d.Trigger() // restarts the 2s countdown
	m.Advance(time.Second)
	if runs != 0 {
		t.Fatalf("ran %d times before the window elapsed", runs)
	}
	m.Advance(time.Second)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestDebouncerFlush(t *testing.T) {
	m := NewManual()
	runs := 0
	d := NewDebouncer(m, time.Hour, func() { runs++ })

	d.Flush() // nothing pending
	if runs != 0 {
		t.Fatalf("flush with no pending task ran fn")
	}

	d.Trigger()
	d.Flush()
	if runs != 1 {
		t.Errorf("runs = %d, want 1 after flush", runs)
	}
	m.Advance(2 * time.Hour)
	if runs != 1 {
		t.Errorf("flushed task fired again, runs = %d", runs)
	}
}

func TestDebouncerStop(t *testing.T) {
	m := NewManual()
	runs := 0
	d := NewDebouncer(m, time.Second, func() { runs++ })

	d.Trigger()
	d.Stop()
	m.Advance(time.Minute)
	if runs != 0 {
		t.Errorf("stopped task ran %d times", runs)
	}
}

func TestRealSchedulerFires(t *testing.T) {
	r := NewReal()
	done := make(chan struct{})
	r.Schedule(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled task never fired")
	}
}
