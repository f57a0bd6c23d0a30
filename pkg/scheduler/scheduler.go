// Package scheduler provides a cancellable delayed-task abstraction and a
// debouncer built on top of it. Components receive a Scheduler at
// construction so tests can drive time deterministically with Manual instead
// of sleeping against real timers.
package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Cancel stops a scheduled task. It reports whether the task was cancelled
// before it ran.
type Cancel func() bool

// Scheduler runs a function once after the given delay.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Cancel
}

// Real schedules tasks on the runtime timer wheel via time.AfterFunc.
type Real struct{}

func NewReal() *Real {
	return &Real{}
}

func (*Real) Schedule(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Manual is a Scheduler for tests. Tasks fire only when virtual time is
// advanced past their deadline.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks map[int]*manualTask
}

type manualTask struct {
	due time.Time
	seq int
	fn  func()
}

func NewManual() *Manual {
	return &Manual{
		now:   time.Unix(0, 0),
		tasks: make(map[int]*manualTask),
	}
}

func (m *Manual) Schedule(d time.Duration, fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := m.seq
	m.tasks[id] = &manualTask{due: m.now.Add(d), seq: id, fn: fn}
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.tasks[id]; !ok {
			return false
		}
		delete(m.tasks, id)
		return true
	}
}

// Advance moves virtual time forward and runs every task whose deadline has
// passed, in deadline order. Tasks scheduled by running tasks are honored if
// they fall within the same window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
	for {
		task := m.popDue()
		if task == nil {
			return
		}
		task.fn()
	}
}

// Pending returns the number of tasks waiting to fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) popDue() *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !t.due.After(m.now) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].due.Equal(due[j].due) {
			return due[i].due.Before(due[j].due)
		}
		return due[i].seq < due[j].seq
	})
	delete(m.tasks, due[0].seq)
	return due[0]
}
