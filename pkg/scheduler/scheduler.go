// Package scheduler provides cancelable delayed tasks and a trailing debouncer.
package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Handle is a scheduled task. Cancel reports whether the task was stopped
// before it ran.
type Handle interface {
	Cancel() bool
}

// Scheduler runs a task once after a delay.
type Scheduler interface {
	Schedule(task func(), delay time.Duration) Handle
}

// Real schedules on the runtime timer; tasks run on their own goroutine.
type Real struct{}

// Schedule implements Scheduler.
func (Real) Schedule(task func(), delay time.Duration) Handle {
	return timerHandle{time.AfterFunc(delay, task)}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() bool { return h.t.Stop() }

// Manual is a deterministic Scheduler driven by Advance. Tasks run on the
// goroutine that calls Advance, in due order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	m        *Manual
	due      time.Duration
	seq      int
	fn       func()
	canceled bool
	done     bool
}

// NewManual returns a Manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(task func(), delay time.Duration) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, due: m.now + delay, seq: m.seq, fn: task}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward and runs every task that became due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTask
	keep := m.tasks[:0]
	for _, t := range m.tasks {
		switch {
		case t.canceled:
		case t.due <= m.now:
			t.done = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	m.tasks = keep
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending is the number of tasks scheduled and not yet run or canceled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.canceled && !t.done {
			n++
		}
	}
	return n
}

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.canceled || t.done {
		return false
	}
	t.canceled = true
	return true
}
