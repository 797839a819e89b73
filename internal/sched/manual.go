package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Clock and Scheduler for tests. Time only moves
// when Advance is called; due callbacks run synchronously in (due time,
// scheduling order) sequence, and callbacks may schedule further callbacks.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []manualTask
}

type manualTask struct {
	due time.Time
	seq int
	fn  func()
}

// NewManual creates a manual scheduler starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual current time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After queues fn to run once the virtual clock passes now+d.
func (m *Manual) After(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.tasks = append(m.tasks, manualTask{due: m.now.Add(d), seq: m.seq, fn: fn})
}

// Pending reports how many callbacks are queued.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves the virtual clock forward by d, firing every callback that
// becomes due, in due order. The clock steps to each callback's due time
// before running it so chained schedules observe consistent times.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		task, ok := m.popDue(target)
		if !ok {
			break
		}
		task.fn()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// RunNext fires only the single earliest queued callback regardless of its
// due time, advancing the clock to it. Useful for interleaving resolutions
// out of submission order.
func (m *Manual) RunNext() bool {
	m.mu.Lock()
	if len(m.tasks) == 0 {
		m.mu.Unlock()
		return false
	}
	m.sortLocked()
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	if task.due.After(m.now) {
		m.now = task.due
	}
	m.mu.Unlock()
	task.fn()
	return true
}

func (m *Manual) popDue(target time.Time) (manualTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sortLocked()
	if len(m.tasks) == 0 || m.tasks[0].due.After(target) {
		return manualTask{}, false
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	if task.due.After(m.now) {
		m.now = task.due
	}
	return task, true
}

func (m *Manual) sortLocked() {
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due.Equal(m.tasks[j].due) {
			return m.tasks[i].seq < m.tasks[j].seq
		}
		return m.tasks[i].due.Before(m.tasks[j].due)
	})
}
