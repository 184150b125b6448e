// Package sched schedules the delayed transitions of the engines: the
// opponent's move and the memory game's flip resolution.
//
// Real wraps time.AfterFunc. Manual is a virtual clock for tests; its
// callbacks run synchronously inside Advance or Flush.
package sched

import (
    "sort"
    "sync"
    "time"
)

// Timer is a pending callback.
type Timer interface {
    // Stop prevents the callback from firing. It reports false if the
    // callback already fired or was stopped.
    Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
    AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall-clock scheduler.
type Real struct{}

// AfterFunc implements Scheduler with time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Manual is a deterministic scheduler driven by Advance.
type Manual struct {
    mu    sync.Mutex
    now   time.Duration
    seq   uint64
    tasks []*manualTimer
}

type manualTimer struct {
    m   *Manual
    at  time.Duration
    seq uint64
    f   func()
}

// NewManual returns a Manual clock at time zero.
func NewManual() *Manual { return &Manual{} }

// AfterFunc registers f to run once the clock passes d from now.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.seq++
    t := &manualTimer{m: m, at: m.now + d, seq: m.seq, f: f}
    m.tasks = append(m.tasks, t)
    return t
}

func (t *manualTimer) Stop() bool {
    t.m.mu.Lock()
    defer t.m.mu.Unlock()
    return t.m.removeLocked(t)
}

func (m *Manual) removeLocked(t *manualTimer) bool {
    for i, x := range m.tasks {
        if x == t {
            m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
            return true
        }
    }
    return false
}

// nextLocked pops the earliest task due at or before limit.
func (m *Manual) nextLocked(limit time.Duration, bounded bool) *manualTimer {
    if len(m.tasks) == 0 {
        return nil
    }
    sort.Slice(m.tasks, func(i, j int) bool {
        if m.tasks[i].at == m.tasks[j].at {
            return m.tasks[i].seq < m.tasks[j].seq
        }
        return m.tasks[i].at < m.tasks[j].at
    })
    t := m.tasks[0]
    if bounded && t.at > limit {
        return nil
    }
    m.tasks = m.tasks[1:]
    if t.at > m.now {
        m.now = t.at
    }
    return t
}

// Advance moves the clock forward by d, firing every callback that comes
// due, including ones scheduled by earlier callbacks. It returns the
// number of callbacks fired.
func (m *Manual) Advance(d time.Duration) int {
    m.mu.Lock()
    target := m.now + d
    m.mu.Unlock()
    fired := 0
    for {
        m.mu.Lock()
        t := m.nextLocked(target, true)
        if t == nil {
            m.now = target
            m.mu.Unlock()
            return fired
        }
        m.mu.Unlock()
        t.f()
        fired++
    }
}

// Flush fires callbacks in due order until none remain pending.
func (m *Manual) Flush() int {
    fired := 0
    for {
        m.mu.Lock()
        t := m.nextLocked(0, false)
        m.mu.Unlock()
        if t == nil {
            return fired
        }
        t.f()
        fired++
    }
}

// Pending reports how many callbacks are waiting.
func (m *Manual) Pending() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.tasks)
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.now
}
