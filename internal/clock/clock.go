// Package clock schedules delayed work for the conversation engine and transport.
// Real uses the time package; Manual is a virtual clock driven by tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call stopped it.
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	After(d time.Duration) <-chan time.Time
}

type Real struct{}

func (Real) Now() time.Time                            { return time.Now() }
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (Real) After(d time.Duration) <-chan time.Time    { return time.After(d) }

// Manual only moves when Advance is called. Callbacks due at Advance run synchronously in
// deadline order (ties in creation order) on the caller's goroutine.
type Manual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	c        *Manual
	deadline time.Time
	seq      uint64
	fn       func()
	ch       chan time.Time
}

func NewManual(start time.Time) *Manual {
	m := &Manual{now: start}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	return m.add(d, f, nil)
}

func (m *Manual) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.add(d, nil, ch)
	return ch
}

func (m *Manual) add(d time.Duration, f func(), ch chan time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{c: m, deadline: m.now.Add(d), seq: m.seq, fn: f, ch: ch}
	m.pending = append(m.pending, t)
	m.cond.Broadcast()
	return t
}

func (t *manualTimer) Stop() bool {
	m := t.c
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.cond.Broadcast()
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d and fires every timer whose deadline is reached,
// including timers scheduled by callbacks fired during this call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		next := m.popDue(target)
		if next == nil {
			break
		}
		m.now = next.deadline
		m.mu.Unlock()
		if next.fn != nil {
			next.fn()
		} else {
			next.ch <- next.deadline
		}
		m.mu.Lock()
	}
	m.now = target
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Manual) popDue(target time.Time) *manualTimer {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		a, b := m.pending[i], m.pending[j]
		if a.deadline.Equal(b.deadline) {
			return a.seq < b.seq
		}
		return a.deadline.Before(b.deadline)
	})
	t := m.pending[0]
	if t.deadline.After(target) {
		return nil
	}
	m.pending = m.pending[1:]
	m.cond.Broadcast()
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// BlockUntil waits until at least n timers are pending. Goroutines that schedule on the
// clock (a transport waiting on After) can be synchronized with this before Advance.
func (m *Manual) BlockUntil(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.pending) < n {
		m.cond.Wait()
	}
}
