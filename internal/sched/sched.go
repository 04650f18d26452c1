// Package sched implements the deferred-event scheduler that drives the
// query engine's ticks. Events are ordered by a virtual-millisecond clock;
// production uses the wall clock, tests use a manual clock and pump due
// events explicitly.
package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Clock supplies virtual milliseconds.
type Clock interface {
	Now() uint32
}

// WallClock reports milliseconds elapsed since it was created.
type WallClock struct {
	start time.Time
}

// NewWallClock creates a wall clock anchored at the current instant.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now returns elapsed virtual milliseconds.
func (c *WallClock) Now() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// ManualClock is a test clock advanced explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now uint32
}

// Now returns the current virtual time.
func (c *ManualClock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d virtual milliseconds.
func (c *ManualClock) Advance(d uint32) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type event struct {
	fn    func()
	dueAt uint32
	seq   uint64 // submission order breaks due-time ties
}

type eventHeap []event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].dueAt != h[j].dueAt {
		return h[i].dueAt < h[j].dueAt
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler queues deferred events against a virtual clock.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	events eventHeap
	seq    uint64
	wake   chan struct{}
}

// New creates a scheduler over the given clock.
func New(clock Clock) *Scheduler {
	return &Scheduler{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Submit queues fn to run at the given virtual time. Events already due
// run on the next pump.
func (s *Scheduler) Submit(fn func(), dueAt uint32) {
	s.mu.Lock()
	s.seq++
	heap.Push(&s.events, event{fn: fn, dueAt: dueAt, seq: s.seq})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SubmitAfter queues fn to run delay virtual milliseconds from now.
func (s *Scheduler) SubmitAfter(fn func(), delay uint32) {
	s.Submit(fn, s.clock.Now()+delay)
}

// RunDue pops and runs every event due at or before the current virtual
// time, in due order. Returns the number of events run. Tests drive the
// scheduler with a ManualClock and this method.
func (s *Scheduler) RunDue() int {
	ran := 0
	for {
		s.mu.Lock()
		if len(s.events) == 0 || s.events[0].dueAt > s.clock.Now() {
			s.mu.Unlock()
			return ran
		}
		e := heap.Pop(&s.events).(event)
		s.mu.Unlock()

		e.fn()
		ran++
	}
}

// Pending returns the number of queued events.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Run drives the scheduler against the wall clock until the context is
// cancelled. New submissions wake the loop early.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.RunDue()

		s.mu.Lock()
		var wait time.Duration
		if len(s.events) == 0 {
			wait = time.Hour
		} else {
			now := s.clock.Now()
			next := s.events[0].dueAt
			if next <= now {
				wait = 0
			} else {
				wait = time.Duration(next-now) * time.Millisecond
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.wake:
		}
	}
}
