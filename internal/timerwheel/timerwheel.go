// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package timerwheel schedules periodic and one-shot callbacks for the
// emulator's single-threaded main loop. All callbacks fired within one tick
// observe a common "now" timestamp captured once per tick; ordering between
// callbacks within a tick is unspecified.
package timerwheel

import (
	"sync"
	"time"
)

// Resolution is the wheel's tick granularity.
const Resolution = time.Millisecond

// Callback is invoked once per fire with the tick's shared timestamp and the
// user data supplied at registration.
type Callback func(now time.Time, userData any)

// Timer is a handle to a scheduled callback, usable with Cancel.
type Timer struct {
	id       uint64
	periodic bool
	interval time.Duration
	next     time.Time
	name     string
	userData any
	cb       Callback
	canceled bool
}

// Wheel drives every paced activity in the emulator from a single ticking
// goroutine. It is not safe for concurrent use from more than one goroutine
// at a time except via Stop, which may be called from any goroutine.
type Wheel struct {
	mu      sync.Mutex
	timers  map[uint64]*Timer
	nextID  uint64
	ticker  *time.Ticker
	stop    chan struct{}
	stopped bool
}

// New creates a Wheel. Call Run to start ticking.
func New() *Wheel {
	return &Wheel{
		timers: make(map[uint64]*Timer),
		stop:   make(chan struct{}),
	}
}

// AddPeriodic schedules cb to run every sec seconds + nsec nanoseconds,
// starting one interval from now. name is carried for observability only.
func (w *Wheel) AddPeriodic(name string, sec int, nsec int, userData any, cb Callback) *Timer {
	interval := time.Duration(sec)*time.Second + time.Duration(nsec)
	return w.add(name, interval, true, userData, cb)
}

// AddOneshot schedules cb to run once, after sec seconds + nsec nanoseconds.
func (w *Wheel) AddOneshot(name string, sec int, nsec int, userData any, cb Callback) *Timer {
	interval := time.Duration(sec)*time.Second + time.Duration(nsec)
	return w.add(name, interval, false, userData, cb)
}

func (w *Wheel) add(name string, interval time.Duration, periodic bool, userData any, cb Callback) *Timer {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	t := &Timer{
		id:       w.nextID,
		periodic: periodic,
		interval: interval,
		next:     time.Now().Add(interval),
		name:     name,
		userData: userData,
		cb:       cb,
	}
	w.timers[t.id] = t
	return t
}

// Cancel removes a timer; safe to call more than once or after it has
// already fired (a one-shot that already fired is a no-op to cancel).
func (w *Wheel) Cancel(t *Timer) {
	if t == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t.canceled = true
	delete(w.timers, t.id)
}

// Run ticks the wheel at Resolution until Stop is called. Intended to run
// in the emulator's single main goroutine.
func (w *Wheel) Run() {
	w.ticker = time.NewTicker(Resolution)
	defer w.ticker.Stop()
	for {
		select {
		case now := <-w.ticker.C:
			w.fire(now)
		case <-w.stop:
			return
		}
	}
}

// Stop halts Run's loop. Safe to call once.
func (w *Wheel) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()
	close(w.stop)
}

func (w *Wheel) fire(now time.Time) {
	w.mu.Lock()
	due := make([]*Timer, 0, len(w.timers))
	for _, t := range w.timers {
		if !now.Before(t.next) {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if t.periodic {
			t.next = t.next.Add(t.interval)
			if t.next.Before(now) {
				t.next = now.Add(t.interval)
			}
		} else {
			delete(w.timers, t.id)
		}
	}
	w.mu.Unlock()

	for _, t := range due {
		if t.canceled {
			continue
		}
		t.cb(now, t.userData)
	}
}

// Tick runs exactly one fire pass at the given time, for deterministic
// tests that don't want to depend on wall-clock ticking.
func (w *Wheel) Tick(now time.Time) {
	w.fire(now)
}
