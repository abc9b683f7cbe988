// Copyright 2023 The Attabench Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package benchrun

import (
	"sync"
	"time"
)

// A RateLimiter coalesces bursts of requests for some work into
// executions at most one interval apart.
//
// Later schedules an execution no earlier than one interval after the
// previous execution finished; requests made while one is already
// scheduled coalesce into it. Now runs immediately and resets the
// window. A request made while the function is executing is dropped,
// so the function can safely re-request itself without looping.
type RateLimiter struct {
	fn func()

	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	last     time.Time // end of the last execution
	pending  bool
	running  bool
}

// NewRateLimiter returns a limiter executing fn at most once per
// interval, with the first scheduled execution a full interval out.
// fn runs on the caller's goroutine for Now and FlushIfPending, and
// on a timer goroutine for Later.
func NewRateLimiter(interval time.Duration, fn func()) *RateLimiter {
	return &RateLimiter{fn: fn, interval: interval, last: time.Now()}
}

// SetInterval changes the spacing for executions scheduled from now
// on. An already scheduled execution keeps its deadline.
func (l *RateLimiter) SetInterval(d time.Duration) {
	l.mu.Lock()
	l.interval = d
	l.mu.Unlock()
}

// Later schedules an execution once the current window expires.
// Repeated calls coalesce into the one scheduled execution.
func (l *RateLimiter) Later() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending || l.running {
		return
	}
	delay := l.interval - time.Since(l.last)
	if delay < 0 {
		delay = 0
	}
	l.pending = true
	l.timer = time.AfterFunc(delay, l.fire)
}

// Now cancels any scheduled execution, runs immediately on the
// caller's goroutine, and resets the window. It is dropped if an
// execution is already in progress.
func (l *RateLimiter) Now() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.cancelLocked()
	l.running = true
	l.mu.Unlock()

	l.run()
}

// FlushIfPending runs immediately only if an execution is scheduled
// but has not fired yet. It is called when a run stops, so the last
// scheduled refresh is never left hanging.
func (l *RateLimiter) FlushIfPending() {
	l.mu.Lock()
	if !l.pending || l.running {
		l.mu.Unlock()
		return
	}
	l.cancelLocked()
	l.running = true
	l.mu.Unlock()

	l.run()
}

// Stop cancels any scheduled execution. The limiter remains usable.
func (l *RateLimiter) Stop() {
	l.mu.Lock()
	l.cancelLocked()
	l.mu.Unlock()
}

// fire is the timer callback for executions scheduled by Later.
func (l *RateLimiter) fire() {
	l.mu.Lock()
	if !l.pending || l.running {
		// Cancelled, or raced with Now; nothing to do.
		l.mu.Unlock()
		return
	}
	l.pending = false
	l.running = true
	l.mu.Unlock()

	l.run()
}

func (l *RateLimiter) run() {
	l.fn()
	l.mu.Lock()
	l.running = false
	l.last = time.Now()
	l.mu.Unlock()
}

func (l *RateLimiter) cancelLocked() {
	if l.pending {
		l.pending = false
		l.timer.Stop()
	}
}
