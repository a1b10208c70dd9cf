// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sched provides a serial callback scheduler. All decision making
// for a motor runs on a single scheduler goroutine; callers hand work to it
// with Do, and arrange for future work with After.

package sched

import (
	"context"
	"sync/atomic"
	"time"
)

const loopQueueSize = 20 // Size of queue for pending callbacks

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running, returning false if it
	// has already run or been stopped.
	Stop() bool
}

// Scheduler runs callbacks serially, never concurrently with each other.
type Scheduler interface {
	// Do runs f on the scheduler and waits for it to complete.
	// Do must not be called from within a scheduled callback.
	Do(f func())
	// After arranges for f to be run on the scheduler after d.
	After(d time.Duration, f func()) Timer
}

// Loop is a Scheduler backed by a single goroutine reading a channel
// of callbacks. Timers use the runtime timer to post the callback into
// the loop once they expire.
type Loop struct {
	c    chan func()
	done chan struct{}
}

type loopTimer struct {
	t       *time.Timer
	stopped int32 // Set once the callback has run or the timer is stopped
}

// NewLoop creates a new Loop. Run must be called to start processing.
func NewLoop() *Loop {
	l := new(Loop)
	l.c = make(chan func(), loopQueueSize)
	l.done = make(chan struct{})
	return l
}

// Run processes callbacks until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-l.c:
			f()
		}
	}
}

// Do runs f on the loop goroutine and waits for completion.
// If the loop has exited, f is not run.
func (l *Loop) Do(f func()) {
	c := make(chan struct{})
	select {
	case l.c <- func() { f(); close(c) }:
	case <-l.done:
		return
	}
	select {
	case <-c:
	case <-l.done:
	}
}

// After schedules f to be run on the loop after d.
// A timer stopped from the loop goroutine is guaranteed not to run f,
// even if the timer has already expired and is queued.
func (l *Loop) After(d time.Duration, f func()) Timer {
	lt := new(loopTimer)
	lt.t = time.AfterFunc(d, func() {
		select {
		case l.c <- func() {
			if atomic.CompareAndSwapInt32(&lt.stopped, 0, 1) {
				f()
			}
		}:
		case <-l.done:
		}
	})
	return lt
}

// Stop cancels the timer.
func (lt *loopTimer) Stop() bool {
	if !atomic.CompareAndSwapInt32(&lt.stopped, 0, 1) {
		return false
	}
	lt.t.Stop()
	return true
}
