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

package sched

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by a virtual clock, used where
// deterministic timing is needed. Callbacks only run from Advance,
// on the goroutine calling Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	m    *Manual
	when time.Duration
	seq  int
	f    func()
	done bool
}

// NewManual creates a Manual scheduler with the clock at zero.
func NewManual() *Manual {
	return new(Manual)
}

// Do runs f immediately.
func (m *Manual) Do(f func()) {
	f()
}

// After schedules f to run once the virtual clock has advanced by d.
func (m *Manual) After(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, when: m.now + d, seq: m.seq, f: f}
	m.pending = append(m.pending, t)
	return t
}

// Stop removes the timer from the pending list.
func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.m.remove(t)
	return true
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks waiting to run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d, running each callback that
// falls due in deadline order. Callbacks with the same deadline run in
// the order they were scheduled. Callbacks scheduled by a callback run in
// the same Advance if they fall due before the end of the interval.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now + d
	for {
		t := m.next(end)
		if t == nil {
			break
		}
		m.now = t.when
		t.done = true
		m.remove(t)
		m.mu.Unlock()
		t.f()
		m.mu.Lock()
	}
	m.now = end
	m.mu.Unlock()
}

// next returns the earliest timer due at or before end.
func (m *Manual) next(end time.Duration) *manualTimer {
	var n *manualTimer
	for _, t := range m.pending {
		if t.when > end {
			continue
		}
		if n == nil || t.when < n.when || (t.when == n.when && t.seq < n.seq) {
			n = t
		}
	}
	return n
}

func (m *Manual) remove(t *manualTimer) {
	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}
