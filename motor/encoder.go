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

// Pulse encoder position counter.

package motor

import (
	"sync/atomic"
)

// Encoder counts edges from a single pulse or dry contact shaft sensor.
// The sensor gives no direction, so each edge is counted in the direction
// the motor is currently commanded to turn.
// Edge is called from the hardware I/O context and is the only writer of
// the position other than Set; all fields are accessed atomically.
type Encoder struct {
	position int64 // Signed count of edges since an arbitrary zero
	raising  int32 // Non-zero when the motor is commanded to raise
}

// NewEncoder creates an Encoder seeded with an initial position.
func NewEncoder(initial int) *Encoder {
	e := new(Encoder)
	e.position = int64(initial)
	return e
}

// Edge records one debounced encoder edge.
func (e *Encoder) Edge() {
	if atomic.LoadInt32(&e.raising) != 0 {
		atomic.AddInt64(&e.position, 1)
	} else {
		atomic.AddInt64(&e.position, -1)
	}
}

// Get returns the current position.
func (e *Encoder) Get() int {
	return int(atomic.LoadInt64(&e.position))
}

// Set overwrites the current position, either to seed it from saved
// state or to synchronise it to a known location.
func (e *Encoder) Set(pos int) {
	atomic.StoreInt64(&e.position, int64(pos))
}

// SetDirection sets the direction that subsequent edges are counted in.
func (e *Encoder) SetDirection(d Direction) {
	var v int32
	if d == Raising {
		v = 1
	}
	atomic.StoreInt32(&e.raising, v)
}

// Direction returns the direction edges are currently counted in.
func (e *Encoder) Direction() Direction {
	if atomic.LoadInt32(&e.raising) != 0 {
		return Raising
	}
	return Lowering
}
