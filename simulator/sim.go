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

// Simulated motor and shaft encoder

package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/aamcrae/antdrv/motor"
)

// Shaft acts like a DC motor turning an encoder disk. It accepts the
// same commands as the H-bridge, and generates encoder edges at a rate
// proportional to the duty cycle while the motor is powered.
type Shaft struct {
	mu       sync.Mutex
	rate     float64 // Edges per second at 100% duty
	dir      motor.Direction
	duty     int
	freq     int
	powered  bool
	jammed   bool
	frac     float64 // Partial edge carried between updates
	position int     // Actual shaft position
	edges    int
	onEdge   func()
}

// NewShaft creates a stopped shaft at position 0 that turns at
// rate edges per second at full duty.
func NewShaft(rate float64) *Shaft {
	return &Shaft{rate: rate}
}

// OnEdge sets the function called for each encoder edge.
// f is called without the shaft lock held.
func (s *Shaft) OnEdge(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEdge = f
}

// SetDirection powers the motor in the direction.
func (s *Shaft) SetDirection(d motor.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != d {
		s.frac = 0
	}
	s.dir = d
	s.powered = true
	return nil
}

// SetDuty sets the duty cycle percentage.
func (s *Shaft) SetDuty(percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duty = percent
	return nil
}

// SetFrequency records the PWM frequency, which does not affect the speed.
func (s *Shaft) SetFrequency(hz int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freq = hz
	return nil
}

// Stop removes power from the motor.
func (s *Shaft) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = false
	s.duty = 0
	s.frac = 0
	return nil
}

// Jam stops the shaft turning even when powered, as if
// the antenna had hit an end stop.
func (s *Shaft) Jam(jammed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jammed = jammed
}

// Position returns the actual shaft position.
func (s *Shaft) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetPosition moves the shaft without generating edges.
func (s *Shaft) SetPosition(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = p
}

// Edges returns the number of encoder edges generated.
func (s *Shaft) Edges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges
}

// Turning returns true if the shaft is moving.
func (s *Shaft) Turning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered && s.duty > 0 && !s.jammed
}

// Advance turns the shaft for the elapsed time, calling the edge
// handler once for each edge passed.
func (s *Shaft) Advance(elapsed time.Duration) {
	s.mu.Lock()
	if !s.powered || s.duty <= 0 || s.jammed {
		s.mu.Unlock()
		return
	}
	s.frac += s.rate * float64(s.duty) / 100 * elapsed.Seconds()
	n := int(s.frac)
	s.frac -= float64(n)
	inc := 1
	if s.dir == motor.Lowering {
		inc = -1
	}
	s.position += n * inc
	s.edges += n
	f := s.onEdge
	s.mu.Unlock()
	if f != nil {
		for i := 0; i < n; i++ {
			f()
		}
	}
}

// Run turns the shaft in real time until the context is cancelled.
func (s *Shaft) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}
