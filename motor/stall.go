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

// Stall detection.

package motor

import (
	"log"
	"time"

	"github.com/aamcrae/antdrv/sched"
)

// Window returns the stall detection window for a duty cycle.
// The window is the base time at 100% duty, scaled up as the duty
// drops since fewer encoder edges are expected per unit time,
// and truncated to whole milliseconds.
func Window(base time.Duration, duty int) (time.Duration, error) {
	if duty <= 0 || duty > 100 {
		return 0, ErrInvalidDuty
	}
	ms := 100.0 / float64(duty) * float64(base) / float64(time.Millisecond)
	return time.Duration(int64(ms)) * time.Millisecond, nil
}

// Watchdog detects a motor that is commanded to run but whose shaft
// is not turning. A single sensor gives no velocity, so a stall is
// declared when the encoder position has not changed across one window.
// The window is recomputed each time it expires because the duty cycle
// may change while the motor runs.
// All methods must be called on the scheduler.
type Watchdog struct {
	name    string
	enc     *Encoder
	sched   sched.Scheduler
	base    time.Duration // Stall window at 100% duty
	running func() bool   // Reports whether the motor is running
	duty    func() int    // Current commanded duty cycle
	stalled func()        // Called once when a stall is confirmed
	active  bool          // True while a session is armed
	last    int           // Position at the last sample
	timer   sched.Timer
	gen     int // Session generation, guards stale checks
	Checks  int // Number of windows checked
}

// NewWatchdog creates a Watchdog. The stalled callback is responsible
// for stopping the motor.
func NewWatchdog(name string, enc *Encoder, s sched.Scheduler, base time.Duration, running func() bool, duty func() int, stalled func()) *Watchdog {
	w := new(Watchdog)
	w.name = name
	w.enc = enc
	w.sched = s
	w.base = base
	w.running = running
	w.duty = duty
	w.stalled = stalled
	return w
}

// Arm starts a stall session if one is not already active.
func (w *Watchdog) Arm() {
	if w.active {
		return
	}
	w.active = true
	w.gen++
	w.last = w.enc.Get()
	w.schedule()
}

// Disarm ends the current session without declaring a stall.
func (w *Watchdog) Disarm() {
	w.active = false
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Active returns true if a stall session is armed.
func (w *Watchdog) Active() bool {
	return w.active
}

// SetBase changes the stall window base time for the next session.
func (w *Watchdog) SetBase(base time.Duration) {
	w.base = base
}

func (w *Watchdog) schedule() {
	win, err := Window(w.base, w.duty())
	if err != nil {
		// The motor should never be running at 0% duty.
		log.Printf("%s: stall window at duty %d: %v", w.name, w.duty(), err)
		w.active = false
		return
	}
	g := w.gen
	w.timer = w.sched.After(win, func() { w.check(g) })
}

func (w *Watchdog) check(g int) {
	if !w.active || g != w.gen {
		return
	}
	w.timer = nil
	if !w.running() {
		w.active = false
		return
	}
	w.Checks++
	pos := w.enc.Get()
	if pos == w.last {
		w.active = false
		w.gen++
		w.stalled()
		return
	}
	w.last = pos
	w.schedule()
}
