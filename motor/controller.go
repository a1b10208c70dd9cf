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

// Motor position controller.

package motor

import (
	"log"
	"time"

	"github.com/aamcrae/antdrv/sched"
	"github.com/pkg/errors"
)

// Status messages reported by the controller.
const (
	MsgReady     = "Ready"
	MsgRaising   = "Raising"
	MsgLowering  = "Lowering"
	MsgSlowing   = "Slowing down"
	MsgFullSpeed = "Full speed"
	MsgArrived   = "We have arrived"
	MsgStalled   = "Stalled"
	MsgCancelled = "Move cancelled"
)

// Limits for the manual PWM settings.
const (
	MinFrequency = 50
	MaxFrequency = 8000
)

// Config holds the speed profile and timing parameters of a controller.
type Config struct {
	Frequency    int           // PWM frequency in Hz
	Duty         int           // Manual duty cycle percentage
	FullSpeed    int           // Duty cycle percentage away from the target
	SlowSpeed    int           // Duty cycle percentage near the target
	ApproachBand int           // Half width of the slow band around the target
	TickInterval time.Duration // Move re-evaluation period
	StallBase    time.Duration // Stall window at 100% duty
}

// DefaultConfig returns the standard speed profile.
func DefaultConfig() Config {
	return Config{
		Frequency:    400,
		Duty:         50,
		FullSpeed:    100,
		SlowSpeed:    25,
		ApproachBand: 5,
		TickInterval: 100 * time.Millisecond,
		StallBase:    250 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	for _, d := range []struct {
		name  string
		value int
	}{{"duty", c.Duty}, {"full speed", c.FullSpeed}, {"slow speed", c.SlowSpeed}} {
		if d.value < 1 || d.value > 100 {
			return errors.Wrapf(ErrInvalidSpeed, "%s %d", d.name, d.value)
		}
	}
	if c.Frequency < MinFrequency || c.Frequency > MaxFrequency {
		return errors.Wrapf(ErrInvalidSpeed, "frequency %d", c.Frequency)
	}
	if c.ApproachBand < 0 {
		return errors.Errorf("approach band %d is negative", c.ApproachBand)
	}
	if c.TickInterval <= 0 || c.StallBase <= 0 {
		return errors.New("tick interval and stall time must be positive")
	}
	return nil
}

// Status is a snapshot of the controller state.
type Status struct {
	Position  int       `json:"position"`
	Target    int       `json:"target"`
	Moving    bool      `json:"moving"` // A move to target is in progress
	Running   bool      `json:"running"`
	Direction Direction `json:"direction"`
	Duty      int       `json:"duty"`   // PWM duty cycle, 0 when stopped
	Manual    int       `json:"manual"` // Duty cycle for manual runs
	Frequency int       `json:"frequency"`
	Stalled   bool      `json:"stalled"`
	Message   string    `json:"message"`
}

// StatusCallback is called on the scheduler whenever the status changes.
type StatusCallback func(status Status)

// Controller positions the antenna by driving the motor until the
// encoder position matches a target.
// All decisions are made on the scheduler, so the exported methods may be
// called from any goroutine except a scheduled callback.
// The only state shared with another context is the Encoder, which is
// updated by the edge handler.
type Controller struct {
	Name     string
	enc      *Encoder
	drv      Driver
	sched    sched.Scheduler
	stall    *Watchdog
	cfg      Config
	duty     int       // Commanded duty cycle
	manual   int       // Duty cycle for manual runs
	freq     int       // Commanded PWM frequency
	dir      Direction // Commanded direction
	running  bool      // Direction outputs asserted and duty non-zero
	stalled  bool      // Latched by the watchdog until cleared
	moving   bool      // Move to target loop active
	target   int
	tick     sched.Timer
	moveGen  int // Move generation, guards stale ticks
	message  string
	callback StatusCallback
	Moves    int // Number of moves started
	Arrivals int // Number of moves that reached the target
	Stalls   int // Number of stalls detected
}

// NewController creates a Controller and initialises the driver
// to the stopped state.
func NewController(name string, enc *Encoder, drv Driver, s sched.Scheduler, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	c := new(Controller)
	c.Name = name
	c.enc = enc
	c.drv = drv
	c.sched = s
	c.cfg = cfg
	c.duty = cfg.Duty
	c.manual = cfg.Duty
	c.freq = cfg.Frequency
	c.message = MsgReady
	c.stall = NewWatchdog(name, enc, s, cfg.StallBase,
		func() bool { return c.running },
		func() int { return c.duty },
		c.onStall)
	s.Do(func() {
		c.check("frequency", c.drv.SetFrequency(c.freq))
		c.check("stop", c.drv.Stop())
		c.dir = enc.Direction()
	})
	log.Printf("%s: frequency %dHz, duty %d%%, full %d%%, slow %d%%, band %d, tick %s, stall %s",
		name, cfg.Frequency, cfg.Duty, cfg.FullSpeed, cfg.SlowSpeed, cfg.ApproachBand,
		cfg.TickInterval, cfg.StallBase)
	return c, nil
}

// OnStatus registers a callback for status changes.
func (c *Controller) OnStatus(cb StatusCallback) {
	c.sched.Do(func() {
		c.callback = cb
	})
}

// Position returns the current encoder position. It does not need
// the scheduler so is suitable for live display.
func (c *Controller) Position() int {
	return c.enc.Get()
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	var s Status
	c.sched.Do(func() {
		s = c.status()
	})
	return s
}

// StartManual runs the motor in the direction given. Any stall is
// cleared so that a manual command always gets a chance to run, and
// a manual command takes over from an automatic move.
// Calling StartManual while already running in the same direction
// has no effect.
func (c *Controller) StartManual(d Direction) {
	c.sched.Do(func() {
		c.stalled = false
		if c.moving {
			c.endMove()
		}
		c.applyDuty(c.manual)
		c.startMotor(d)
		if d == Raising {
			c.message = MsgRaising
		} else {
			c.message = MsgLowering
		}
		c.notify()
	})
}

// StopManual stops the motor, cancelling any move in progress.
func (c *Controller) StopManual() {
	c.sched.Do(func() {
		c.halt()
		switch {
		case c.moving:
			c.endMove()
			c.message = MsgCancelled
			log.Printf("%s: move to %d cancelled at %d", c.Name, c.target, c.enc.Get())
		case !c.stalled:
			c.message = MsgReady
		}
		c.notify()
	})
}

// MoveToTarget starts moving the antenna to the target position.
// ErrStalled is returned if a stall has not been cleared, and
// ErrMoveActive if a move is already in progress; in both cases
// nothing is changed.
// If the target is the current position the move completes immediately
// without running the motor.
func (c *Controller) MoveToTarget(target int) error {
	var err error
	c.sched.Do(func() {
		if c.stalled {
			err = ErrStalled
			return
		}
		if c.moving {
			err = ErrMoveActive
			return
		}
		c.moving = true
		c.target = target
		c.Moves++
		log.Printf("%s: moving from %d to %d", c.Name, c.enc.Get(), target)
		c.moveTick(c.moveGen)
	})
	return err
}

// SetDuty sets the manual duty cycle, applying it immediately if
// the motor is running under manual control. A move in progress
// keeps its own speed profile.
func (c *Controller) SetDuty(percent int) error {
	if percent < 1 || percent > 100 {
		return errors.Wrapf(ErrInvalidSpeed, "duty %d", percent)
	}
	c.sched.Do(func() {
		c.manual = percent
		if !c.moving {
			c.applyDuty(percent)
		}
		c.notify()
	})
	return nil
}

// SetFrequency sets the PWM frequency.
func (c *Controller) SetFrequency(hz int) error {
	if hz < MinFrequency || hz > MaxFrequency {
		return errors.Wrapf(ErrInvalidSpeed, "frequency %d", hz)
	}
	c.sched.Do(func() {
		c.freq = hz
		c.check("frequency", c.drv.SetFrequency(hz))
		c.notify()
	})
	return nil
}

// SetPosition synchronises the encoder position to a known value,
// usually the position of the current preset.
func (c *Controller) SetPosition(pos int) {
	c.sched.Do(func() {
		c.enc.Set(pos)
		log.Printf("%s: position set to %d", c.Name, pos)
		c.notify()
	})
}

// ClearStall acknowledges a stall so that further moves are accepted.
func (c *Controller) ClearStall() {
	c.sched.Do(func() {
		if c.stalled {
			c.stalled = false
			c.message = MsgReady
			c.notify()
		}
	})
}

// Reconfigure replaces the speed profile. The motor must be stopped.
func (c *Controller) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, c.Name)
	}
	var err error
	c.sched.Do(func() {
		if c.running || c.moving {
			err = ErrBusy
			return
		}
		c.cfg = cfg
		c.duty = cfg.Duty
		c.manual = cfg.Duty
		c.freq = cfg.Frequency
		c.stall.SetBase(cfg.StallBase)
		c.check("frequency", c.drv.SetFrequency(c.freq))
		c.notify()
	})
	return err
}

// Close stops the motor.
func (c *Controller) Close() {
	c.StopManual()
}

// RaisePressed is the presentation action for the raise button.
func (c *Controller) RaisePressed() {
	c.StartManual(Raising)
}

// LowerPressed is the presentation action for the lower button.
func (c *Controller) LowerPressed() {
	c.StartManual(Lowering)
}

// ReleaseHeldButton is the presentation action when a held button is released.
func (c *Controller) ReleaseHeldButton() {
	c.StopManual()
}

// MoveToPresetPressed moves to the position of the selected preset.
func (c *Controller) MoveToPresetPressed(value int) error {
	return c.MoveToTarget(value)
}

// SyncToPreset sets the position to the value of the current preset.
func (c *Controller) SyncToPreset(value int) {
	c.SetPosition(value)
}

// moveTick is one evaluation of the move loop. Direction and speed are
// derived from the current position each time, so the loop corrects
// itself after an overshoot or manual intervention.
func (c *Controller) moveTick(g int) {
	if !c.moving || g != c.moveGen {
		return
	}
	c.tick = nil
	if c.stalled {
		c.halt()
		c.endMove()
		return
	}
	pos := c.enc.Get()
	if pos == c.target {
		c.halt()
		c.endMove()
		c.Arrivals++
		c.message = MsgArrived
		log.Printf("%s: arrived at %d", c.Name, pos)
		c.notify()
		return
	}
	speed, msg := c.cfg.FullSpeed, MsgFullSpeed
	if pos >= c.target-c.cfg.ApproachBand && pos <= c.target+c.cfg.ApproachBand {
		speed, msg = c.cfg.SlowSpeed, MsgSlowing
	}
	c.applyDuty(speed)
	if pos > c.target {
		c.startMotor(Lowering)
	} else {
		c.startMotor(Raising)
	}
	if msg != c.message {
		log.Printf("%s: %s (position %d, target %d)", c.Name, msg, pos, c.target)
	}
	c.message = msg
	c.notify()
	c.tick = c.sched.After(c.cfg.TickInterval, func() { c.moveTick(g) })
}

// startMotor asserts the direction outputs and starts the PWM, unless
// the motor is already running in that direction.
func (c *Controller) startMotor(d Direction) {
	if c.running && c.dir == d {
		return
	}
	// Count edges in the new direction before the motor turns.
	c.dir = d
	c.enc.SetDirection(d)
	c.check("direction", c.drv.SetDirection(d))
	c.check("duty", c.drv.SetDuty(c.duty))
	c.running = true
	c.stall.Arm()
}

// halt stops the motor and ends any stall session.
func (c *Controller) halt() {
	c.check("stop", c.drv.Stop())
	c.running = false
	c.stall.Disarm()
}

func (c *Controller) endMove() {
	c.moving = false
	c.moveGen++
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
}

func (c *Controller) applyDuty(percent int) {
	if percent == c.duty {
		return
	}
	c.duty = percent
	if c.running {
		c.check("duty", c.drv.SetDuty(percent))
	}
}

// onStall is called by the watchdog when the shaft has stopped turning.
func (c *Controller) onStall() {
	c.halt()
	c.stalled = true
	c.Stalls++
	if c.moving {
		c.endMove()
	}
	c.message = MsgStalled
	log.Printf("%s: stalled at %d", c.Name, c.enc.Get())
	c.notify()
}

func (c *Controller) status() Status {
	st := Status{
		Position:  c.enc.Get(),
		Target:    c.target,
		Moving:    c.moving,
		Running:   c.running,
		Direction: c.dir,
		Manual:    c.manual,
		Frequency: c.freq,
		Stalled:   c.stalled,
		Message:   c.message,
	}
	if c.running {
		st.Duty = c.duty
	}
	return st
}

func (c *Controller) notify() {
	if c.callback != nil {
		c.callback(c.status())
	}
}

// check logs a failed driver command.
func (c *Controller) check(op string, err error) {
	if err != nil {
		log.Printf("%s: motor %s: %v", c.Name, op, err)
	}
}
