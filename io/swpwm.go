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

package io

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SwPwm toggles a GPIO output from a goroutine to produce PWM
// when no hardware channel is wired to the H-bridge enable.
// At 0% the output is held low and at 100% held high, so a
// stopped motor costs no toggling.
type SwPwm struct {
	pin  Setter
	set  chan swCycle
	done chan struct{}
	wg   sync.WaitGroup
}

// swCycle is one PWM cycle: time spent high, then low.
type swCycle struct {
	high, low time.Duration
}

// NewSwPWM starts software PWM on pin, with the output low.
func NewSwPWM(pin Setter) *SwPwm {
	p := &SwPwm{pin: pin, set: make(chan swCycle, 1), done: make(chan struct{})}
	p.wg.Add(1)
	go p.run()
	return p
}

// Close stops the PWM goroutine, leaving the output low.
func (p *SwPwm) Close() {
	close(p.done)
	p.wg.Wait()
}

// Set changes the period and duty cycle. The change takes effect
// at the end of the current cycle. Set must not be called concurrently.
func (p *SwPwm) Set(period time.Duration, duty int) error {
	if err := checkDuty(duty); err != nil {
		return err
	}
	if period <= 0 {
		return errors.Errorf("invalid period %s", period)
	}
	high := period * time.Duration(duty) / 100
	// Only the latest setting matters.
	select {
	case <-p.set:
	default:
	}
	p.set <- swCycle{high, period - high}
	return nil
}

func (p *SwPwm) run() {
	defer p.wg.Done()
	level := -1
	drive := func(v int) {
		if v != level {
			p.pin.Set(v)
			level = v
		}
	}
	defer drive(0)
	var c swCycle
	for {
		if c.high == 0 || c.low == 0 {
			if c.high == 0 {
				drive(0)
			} else {
				drive(1)
			}
			select {
			case c = <-p.set:
			case <-p.done:
				return
			}
			continue
		}
		drive(1)
		if !p.wait(c.high) {
			return
		}
		drive(0)
		if !p.wait(c.low) {
			return
		}
		select {
		case c = <-p.set:
		default:
		}
	}
}

// wait sleeps for d, returning false if the PWM is closed meanwhile.
func (p *SwPwm) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.done:
		return false
	}
}
