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
	"time"

	"github.com/aamcrae/antdrv/motor"
)

// HBridge drives a brushed DC motor through an H-bridge.
// Two outputs select the direction and a PWM output on
// the bridge enable sets the speed.
type HBridge struct {
	in1, in2 Setter
	pwm      PWM
	reverse  bool
	period   time.Duration
	duty     int
}

// NewHBridge creates a stopped H-bridge driver. If reverse is set,
// the direction outputs are swapped to account for reversed motor leads.
func NewHBridge(in1, in2 Setter, pwm PWM, reverse bool) *HBridge {
	return &HBridge{in1: in1, in2: in2, pwm: pwm, reverse: reverse, period: Period(400)}
}

// SetReverse swaps the direction outputs.
func (h *HBridge) SetReverse(reverse bool) {
	h.reverse = reverse
}

// SetDirection energises the bridge side for the direction.
func (h *HBridge) SetDirection(d motor.Direction) error {
	a, b := 1, 0
	if d == motor.Lowering {
		a, b = 0, 1
	}
	if h.reverse {
		a, b = b, a
	}
	// Both low before either is raised, so the bridge never shorts.
	if err := h.off(); err != nil {
		return err
	}
	if err := h.in1.Set(a); err != nil {
		return err
	}
	return h.in2.Set(b)
}

// SetDuty sets the PWM duty cycle as a percentage.
func (h *HBridge) SetDuty(percent int) error {
	if err := h.pwm.Set(h.period, percent); err != nil {
		return err
	}
	h.duty = percent
	return nil
}

// SetFrequency sets the PWM frequency, keeping the current duty.
func (h *HBridge) SetFrequency(hz int) error {
	period := Period(hz)
	if err := h.pwm.Set(period, h.duty); err != nil {
		return err
	}
	h.period = period
	return nil
}

// Stop de-energises both direction outputs and zeroes the duty.
func (h *HBridge) Stop() error {
	err := h.off()
	if perr := h.SetDuty(0); err == nil {
		err = perr
	}
	return err
}

// Close stops the motor and releases the PWM.
func (h *HBridge) Close() {
	h.Stop()
	h.pwm.Close()
}

func (h *HBridge) off() error {
	if err := h.in1.Set(0); err != nil {
		return err
	}
	return h.in2.Set(0)
}
