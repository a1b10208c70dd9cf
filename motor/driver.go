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

// Package motor implements closed loop positioning of a DC motor driven
// antenna using a single incremental (directionless) shaft encoder.

package motor

import (
	"github.com/pkg/errors"
)

// Direction is the commanded direction of the motor.
type Direction int

const (
	Lowering Direction = iota
	Raising
)

func (d Direction) String() string {
	if d == Raising {
		return "raising"
	}
	return "lowering"
}

// MarshalText allows the direction to be reported by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "raising":
		*d = Raising
	case "lowering":
		*d = Lowering
	default:
		return errors.Errorf("unknown direction %q", b)
	}
	return nil
}

// Driver is the interface to the motor output stage (usually an H-bridge).
// The driver carries no decision logic; errors are reported to the caller
// but commands are otherwise fire-and-forget.
type Driver interface {
	// SetDirection asserts the direction outputs for d.
	SetDirection(d Direction) error
	// SetDuty sets the PWM duty cycle as a percentage (0-100).
	SetDuty(percent int) error
	// SetFrequency sets the PWM frequency in Hz.
	SetFrequency(hz int) error
	// Stop sets the duty cycle to 0 and de-asserts both direction outputs.
	Stop() error
}
