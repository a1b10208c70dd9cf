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

package motor

import (
	"github.com/pkg/errors"
)

var (
	// ErrStalled is returned when motion is requested while a stall
	// is latched. The stall must be cleared first.
	ErrStalled = errors.New("motor stalled")
	// ErrMoveActive is returned when a move to target is requested
	// while one is already in progress.
	ErrMoveActive = errors.New("move already in progress")
	// ErrInvalidDuty is returned when a stall window is requested
	// for a duty cycle outside 1-100%.
	ErrInvalidDuty = errors.New("invalid duty cycle for stall window")
	// ErrInvalidSpeed is returned for duty or frequency settings out of range.
	ErrInvalidSpeed = errors.New("speed setting out of range")
	// ErrBusy is returned when the controller cannot be reconfigured
	// because the motor is running.
	ErrBusy = errors.New("motor is running")
)
