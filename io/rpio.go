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
	"github.com/stianeikeland/go-rpio/v4"
)

// Number of PWM clock cycles per output period.
// The PWM clock must stay above 4688Hz, so the lowest usable
// output frequency is 50Hz.
const rpioCycle = 100

var (
	rpioOnce sync.Once
	rpioErr  error
)

// openRpio maps the GPIO registers once for all pins.
func openRpio() error {
	rpioOnce.Do(func() {
		rpioErr = errors.Wrap(rpio.Open(), "rpio")
	})
	return rpioErr
}

// RpioPin is a GPIO output accessed through memory mapped registers.
type RpioPin struct {
	pin rpio.Pin
}

// RpioOutput sets up a BCM numbered pin as an output, initially low.
func RpioOutput(n int) (*RpioPin, error) {
	if err := openRpio(); err != nil {
		return nil, err
	}
	p := rpio.Pin(n)
	p.Output()
	p.Low()
	return &RpioPin{pin: p}, nil
}

// Set the output value of the pin.
func (p *RpioPin) Set(v int) error {
	if v == 0 {
		p.pin.Low()
	} else {
		p.pin.High()
	}
	return nil
}

// Close drives the pin low.
func (p *RpioPin) Close() {
	p.pin.Low()
}

// Input poll interval used by WatchRpio.
const rpioPoll = time.Millisecond

// WatchRpio sets up a BCM numbered pin as a pulled-up input and calls f
// on each falling edge, ignoring edges within debounce of the last one
// accepted. The pin is polled from a goroutine until the returned
// stop function is called.
func WatchRpio(n int, debounce time.Duration, f func()) (func(), error) {
	if err := openRpio(); err != nil {
		return nil, err
	}
	p := rpio.Pin(n)
	p.Input()
	p.PullUp()
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(rpioPoll)
		defer t.Stop()
		last := p.Read()
		var accepted time.Time
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				v := p.Read()
				if v == rpio.Low && last == rpio.High && now.Sub(accepted) >= debounce {
					accepted = now
					f()
				}
				last = v
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// RpioPWM drives a hardware PWM capable pin (12, 13, 18 or 19)
// through the rpio PWM clock.
type RpioPWM struct {
	pin    rpio.Pin
	period time.Duration
	duty   int
}

// NewRpioPWM sets up a BCM numbered pin in PWM mode with the output off.
func NewRpioPWM(n int) (*RpioPWM, error) {
	if err := openRpio(); err != nil {
		return nil, err
	}
	p := &RpioPWM{pin: rpio.Pin(n)}
	p.pin.Mode(rpio.Pwm)
	if err := p.Set(Period(400), 0); err != nil {
		return nil, err
	}
	return p, nil
}

// Set the PWM period and duty cycle percentage.
func (p *RpioPWM) Set(period time.Duration, duty int) error {
	if err := checkDuty(duty); err != nil {
		return err
	}
	if period <= 0 {
		return errors.Errorf("rpio pwm: invalid period %s", period)
	}
	if period != p.period {
		p.pin.Freq(int(time.Second/period) * rpioCycle)
		p.period = period
	}
	p.pin.DutyCycle(uint32(duty), rpioCycle)
	p.duty = duty
	return nil
}

// Close turns the output off and returns the pin to a low output.
func (p *RpioPWM) Close() {
	p.pin.DutyCycle(0, rpioCycle)
	p.pin.Output()
	p.pin.Low()
}
