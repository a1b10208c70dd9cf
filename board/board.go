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

// Hardware assembly for the H-bridge and encoder.

package board

import (
	"context"
	"time"

	"github.com/aamcrae/antdrv/config"
	"github.com/aamcrae/antdrv/io"
	"github.com/aamcrae/antdrv/motor"
	"github.com/aamcrae/antdrv/simulator"
	"github.com/pkg/errors"
)

// Board is the motor output stage and encoder input.
type Board struct {
	Driver  motor.Driver
	reverse func(bool)
	shaft   *simulator.Shaft
	closers []func()
}

// New sets up the H-bridge outputs and encoder input described by
// the pins. Encoder edges are delivered to enc.
func New(p *config.Pins, ant *config.Antenna, enc *motor.Encoder) (*Board, error) {
	b := new(Board)
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()
	dir1, err := b.output(p, p.Dir1)
	if err != nil {
		return nil, errors.Wrap(err, "dir1")
	}
	dir2, err := b.output(p, p.Dir2)
	if err != nil {
		return nil, errors.Wrap(err, "dir2")
	}
	var pwm io.PWM
	switch p.PwmMode {
	case config.PwmHardware:
		pwm, err = io.NewHwPWM(p.PwmUnit)
	case config.PwmRpio:
		pwm, err = io.NewRpioPWM(p.Pwm)
	default:
		var pin io.Setter
		pin, err = b.output(p, p.Pwm)
		if err == nil {
			pwm = io.NewSwPWM(pin)
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "pwm")
	}
	hb := io.NewHBridge(dir1, dir2, pwm, ant.Reverse)
	// Closed before the pins, so the motor stops first.
	b.closers = append(b.closers, hb.Close)
	b.Driver = hb
	b.reverse = hb.SetReverse
	if err = b.watch(p, enc.Edge); err != nil {
		return nil, errors.Wrap(err, "encoder")
	}
	ok = true
	return b, nil
}

// NewSim creates a board driving a simulated shaft.
func NewSim(rate float64, enc *motor.Encoder) *Board {
	sh := simulator.NewShaft(rate)
	sh.SetPosition(enc.Get())
	sh.OnEdge(enc.Edge)
	return &Board{Driver: sh, shaft: sh}
}

// SetReverse swaps the motor direction outputs.
func (b *Board) SetReverse(r bool) {
	if b.reverse != nil {
		b.reverse(r)
	}
}

// Run turns the simulated shaft, if any, until the context is done.
func (b *Board) Run(ctx context.Context) error {
	if b.shaft == nil {
		<-ctx.Done()
		return nil
	}
	err := b.shaft.Run(ctx, 10*time.Millisecond)
	if err == context.Canceled {
		return nil
	}
	return err
}

// Close stops the motor and releases the I/O, in reverse order of setup.
func (b *Board) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func (b *Board) output(p *config.Pins, n int) (io.Setter, error) {
	switch p.Gpio {
	case config.GpioSysfs:
		g, err := io.OutputPin(n)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, g.Close)
		return g, nil
	case config.GpioRpio:
		r, err := io.RpioOutput(n)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, r.Close)
		return r, nil
	default:
		c, err := io.CdevOutput(p.Chip, n)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, c.Close)
		return c, nil
	}
}

func (b *Board) watch(p *config.Pins, f func()) error {
	switch p.Gpio {
	case config.GpioSysfs:
		g, err := io.Pin(p.Encoder)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, g.Close)
		return g.Watch(p.Debounce, f)
	case config.GpioRpio:
		stop, err := io.WatchRpio(p.Encoder, p.Debounce, f)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, stop)
		return nil
	default:
		c, err := io.WatchCdev(p.Chip, p.Encoder, p.Debounce, f)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, c.Close)
		return nil
	}
}
