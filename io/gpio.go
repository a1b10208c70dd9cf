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
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mode
const (
	IN  = iota // Default
	OUT = iota
)

// Edge
const (
	NONE    = iota // Default
	RISING  = iota
	FALLING = iota
	BOTH    = iota
)

// Gpio represents one GPIO pin accessed through sysfs.
type Gpio struct {
	number    int
	value     *os.File
	buf       []byte
	direction int
	edge      int
	pollfd    []unix.PollFd
	closed    int32
}

// OutputPin opens a GPIO pin and sets the direction as OUTPUT.
func OutputPin(gpio int) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	err = g.Direction(OUT)
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Pin opens a GPIO pin as an input (by default)
func Pin(gpio int) (*Gpio, error) {
	g := new(Gpio)
	g.number = gpio
	g.buf = make([]byte, 1)

	if err := gpioClass.claim(gpio, "value"); err != nil {
		return nil, err
	}
	err := g.Direction(IN)
	if err == nil {
		err = g.Edge(NONE)
	}
	if err == nil {
		g.value, err = os.OpenFile(gpioClass.attr(gpio, "value"), os.O_RDWR, 0600)
	}
	if err != nil {
		gpioClass.release(gpio)
		return nil, err
	}
	g.pollfd = []unix.PollFd{{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	return g, nil
}

// Direction sets the mode (direction) of the GPIO pin.
func (g *Gpio) Direction(d int) error {
	var s string
	switch d {
	case IN:
		s = "in"
	case OUT:
		s = "out"
	default:
		return errors.Errorf("gpio%d: unknown direction", g.number)
	}
	err := writeAttr(gpioClass.attr(g.number, "direction"), s)
	if err == nil {
		g.direction = d
	}
	return err
}

// Edge sets the edge detection on the GPIO pin.
func (g *Gpio) Edge(e int) error {
	if g.direction != IN {
		return errors.Errorf("gpio%d: not set as an input pin", g.number)
	}
	var s string
	switch e {
	case NONE:
		s = "none"
	case RISING:
		s = "rising"
	case FALLING:
		s = "falling"
	case BOTH:
		s = "both"
	default:
		return errors.Errorf("gpio%d: unknown edge", g.number)
	}
	err := writeAttr(gpioClass.attr(g.number, "edge"), s)
	if err == nil {
		g.edge = e
	}
	return err
}

// Set the output of the GPIO pin (only valid for OUTPUT pins)
func (g *Gpio) Set(v int) error {
	if g.direction != OUT {
		return errors.Errorf("gpio%d: is not output", g.number)
	}
	if v == 0 {
		g.buf[0] = '0'
	} else if v == 1 {
		g.buf[0] = '1'
	} else {
		return errors.Errorf("gpio%d: illegal value", g.number)
	}
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

// Get returns the current value of the GPIO pin. If edge detection
// is enabled, Get waits for the next edge.
func (g *Gpio) Get() (int, error) {
	if g.edge != NONE {
		// Wait for edge using poll.
		g.pollfd[0].Revents = 0
		_, err := unix.Poll(g.pollfd, -1)
		if err != nil {
			return 0, err
		}
		// With no timeout, poll should always return an event.
	}
	return g.read()
}

// Watch enables falling edge detection and calls f for each edge, ignoring
// edges that arrive within the debounce period of the last one accepted.
// f is called from a separate goroutine and must not block.
// Watching stops when the pin is closed.
func (g *Gpio) Watch(debounce time.Duration, f func()) error {
	if err := g.Edge(FALLING); err != nil {
		return err
	}
	// An edge is pending until the value is read.
	if _, err := g.read(); err != nil {
		return err
	}
	go func() {
		var last time.Time
		for {
			_, err := g.Get()
			if err != nil {
				if atomic.LoadInt32(&g.closed) == 0 {
					log.Printf("gpio%d: watch: %v", g.number, err)
				}
				return
			}
			now := time.Now()
			if !last.IsZero() && now.Sub(last) < debounce {
				continue
			}
			last = now
			f()
		}
	}()
	return nil
}

// Close the GPIO pin and unexport it.
func (g *Gpio) Close() {
	if !atomic.CompareAndSwapInt32(&g.closed, 0, 1) {
		return
	}
	g.value.Close()
	gpioClass.release(g.number)
}

func (g *Gpio) read() (int, error) {
	_, err := g.value.ReadAt(g.buf, 0)
	if err != nil {
		return 0, err
	}
	if g.buf[0] == '0' {
		return 0, nil
	} else if g.buf[0] == '1' {
		return 1, nil
	} else {
		return 0, errors.Errorf("gpio%d: unknown value %s", g.number, g.buf)
	}
}
