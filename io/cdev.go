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

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// CdevLine is a GPIO line requested through the GPIO character device.
type CdevLine struct {
	line *gpiocdev.Line
}

// CdevOutput requests a line on the chip as an output, initially low.
func CdevOutput(chip string, offset int) (*CdevLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, errors.Wrapf(err, "%s:%d", chip, offset)
	}
	return &CdevLine{line: l}, nil
}

// WatchCdev requests a line as a pulled-up input and calls f on
// each falling edge. The kernel discards edges shorter than debounce.
// f is called from the gpiocdev event goroutine and must not block.
func WatchCdev(chip string, offset int, debounce time.Duration, f func()) (*CdevLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			f()
		}))
	if err != nil {
		return nil, errors.Wrapf(err, "%s:%d", chip, offset)
	}
	return &CdevLine{line: l}, nil
}

// Set the output value of the line.
func (c *CdevLine) Set(v int) error {
	return c.line.SetValue(v)
}

// Close releases the line.
func (c *CdevLine) Close() {
	c.line.Close()
}
