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

// Program to watch the encoder input and count edges.

package main

import (
	"flag"
	"log"
	"time"

	"github.com/aamcrae/antdrv/io"
	"github.com/aamcrae/antdrv/motor"
)

var chip = flag.String("chip", "gpiochip0", "GPIO chip")
var gpio = flag.Int("gpio", 25, "GPIO for the encoder input")
var sysfs = flag.Bool("sysfs", false, "Use sysfs GPIO instead of the character device")
var debounce = flag.Duration("debounce", 40*time.Millisecond, "Encoder debounce time")
var lower = flag.Bool("lower", false, "Count down instead of up")

func main() {
	flag.Parse()
	enc := motor.NewEncoder(0)
	if *lower {
		enc.SetDirection(motor.Lowering)
	} else {
		enc.SetDirection(motor.Raising)
	}
	if *sysfs {
		p, err := io.Pin(*gpio)
		if err != nil {
			log.Fatalf("Pin %d: %v", *gpio, err)
		}
		defer p.Close()
		if err := p.Watch(*debounce, enc.Edge); err != nil {
			log.Fatalf("Pin %d: watch: %v", *gpio, err)
		}
	} else {
		l, err := io.WatchCdev(*chip, *gpio, *debounce, enc.Edge)
		if err != nil {
			log.Fatalf("Pin %d: %v", *gpio, err)
		}
		defer l.Close()
	}
	last := enc.Get()
	for range time.Tick(time.Second) {
		if v := enc.Get(); v != last {
			log.Printf("pin %d: count %d (%+d)\n", *gpio, v, v-last)
			last = v
		}
	}
}
