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

// Calibration utility for antenna presets.
// The motor is jogged by hand until the antenna resonates at each
// frequency of interest, and the encoder count is recorded as a preset.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aamcrae/antdrv/board"
	"github.com/aamcrae/antdrv/config"
	"github.com/aamcrae/antdrv/motor"
	"github.com/aamcrae/antdrv/sched"
)

var configFile = flag.String("config", "antdrv.conf", "Configuration file")
var section = flag.String("antenna", "", "Antenna config section to calibrate")
var start = flag.Int("start", 0, "Encoder count at the starting position")
var sim = flag.Bool("sim", false, "Calibrate a simulated motor")

func main() {
	flag.Parse()
	conf, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	if len(*section) == 0 {
		*section = conf.DefaultAntenna()
	}
	ant, err := conf.Antenna(*section)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	enc := motor.NewEncoder(*start)
	var brd *board.Board
	if *sim {
		brd = board.NewSim(20, enc)
	} else {
		pins, err := conf.Pins()
		if err != nil {
			log.Fatalf("%s: %v", *configFile, err)
		}
		brd, err = board.New(pins, ant, enc)
		if err != nil {
			log.Fatalf("%s: %v", *section, err)
		}
	}
	defer brd.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := sched.NewLoop()
	go loop.Run(ctx)
	go brd.Run(ctx)
	ctrl, err := motor.NewController(ant.Name, enc, brd.Driver, loop, ant.MotorConfig())
	if err != nil {
		log.Fatalf("%s: %v", *section, err)
	}
	defer ctrl.Close()

	cal := newCalibration(ant.Presets)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("Position %d (%s)\n", ctrl.Position(), ctrl.Status().Message)
		fmt.Print("Enter command ('help' for help) ")
		text, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		f := strings.Fields(text)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "help":
			fmt.Println("  help - print help")
			fmt.Println("  u [duration] - raise for duration (default 1s)")
			fmt.Println("  d [duration] - lower for duration (default 1s)")
			fmt.Println("  duty NN - set the jog duty cycle")
			fmt.Println("  p name - record the current position as a preset")
			fmt.Println("  g name - move to a recorded preset")
			fmt.Println("  l - list the presets in config file format")
			fmt.Println("  q - quit")
		case "q":
			fmt.Println(cal.line())
			return
		case "u", "d":
			dur := time.Second
			if len(f) > 1 {
				if dur, err = time.ParseDuration(f[1]); err != nil {
					fmt.Printf("%s: %v\n", f[1], err)
					continue
				}
			}
			ctrl.ClearStall()
			if f[0] == "u" {
				ctrl.RaisePressed()
			} else {
				ctrl.LowerPressed()
			}
			time.Sleep(dur)
			ctrl.ReleaseHeldButton()
		case "duty":
			var d int
			if len(f) != 2 {
				fmt.Println("Usage: duty NN")
			} else if _, err := fmt.Sscanf(f[1], "%d", &d); err != nil {
				fmt.Printf("%s: %v\n", f[1], err)
			} else if err := ctrl.SetDuty(d); err != nil {
				fmt.Printf("%v\n", err)
			}
		case "p":
			if len(f) != 2 {
				fmt.Println("Usage: p name")
				continue
			}
			cal.record(f[1], ctrl.Position())
		case "g":
			v, ok := cal.get(f[1:])
			if !ok {
				fmt.Println("Unknown preset")
				continue
			}
			if err := ctrl.MoveToTarget(v); err != nil {
				fmt.Printf("%v\n", err)
				continue
			}
			for ctrl.Status().Moving {
				time.Sleep(100 * time.Millisecond)
			}
		case "l":
			fmt.Println(cal.line())
		default:
			fmt.Printf("Unrecognised input\n")
		}
	}
}

// calibration is the list of presets being recorded, in the order first recorded.
type calibration struct {
	presets []config.Preset
}

func newCalibration(p []config.Preset) *calibration {
	return &calibration{presets: append([]config.Preset(nil), p...)}
}

func (c *calibration) record(name string, pos int) {
	for i := range c.presets {
		if c.presets[i].Name == name {
			c.presets[i].Value = pos
			return
		}
	}
	c.presets = append(c.presets, config.Preset{Name: name, Value: pos})
}

func (c *calibration) get(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	for _, p := range c.presets {
		if p.Name == args[0] {
			return p.Value, true
		}
	}
	return 0, false
}

// line returns the presets as a config file entry.
func (c *calibration) line() string {
	var s []string
	for _, p := range c.presets {
		s = append(s, fmt.Sprintf("%s:%d", p.Name, p.Value))
	}
	return "presets=" + strings.Join(s, ",")
}
