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

// Program to ramp the motor speed up and down through the H-bridge.

package main

import (
	"flag"
	"log"
	"math"
	"time"

	"github.com/aamcrae/antdrv/io"
	"github.com/aamcrae/antdrv/motor"
)

var chip = flag.String("chip", "gpiochip0", "GPIO chip")
var dir1 = flag.Int("dir1", 23, "GPIO for H-bridge direction input 1")
var dir2 = flag.Int("dir2", 24, "GPIO for H-bridge direction input 2")
var pwmUnit = flag.Int("pwm", -1, "Hardware PWM unit (software PWM on -pin if negative)")
var pwmPin = flag.Int("pin", 18, "GPIO for software PWM")
var freq = flag.Int("freq", 400, "PWM frequency")
var cycles = flag.Int("cycles", 2, "Number of ramps in each direction")

func main() {
	flag.Parse()
	in1, err := io.CdevOutput(*chip, *dir1)
	if err != nil {
		log.Fatalf("dir1 %d: %v", *dir1, err)
	}
	defer in1.Close()
	in2, err := io.CdevOutput(*chip, *dir2)
	if err != nil {
		log.Fatalf("dir2 %d: %v", *dir2, err)
	}
	defer in2.Close()
	var pwm io.PWM
	if *pwmUnit >= 0 {
		pwm, err = io.NewHwPWM(*pwmUnit)
		if err != nil {
			log.Fatalf("PWM unit %d: %v", *pwmUnit, err)
		}
	} else {
		pin, err := io.CdevOutput(*chip, *pwmPin)
		if err != nil {
			log.Fatalf("PWM pin %d: %v", *pwmPin, err)
		}
		defer pin.Close()
		pwm = io.NewSwPWM(pin)
	}
	hb := io.NewHBridge(in1, in2, pwm, false)
	defer hb.Close()
	if err := hb.SetFrequency(*freq); err != nil {
		log.Fatalf("Frequency %d: %v", *freq, err)
	}
	for i := 0; i < *cycles; i++ {
		for _, d := range []motor.Direction{motor.Raising, motor.Lowering} {
			log.Printf("%s", d)
			if err := hb.SetDirection(d); err != nil {
				log.Fatalf("%s: %v", d, err)
			}
			for v := 0; v < 180; v++ {
				set(hb, v)
			}
			hb.Stop()
			time.Sleep(time.Second)
		}
	}
}

// set the duty along a half sine wave so the motor ramps up and back down.
func set(hb *io.HBridge, v int) {
	r := float64(v) * math.Pi / 180
	d := int(math.Sin(r) * 100.0)
	err := hb.SetDuty(d)
	if err != nil {
		log.Fatalf("Set: duty %d: %v", d, err)
	}
	time.Sleep(time.Millisecond * 50)
}
