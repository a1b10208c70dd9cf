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
	"fmt"
	"testing"
	"time"

	"github.com/aamcrae/antdrv/motor"
	. "github.com/smartystreets/goconvey/convey"
)

// fakePin records every value written, and the order of writes across pins.
type fakePin struct {
	name   string
	value  int
	writes *[]string
}

func (p *fakePin) Set(v int) error {
	p.value = v
	*p.writes = append(*p.writes, fmt.Sprintf("%s=%d", p.name, v))
	return nil
}

type fakePWM struct {
	period time.Duration
	duty   int
	closed bool
}

func (p *fakePWM) Set(period time.Duration, duty int) error {
	if err := checkDuty(duty); err != nil {
		return err
	}
	p.period = period
	p.duty = duty
	return nil
}

func (p *fakePWM) Close() {
	p.closed = true
}

func TestHBridge(t *testing.T) {
	Convey("Given an H-bridge", t, func() {
		var writes []string
		in1 := &fakePin{name: "in1", writes: &writes}
		in2 := &fakePin{name: "in2", writes: &writes}
		pwm := new(fakePWM)
		h := NewHBridge(in1, in2, pwm, false)

		Convey("raising drives in1", func() {
			So(h.SetDirection(motor.Raising), ShouldBeNil)
			So(in1.value, ShouldEqual, 1)
			So(in2.value, ShouldEqual, 0)
		})

		Convey("lowering drives in2", func() {
			So(h.SetDirection(motor.Lowering), ShouldBeNil)
			So(in1.value, ShouldEqual, 0)
			So(in2.value, ShouldEqual, 1)
		})

		Convey("reversed leads swap the outputs", func() {
			h.SetReverse(true)
			So(h.SetDirection(motor.Raising), ShouldBeNil)
			So(in1.value, ShouldEqual, 0)
			So(in2.value, ShouldEqual, 1)
		})

		Convey("both sides are released before a reversal", func() {
			h.SetDirection(motor.Raising)
			writes = nil
			h.SetDirection(motor.Lowering)
			So(writes, ShouldResemble, []string{"in1=0", "in2=0", "in1=0", "in2=1"})
		})

		Convey("duty is applied at the current frequency", func() {
			So(h.SetFrequency(1000), ShouldBeNil)
			So(h.SetDuty(25), ShouldBeNil)
			So(pwm.period, ShouldEqual, time.Millisecond)
			So(pwm.duty, ShouldEqual, 25)
		})

		Convey("frequency changes keep the duty", func() {
			h.SetDuty(60)
			So(h.SetFrequency(50), ShouldBeNil)
			So(pwm.period, ShouldEqual, 20*time.Millisecond)
			So(pwm.duty, ShouldEqual, 60)
		})

		Convey("an invalid duty is rejected", func() {
			h.SetDuty(40)
			So(h.SetDuty(101), ShouldNotBeNil)
			So(pwm.duty, ShouldEqual, 40)
		})

		Convey("stop releases the outputs and zeroes the duty", func() {
			h.SetDirection(motor.Raising)
			h.SetDuty(100)
			So(h.Stop(), ShouldBeNil)
			So(in1.value, ShouldEqual, 0)
			So(in2.value, ShouldEqual, 0)
			So(pwm.duty, ShouldEqual, 0)
		})

		Convey("close stops and releases the PWM", func() {
			h.SetDirection(motor.Lowering)
			h.Close()
			So(in2.value, ShouldEqual, 0)
			So(pwm.closed, ShouldBeTrue)
		})
	})
}

func TestPeriod(t *testing.T) {
	Convey("Frequency converts to a period", t, func() {
		So(Period(400), ShouldEqual, 2500*time.Microsecond)
		So(Period(8000), ShouldEqual, 125*time.Microsecond)
		So(Period(0), ShouldEqual, time.Duration(0))
	})
}
