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

package main

import (
	"path/filepath"
	"testing"

	"github.com/aamcrae/antdrv/board"
	"github.com/aamcrae/antdrv/config"
	"github.com/aamcrae/antdrv/motor"
	"github.com/aamcrae/antdrv/sched"
	"github.com/aamcrae/antdrv/server"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestApp(t *testing.T) (*App, *sched.Manual) {
	dir := t.TempDir()
	name := filepath.Join(dir, "antdrv.conf")
	if err := config.WriteDefault(name); err != nil {
		t.Fatal(err)
	}
	conf, err := config.Load(name)
	if err != nil {
		t.Fatal(err)
	}
	st, err := config.OpenState(filepath.Join(dir, "antdrv.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	ant, err := conf.Antenna(conf.DefaultAntenna())
	if err != nil {
		t.Fatal(err)
	}
	enc := motor.NewEncoder(100)
	brd := board.NewSim(20, enc)
	s := sched.NewManual()
	ctrl, err := motor.NewController(ant.Name, enc, brd.Driver, s, ant.MotorConfig())
	if err != nil {
		t.Fatal(err)
	}
	a := &App{conf: conf, state: st, sched: s, board: brd, ctrl: ctrl, ant: ant, srv: server.NewServer()}
	ctrl.OnStatus(a.publish)
	return a, s
}

func TestApp(t *testing.T) {
	Convey("Given the console application", t, func() {
		a, _ := newTestApp(t)

		Convey("presets are selected by name", func() {
			v, err := a.selectPreset("40m-7.000")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 92)
			So(a.selected(), ShouldEqual, "40m-7.000")
			_, err = a.selectPreset("2m")
			So(err, ShouldNotBeNil)
			So(a.selected(), ShouldEqual, "40m-7.000")
		})

		Convey("preset completion is sorted", func() {
			names := a.presetNames(nil)
			So(len(names), ShouldEqual, 10)
			So(names[0], ShouldEqual, "20m-14.000")
		})

		Convey("status changes are published with the antenna", func() {
			a.ctrl.RaisePressed()
			r := a.srv.Report()
			So(r.Antenna, ShouldEqual, "Antenna1")
			So(r.Running, ShouldBeTrue)
			So(len(r.Presets), ShouldEqual, 10)
			a.ctrl.ReleaseHeldButton()
			So(a.srv.Report().Running, ShouldBeFalse)
		})

		Convey("switching antenna applies its settings", func() {
			a.selectPreset("40m-7.000")
			So(a.SelectAntenna("ant2"), ShouldBeNil)
			So(a.ctrl.Status().Frequency, ShouldEqual, 2000)
			So(a.selected(), ShouldEqual, "")
			So(a.srv.Report().Antenna, ShouldEqual, "Antenna2")
			_, err := a.selectPreset("7.000")
			So(err, ShouldBeNil)
		})

		Convey("the antenna cannot be switched while the motor runs", func() {
			a.ctrl.LowerPressed()
			So(a.SelectAntenna("ant2"), ShouldEqual, motor.ErrBusy)
			So(a.SelectAntenna("nothing"), ShouldNotBeNil)
			a.ctrl.ReleaseHeldButton()
		})

		Convey("the session is saved", func() {
			a.selectPreset("20m-14.400")
			a.ctrl.SyncToPreset(37)
			So(a.Save(), ShouldBeNil)
			ss := a.state.Session(config.Session{})
			So(ss, ShouldResemble, config.Session{Position: 37, Antenna: "ant1", Preset: "20m-14.400"})
		})
	})
}

func TestHelpers(t *testing.T) {
	Convey("Numeric arguments", t, func() {
		v, err := intArg([]string{"-12"})
		So(err, ShouldBeNil)
		So(v, ShouldEqual, -12)
		_, err = intArg(nil)
		So(err, ShouldNotBeNil)
		_, err = intArg([]string{"ten"})
		So(err, ShouldNotBeNil)
	})

	Convey("Status is summarised on one line", t, func() {
		So(formatStatus(motor.Status{Position: 5, Frequency: 400, Message: motor.MsgReady}), ShouldEqual,
			"Position 5, 400Hz: Ready")
		So(formatStatus(motor.Status{
			Position:  5,
			Target:    9,
			Moving:    true,
			Running:   true,
			Direction: motor.Raising,
			Duty:      25,
			Frequency: 400,
			Message:   motor.MsgSlowing,
		}), ShouldEqual, "Position 5, target 9, raising at 25%, 400Hz: Slowing down")
	})
}
