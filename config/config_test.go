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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aamcrae/antdrv/motor"
	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, text string) string {
	name := filepath.Join(t.TempDir(), "antdrv.conf")
	if err := os.WriteFile(name, []byte(text), 0644); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return name
}

func TestDefaultConfig(t *testing.T) {
	Convey("Given the default configuration file", t, func() {
		name := filepath.Join(t.TempDir(), "antdrv.conf")
		So(WriteDefault(name), ShouldBeNil)
		f, err := Load(name)
		So(err, ShouldBeNil)

		Convey("it is not overwritten", func() {
			So(WriteDefault(name), ShouldNotBeNil)
		})

		Convey("the default antenna is selected", func() {
			So(f.DefaultAntenna(), ShouldEqual, "ant1")
		})

		Convey("the pins match the standard wiring", func() {
			p, err := f.Pins()
			So(err, ShouldBeNil)
			want := &Pins{
				Gpio:     GpioCdev,
				Chip:     "gpiochip0",
				Dir1:     23,
				Dir2:     24,
				Encoder:  25,
				Pwm:      18,
				PwmMode:  PwmSoftware,
				Debounce: 40 * time.Millisecond,
			}
			So(cmp.Diff(want, p), ShouldBeEmpty)
		})

		Convey("both antennas load", func() {
			a1, err := f.Antenna("ant1")
			So(err, ShouldBeNil)
			So(a1.Name, ShouldEqual, "Antenna1")
			So(a1.Reverse, ShouldBeFalse)
			So(a1.Frequency, ShouldEqual, 4000)
			So(a1.MinFreq, ShouldEqual, 3500)
			So(a1.MaxFreq, ShouldEqual, 29700)
			So(len(a1.Presets), ShouldEqual, 10)
			v, ok := a1.Preset("20m-14.400")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 37)

			a2, err := f.Antenna("ant2")
			So(err, ShouldBeNil)
			So(a2.Reverse, ShouldBeTrue)
			So(a2.PresetNames(), ShouldResemble, []string{"3.500", "4.000", "7.000", "7.300", "14.000", "14.400"})
		})
	})
}

func TestAntenna(t *testing.T) {
	Convey("Missing optional keys take the default speed profile", t, func() {
		f, err := Load(writeConfig(t, "[loop]\nname=Loop\n"))
		So(err, ShouldBeNil)
		a, err := f.Antenna("loop")
		So(err, ShouldBeNil)
		So(a.MotorConfig(), ShouldResemble, motor.DefaultConfig())
		So(a.Presets, ShouldBeEmpty)
		_, ok := a.Preset("none")
		So(ok, ShouldBeFalse)
	})

	Convey("Speed profile settings are read", t, func() {
		f, err := Load(writeConfig(t, `[loop]
frequency=8000
duty=70
full=90
slow=20
stall=400ms
tick=50ms
band=3
`))
		So(err, ShouldBeNil)
		a, err := f.Antenna("loop")
		So(err, ShouldBeNil)
		So(a.Name, ShouldEqual, "loop")
		So(a.MotorConfig(), ShouldResemble, motor.Config{
			Frequency:    8000,
			Duty:         70,
			FullSpeed:    90,
			SlowSpeed:    20,
			ApproachBand: 3,
			TickInterval: 50 * time.Millisecond,
			StallBase:    400 * time.Millisecond,
		})
	})

	Convey("Invalid settings are rejected", t, func() {
		for _, text := range []string{
			"[a]\nfrequency=20\n",
			"[a]\nfrequency=9000\n",
			"[a]\nduty=0\n",
			"[a]\nslow=101\n",
			"[a]\nstall=fast\n",
			"[a]\nreverse=maybe\n",
			"[a]\nrange=3500\n",
			"[a]\npresets=80m\n",
			"[a]\npresets=80m:x\n",
			"[a]\npresets=80m:1,80m:2\n",
		} {
			f, err := Load(writeConfig(t, text))
			So(err, ShouldBeNil)
			_, err = f.Antenna("a")
			So(err, ShouldNotBeNil)
		}
	})

	Convey("Values with several tokens are read whole", t, func() {
		f, err := Load(writeConfig(t, "[a]\nname=Mag Loop\nrange=3500,29700\npresets=80m:226,40m:92\n"))
		So(err, ShouldBeNil)
		a, err := f.Antenna("a")
		So(err, ShouldBeNil)
		So(a.Name, ShouldEqual, "Mag Loop")
		So(a.MinFreq, ShouldEqual, 3500)
		So(a.MaxFreq, ShouldEqual, 29700)
		So(cmp.Diff([]Preset{{"80m", 226}, {"40m", 92}}, a.Presets), ShouldBeEmpty)
	})

	Convey("Multiple values for a single valued key are rejected", t, func() {
		for _, text := range []string{
			"[a]\nduty=50,60\n",
			"[a]\nstall=250ms 1s\n",
			"[a]\nduty=50\nduty=60\n",
			"[a]\nrange=29700,3500\n",
		} {
			f, err := Load(writeConfig(t, text))
			So(err, ShouldBeNil)
			_, err = f.Antenna("a")
			So(err, ShouldNotBeNil)
		}
	})

	Convey("An empty presets list has no presets", t, func() {
		f, err := Load(writeConfig(t, "[a]\npresets=\n"))
		So(err, ShouldBeNil)
		a, err := f.Antenna("a")
		So(err, ShouldBeNil)
		So(a.Presets, ShouldBeEmpty)
	})

	Convey("A missing antenna section is an error", t, func() {
		f, err := Load(writeConfig(t, "[a]\nname=A\n"))
		So(err, ShouldBeNil)
		_, err = f.Antenna("b")
		So(err, ShouldNotBeNil)
		So(f.DefaultAntenna(), ShouldEqual, "")
	})
}

func TestPins(t *testing.T) {
	Convey("Pins default when there is no pins section", t, func() {
		f, err := Load(writeConfig(t, "[a]\nname=A\n"))
		So(err, ShouldBeNil)
		p, err := f.Pins()
		So(err, ShouldBeNil)
		So(p.Encoder, ShouldEqual, 25)
		So(p.PwmMode, ShouldEqual, PwmSoftware)
	})

	Convey("Pins are read from the pins section", t, func() {
		f, err := Load(writeConfig(t, "[pins]\ngpio=sysfs\nencoder=17\npwm_mode=hw\npwm_unit=1\ndebounce=10ms\n"))
		So(err, ShouldBeNil)
		p, err := f.Pins()
		So(err, ShouldBeNil)
		So(p.Gpio, ShouldEqual, GpioSysfs)
		So(p.Encoder, ShouldEqual, 17)
		So(p.PwmMode, ShouldEqual, PwmHardware)
		So(p.PwmUnit, ShouldEqual, 1)
		So(p.Debounce, ShouldEqual, 10*time.Millisecond)
	})

	Convey("Unknown access methods are rejected", t, func() {
		for _, text := range []string{"[pins]\ngpio=wiringpi\n", "[pins]\npwm_mode=dma\n", "[pins]\ndir1=x\n"} {
			f, err := Load(writeConfig(t, text))
			So(err, ShouldBeNil)
			_, err = f.Pins()
			So(err, ShouldNotBeNil)
		}
	})
}

func TestState(t *testing.T) {
	Convey("Given a new state database", t, func() {
		name := filepath.Join(t.TempDir(), "antdrv.db")
		st, err := OpenState(name)
		So(err, ShouldBeNil)

		Convey("unset values fall back to the default", func() {
			So(st.GetInt(KeyPosition, 7), ShouldEqual, 7)
			So(st.GetString(KeyAntenna, "ant1"), ShouldEqual, "ant1")
			So(st.Close(), ShouldBeNil)
		})

		Convey("the session survives a reopen", func() {
			ss := Session{Position: -12, Antenna: "ant2", Preset: "7.000"}
			So(st.SaveSession(ss), ShouldBeNil)
			So(st.Close(), ShouldBeNil)
			st, err = OpenState(name)
			So(err, ShouldBeNil)
			So(st.Session(Session{Antenna: "ant1"}), ShouldResemble, ss)
			So(st.Close(), ShouldBeNil)
		})

		Convey("a partial session keeps the defaults", func() {
			So(st.SetInt(KeyPosition, 226), ShouldBeNil)
			So(st.Session(Session{Antenna: "ant1", Preset: "none"}), ShouldResemble,
				Session{Position: 226, Antenna: "ant1", Preset: "none"})
			So(st.Close(), ShouldBeNil)
		})
	})
}
