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

// Antenna and pin configuration read from a configuration file.

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/aamcrae/antdrv/motor"
	"github.com/aamcrae/config"
	"github.com/pkg/errors"
)

// GPIO access methods.
const (
	GpioCdev  = "cdev"
	GpioSysfs = "sysfs"
	GpioRpio  = "rpio"
)

// PWM output methods.
const (
	PwmHardware = "hw"
	PwmSoftware = "sw"
	PwmRpio     = "rpio"
)

// Pins describes how the H-bridge and encoder are wired.
// Pin numbers are BCM GPIO numbers (line offsets on the gpiochip).
type Pins struct {
	Gpio     string // cdev, sysfs or rpio
	Chip     string // gpiochip name for cdev
	Dir1     int
	Dir2     int
	Encoder  int
	Pwm      int
	PwmMode  string // hw, sw or rpio
	PwmUnit  int    // sysfs PWM channel for hw mode
	Debounce time.Duration
}

// Preset is a named encoder position.
type Preset struct {
	Name  string
	Value int
}

// Antenna is the configuration for one antenna.
type Antenna struct {
	Section   string
	Name      string
	Reverse   bool // Motor leads reversed
	Frequency int  // PWM frequency in Hz
	Duty      int  // Manual duty cycle percentage
	Full      int
	Slow      int
	Stall     time.Duration
	Tick      time.Duration
	Band      int
	MinFreq   int // Tuning range in kHz
	MaxFreq   int
	Presets   []Preset
}

// File is a parsed configuration file.
type File struct {
	Name string
	conf *config.Config
}

// Load reads a configuration file.
func Load(name string) (*File, error) {
	conf, err := config.ParseFile(name)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return &File{Name: name, conf: conf}, nil
}

// Pins reads the pin assignments.
// Sample config:
//
//	[pins]
//	# GPIO access: cdev, sysfs or rpio
//	gpio=cdev
//	chip=gpiochip0
//	# H-bridge direction inputs
//	dir1=23
//	dir2=24
//	# Encoder input, pulled up, falling edge
//	encoder=25
//	# H-bridge enable: hw (sysfs pwm_unit), sw or rpio
//	pwm=18
//	pwm_mode=sw
//	pwm_unit=0
//	debounce=40ms
func (f *File) Pins() (*Pins, error) {
	p := &Pins{
		Gpio:     GpioCdev,
		Chip:     "gpiochip0",
		Dir1:     23,
		Dir2:     24,
		Encoder:  25,
		Pwm:      18,
		PwmMode:  PwmSoftware,
		Debounce: 40 * time.Millisecond,
	}
	s := f.conf.GetSection("pins")
	if s == nil {
		return p, nil
	}
	var err error
	if p.Gpio, err = getString(s, "gpio", p.Gpio); err != nil {
		return nil, err
	}
	switch p.Gpio {
	case GpioCdev, GpioSysfs, GpioRpio:
	default:
		return nil, errors.Errorf("pins: gpio: unknown access method %q", p.Gpio)
	}
	if p.Chip, err = getString(s, "chip", p.Chip); err != nil {
		return nil, err
	}
	for _, v := range []struct {
		key string
		p   *int
	}{{"dir1", &p.Dir1}, {"dir2", &p.Dir2}, {"encoder", &p.Encoder}, {"pwm", &p.Pwm}, {"pwm_unit", &p.PwmUnit}} {
		if *v.p, err = getInt(s, v.key, *v.p); err != nil {
			return nil, errors.Wrap(err, "pins")
		}
	}
	if p.PwmMode, err = getString(s, "pwm_mode", p.PwmMode); err != nil {
		return nil, err
	}
	switch p.PwmMode {
	case PwmHardware, PwmSoftware, PwmRpio:
	default:
		return nil, errors.Errorf("pins: pwm_mode: unknown mode %q", p.PwmMode)
	}
	if p.Debounce, err = getDuration(s, "debounce", p.Debounce); err != nil {
		return nil, errors.Wrap(err, "pins")
	}
	return p, nil
}

// DefaultAntenna returns the section name of the antenna selected
// in the settings section, or an empty string if there is none.
func (f *File) DefaultAntenna() string {
	s := f.conf.GetSection("settings")
	if s == nil {
		return ""
	}
	a, err := s.GetArg("antenna")
	if err != nil {
		return ""
	}
	return a
}

// Antenna reads and validates an antenna config from a config file section.
// Sample config:
//
//	[ant1]
//	name=Antenna1
//	reverse=false
//	frequency=4000
//	duty=50
//	full=100
//	slow=25
//	stall=250ms
//	tick=100ms
//	band=5
//	range=3500,29700
//	presets=80m-3.500:226,80m-4.000:192,40m-7.000:92
//
// frequency is the PWM frequency in Hz, duty the manual duty cycle, full
// and slow the duty cycles away from and within the approach band, stall
// the stall window at 100% duty and range the tuning range in kHz.
// Comments must be on a line of their own.
func (f *File) Antenna(section string) (*Antenna, error) {
	s := f.conf.GetSection(section)
	if s == nil {
		return nil, errors.Errorf("no config for antenna %s", section)
	}
	def := motor.DefaultConfig()
	a := &Antenna{Section: section}
	var err error
	if a.Name, err = getString(s, "name", section); err != nil {
		return nil, errors.Wrap(err, section)
	}
	if a.Reverse, err = getBool(s, "reverse", false); err != nil {
		return nil, errors.Wrap(err, section)
	}
	for _, v := range []struct {
		key string
		p   *int
		def int
	}{
		{"frequency", &a.Frequency, def.Frequency},
		{"duty", &a.Duty, def.Duty},
		{"full", &a.Full, def.FullSpeed},
		{"slow", &a.Slow, def.SlowSpeed},
		{"band", &a.Band, def.ApproachBand},
	} {
		if *v.p, err = getInt(s, v.key, v.def); err != nil {
			return nil, errors.Wrap(err, section)
		}
	}
	if a.Stall, err = getDuration(s, "stall", def.StallBase); err != nil {
		return nil, errors.Wrap(err, section)
	}
	if a.Tick, err = getDuration(s, "tick", def.TickInterval); err != nil {
		return nil, errors.Wrap(err, section)
	}
	if s.Has("range") {
		n, err := s.Parse("range", "%d,%d", &a.MinFreq, &a.MaxFreq)
		if err != nil || n != 2 || a.MinFreq >= a.MaxFreq {
			return nil, errors.Errorf("%s: range: expected min,max", section)
		}
	}
	if a.Presets, err = parsePresets(s); err != nil {
		return nil, errors.Wrap(err, section)
	}
	if err := a.MotorConfig().Validate(); err != nil {
		return nil, errors.Wrap(err, section)
	}
	return a, nil
}

// MotorConfig returns the controller configuration for the antenna.
func (a *Antenna) MotorConfig() motor.Config {
	return motor.Config{
		Frequency:    a.Frequency,
		Duty:         a.Duty,
		FullSpeed:    a.Full,
		SlowSpeed:    a.Slow,
		ApproachBand: a.Band,
		TickInterval: a.Tick,
		StallBase:    a.Stall,
	}
}

// Preset returns the position of the named preset.
func (a *Antenna) Preset(name string) (int, bool) {
	for _, p := range a.Presets {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// PresetNames returns the preset names in file order.
func (a *Antenna) PresetNames() []string {
	var names []string
	for _, p := range a.Presets {
		names = append(names, p.Name)
	}
	return names
}

func parsePresets(s *config.Section) ([]Preset, error) {
	e, err := entry(s, "presets")
	if err != nil || e == nil {
		return nil, err
	}
	var presets []Preset
	for _, t := range e.Tokens {
		i := strings.LastIndex(t, ":")
		if i <= 0 {
			return nil, errors.Errorf("presets: %q: expected name:position", t)
		}
		pos, err := strconv.Atoi(t[i+1:])
		if err != nil {
			return nil, errors.Wrapf(err, "presets: %s", t[:i])
		}
		for _, p := range presets {
			if p.Name == t[:i] {
				return nil, errors.Errorf("presets: %s: duplicate", p.Name)
			}
		}
		presets = append(presets, Preset{Name: t[:i], Value: pos})
	}
	return presets, nil
}

// entry returns the entry for key, or nil if the key is not present.
// The config reader splits values on commas and spaces, so multi-token
// values are read from the entry rather than with GetArg.
func entry(s *config.Section, key string) (*config.Entry, error) {
	switch e := s.Get(key); len(e) {
	case 0:
		return nil, nil
	case 1:
		return e[0], nil
	default:
		return nil, errors.Errorf("%s: repeated at line %d", key, e[len(e)-1].Lineno)
	}
}

// single returns the one token value of key, or ok false if the key
// is absent or has no value.
func single(s *config.Section, key string) (v string, ok bool, err error) {
	e, err := entry(s, key)
	if err != nil || e == nil || len(e.Tokens) == 0 {
		return "", false, err
	}
	if len(e.Tokens) != 1 {
		return "", false, errors.Errorf("%s: expected a single value, got %q", key, e.Args)
	}
	return e.Tokens[0], true, nil
}

// getString returns the value of key with its tokens joined by spaces,
// so that names such as "Mag Loop" are kept whole.
func getString(s *config.Section, key, def string) (string, error) {
	e, err := entry(s, key)
	if err != nil {
		return "", err
	}
	if e == nil || len(e.Tokens) == 0 {
		return def, nil
	}
	return strings.Join(e.Tokens, " "), nil
}

func getInt(s *config.Section, key string, def int) (int, error) {
	v, ok, err := single(s, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return n, nil
}

func getDuration(s *config.Section, key string, def time.Duration) (time.Duration, error) {
	v, ok, err := single(s, key)
	if err != nil || !ok {
		return def, err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return d, nil
}

func getBool(s *config.Section, key string, def bool) (bool, error) {
	v, ok, err := single(s, key)
	if err != nil || !ok {
		return def, err
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "%s", key)
	}
	return b, nil
}
