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

// Package io provides the hardware I/O used to drive the antenna motor:
// GPIO outputs for the H-bridge direction inputs, a PWM output for the
// H-bridge enable, and edge detection on the encoder input.
package io

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Setter drives a single output line, such as an H-bridge direction input.
type Setter interface {
	Set(int) error
}

// PWM drives the H-bridge enable. The duty cycle is a percentage of
// the period; 0 leaves the motor unpowered.
type PWM interface {
	Close()
	Set(period time.Duration, duty int) error
}

// AwaitPermissions makes a newly exported sysfs unit wait until its
// attributes are writable. When not running as root, udev rules change
// the group permissions after the export, and writing to the attributes
// before then fails.
var AwaitPermissions = os.Geteuid() != 0

const permissionTimeout = 2 * time.Second

// sysfsClass is a sysfs device class directory with export and
// unexport control files, such as /sys/class/gpio/.
type sysfsClass struct {
	dir    string
	prefix string // Name prefix of exported units
}

var (
	gpioClass = sysfsClass{"/sys/class/gpio/", "gpio"}
	pwmClass  = sysfsClass{"/sys/class/pwm/pwmchip0/", "pwm"}
)

// attr returns the path of an attribute of an exported unit.
func (c sysfsClass) attr(unit int, name string) string {
	return c.dir + c.prefix + strconv.Itoa(unit) + "/" + name
}

// claim exports the unit unless the attribute is already accessible.
func (c sysfsClass) claim(unit int, attr string) error {
	path := c.attr(unit, attr)
	if unix.Access(path, unix.W_OK|unix.R_OK) == nil {
		return nil
	}
	if err := writeAttr(c.dir+"export", strconv.Itoa(unit)); err != nil {
		return errors.Wrapf(err, "%s%d: export", c.prefix, unit)
	}
	if AwaitPermissions {
		return awaitWritable(path)
	}
	return nil
}

// release unexports the unit.
func (c sysfsClass) release(unit int) error {
	return writeAttr(c.dir+"unexport", strconv.Itoa(unit))
}

// Period returns the PWM period for a frequency in Hz.
func Period(hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}

// checkDuty validates a duty cycle percentage.
func checkDuty(duty int) error {
	if duty < 0 || duty > 100 {
		return errors.Errorf("%d: invalid duty cycle percentage", duty)
	}
	return nil
}

func writeAttr(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	_, err = f.WriteString(s)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func awaitWritable(path string) error {
	deadline := time.Now().Add(permissionTimeout)
	for unix.Access(path, unix.W_OK) != nil {
		if time.Now().After(deadline) {
			return errors.Errorf("%s: not writable", path)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
