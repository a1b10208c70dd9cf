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
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// HwPwm drives the H-bridge enable from a channel of the sysfs
// hardware PWM controller. Period and duty are written in nanoseconds.
type HwPwm struct {
	unit       int
	period     *os.File
	duty       *os.File
	lastPeriod int64 // Last value written, -1 if unknown
	lastDuty   int64
}

// NewHwPWM claims a hardware PWM channel, and enables it with the
// motor unpowered.
func NewHwPWM(unit int) (*HwPwm, error) {
	if err := pwmClass.claim(unit, "period"); err != nil {
		return nil, err
	}
	p := &HwPwm{unit: unit, lastPeriod: -1, lastDuty: -1}
	ok := false
	defer func() {
		if !ok {
			p.release()
		}
	}()
	var err error
	if p.period, err = os.OpenFile(pwmClass.attr(unit, "period"), os.O_RDWR, 0600); err != nil {
		return nil, errors.Wrapf(err, "pwm%d", unit)
	}
	dName := pwmClass.attr(unit, "duty_cycle")
	if err = awaitWritable(dName); err != nil {
		return nil, err
	}
	if p.duty, err = os.OpenFile(dName, os.O_RDWR, 0600); err != nil {
		return nil, errors.Wrapf(err, "pwm%d", unit)
	}
	if err = p.Set(Period(400), 0); err != nil {
		return nil, err
	}
	if err = writeAttr(pwmClass.attr(unit, "enable"), "1"); err != nil {
		return nil, errors.Wrapf(err, "pwm%d: enable", unit)
	}
	ok = true
	return p, nil
}

// Close disables the channel and releases it.
func (p *HwPwm) Close() {
	writeAttr(pwmClass.attr(p.unit, "enable"), "0")
	p.release()
}

// Set changes the period and duty cycle. The kernel rejects a duty
// longer than the current period, so the period is written first
// when the new duty would exceed it.
func (p *HwPwm) Set(period time.Duration, duty int) error {
	if err := checkDuty(duty); err != nil {
		return err
	}
	if period <= 0 {
		return errors.Errorf("pwm%d: invalid period %s", p.unit, period)
	}
	pn := period.Nanoseconds()
	dn := pn * int64(duty) / 100
	if dn > p.lastPeriod {
		if err := p.write(p.period, &p.lastPeriod, pn); err != nil {
			return err
		}
		return p.write(p.duty, &p.lastDuty, dn)
	}
	if err := p.write(p.duty, &p.lastDuty, dn); err != nil {
		return err
	}
	return p.write(p.period, &p.lastPeriod, pn)
}

func (p *HwPwm) write(f *os.File, last *int64, v int64) error {
	if *last == v {
		return nil
	}
	if _, err := f.WriteAt([]byte(strconv.FormatInt(v, 10)), 0); err != nil {
		*last = -1
		return errors.Wrapf(err, "pwm%d", p.unit)
	}
	*last = v
	return nil
}

func (p *HwPwm) release() {
	if p.period != nil {
		p.period.Close()
	}
	if p.duty != nil {
		p.duty.Close()
	}
	pwmClass.release(p.unit)
}
