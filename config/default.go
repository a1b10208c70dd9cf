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

	"github.com/pkg/errors"
)

// Initial configuration: the pins used by the standard wiring and
// two sample antennas.
const defaultConfig = `# Antenna driver configuration
[settings]
antenna=ant1

[pins]
gpio=cdev
chip=gpiochip0
dir1=23
dir2=24
encoder=25
pwm=18
pwm_mode=sw
debounce=40ms

[ant1]
name=Antenna1
reverse=no
frequency=4000
duty=50
range=3500,29700
presets=80m-3.500:226,80m-4.000:192,60m-5.300:130,60m-5.400:127,40m-7.000:92,40m-7.300:87,30m-10.000:56,30m-10.200:54,20m-14.000:39,20m-14.400:37

[ant2]
name=Antenna2
reverse=yes
frequency=2000
duty=50
range=3500,29700
presets=3.500:226,4.000:192,7.000:92,7.300:87,14.000:39,14.400:37
`

// WriteDefault creates a configuration file with default settings.
// An existing file is never overwritten.
func WriteDefault(name string) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrap(err, "default config")
	}
	if _, err := f.WriteString(defaultConfig); err != nil {
		f.Close()
		return errors.Wrap(err, name)
	}
	return f.Close()
}
