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

// Console for controlling the antenna.

package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aamcrae/antdrv/board"
	"github.com/aamcrae/antdrv/config"
	"github.com/aamcrae/antdrv/motor"
	"github.com/aamcrae/antdrv/sched"
	"github.com/aamcrae/antdrv/server"
	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"
)

// App holds the antenna selection and the presentation state
// shared by the console and the status server.
type App struct {
	conf  *config.File
	state *config.State
	sched sched.Scheduler
	board *board.Board
	ctrl  *motor.Controller
	srv   *server.Server

	mu     sync.Mutex
	ant    *config.Antenna
	preset string // Selected preset
}

// Console runs the interactive shell until the user exits or the
// context is cancelled. Ctrl-C stops the motor.
func (a *App) Console(ctx context.Context) {
	shell := ishell.New()
	shell.Println("Antenna driver shell ('help' for commands)")
	shell.ShowPrompt(true)
	shell.Interrupt(func(c *ishell.Context, count int, input string) {
		a.ctrl.StopManual()
		c.Println("Stopped")
	})
	for _, cmd := range a.commands() {
		shell.AddCmd(cmd)
	}
	go func() {
		<-ctx.Done()
		shell.Close()
	}()
	shell.Run()
}

func (a *App) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "raise",
			Help: "run the motor up until stopped",
			Func: func(c *ishell.Context) {
				a.ctrl.RaisePressed()
				c.Println(a.ctrl.Status().Message)
			},
		},
		{
			Name: "lower",
			Help: "run the motor down until stopped",
			Func: func(c *ishell.Context) {
				a.ctrl.LowerPressed()
				c.Println(a.ctrl.Status().Message)
			},
		},
		{
			Name: "stop",
			Help: "stop the motor",
			Func: func(c *ishell.Context) {
				a.ctrl.ReleaseHeldButton()
				c.Printf("Stopped at %d\n", a.ctrl.Position())
			},
		},
		{
			Name:      "move",
			Help:      "move <preset> - move to a preset",
			Completer: a.presetNames,
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Println("Usage: move <preset>")
					return
				}
				v, err := a.selectPreset(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				if err := a.ctrl.MoveToPresetPressed(v); err != nil {
					c.Err(err)
					return
				}
				c.Printf("Moving from %d to %s (%d)\n", a.ctrl.Position(), c.Args[0], v)
			},
		},
		{
			Name: "goto",
			Help: "goto <count> - move to an encoder count",
			Func: func(c *ishell.Context) {
				v, err := intArg(c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				if err := a.ctrl.MoveToTarget(v); err != nil {
					c.Err(err)
					return
				}
				c.Printf("Moving from %d to %d\n", a.ctrl.Position(), v)
			},
		},
		{
			Name:      "sync",
			Help:      "sync [preset] - set the position to the value of the preset",
			Completer: a.presetNames,
			Func: func(c *ishell.Context) {
				name := a.selected()
				if len(c.Args) > 0 {
					name = c.Args[0]
				}
				v, err := a.selectPreset(name)
				if err != nil {
					c.Err(err)
					return
				}
				a.ctrl.SyncToPreset(v)
				c.Printf("Position set to %d (%s)\n", v, name)
			},
		},
		{
			Name: "presets",
			Help: "list the presets for the antenna",
			Func: func(c *ishell.Context) {
				a.mu.Lock()
				ant, sel := a.ant, a.preset
				a.mu.Unlock()
				for _, p := range ant.Presets {
					mark := " "
					if p.Name == sel {
						mark = "*"
					}
					c.Printf("%s %-16s %5d\n", mark, p.Name, p.Value)
				}
			},
		},
		{
			Name:      "preset",
			Help:      "preset <name> - select a preset without moving",
			Completer: a.presetNames,
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Printf("Selected preset: %s\n", a.selected())
					return
				}
				if _, err := a.selectPreset(c.Args[0]); err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "antenna",
			Help: "antenna <section> - switch to another antenna configuration",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					a.mu.Lock()
					c.Printf("Antenna: %s [%s]\n", a.ant.Name, a.ant.Section)
					a.mu.Unlock()
					return
				}
				if err := a.SelectAntenna(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
				c.Printf("Selected %s\n", c.Args[0])
			},
		},
		{
			Name: "duty",
			Help: "duty <percent> - set the manual duty cycle",
			Func: func(c *ishell.Context) {
				v, err := intArg(c.Args)
				if err == nil {
					err = a.ctrl.SetDuty(v)
				}
				if err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "freq",
			Help: "freq <hz> - set the PWM frequency",
			Func: func(c *ishell.Context) {
				v, err := intArg(c.Args)
				if err == nil {
					err = a.ctrl.SetFrequency(v)
				}
				if err != nil {
					c.Err(err)
				}
			},
		},
		{
			Name: "reset",
			Help: "clear a stall",
			Func: func(c *ishell.Context) {
				a.ctrl.ClearStall()
				c.Println(a.ctrl.Status().Message)
			},
		},
		{
			Name: "status",
			Help: "show the motor status",
			Func: func(c *ishell.Context) {
				c.Println(formatStatus(a.ctrl.Status()))
			},
		},
		{
			Name: "save",
			Help: "save the session",
			Func: func(c *ishell.Context) {
				if err := a.Save(); err != nil {
					c.Err(err)
				}
			},
		},
	}
}

// SelectAntenna switches to the antenna config in section.
// The motor must be stopped.
func (a *App) SelectAntenna(section string) error {
	ant, err := a.conf.Antenna(section)
	if err != nil {
		return err
	}
	if err := a.ctrl.Reconfigure(ant.MotorConfig()); err != nil {
		return err
	}
	a.sched.Do(func() {
		a.board.SetReverse(ant.Reverse)
	})
	a.mu.Lock()
	a.ant = ant
	a.preset = ""
	a.mu.Unlock()
	a.publish(a.ctrl.Status())
	return nil
}

// Save stores the session state.
func (a *App) Save() error {
	a.mu.Lock()
	ss := config.Session{Position: a.ctrl.Position(), Antenna: a.ant.Section, Preset: a.preset}
	a.mu.Unlock()
	return a.state.SaveSession(ss)
}

// publish sends the status to the status server.
func (a *App) publish(st motor.Status) {
	if a.srv == nil {
		return
	}
	a.mu.Lock()
	r := server.Report{Status: st, Antenna: a.ant.Name, Preset: a.preset}
	for _, p := range a.ant.Presets {
		r.Presets = append(r.Presets, server.Marker{Name: p.Name, Value: p.Value})
	}
	a.mu.Unlock()
	a.srv.Update(r)
}

func (a *App) selectPreset(name string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.ant.Preset(name)
	if !ok {
		return 0, errors.Errorf("%s: unknown preset for %s", name, a.ant.Name)
	}
	a.preset = name
	return v, nil
}

func (a *App) selected() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preset
}

func (a *App) presetNames(args []string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := a.ant.PresetNames()
	sort.Strings(names)
	return names
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one numeric argument")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.Wrap(err, args[0])
	}
	return v, nil
}

func formatStatus(st motor.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Position %d", st.Position)
	if st.Moving {
		fmt.Fprintf(&b, ", target %d", st.Target)
	}
	if st.Running {
		fmt.Fprintf(&b, ", %s at %d%%", st.Direction, st.Duty)
	}
	fmt.Fprintf(&b, ", %dHz: %s", st.Frequency, st.Message)
	return b.String()
}
