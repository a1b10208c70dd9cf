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

// Antenna driver program

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/aamcrae/antdrv/board"
	"github.com/aamcrae/antdrv/config"
	"github.com/aamcrae/antdrv/motor"
	"github.com/aamcrae/antdrv/sched"
	"github.com/aamcrae/antdrv/server"
	"github.com/caarlos0/env/v6"
	"golang.org/x/sync/errgroup"
)

// Options may be set from the environment, and are overridden by flags.
type Options struct {
	Config  string  `env:"ANTDRV_CONFIG" envDefault:"antdrv.conf"`
	State   string  `env:"ANTDRV_STATE" envDefault:"antdrv.db"`
	Http    string  `env:"ANTDRV_HTTP"`
	Sim     bool    `env:"ANTDRV_SIM" envDefault:"false"`
	SimRate float64 `env:"ANTDRV_SIM_RATE" envDefault:"20"`
	Antenna string
	Init    bool
}

const pollInterval = 200 * time.Millisecond

func main() {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		log.Fatalf("environment: %v", err)
	}
	flag.StringVar(&opts.Config, "config", opts.Config, "Configuration file")
	flag.StringVar(&opts.State, "state", opts.State, "Session state database")
	flag.StringVar(&opts.Http, "http", opts.Http, "Status server address e.g :8080 (disabled if empty)")
	flag.BoolVar(&opts.Sim, "sim", opts.Sim, "Drive a simulated motor")
	flag.Float64Var(&opts.SimRate, "simrate", opts.SimRate, "Simulated encoder edges per second at full speed")
	flag.StringVar(&opts.Antenna, "antenna", "", "Antenna config section (default is the last used)")
	flag.BoolVar(&opts.Init, "init", false, "Write a default configuration file and exit")
	flag.Parse()

	if opts.Init {
		if err := config.WriteDefault(opts.Config); err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("Created %s", opts.Config)
		return
	}
	conf, err := config.Load(opts.Config)
	if err != nil {
		log.Fatalf("%v (use -init to create a default configuration)", err)
	}
	st, err := config.OpenState(opts.State)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer st.Close()
	session := st.Session(config.Session{Antenna: conf.DefaultAntenna()})
	if len(opts.Antenna) != 0 {
		session.Antenna = opts.Antenna
	}
	ant, err := conf.Antenna(session.Antenna)
	if err != nil {
		log.Fatalf("%s: %v", opts.Config, err)
	}
	log.Printf("%s: starting at position %d", ant.Name, session.Position)

	enc := motor.NewEncoder(session.Position)
	var brd *board.Board
	if opts.Sim {
		brd = board.NewSim(opts.SimRate, enc)
	} else {
		pins, err := conf.Pins()
		if err != nil {
			log.Fatalf("%s: %v", opts.Config, err)
		}
		brd, err = board.New(pins, ant, enc)
		if err != nil {
			log.Fatalf("%s: %v", opts.Config, err)
		}
	}
	defer brd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	loop := sched.NewLoop()
	g.Go(func() error {
		err := loop.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return brd.Run(ctx)
	})

	ctrl, err := motor.NewController(ant.Name, enc, brd.Driver, loop, ant.MotorConfig())
	if err != nil {
		log.Fatalf("%s: %v", ant.Section, err)
	}
	a := &App{
		conf:   conf,
		state:  st,
		sched:  loop,
		board:  brd,
		ctrl:   ctrl,
		ant:    ant,
		preset: session.Preset,
	}
	if len(opts.Http) != 0 {
		a.srv = server.NewServer()
		a.publish(ctrl.Status())
		g.Go(func() error {
			return a.srv.Run(ctx, opts.Http)
		})
		g.Go(func() error {
			return a.pollPosition(ctx)
		})
	}
	ctrl.OnStatus(a.publish)

	a.Console(ctx)

	ctrl.Close()
	if err := a.Save(); err != nil {
		log.Printf("session: %v", err)
	}
	cancel()
	if err := g.Wait(); err != nil {
		log.Printf("%v", err)
	}
}

// pollPosition publishes the live encoder position.
func (a *App) pollPosition(ctx context.Context) error {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.srv.UpdatePosition(a.ctrl.Position())
		}
	}
}
