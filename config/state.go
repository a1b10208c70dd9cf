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

// Persisted session state.

package config

import (
	"log"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const sessionBucket = "session"

// Session keys.
const (
	KeyPosition = "last_position"
	KeyAntenna  = "last_antenna"
	KeyPreset   = "last_preset"
)

// Session is the state carried from one run to the next.
type Session struct {
	Position int
	Antenna  string // Antenna config section
	Preset   string // Last preset selected, if any
}

// State is a small key/value store kept between runs.
type State struct {
	db *storm.DB
}

// OpenState opens (creating if necessary) the state database.
// Only one process may have the database open.
func OpenState(path string) (*State, error) {
	db, err := storm.Open(path, storm.BoltOptions(0600, &bolt.Options{Timeout: time.Second}))
	if err != nil {
		return nil, errors.Wrapf(err, "state %s", path)
	}
	return &State{db: db}, nil
}

// GetInt returns the value of key, or def if it has not been set.
func (s *State) GetInt(key string, def int) int {
	var v int
	if !s.get(key, &v) {
		return def
	}
	return v
}

// GetString returns the value of key, or def if it has not been set.
func (s *State) GetString(key, def string) string {
	var v string
	if !s.get(key, &v) {
		return def
	}
	return v
}

// SetInt stores an integer value.
func (s *State) SetInt(key string, v int) error {
	return errors.Wrapf(s.db.Set(sessionBucket, key, v), "state: %s", key)
}

// SetString stores a string value.
func (s *State) SetString(key, v string) error {
	return errors.Wrapf(s.db.Set(sessionBucket, key, v), "state: %s", key)
}

// Session returns the saved session. Values that were never
// saved are taken from def.
func (s *State) Session(def Session) Session {
	return Session{
		Position: s.GetInt(KeyPosition, def.Position),
		Antenna:  s.GetString(KeyAntenna, def.Antenna),
		Preset:   s.GetString(KeyPreset, def.Preset),
	}
}

// SaveSession stores the session.
func (s *State) SaveSession(ss Session) error {
	if err := s.SetInt(KeyPosition, ss.Position); err != nil {
		return err
	}
	if err := s.SetString(KeyAntenna, ss.Antenna); err != nil {
		return err
	}
	return s.SetString(KeyPreset, ss.Preset)
}

// Close the state database.
func (s *State) Close() error {
	return s.db.Close()
}

func (s *State) get(key string, v interface{}) bool {
	err := s.db.Get(sessionBucket, key, v)
	if err == nil {
		return true
	}
	if err != storm.ErrNotFound {
		log.Printf("state: %s: %v", key, err)
	}
	return false
}
