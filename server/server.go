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

// Read-only HTTP status server.
// Motion commands are only accepted from the console.

package server

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/aamcrae/antdrv/motor"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Marker is a named position shown on the gauge.
type Marker struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Report is the status published by the server.
type Report struct {
	motor.Status
	Antenna string   `json:"antenna"`
	Preset  string   `json:"preset,omitempty"`
	Presets []Marker `json:"presets,omitempty"`
}

// Server publishes the latest Report as JSON, as a stream of JSON
// messages over a websocket, and as a rendered gauge.
type Server struct {
	statusMu   sync.RWMutex
	statusCond *sync.Cond
	report     Report
	seq        int // Incremented on every update
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer creates a status server.
func NewServer() *Server {
	s := &Server{}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

// Update publishes a new report. It does not block on clients, so
// it may be called from the motor status callback.
func (s *Server) Update(r Report) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.report = r
	s.seq++
	s.statusCond.Broadcast()
}

// UpdatePosition publishes a new position if it has changed.
func (s *Server) UpdatePosition(pos int) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if s.report.Position == pos {
		return
	}
	s.report.Position = pos
	s.seq++
	s.statusCond.Broadcast()
}

// Report returns the current report.
func (s *Server) Report() Report {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.report
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.statusSocketHandler)
	r.HandleFunc("/gauge.png", s.gaugeHandler).Methods(http.MethodGet)
	return r
}

// Run serves HTTP on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	log.Printf("Starting status server on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(s.Report())
	if err != nil {
		log.Print(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) statusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	// Incoming messages are discarded. A read error means the client has gone.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()
	// Wake the writer once the client or server goes away.
	go func() {
		<-ctx.Done()
		s.statusMu.Lock()
		s.statusCond.Broadcast()
		s.statusMu.Unlock()
	}()

	seq := -1
	for {
		s.statusMu.RLock()
		for s.seq == seq && ctx.Err() == nil {
			s.statusCond.Wait()
		}
		report := s.report
		seq = s.seq
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
		if err := conn.WriteJSON(report); err != nil {
			log.Print(err)
			return
		}
	}
}
