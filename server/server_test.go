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

package server

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aamcrae/antdrv/motor"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleReport() Report {
	return Report{
		Status: motor.Status{
			Position:  92,
			Target:    87,
			Moving:    true,
			Running:   true,
			Direction: motor.Lowering,
			Duty:      25,
			Frequency: 4000,
			Message:   motor.MsgSlowing,
		},
		Antenna: "Antenna1",
		Preset:  "40m-7.300",
		Presets: []Marker{{"40m-7.000", 92}, {"40m-7.300", 87}},
	}
}

func TestStatus(t *testing.T) {
	Convey("Given a status server", t, func() {
		s := NewServer()
		ts := httptest.NewServer(s.Handler())
		defer ts.Close()

		Convey("the JSON status is the latest report", func() {
			s.Update(sampleReport())
			resp, err := http.Get(ts.URL + "/status")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldEqual, "application/json")
			var got Report
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(cmp.Diff(sampleReport(), got), ShouldBeEmpty)
		})

		Convey("the direction is reported by name", func() {
			s.Update(sampleReport())
			resp, err := http.Get(ts.URL + "/status")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var raw map[string]interface{}
			So(json.NewDecoder(resp.Body).Decode(&raw), ShouldBeNil)
			So(raw["direction"], ShouldEqual, "lowering")
			So(raw["position"], ShouldEqual, float64(92))
		})

		Convey("motion commands are not accepted", func() {
			resp, err := http.Post(ts.URL+"/status", "application/json", strings.NewReader(`{"target":1}`))
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("the gauge is a PNG image", func() {
			s.Update(sampleReport())
			resp, err := http.Get(ts.URL + "/gauge.png")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.Header.Get("Content-Type"), ShouldEqual, "image/png")
			img, err := png.Decode(resp.Body)
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, gaugeWidth)
			So(img.Bounds().Dy(), ShouldEqual, gaugeHeight)
		})

		Convey("the websocket streams every update", func() {
			s.Update(sampleReport())
			url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))

			var got Report
			So(conn.ReadJSON(&got), ShouldBeNil)
			So(got.Position, ShouldEqual, 92)

			s.UpdatePosition(90)
			So(conn.ReadJSON(&got), ShouldBeNil)
			So(got.Position, ShouldEqual, 90)
			So(got.Message, ShouldEqual, motor.MsgSlowing)

			r := sampleReport()
			r.Position, r.Moving, r.Running, r.Message = 87, false, false, motor.MsgArrived
			s.Update(r)
			So(conn.ReadJSON(&got), ShouldBeNil)
			So(got.Message, ShouldEqual, motor.MsgArrived)
		})
	})
}

func TestPositionUpdate(t *testing.T) {
	Convey("An unchanged position is not republished", t, func() {
		s := NewServer()
		s.Update(sampleReport())
		seq := s.seq
		s.UpdatePosition(92)
		So(s.seq, ShouldEqual, seq)
		s.UpdatePosition(93)
		So(s.seq, ShouldEqual, seq+1)
		So(s.Report().Position, ShouldEqual, 93)
	})
}

func TestGauge(t *testing.T) {
	Convey("A gauge can be drawn with no presets", t, func() {
		c := drawGauge(Report{Status: motor.Status{Position: 5, Stalled: true, Message: motor.MsgStalled}})
		So(c.Width(), ShouldEqual, gaugeWidth)
		So(c.Height(), ShouldEqual, gaugeHeight)
	})
}
