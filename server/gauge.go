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
	"fmt"
	"log"
	"net/http"

	"github.com/fogleman/gg"
)

const (
	gaugeWidth   = 640
	gaugeHeight  = 120
	gaugeMargin  = 40
	gaugeMinSpan = 10
)

func (s *Server) gaugeHandler(w http.ResponseWriter, r *http.Request) {
	c := drawGauge(s.Report())
	w.Header().Set("Content-Type", "image/png")
	if err := c.EncodePNG(w); err != nil {
		log.Printf("Error writing image: %v", err)
	}
}

// drawGauge renders a linear scale covering the presets, the target
// and the current position.
func drawGauge(r Report) *gg.Context {
	lo, hi := r.Position, r.Position
	extend := func(v int) {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	for _, p := range r.Presets {
		extend(p.Value)
	}
	if r.Moving {
		extend(r.Target)
	}
	if hi-lo < gaugeMinSpan {
		mid := (hi + lo) / 2
		lo, hi = mid-gaugeMinSpan/2, mid+gaugeMinSpan/2
	}
	x := func(v int) float64 {
		return gaugeMargin + float64(v-lo)*(gaugeWidth-2*gaugeMargin)/float64(hi-lo)
	}
	const y = gaugeHeight / 2

	c := gg.NewContext(gaugeWidth, gaugeHeight)
	c.SetRGB(1, 1, 1)
	c.Clear()
	c.SetRGB(0, 0, 0)
	c.SetLineWidth(2)
	c.DrawLine(gaugeMargin, y, gaugeWidth-gaugeMargin, y)
	c.Stroke()
	c.DrawStringAnchored(fmt.Sprintf("%s: %d - %s", r.Antenna, r.Position, r.Message), gaugeWidth/2, 14, 0.5, 0.5)

	// Presets, labels alternating above and below the scale.
	c.SetRGB(0, 0, 1)
	c.SetLineWidth(1)
	for i, p := range r.Presets {
		px := x(p.Value)
		c.DrawLine(px, y-8, px, y+8)
		c.Stroke()
		ly := float64(y + 22)
		if i%2 == 1 {
			ly = y + 36
		}
		c.DrawStringAnchored(p.Name, px, ly, 0.5, 0.5)
	}
	if r.Moving {
		c.SetRGB(0, 0.6, 0)
		c.SetLineWidth(2)
		c.DrawCircle(x(r.Target), y, 6)
		c.Stroke()
	}
	// Position pointer.
	if r.Stalled {
		c.SetRGB(1, 0, 0)
	} else {
		c.SetRGB(1, 0, 1)
	}
	px := x(r.Position)
	c.MoveTo(px, y-3)
	c.LineTo(px-8, y-20)
	c.LineTo(px+8, y-20)
	c.ClosePath()
	c.Fill()
	return c
}
