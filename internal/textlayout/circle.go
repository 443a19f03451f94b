/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"math"

	"tattoofonts/internal/vector"
)

const (
	DefaultCircleRadiusPx = 220
	MinCircleRadiusPx     = 60
	MaxCircleRadiusPx     = 4000
)

// ClampRadius defaults unusable radii and keeps the circle at least twice
// the font size so glyphs do not collide at the centre.
func ClampRadius(r, fontSizePx float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		r = DefaultCircleRadiusPx
	}
	lo := max(MinCircleRadiusPx, 2*fontSizePx)
	return math.Min(MaxCircleRadiusPx, math.Max(lo, r))
}

// NormalizeRotation maps deg into [0, 360). Non-finite input becomes 0.
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 || d == 0 {
		return 0
	}
	return d
}

// layoutCircle draws the circle as two semicircular arcs starting at
// 12 o'clock. Rotation is not baked into the path; it is returned as a
// rigid transform about the centre.
func layoutCircle(r LayoutResult, radius, rotation float64, winding Winding) LayoutResult {
	fs := r.FontSizePx
	rad := ClampRadius(radius, fs)
	side := 2*rad + 4*fs
	c := vector.Pt{X: side / 2, Y: side / 2}
	if winding != CounterClockwise {
		winding = Clockwise
	}
	sweep := winding == Clockwise

	var p vector.Path
	p.MoveTo(c.X, c.Y-rad)
	p.ArcTo(rad, rad, 0, true, sweep, c.X, c.Y+rad)
	p.ArcTo(rad, rad, 0, true, sweep, c.X, c.Y-rad)

	rot := NormalizeRotation(rotation)
	r.Mode = Circle
	r.Curved = true
	r.ViewBoxWidth = vector.FloatRound(side, 3)
	r.ViewBoxHeight = r.ViewBoxWidth
	r.Center = c
	r.RadiusPx = rad
	r.RotationDeg = rot
	r.Winding = winding
	r.Transform = fmt.Sprintf("rotate(%s %s %s)", vector.FormatNum(rot), vector.FormatNum(c.X), vector.FormatNum(c.Y))
	r.Path = p
	r.PathDefinition = p.SVG()
	return r
}

// RotationTransform returns the affine form of Transform; identity for
// non-circle layouts.
func (r LayoutResult) RotationTransform() vector.Affine2D {
	if r.Mode != Circle || r.RotationDeg == 0 {
		return vector.Identity
	}
	return vector.RotateAbout(r.RotationDeg, r.Center.X, r.Center.Y)
}
