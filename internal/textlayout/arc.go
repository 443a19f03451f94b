/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"math"

	"tattoofonts/internal/vector"
)

const (
	// MaxCurveStrength bounds the curve slider in both directions.
	MaxCurveStrength = 100
	// ArcAmplification maps curve strength to the apex deflection in units.
	ArcAmplification = 1.25
)

// ClampCurve limits strength to [-MaxCurveStrength, MaxCurveStrength]; NaN becomes 0.
func ClampCurve(strength float64) float64 {
	if math.IsNaN(strength) {
		return 0
	}
	return math.Max(-MaxCurveStrength, math.Min(MaxCurveStrength, strength))
}

// layoutArc bends the baseline into one quadratic Bézier. The apex of a
// quadratic sits halfway between the chord and the control point, so the
// control point is placed at twice the wanted deflection.
func layoutArc(r LayoutResult, textWidth, strength float64) LayoutResult {
	fs := r.FontSizePx
	c := ClampCurve(strength)
	deflect := c * ArcAmplification

	w := textWidth + 4*fs
	h := math.Abs(deflect) + 5*fs
	baseline := h/2 + deflect/2

	x0, x1 := 2*fs, w-2*fs
	ctrl := vector.Pt{X: w / 2, Y: baseline - 2*deflect}

	var p vector.Path
	p.MoveTo(x0, baseline)
	p.QuadTo(ctrl.X, ctrl.Y, x1, baseline)

	r.Mode = Arc
	r.CurveStrength = c
	r.Curved = c != 0
	r.ViewBoxWidth = vector.FloatRound(w, 3)
	r.ViewBoxHeight = vector.FloatRound(h, 3)
	r.BaselineY = vector.FloatRound(baseline, 3)
	r.Control = ctrl
	r.Path = p
	r.PathDefinition = p.SVG()
	return r
}
