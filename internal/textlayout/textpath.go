/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Text-on-path placement that remains rendering-agnostic. Renderers that
// cannot rely on SVG textPath (PNG, PDF) draw each glyph at its pose.

import (
	"math"

	"golang.org/x/image/font"

	"tattoofonts/internal/vector"
)

// GlyphPose is the placement of one glyph along a path. Pos is the glyph's
// horizontal centre on the baseline; Angle is the tangent in radians.
type GlyphPose struct {
	Rune    rune
	Pos     vector.Pt
	Angle   float64
	Advance float64
}

// BaselinePath returns the path glyphs are placed on, in viewBox space
// with any rotation applied. Straight layouts and flat arcs get a
// horizontal line across the whole viewBox.
func (r LayoutResult) BaselinePath(ascent float64) vector.Path {
	if r.Curved && !r.Path.Empty() {
		return r.Path.Transform(r.RotationTransform())
	}
	y := r.BaselineY
	if r.Mode != Arc {
		// Vertically centre the cap height.
		y = r.ViewBoxHeight/2 + ascent*0.35
	}
	var p vector.Path
	p.MoveTo(0, y)
	p.LineTo(r.ViewBoxWidth, y)
	return p
}

// PlaceGlyphs measures res.Text with provider and centres it at the
// anchor offset of the layout's path. On open paths glyphs running off
// either end are dropped; on the circle positions wrap around.
func PlaceGlyphs(provider Provider, spec FontSpec, res LayoutResult, letterSpacing float64) []GlyphPose {
	if provider == nil {
		provider = BasicProvider{}
	}
	if spec.SizePx <= 0 {
		spec.SizePx = res.FontSizePx
	}
	face, met := provider.Resolve(spec)
	path := res.BaselinePath(met.Ascent)
	poly := vector.Flatten(&path, 24)
	if len(poly) < 2 || res.Text == "" {
		return nil
	}
	segs, total := buildSegments(poly)
	if total <= 0 {
		return nil
	}
	closed := res.Mode == Circle && res.Curved

	d := &font.Drawer{Face: face}
	runes := []rune(res.Text)
	advs := make([]float64, len(runes))
	var sum float64
	prev := rune(-1)
	for i, r := range runes {
		adv := measureRuneAdvance(d, prev, r)
		if i > 0 && vector.Finite(letterSpacing) {
			adv += letterSpacing
		}
		advs[i] = adv
		sum += adv
		prev = r
	}

	s := total*res.TextAnchorOffsetPercent/100 - sum/2
	poses := make([]GlyphPose, 0, len(runes))
	for i, r := range runes {
		centre := s + advs[i]/2
		s += advs[i]
		if closed {
			centre = math.Mod(centre, total)
			if centre < 0 {
				centre += total
			}
		}
		pos, angle, ok := pointAt(segs, centre)
		if !ok {
			continue
		}
		poses = append(poses, GlyphPose{Rune: r, Pos: pos, Angle: angle, Advance: advs[i]})
	}
	return poses
}

// measureRuneAdvance measures one rune's advance and applies kerning against prev if supported by the face.
func measureRuneAdvance(d *font.Drawer, prev, cur rune) float64 {
	adv, ok := d.Face.GlyphAdvance(cur)
	if !ok {
		adv = d.MeasureString(string(cur))
	}
	if prev >= 0 {
		adv += d.Face.Kern(prev, cur)
	}
	return fixedToFloat(adv)
}

// segment represents a straight line with cached length and angle.
type segment struct {
	A, B       vector.Pt
	Len, Angle float64
}

func buildSegments(pts []vector.Pt) ([]segment, float64) {
	segs := make([]segment, 0, len(pts)-1)
	var total float64
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		dx := b.X - a.X
		dy := b.Y - a.Y
		segLen := math.Hypot(dx, dy)
		if segLen <= 0 {
			continue
		}
		segs = append(segs, segment{A: a, B: b, Len: segLen, Angle: math.Atan2(dy, dx)})
		total += segLen
	}
	return segs, total
}

// pointAt returns the position and tangent angle at distance s along the polyline.
func pointAt(segs []segment, s float64) (vector.Pt, float64, bool) {
	if s < 0 {
		return vector.Pt{}, 0, false
	}
	var acc float64
	for _, sg := range segs {
		if s <= acc+sg.Len {
			t := (s - acc) / sg.Len
			return vector.Pt{X: sg.A.X + (sg.B.X-sg.A.X)*t, Y: sg.A.Y + (sg.B.Y-sg.A.Y)*t}, sg.Angle, true
		}
		acc += sg.Len
	}
	return vector.Pt{}, 0, false
}
