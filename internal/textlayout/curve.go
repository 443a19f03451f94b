/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Curved text layout: turns text, a font size and a layout mode into an
// SVG-compatible viewBox, a path to run the text along and the anchor
// offset on that path. Everything here is pure and deterministic; the
// viewBox is always large enough that neither the glyphs nor the curve
// is clipped.

import (
	"fmt"
	"strings"

	"tattoofonts/internal/vector"
)

// Mode selects how text is laid out.
type Mode int

const (
	Straight Mode = iota
	Arc
	Circle
)

func (m Mode) String() string {
	switch m {
	case Arc:
		return "arc"
	case Circle:
		return "circle"
	default:
		return "straight"
	}
}

// ParseMode accepts "straight" (also "none" and ""), "arc" and "circle".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "straight", "none":
		return Straight, nil
	case "arc":
		return Arc, nil
	case "circle":
		return Circle, nil
	}
	return Straight, fmt.Errorf("unknown layout mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Winding is the traversal direction of the circle path. Clockwise puts
// the baseline on the outside of the circle with letters pointing outward;
// CounterClockwise makes letters point toward the centre.
type Winding int

const (
	Clockwise Winding = iota
	CounterClockwise
)

// Invert toggles the winding. Inverting twice yields the original value.
func (w Winding) Invert() Winding {
	if w == CounterClockwise {
		return Clockwise
	}
	return CounterClockwise
}

// Inward reports whether letters point toward the circle centre.
func (w Winding) Inward() bool { return w == CounterClockwise }

func (w Winding) String() string {
	if w == CounterClockwise {
		return "counterclockwise"
	}
	return "clockwise"
}

func (w Winding) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Winding) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "clockwise", "cw", "outward":
		*w = Clockwise
	case "counterclockwise", "ccw", "inward":
		*w = CounterClockwise
	default:
		return fmt.Errorf("unknown winding %q", string(b))
	}
	return nil
}

// LayoutRequest describes one layout. Only the fields relevant to Mode are
// read; the others are ignored rather than validated.
type LayoutRequest struct {
	Text            string  `json:"text"`
	FontSizePx      float64 `json:"fontSizePx"`
	LetterSpacingPx float64 `json:"letterSpacingPx"`
	Mode            Mode    `json:"mode"`
	// CurveStrength bends an arc; positive bows upward. Clamped to [-100, 100].
	CurveStrength float64 `json:"curveStrength"`
	// CircleRadiusPx is the circle radius before clamping.
	CircleRadiusPx float64 `json:"circleRadiusPx"`
	// RotationDeg rotates the circle about its centre; 0 starts at 12 o'clock.
	RotationDeg float64 `json:"rotationDeg"`
	Winding     Winding `json:"winding"`
}

// LayoutResult is the geometry for rendering text inside an SVG viewBox.
type LayoutResult struct {
	Mode           Mode    `json:"mode"`
	Text           string  `json:"text"`
	FontSizePx     float64 `json:"fontSizePx"`
	TextWidth      float64 `json:"textWidth"`
	ViewBoxWidth   float64 `json:"viewBoxWidth"`
	ViewBoxHeight  float64 `json:"viewBoxHeight"`
	PathDefinition string  `json:"pathDefinition"`
	// TextAnchorOffsetPercent is the startOffset of the text on the path;
	// the text is centred there (text-anchor: middle).
	TextAnchorOffsetPercent float64 `json:"textAnchorOffsetPercent"`
	// Curved is false whenever the text should be drawn on a straight
	// baseline, including an arc with zero curve strength.
	Curved bool `json:"curved"`

	BaselineY     float64   `json:"baselineY,omitempty"`
	CurveStrength float64   `json:"curveStrength,omitempty"`
	Control       vector.Pt `json:"-"`

	Center      vector.Pt `json:"-"`
	RadiusPx    float64   `json:"radiusPx,omitempty"`
	RotationDeg float64   `json:"rotationDeg,omitempty"`
	Winding     Winding   `json:"winding"`
	// Transform is the SVG transform for the group holding the path.
	Transform string `json:"transform,omitempty"`

	// ContainerHeight is the minimum display height for straight text.
	ContainerHeight float64 `json:"containerHeight,omitempty"`

	Path vector.Path `json:"-"`
}

// ViewBox returns the value for the SVG viewBox attribute.
func (r LayoutResult) ViewBox() string {
	return "0 0 " + vector.FormatNum(r.ViewBoxWidth) + " " + vector.FormatNum(r.ViewBoxHeight)
}

// DefaultAnchorPercent centres the text on its path.
const DefaultAnchorPercent = 50

// ComputeLayout never fails: out-of-range inputs are clamped or defaulted
// and every returned size is finite and positive.
func ComputeLayout(req LayoutRequest) LayoutResult {
	return layoutWithWidth(req, 0)
}

// FitLayout is ComputeLayout for a known face: when the measured advance
// of the text exceeds the estimate, open layouts are widened so glyph
// placement keeps every letter on the path. Circles are unaffected.
func FitLayout(req LayoutRequest, provider Provider, spec FontSpec) LayoutResult {
	res := ComputeLayout(req)
	if res.Mode == Circle {
		return res
	}
	spec.SizePx = res.FontSizePx
	w, _ := Measure(provider, spec, res.Text, req.LetterSpacingPx)
	if !vector.Finite(w) || w <= res.TextWidth {
		return res
	}
	return layoutWithWidth(req, w)
}

func layoutWithWidth(req LayoutRequest, measured float64) LayoutResult {
	text := EffectiveText(req.Text)
	fs := SanitizeFontSize(req.FontSizePx)
	tw := max(EstimateTextWidth(text, fs, req.LetterSpacingPx), measured)
	base := LayoutResult{
		Mode:                    req.Mode,
		Text:                    text,
		FontSizePx:              fs,
		TextWidth:               vector.FloatRound(tw, 3),
		TextAnchorOffsetPercent: DefaultAnchorPercent,
	}
	switch req.Mode {
	case Arc:
		return layoutArc(base, tw, req.CurveStrength)
	case Circle:
		return layoutCircle(base, req.CircleRadiusPx, req.RotationDeg, req.Winding)
	default:
		base.Mode = Straight
		return layoutStraight(base, tw)
	}
}

// MinStraightHeight is the smallest container used for straight text.
const MinStraightHeight = 160

func layoutStraight(r LayoutResult, textWidth float64) LayoutResult {
	h := max(MinStraightHeight, 2*r.FontSizePx)
	r.ViewBoxWidth = vector.FloatRound(textWidth+4*r.FontSizePx, 3)
	r.ViewBoxHeight = vector.FloatRound(h, 3)
	r.ContainerHeight = r.ViewBoxHeight
	return r
}
