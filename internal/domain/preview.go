/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"math"
	"strings"

	"tattoofonts/internal/textlayout"
)

// CurveMode is the preview card's layout switch.
type CurveMode string

const (
	CurveNone   CurveMode = "none"
	CurveArc    CurveMode = "arc"
	CurveCircle CurveMode = "circle"
)

// Slider ranges of the preview card.
const (
	MinLetterSpacing = -2
	MaxLetterSpacing = 10
	MinCircleRadius  = 60
	MaxCircleRadius  = 600
	MinFontSizePx    = 12
	MaxFontSizePx    = 240
)

// PreviewSettings is the local view state of one preview card.
type PreviewSettings struct {
	Text          string    `json:"text"`
	FontSizePx    float64   `json:"fontSizePx"`
	LetterSpacing float64   `json:"letterSpacing"`
	Color         string    `json:"color"`
	Bold          bool      `json:"bold"`
	Italic        bool      `json:"italic"`
	CurveMode     CurveMode `json:"curveMode"`
	Curve         float64   `json:"curve"`
	CircleRadius  float64   `json:"circleRadius"`
	CircleStart   float64   `json:"circleStart"` // rotation in degrees
	Inward        bool      `json:"inward"`
}

// DefaultPreviewSettings mirrors a freshly opened card.
func DefaultPreviewSettings() PreviewSettings {
	return PreviewSettings{
		FontSizePx:   textlayout.DefaultFontSizePx,
		Color:        "#111111",
		CurveMode:    CurveNone,
		CircleRadius: textlayout.DefaultCircleRadiusPx,
	}
}

// Normalize clamps every value into its slider range.
func (s PreviewSettings) Normalize() PreviewSettings {
	s.FontSizePx = clamp(s.FontSizePx, MinFontSizePx, MaxFontSizePx, textlayout.DefaultFontSizePx)
	s.LetterSpacing = clamp(s.LetterSpacing, MinLetterSpacing, MaxLetterSpacing, 0)
	s.Curve = clamp(s.Curve, -textlayout.MaxCurveStrength, textlayout.MaxCurveStrength, 0)
	s.CircleRadius = clamp(s.CircleRadius, MinCircleRadius, MaxCircleRadius, textlayout.DefaultCircleRadiusPx)
	s.CircleStart = textlayout.NormalizeRotation(s.CircleStart)
	switch CurveMode(strings.ToLower(string(s.CurveMode))) {
	case CurveArc:
		s.CurveMode = CurveArc
	case CurveCircle:
		s.CurveMode = CurveCircle
	default:
		s.CurveMode = CurveNone
	}
	if strings.TrimSpace(s.Color) == "" {
		s.Color = "#111111"
	}
	return s
}

func clamp(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return math.Max(lo, math.Min(hi, v))
}

// LayoutRequest converts the card state into a layout request. An arc
// with zero curve is requested as straight text.
func (s PreviewSettings) LayoutRequest() textlayout.LayoutRequest {
	req := textlayout.LayoutRequest{
		Text:            s.Text,
		FontSizePx:      s.FontSizePx,
		LetterSpacingPx: s.LetterSpacing,
	}
	switch s.CurveMode {
	case CurveArc:
		if s.Curve != 0 {
			req.Mode = textlayout.Arc
			req.CurveStrength = s.Curve
		}
	case CurveCircle:
		req.Mode = textlayout.Circle
		req.CircleRadiusPx = s.CircleRadius
		req.RotationDeg = s.CircleStart
		if s.Inward {
			req.Winding = textlayout.CounterClockwise
		}
	}
	return req
}

// CacheKey identifies the rendered output of these settings for a font.
func (s PreviewSettings) CacheKey(fontID, format string) string {
	return fmt.Sprintf("%s|%s|%q|%g|%g|%s|%t|%t|%s|%g|%g|%g|%t",
		fontID, format, s.Text, s.FontSizePx, s.LetterSpacing, s.Color, s.Bold, s.Italic,
		s.CurveMode, s.Curve, s.CircleRadius, s.CircleStart, s.Inward)
}
