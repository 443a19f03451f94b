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
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// Placeholder is laid out in place of empty input.
	Placeholder = "Anteprima"

	DefaultFontSizePx = 56
	MaxFontSizePx     = 1000

	// CharWidthFactor approximates the average advance as a share of the font size.
	CharWidthFactor = 0.6
	// MinTextWidth floors the estimated width so short strings still get a usable box.
	MinTextWidth = 200
)

// EffectiveText normalises s to NFC and substitutes the placeholder for
// empty or whitespace-only input.
func EffectiveText(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return norm.NFC.String(s)
}

// SanitizeFontSize defaults non-positive or non-finite sizes and caps huge ones.
func SanitizeFontSize(fs float64) float64 {
	if math.IsNaN(fs) || math.IsInf(fs, 0) || fs <= 0 {
		return DefaultFontSizePx
	}
	return min(fs, MaxFontSizePx)
}

// EstimateTextWidth is a font-independent upper estimate of the rendered
// width. Positive letter spacing widens the estimate; negative spacing is
// ignored so the estimate never shrinks below the unspaced width.
func EstimateTextWidth(text string, fontSizePx, letterSpacingPx float64) float64 {
	n := utf8.RuneCountInString(text)
	w := float64(n) * CharWidthFactor * fontSizePx
	if n > 1 && letterSpacingPx > 0 && !math.IsInf(letterSpacingPx, 0) {
		w += letterSpacingPx * float64(n-1)
	}
	return max(w, MinTextWidth)
}
