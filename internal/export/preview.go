/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"tattoofonts/internal/domain"
	"tattoofonts/internal/textlayout"
	"tattoofonts/internal/vector"
)

// Synthetic style parameters, relative to the font size.
const (
	fauxBoldOffset = 0.022
	fauxItalicSkew = -0.21
)

// Preview is one font rendered with one set of card settings. Build it
// with NewPreview; the zero value is not usable.
type Preview struct {
	// FontID keys the embedded face in SVG output.
	FontID   string
	FontName string
	FontExt  string
	// FontData is the raw font file; SVG embeds it as is.
	FontData []byte
	Settings domain.PreviewSettings
	Layout   textlayout.LayoutResult
	// Fallback is set when FontData could not be parsed for outlines and
	// raster output uses the default face instead.
	Fallback bool

	font *opentype.Font
	lib  *textlayout.FontLibrary
	ink  vector.Color
}

// NewPreview normalises settings and computes the layout. Empty data
// renders with the built-in default font.
func NewPreview(f domain.Font, data []byte, s domain.PreviewSettings) (*Preview, error) {
	s = s.Normalize()
	ink, err := vector.ParseHex(s.Color)
	if err != nil {
		return nil, err
	}
	p := &Preview{
		FontID:   f.ID,
		FontName: f.Name,
		FontExt:  f.FileExt,
		FontData: data,
		Settings: s,
		ink:      ink,
	}
	if p.FontExt == "" {
		p.FontExt, _ = domain.FontExt(f.OriginalFilename)
	}
	if len(data) > 0 {
		if parsed, err := textlayout.ParseFont(data); err == nil {
			p.font = parsed
		}
	}
	if p.font == nil {
		p.font = textlayout.DefaultFont()
		p.Fallback = true
	}
	if p.font == nil {
		return nil, errors.New("no usable font")
	}
	p.lib = textlayout.NewFontLibrary()
	p.lib.Put(p.FontID, p.font)
	// Toggles the family does not offer are ignored; offered ones are
	// synthesised from the single regular file.
	if s.Bold && !f.Supports.Bold && f.ID != "" {
		p.Settings.Bold = false
	}
	if s.Italic && !f.Supports.Italic && f.ID != "" {
		p.Settings.Italic = false
	}
	p.Layout = textlayout.FitLayout(p.Settings.LayoutRequest(), p, p.spec())
	return p, nil
}

// Ink is the parsed text colour.
func (p *Preview) Ink() vector.Color { return p.ink }

// FileName is the download name for the given extension.
func (p *Preview) FileName(ext string) string { return domain.ExportFileName(p.FontName, ext) }

// Resolve implements textlayout.Provider with the preview's own font.
func (p *Preview) Resolve(spec textlayout.FontSpec) (font.Face, textlayout.Metrics) {
	return textlayout.OTProvider{Lib: p.lib}.Resolve(spec)
}

// Glyphs places the text on the layout path with real font advances.
func (p *Preview) Glyphs() []textlayout.GlyphPose {
	return textlayout.PlaceGlyphs(p, p.spec(), p.Layout, p.Settings.LetterSpacing)
}

func (p *Preview) spec() textlayout.FontSpec {
	return textlayout.FontSpec{Family: p.FontID, SizePx: p.Layout.FontSizePx, Bold: p.Settings.Bold, Italic: p.Settings.Italic}
}

// Outlines returns every glyph contour in viewBox coordinates, with
// synthetic bold and italic applied.
func (p *Preview) Outlines() (vector.Path, error) {
	var (
		out vector.Path
		buf sfnt.Buffer
	)
	fs := p.Layout.FontSizePx
	ppem := fixed.Int26_6(math.Round(fs * 64))
	offsets := []vector.Pt{{}}
	if p.Settings.Bold {
		d := fs * fauxBoldOffset
		offsets = append(offsets, vector.Pt{X: -d, Y: -d}, vector.Pt{X: d, Y: -d}, vector.Pt{X: -d, Y: d}, vector.Pt{X: d, Y: d})
	}
	skew := vector.Identity
	if p.Settings.Italic {
		skew = vector.SkewX(fauxItalicSkew)
	}
	var failed int
	for _, g := range p.Glyphs() {
		idx, err := p.font.GlyphIndex(&buf, g.Rune)
		if err != nil || idx == 0 {
			continue
		}
		segs, err := p.font.LoadGlyph(&buf, idx, ppem, nil)
		if err != nil {
			failed++
			continue
		}
		place := vector.Translate(g.Pos.X, g.Pos.Y).Mul(vector.Rotate(g.Angle)).Mul(vector.Translate(-g.Advance/2, 0))
		for _, off := range offsets {
			appendSegments(&out, segs, place.Mul(vector.Translate(off.X, off.Y)).Mul(skew))
		}
	}
	if out.Empty() && failed > 0 {
		return out, fmt.Errorf("load glyphs: %d failed", failed)
	}
	return out, nil
}

func appendSegments(dst *vector.Path, segs sfnt.Segments, m vector.Affine2D) {
	pt := func(v fixed.Point26_6) vector.Pt {
		return m.Apply(vector.Pt{X: float64(v.X) / 64, Y: float64(v.Y) / 64})
	}
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				dst.Close()
			}
			a := pt(s.Args[0])
			dst.MoveTo(a.X, a.Y)
			open = true
		case sfnt.SegmentOpLineTo:
			a := pt(s.Args[0])
			dst.LineTo(a.X, a.Y)
		case sfnt.SegmentOpQuadTo:
			c, a := pt(s.Args[0]), pt(s.Args[1])
			dst.QuadTo(c.X, c.Y, a.X, a.Y)
		case sfnt.SegmentOpCubeTo:
			c1, c2, a := pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2])
			dst.CubicTo(c1.X, c1.Y, c2.X, c2.Y, a.X, a.Y)
		}
	}
	if open {
		dst.Close()
	}
}

// Format is an output format of a single preview.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts png, svg and pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatSVG, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// ContentType is the media type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}
