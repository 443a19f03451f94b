/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"tattoofonts/internal/domain"
)

func sampleFont() domain.Font {
	return domain.Font{
		ID: "f1", Name: "Go Regular", Category: "Sans-Serif", FileExt: "ttf",
		Supports: domain.Supports{Bold: true, Italic: true},
	}
}

func samplePreview(t *testing.T, mutate func(*domain.PreviewSettings)) *Preview {
	t.Helper()
	s := domain.DefaultPreviewSettings()
	if mutate != nil {
		mutate(&s)
	}
	p, err := NewPreview(sampleFont(), goregular.TTF, s)
	if err != nil {
		t.Fatalf("new preview: %v", err)
	}
	return p
}

func inkPixels(t *testing.T, p *Preview, opt PNGOptions) (n int, w, h int) {
	t.Helper()
	img, err := Rasterize(p, opt)
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := img.NRGBAAt(x, y); c.R < 128 && c.A > 0 {
				n++
			}
		}
	}
	return n, b.Dx(), b.Dy()
}

func TestNewPreviewFallbackAndStyles(t *testing.T) {
	f := sampleFont()
	f.Supports.Bold = false
	s := domain.DefaultPreviewSettings()
	s.Bold, s.Italic = true, true
	p, err := NewPreview(f, []byte("not a font"), s)
	if err != nil {
		t.Fatalf("new preview: %v", err)
	}
	if !p.Fallback {
		t.Fatalf("unparseable data should fall back to the default font")
	}
	if p.Settings.Bold || !p.Settings.Italic {
		t.Fatalf("unsupported bold must be dropped, italic kept: %+v", p.Settings)
	}
	if p.Layout.Text != "Anteprima" {
		t.Fatalf("empty text should use the placeholder, got %q", p.Layout.Text)
	}
	if _, err := NewPreview(f, nil, domain.PreviewSettings{Color: "#zzz"}); err == nil {
		t.Fatalf("expected colour parse error")
	}
}

func TestRasterizeStraight(t *testing.T) {
	p := samplePreview(t, nil)
	n, w, h := inkPixels(t, p, PNGOptions{PixelRatio: 2})
	if want := int(math.Ceil(2 * p.Layout.ViewBoxWidth)); w != want {
		t.Fatalf("width = %d for viewBox %v", w, p.Layout.ViewBoxWidth)
	}
	if h != 2*160 {
		t.Fatalf("height = %d, want 320", h)
	}
	if n == 0 {
		t.Fatalf("no ink pixels drawn")
	}
}

func TestRasterizeBoldAddsInk(t *testing.T) {
	regular, _, _ := inkPixels(t, samplePreview(t, nil), PNGOptions{PixelRatio: 1})
	bold, _, _ := inkPixels(t, samplePreview(t, func(s *domain.PreviewSettings) { s.Bold = true }), PNGOptions{PixelRatio: 1})
	if bold <= regular {
		t.Fatalf("bold ink %d should exceed regular %d", bold, regular)
	}
}

func TestRasterizeCircleLeavesCentreEmpty(t *testing.T) {
	p := samplePreview(t, func(s *domain.PreviewSettings) {
		s.CurveMode = domain.CurveCircle
		s.CircleRadius = 220
		s.Text = "TATTOO FONTS TATTOO"
	})
	img, err := Rasterize(p, PNGOptions{PixelRatio: 1})
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if img.Bounds().Dx() != 664 || img.Bounds().Dy() != 664 {
		t.Fatalf("circle size = %v, want 664x664", img.Bounds())
	}
	if c := img.NRGBAAt(332, 332); c != (color.NRGBA{255, 255, 255, 255}) {
		t.Fatalf("centre pixel = %v, want white", c)
	}
	n, _, _ := inkPixels(t, p, PNGOptions{PixelRatio: 1})
	if n == 0 {
		t.Fatalf("no ink on the ring")
	}
}

func TestRasterizeTransparent(t *testing.T) {
	img, err := Rasterize(samplePreview(t, nil), PNGOptions{PixelRatio: 1, Transparent: true})
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if a := img.NRGBAAt(0, 0).A; a != 0 {
		t.Fatalf("corner alpha = %d, want 0", a)
	}
}

func TestRasterSizeCapsHugeLayouts(t *testing.T) {
	p := samplePreview(t, func(s *domain.PreviewSettings) { s.FontSizePx = 240; s.Text = strings.Repeat("W", 60) })
	w, h, ratio := RasterSize(p, PNGOptions{PixelRatio: 8})
	if float64(w)*float64(h) > maxPixels*1.01 {
		t.Fatalf("raster %dx%d exceeds cap", w, h)
	}
	if ratio >= 8 {
		t.Fatalf("ratio not reduced: %v", ratio)
	}
	if _, _, r := RasterSize(p, PNGOptions{PixelRatio: -1}); r > DefaultPixelRatio {
		t.Fatalf("invalid ratio should default, got %v", r)
	}
}

func TestRenderPNGSignature(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPNG(&buf, samplePreview(t, nil), PNGOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("not a png")
	}
}

func TestRenderSVGArc(t *testing.T) {
	p := samplePreview(t, func(s *domain.PreviewSettings) {
		s.CurveMode = domain.CurveArc
		s.Curve = 50
		s.Text = "Tom & <Jerry>"
		s.LetterSpacing = 2
	})
	var buf bytes.Buffer
	if err := RenderSVG(&buf, p, SVGOptions{}); err != nil {
		t.Fatalf("render svg: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`viewBox="` + p.Layout.ViewBox() + `"`,
		`d="` + p.Layout.PathDefinition + `"`,
		`startOffset="50%"`,
		`text-anchor="middle"`,
		`letter-spacing="2"`,
		"Tom &amp; &lt;Jerry&gt;",
		"data:font/ttf;base64,",
		`format("truetype")`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSVGStraightAndCircle(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSVG(&buf, samplePreview(t, nil), SVGOptions{SkipFontEmbed: true, Background: true}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "textPath") || strings.Contains(out, "base64") {
		t.Fatalf("straight svg must not use textPath or embed: %s", out)
	}
	if !strings.Contains(out, `dominant-baseline="middle"`) || !strings.Contains(out, `fill="#ffffff"`) {
		t.Fatalf("straight svg attributes missing: %s", out)
	}

	buf.Reset()
	circle := samplePreview(t, func(s *domain.PreviewSettings) {
		s.CurveMode = domain.CurveCircle
		s.CircleStart = 90
	})
	if err := RenderSVG(&buf, circle, SVGOptions{}); err != nil {
		t.Fatalf("render circle: %v", err)
	}
	if !strings.Contains(buf.String(), `transform="rotate(90 332 332)"`) {
		t.Fatalf("circle rotation missing: %s", buf.String())
	}
}

func TestRenderPreviewPDF(t *testing.T) {
	var buf bytes.Buffer
	p := samplePreview(t, func(s *domain.PreviewSettings) { s.CurveMode = domain.CurveArc; s.Curve = -40; s.Italic = true })
	if err := RenderPreviewPDF(&buf, p, PDFOptions{Margin: 5, Background: true}); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("not a pdf")
	}
}

func TestWriteSpecimenPDF(t *testing.T) {
	entries := []SpecimenEntry{
		{Font: sampleFont(), Data: goregular.TTF},
		{Font: domain.Font{Name: "Web Only", Category: "Corsivo", FileExt: "woff2", IsPremium: true}, Data: []byte("wOF2")},
	}
	for i := range 30 {
		f := sampleFont()
		f.Name = "Filler " + string(rune('A'+i%26))
		entries = append(entries, SpecimenEntry{Font: f})
	}
	var buf bytes.Buffer
	if err := WriteSpecimenPDF(&buf, entries, SpecimenOptions{SampleText: "Città"}); err != nil {
		t.Fatalf("specimen: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) || buf.Len() < 1000 {
		t.Fatalf("specimen output looks wrong (%d bytes)", buf.Len())
	}
	if embeddable(entries[1]) || !embeddable(entries[0]) {
		t.Fatalf("embeddable mismatch")
	}
}

func TestBatchExport(t *testing.T) {
	dir := t.TempDir()
	a := samplePreview(t, nil)
	b := samplePreview(t, func(s *domain.PreviewSettings) { s.Text = "Altro" })
	written, err := BatchExport([]*Preview{a, b}, BatchOptions{Preset: PresetWeb, OutDir: dir, PixelRatio: 1})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	want := []string{"Go_Regular_preview.png", "Go_Regular_preview.svg", "Go_Regular_preview-2.png", "Go_Regular_preview-2.svg"}
	if len(written) != len(want) {
		t.Fatalf("written = %v", written)
	}
	for i, name := range want {
		if filepath.Base(written[i]) != name {
			t.Fatalf("written[%d] = %s, want %s", i, filepath.Base(written[i]), name)
		}
		if st, err := os.Stat(written[i]); err != nil || st.Size() == 0 {
			t.Fatalf("output %s missing: %v", name, err)
		}
	}
	if _, err := BatchExport([]*Preview{a}, BatchOptions{OutDir: dir, Formats: []Format{"gif"}}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestUniqueNameSkipsTakenSuffixes(t *testing.T) {
	used := map[string]bool{}
	got := []string{
		uniqueName(used, "Rose_preview-2.png"),
		uniqueName(used, "Rose_preview.png"),
		uniqueName(used, "ROSE_preview.png"),
		uniqueName(used, "rose_preview.png"),
	}
	want := []string{"Rose_preview-2.png", "Rose_preview.png", "ROSE_preview-3.png", "rose_preview-4.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("uniqueName #%d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPreviewKeepsEveryGlyphOfWideText(t *testing.T) {
	text := strings.Repeat("W", 20)
	for _, mode := range []domain.CurveMode{domain.CurveNone, domain.CurveArc} {
		p := samplePreview(t, func(s *domain.PreviewSettings) {
			s.Text = text
			s.CurveMode = mode
			s.Curve = 30
		})
		if got := len(p.Glyphs()); got != len(text) {
			t.Fatalf("%s: placed %d of %d glyphs (viewBox %v)", mode, got, len(text), p.Layout.ViewBoxWidth)
		}
		n, _, _ := inkPixels(t, p, PNGOptions{PixelRatio: 1})
		if n == 0 {
			t.Fatalf("%s: no ink rendered", mode)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" PNG "); err != nil || f != FormatPNG || f.ContentType() != "image/png" {
		t.Fatalf("ParseFormat png = %v, %v", f, err)
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Fatalf("expected error for gif")
	}
}
