/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"tattoofonts/internal/vector"
	"tattoofonts/internal/version"
)

// mmPerPx converts CSS pixels (96 per inch) to millimetres.
const mmPerPx = 25.4 / 96

// PDFOptions controls the single-preview vector PDF.
type PDFOptions struct {
	// Margin around the preview in millimetres.
	Margin float64
	// Background paints the page white; otherwise it stays transparent.
	Background bool
}

// RenderPreviewPDF writes the preview as a one-page PDF with the glyphs
// as filled vector outlines, so no font is embedded.
func RenderPreviewPDF(out io.Writer, p *Preview, opt PDFOptions) error {
	outline, err := p.Outlines()
	if err != nil {
		return err
	}
	margin := max(opt.Margin, 0)
	w := p.Layout.ViewBoxWidth*mmPerPx + 2*margin
	h := p.Layout.ViewBoxHeight*mmPerPx + 2*margin

	writer := pdf.New(out, w, h, nil)
	writer.SetInfo(p.FileName("pdf"), p.Layout.Text, "tattoo, font, preview", "", "tattoofonts "+version.String())

	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	// Top-left origin like the layout's viewBox.
	ctx.SetCoordSystem(canvas.CartesianIV)
	if opt.Background {
		ctx.SetFillColor(canvas.White)
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.DrawPath(0, 0, canvas.Rectangle(w, h))
	}
	if !outline.Empty() {
		ctx.SetFillColor(p.Ink().NRGBA())
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.DrawPath(margin, margin, toCanvasPath(outline.Transform(vector.Scale(mmPerPx, mmPerPx))))
	}
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func toCanvasPath(p vector.Path) *canvas.Path {
	cp := &canvas.Path{}
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			cp.MoveTo(d[0], d[1])
		case vector.LineTo:
			cp.LineTo(d[0], d[1])
		case vector.QuadTo:
			cp.QuadTo(d[0], d[1], d[2], d[3])
		case vector.CubicTo:
			cp.CubeTo(d[0], d[1], d[2], d[3], d[4], d[5])
		case vector.Close:
			cp.Close()
		}
	}
	return cp
}
