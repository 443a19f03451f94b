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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	xvector "golang.org/x/image/vector"

	"tattoofonts/internal/vector"
)

// DefaultPixelRatio renders downloads at three device pixels per CSS pixel.
const DefaultPixelRatio = 3

const (
	maxPixelRatio = 8
	maxPixels     = 40_000_000
)

// PNGOptions controls raster output.
type PNGOptions struct {
	PixelRatio float64
	// Transparent leaves the background clear instead of white.
	Transparent bool
}

func (o PNGOptions) ratio() float64 {
	r := o.PixelRatio
	if !vector.Finite(r) || r <= 0 {
		r = DefaultPixelRatio
	}
	return math.Min(r, maxPixelRatio)
}

// RasterSize returns the output size in pixels and the effective ratio,
// which is lowered for very large layouts.
func RasterSize(p *Preview, opt PNGOptions) (w, h int, ratio float64) {
	ratio = opt.ratio()
	vw, vh := p.Layout.ViewBoxWidth, p.Layout.ViewBoxHeight
	if area := vw * vh * ratio * ratio; area > maxPixels {
		ratio = math.Sqrt(maxPixels / (vw * vh))
	}
	return max(1, int(math.Ceil(vw*ratio))), max(1, int(math.Ceil(vh*ratio))), ratio
}

// Rasterize draws the preview into a new image.
func Rasterize(p *Preview, opt PNGOptions) (*image.NRGBA, error) {
	w, h, ratio := RasterSize(p, opt)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if !opt.Transparent {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	outline, err := p.Outlines()
	if err != nil {
		return nil, err
	}
	if outline.Empty() {
		return img, nil
	}
	z := xvector.NewRasterizer(w, h)
	z.DrawOp = draw.Over
	rasterizePath(z, outline.Transform(vector.Scale(ratio, ratio)))
	z.Draw(img, img.Bounds(), image.NewUniform(p.Ink().NRGBA()), image.Point{})
	return img, nil
}

// RenderPNG encodes the rasterized preview.
func RenderPNG(out io.Writer, p *Preview, opt PNGOptions) error {
	img, err := Rasterize(p, opt)
	if err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func rasterizePath(z *xvector.Rasterizer, p vector.Path) {
	f := func(v float64) float32 { return float32(v) }
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			z.MoveTo(f(d[0]), f(d[1]))
		case vector.LineTo:
			z.LineTo(f(d[0]), f(d[1]))
		case vector.QuadTo:
			z.QuadTo(f(d[0]), f(d[1]), f(d[2]), f(d[3]))
		case vector.CubicTo:
			z.CubeTo(f(d[0]), f(d[1]), f(d[2]), f(d[3]), f(d[4]), f(d[5]))
		case vector.Close:
			z.ClosePath()
		}
	}
}
