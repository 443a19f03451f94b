/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Path commands and their SVG path-data form.

import (
	"math"
	"strconv"
	"strings"
)

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	ArcTo   // elliptical arc (rx, ry, rotDeg, large, sweep, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [7]float64 // enough for an arc; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [7]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [7]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [7]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [7]float64{cx1, cy1, cx2, cy2, x, y}})
}

// ArcTo appends an SVG-style elliptical arc ending at (x, y).
func (p *Path) ArcTo(rx, ry, rotDeg float64, large, sweep bool, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: ArcTo, Data: [7]float64{rx, ry, rotDeg, b2f(large), b2f(sweep), x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Empty reports whether the path has no drawing commands.
func (p *Path) Empty() bool { return p == nil || len(p.Cmds) == 0 }

// SVG renders the path as SVG path data with absolute commands. Numbers are
// rounded to three decimals and printed without trailing zeros.
func (p *Path) SVG() string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch c.Op {
		case MoveTo:
			writeCmd(&b, 'M', c.Data[0], c.Data[1])
		case LineTo:
			writeCmd(&b, 'L', c.Data[0], c.Data[1])
		case QuadTo:
			writeCmd(&b, 'Q', c.Data[0], c.Data[1], c.Data[2], c.Data[3])
		case CubicTo:
			writeCmd(&b, 'C', c.Data[0], c.Data[1], c.Data[2], c.Data[3], c.Data[4], c.Data[5])
		case ArcTo:
			writeCmd(&b, 'A', c.Data[:]...)
		case Close:
			b.WriteByte('Z')
		}
	}
	return b.String()
}

func writeCmd(b *strings.Builder, op byte, args ...float64) {
	b.WriteByte(op)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(FormatNum(a))
	}
}

// FormatNum prints v with at most three decimals, never as "-0".
func FormatNum(v float64) string {
	v = FloatRound(v, 3)
	if v == 0 || math.IsNaN(v) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Bounds returns the axis-aligned bounding box of the flattened path.
func (p *Path) Bounds() Rect {
	pts := Flatten(p, 32)
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, q := range pts {
		minX = math.Min(minX, q.X)
		minY = math.Min(minY, q.Y)
		maxX = math.Max(maxX, q.X)
		maxY = math.Max(maxY, q.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Transform returns a copy of the path with m applied to every point. Arcs
// must be circular for the result to stay exact; rotation and translation
// keep them circular.
func (p *Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		n := c
		switch c.Op {
		case MoveTo, LineTo:
			q := m.Apply(Pt{c.Data[0], c.Data[1]})
			n.Data[0], n.Data[1] = q.X, q.Y
		case QuadTo:
			for j := 0; j < 4; j += 2 {
				q := m.Apply(Pt{c.Data[j], c.Data[j+1]})
				n.Data[j], n.Data[j+1] = q.X, q.Y
			}
		case CubicTo:
			for j := 0; j < 6; j += 2 {
				q := m.Apply(Pt{c.Data[j], c.Data[j+1]})
				n.Data[j], n.Data[j+1] = q.X, q.Y
			}
		case ArcTo:
			q := m.Apply(Pt{c.Data[5], c.Data[6]})
			n.Data[5], n.Data[6] = q.X, q.Y
		}
		out.Cmds[i] = n
	}
	return out
}
