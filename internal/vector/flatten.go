/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// Flatten approximates curves with fixed-step sampling to a polyline.
// steps defines the number of segments used per curve; lines remain 1.
// Arcs get steps segments per quarter turn.
func Flatten(p *Path, steps int) []Pt {
	if p.Empty() {
		return nil
	}
	if steps < 2 {
		steps = 2
	}
	var pts []Pt
	var cur, start Pt
	for i, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			cur = Pt{X: c.Data[0], Y: c.Data[1]}
			start = cur
			pts = append(pts, cur)
		case LineTo:
			cur = Pt{X: c.Data[0], Y: c.Data[1]}
			pts = append(pts, cur)
		case QuadTo:
			c1 := Pt{X: c.Data[0], Y: c.Data[1]}
			end := Pt{X: c.Data[2], Y: c.Data[3]}
			for s := 1; s <= steps; s++ {
				pts = append(pts, QuadAt(cur, c1, end, float64(s)/float64(steps)))
			}
			cur = end
		case CubicTo:
			c1 := Pt{X: c.Data[0], Y: c.Data[1]}
			c2 := Pt{X: c.Data[2], Y: c.Data[3]}
			end := Pt{X: c.Data[4], Y: c.Data[5]}
			for s := 1; s <= steps; s++ {
				pts = append(pts, CubicAt(cur, c1, c2, end, float64(s)/float64(steps)))
			}
			cur = end
		case ArcTo:
			end := Pt{X: c.Data[5], Y: c.Data[6]}
			pts = append(pts, flattenArc(cur, c.Data, steps)...)
			cur = end
		case Close:
			if i > 0 && (cur.X != start.X || cur.Y != start.Y) {
				pts = append(pts, start)
				cur = start
			}
		}
	}
	return pts
}

func QuadAt(p0, p1, p2 Pt, t float64) Pt {
	// B(t) = (1-t)^2 p0 + 2(1-t)t p1 + t^2 p2
	u := 1 - t
	return Pt{
		X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
		Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
	}
}

func CubicAt(p0, p1, p2, p3 Pt, t float64) Pt {
	// B(t) = (1-t)^3 p0 + 3(1-t)^2 t p1 + 3(1-t) t^2 p2 + t^3 p3
	u := 1 - t
	u2 := u * u
	t2 := t * t
	return Pt{
		X: u2*u*p0.X + 3*u2*t*p1.X + 3*u*t2*p2.X + t2*t*p3.X,
		Y: u2*u*p0.Y + 3*u2*t*p1.Y + 3*u*t2*p2.Y + t2*t*p3.Y,
	}
}

// ArcCenter converts SVG endpoint parameterisation to centre form. It
// returns the centre, the (possibly scaled up) radii, the start angle and
// the signed sweep in radians. ok is false for degenerate arcs, which
// render as straight lines.
func ArcCenter(from Pt, rx, ry, rotDeg float64, large, sweep bool, to Pt) (c Pt, rxOut, ryOut, theta, delta float64, ok bool) {
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 || (from.X == to.X && from.Y == to.Y) {
		return Pt{}, 0, 0, 0, 0, false
	}
	phi := rotDeg * math.Pi / 180
	cosP, sinP := math.Cos(phi), math.Sin(phi)
	dx, dy := (from.X-to.X)/2, (from.Y-to.Y)/2
	x1 := cosP*dx + sinP*dy
	y1 := -sinP*dx + cosP*dy

	if lambda := x1*x1/(rx*rx) + y1*y1/(ry*ry); lambda > 1 {
		s := math.Sqrt(lambda)
		rx *= s
		ry *= s
	}
	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	sq := 0.0
	if den > 0 && num > 0 {
		sq = math.Sqrt(num / den)
	}
	if large == sweep {
		sq = -sq
	}
	cx1 := sq * rx * y1 / ry
	cy1 := -sq * ry * x1 / rx
	c = Pt{
		X: cosP*cx1 - sinP*cy1 + (from.X+to.X)/2,
		Y: sinP*cx1 + cosP*cy1 + (from.Y+to.Y)/2,
	}
	theta = math.Atan2((y1-cy1)/ry, (x1-cx1)/rx)
	end := math.Atan2((-y1-cy1)/ry, (-x1-cx1)/rx)
	delta = end - theta
	if sweep && delta < 0 {
		delta += 2 * math.Pi
	} else if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	}
	return c, rx, ry, theta, delta, true
}

func flattenArc(from Pt, d [7]float64, steps int) []Pt {
	to := Pt{X: d[5], Y: d[6]}
	c, rx, ry, theta, delta, ok := ArcCenter(from, d[0], d[1], d[2], d[3] != 0, d[4] != 0, to)
	if !ok {
		return []Pt{to}
	}
	n := int(math.Ceil(math.Abs(delta)/(math.Pi/2))) * steps
	if n < steps {
		n = steps
	}
	phi := d[2] * math.Pi / 180
	cosP, sinP := math.Cos(phi), math.Sin(phi)
	pts := make([]Pt, 0, n)
	for s := 1; s <= n; s++ {
		if s == n {
			pts = append(pts, to)
			break
		}
		a := theta + delta*float64(s)/float64(n)
		ex, ey := rx*math.Cos(a), ry*math.Sin(a)
		pts = append(pts, Pt{X: cosP*ex - sinP*ey + c.X, Y: sinP*ex + cosP*ey + c.Y})
	}
	return pts
}
