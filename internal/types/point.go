// README: Planar geometry value objects shared across modules.
package types

import "math"

// Epsilon is the tolerance used for coordinate equality and arrival detection.
const Epsilon = 1e-9

// ID identifies drivers and requests. Ids are unique within their own kind.
type ID int

// Point is an immutable 2D coordinate on the simulation map.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Scale multiplies both coordinates by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// DistanceTo returns the Euclidean distance between p and o.
func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Key snaps the point onto the epsilon grid. Points with equal keys are Equal,
// so Key can be used as a map key where Equal semantics are wanted.
func (p Point) Key() [2]int64 {
	return [2]int64{snap(p.X), snap(p.Y)}
}

// Equal reports whether p and o land on the same epsilon grid cell.
func (p Point) Equal(o Point) bool {
	return p.Key() == o.Key()
}

func snap(v float64) int64 {
	return int64(math.Round(v / Epsilon))
}

// MoveTowards returns the point reached by travelling at most step along the
// straight line from `from` to `to`. It never overshoots `to`.
func MoveTowards(from, to Point, step float64) Point {
	remaining := from.DistanceTo(to)
	if remaining <= Epsilon || step >= remaining {
		return to
	}
	if step <= 0 {
		return from
	}
	return from.Add(to.Sub(from).Scale(step / remaining))
}

// Bounds is the rectangle [0, Width] x [0, Height].
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Bounds) Contains(p Point) bool {
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}
