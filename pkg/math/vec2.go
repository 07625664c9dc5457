// Package math provides the float32 vector, quaternion and matrix types
// shared by the asset builders.
package math

import "math"

// Vec2 holds texture coordinates and ground-plane (XZ) projections.
type Vec2 struct {
	X, Y float32
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Dot returns the dot product.
func (v Vec2) Dot(o Vec2) float32 { return v.X*o.X + v.Y*o.Y }

// Cross returns the z component of the 3D cross product, i.e. the signed
// area of the parallelogram spanned by v and o.
func (v Vec2) Cross(o Vec2) float32 { return v.X*o.Y - v.Y*o.X }

// Length returns the magnitude.
func (v Vec2) Length() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// FlipV converts between host and engine UV space (v -> 1 - v).
func (v Vec2) FlipV() Vec2 { return Vec2{v.X, 1 - v.Y} }
