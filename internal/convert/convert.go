// Package convert maps host scene data (Z up) into the engine frame
// (Y up). Engine (x, y, z) = host (x, z, -y).
package convert

import (
	"github.com/Faultbox/scs-forge/pkg/math"
)

// ToEngine is the host to engine basis change, the inverse of a +90
// degree rotation about X. Written out so it stays exact.
var ToEngine = math.Mat4{
	1, 0, 0, 0,
	0, 0, -1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// ToHost is the inverse of ToEngine.
var ToHost = ToEngine.Transpose()

// Vec maps a host vector into the engine frame.
func Vec(v math.Vec3) math.Vec3 {
	return math.Vec3{X: v.X, Y: v.Z, Z: -v.Y}
}

// VecToHost maps an engine vector back into the host frame.
func VecToHost(v math.Vec3) math.Vec3 {
	return math.Vec3{X: v.X, Y: -v.Z, Z: v.Y}
}

// Position maps a host point into the engine frame and applies the
// export scale.
func Position(v math.Vec3, scale float32) math.Vec3 {
	return Vec(v).Scale(scale)
}

// Quat maps a host rotation into the engine frame. The vector part
// transforms like a vector.
func Quat(q math.Quat) math.Quat {
	return math.Quat{X: q.X, Y: q.Z, Z: -q.Y, W: q.W}
}

// QuatToHost is the inverse of Quat.
func QuatToHost(q math.Quat) math.Quat {
	return math.Quat{X: q.X, Y: -q.Z, Z: q.Y, W: q.W}
}

// Matrix changes the basis of a host transform to the engine frame and
// scales its translation.
func Matrix(m math.Mat4, scale float32) math.Mat4 {
	e := ToEngine.Mul(m).Mul(ToHost)
	e[12] *= scale
	e[13] *= scale
	e[14] *= scale
	return e
}

// MatrixToHost is the inverse of Matrix.
func MatrixToHost(m math.Mat4, scale float32) math.Mat4 {
	if scale != 0 {
		m[12] /= scale
		m[13] /= scale
		m[14] /= scale
	}
	return ToHost.Mul(m).Mul(ToEngine)
}

// UV flips the v coordinate.
func UV(uv math.Vec2) math.Vec2 {
	return uv.FlipV()
}

// Transform returns the engine position, rotation and scale of a host
// transform expressed relative to root.
func Transform(root, world math.Mat4, scale float32) (math.Vec3, math.Quat, math.Vec3) {
	local := root.Inverse().Mul(world)
	loc, rot, sca := local.Decompose()
	return Position(loc, scale), Quat(rot), math.Vec3{X: sca.X, Y: sca.Z, Z: sca.Y}
}
