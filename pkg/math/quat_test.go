package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatToMat4(t *testing.T) {
	m := QuatIdentity().ToMat4()

	identity := Identity()
	for i := 0; i < 16; i++ {
		if math.Abs(float64(m[i]-identity[i])) > 0.0001 {
			t.Errorf("Identity quat should produce identity matrix, element %d: got %v, want %v", i, m[i], identity[i])
		}
	}
}

func TestQuatMat4RoundTrip(t *testing.T) {
	axes := []Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, Vec3{1, 1, 1}.Normalize()}
	angles := []float32{0.1, 1.0, 2.5, float32(math.Pi) - 0.01}
	for _, a := range axes {
		for _, ang := range angles {
			q := QuatFromAxisAngle(a, ang)
			got := QuatFromMat4(q.ToMat4())
			if abs(abs(got.Dot(q))-1) > 1e-4 {
				t.Errorf("axis %v angle %v: got %v, want %v", a, ang, got, q)
			}
		}
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{X: 1}, float32(math.Pi/2))
	got := q.Rotate(Vec3{Y: 1})
	want := q.ToMat4().TransformDirection(Vec3{Y: 1})
	if got.Distance(want) > 1e-5 {
		t.Errorf("Rotate = %v, matrix = %v", got, want)
	}
	if got.Distance(Vec3{Z: 1}) > 1e-5 {
		t.Errorf("Rotate (0,1,0) by 90 deg about X = %v, want (0,0,1)", got)
	}
}

func TestQuatRotation(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{Z: 1}, 0.5)
	b := QuatFromAxisAngle(Vec3{Z: 1}, 0.8)
	d := a.Rotation(b)
	if got := a.Mul(d); abs(abs(got.Dot(b))-1) > 1e-5 {
		t.Errorf("a * (a^-1 b) = %v, want %v", got, b)
	}
}
