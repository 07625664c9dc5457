package math

import (
	"fmt"
	"strings"
)

// RotationMode names how a pose bone stores its rotation channels.
type RotationMode string

const (
	RotationQuaternion RotationMode = "QUATERNION"
	RotationAxisAngle  RotationMode = "AXIS_ANGLE"
	RotationXYZ        RotationMode = "XYZ"
	RotationXZY        RotationMode = "XZY"
	RotationYXZ        RotationMode = "YXZ"
	RotationYZX        RotationMode = "YZX"
	RotationZXY        RotationMode = "ZXY"
	RotationZYX        RotationMode = "ZYX"
)

// IsEuler reports whether the mode is one of the six Euler orders.
func (m RotationMode) IsEuler() bool {
	switch m {
	case RotationXYZ, RotationXZY, RotationYXZ, RotationYZX, RotationZXY, RotationZYX:
		return true
	}
	return false
}

// ParseRotationMode validates a rotation mode name. Empty means quaternion.
func ParseRotationMode(s string) (RotationMode, error) {
	if s == "" {
		return RotationQuaternion, nil
	}
	m := RotationMode(strings.ToUpper(s))
	if m == RotationQuaternion || m == RotationAxisAngle || m.IsEuler() {
		return m, nil
	}
	return "", fmt.Errorf("unknown rotation mode %q", s)
}

// EulerToMat4 builds a rotation from Euler angles (radians) applied in the
// axis order given by mode, first axis first.
func EulerToMat4(angles Vec3, mode RotationMode) Mat4 {
	if !mode.IsEuler() {
		mode = RotationXYZ
	}
	axis := func(c byte) Mat4 {
		switch c {
		case 'X':
			return RotateX(angles.X)
		case 'Y':
			return RotateY(angles.Y)
		default:
			return RotateZ(angles.Z)
		}
	}
	s := string(mode)
	return axis(s[2]).Mul(axis(s[1])).Mul(axis(s[0]))
}

// AxisAngleToMat4 builds a rotation from (angle, x, y, z).
func AxisAngleToMat4(aa [4]float32) Mat4 {
	axis := Vec3{aa[1], aa[2], aa[3]}.Normalize()
	if axis == (Vec3{}) {
		return Identity()
	}
	return RotateAxis(axis.Array(), aa[0])
}
