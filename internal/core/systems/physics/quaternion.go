package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NormToleranceSquared is the squared norm under which a quaternion is treated
// as degenerate and Normalize resets it to identity.
const NormToleranceSquared = 1e-12

// Quaternion is an orientation as (W, X, Y, Z).
type Quaternion struct {
	W float64 `json:"w" yaml:"w"`
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func QuatIdent() Quaternion { return Quaternion{W: 1} }

func fromMglQuat(q mgl64.Quat) Quaternion {
	return Quaternion{W: q.W, X: q.V[0], Y: q.V[1], Z: q.V[2]}
}

func (q Quaternion) mgl() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

// QuatFromAxisAngle builds the rotation of angle radians about axis. A zero axis
// yields identity.
func QuatFromAxisAngle(axis Vector3, angle float64) Quaternion {
	if axis.Length() == 0 {
		return QuatIdent()
	}
	return fromMglQuat(mgl64.QuatRotate(angle, axis.Normalize().mgl()))
}

// QuatFromEuler builds an orientation from ZYX Euler angles: yaw about Z, then
// pitch about the new Y, then roll about the new X.
func QuatFromEuler(roll, pitch, yaw float64) Quaternion {
	roll *= 0.5
	pitch *= 0.5
	yaw *= 0.5

	var (
		cpsi = math.Cos(yaw)
		spsi = math.Sin(yaw)
		cth  = math.Cos(pitch)
		sth  = math.Sin(pitch)
		cphi = math.Cos(roll)
		sphi = math.Sin(roll)
	)

	return Quaternion{
		W: cpsi*cth*cphi + spsi*sth*sphi,
		X: cpsi*cth*sphi - spsi*sth*cphi,
		Y: cpsi*sth*cphi + spsi*cth*sphi,
		Z: spsi*cth*cphi - cpsi*sth*sphi,
	}
}

// Euler returns the ZYX angles (roll, pitch, yaw) of a unit quaternion.
// Pitch is in [-pi/2, pi/2]; roll and yaw are in (-pi, pi].
func (q Quaternion) Euler() (roll, pitch, yaw float64) {
	stheta := 2.0 * (q.W*q.Y - q.Z*q.X)
	if stheta >= 1 {
		stheta = 1
	} else if stheta <= -1 {
		stheta = -1
	}
	pitch = math.Asin(stheta)

	ysq := q.Y * q.Y
	yaw = math.Atan2(q.W*q.Z+q.X*q.Y, 0.5-(ysq+q.Z*q.Z))
	roll = math.Atan2(q.W*q.X+q.Y*q.Z, 0.5-(ysq+q.X*q.X))
	return roll, pitch, yaw
}

func (q Quaternion) Norm() float64 { return q.mgl().Len() }

// Normalize scales q to unit length. A near-zero quaternion becomes identity.
func (q Quaternion) Normalize() Quaternion {
	if q.W*q.W+q.X*q.X+q.Y*q.Y+q.Z*q.Z < NormToleranceSquared {
		return QuatIdent()
	}
	return fromMglQuat(q.mgl().Normalize())
}

func (q Quaternion) Conjugate() Quaternion { return fromMglQuat(q.mgl().Conjugate()) }

// Inverse returns q^-1 for any non-zero q. A near-zero quaternion has no
// inverse; identity is returned instead.
func (q Quaternion) Inverse() Quaternion {
	if q.W*q.W+q.X*q.X+q.Y*q.Y+q.Z*q.Z < NormToleranceSquared {
		return QuatIdent()
	}
	return fromMglQuat(q.mgl().Inverse())
}

// Mul composes rotations: the result applies o first, then q.
func (q Quaternion) Mul(o Quaternion) Quaternion { return fromMglQuat(q.mgl().Mul(o.mgl())) }

// Rotate computes q * v * q^-1. The result is a pure rotation of v for any
// non-zero q, whatever its norm.
func (q Quaternion) Rotate(v Vector3) Vector3 {
	pure := mgl64.Quat{V: v.mgl()}
	return fromMgl(q.mgl().Mul(pure).Mul(q.Inverse().mgl()).V)
}

// Equal compares component-wise; q and -q are different values here even
// though they encode the same rotation.
func (q Quaternion) Equal(o Quaternion, eps float64) bool {
	return math.Abs(q.W-o.W) <= eps && math.Abs(q.X-o.X) <= eps &&
		math.Abs(q.Y-o.Y) <= eps && math.Abs(q.Z-o.Z) <= eps
}

func (q Quaternion) String() string {
	return fmt.Sprintf("(w=%g, x=%g, y=%g, z=%g)", q.W, q.X, q.Y, q.Z)
}
