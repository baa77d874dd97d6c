// Package rotation provides unit quaternions, rotation matrices, and Euler
// angle sequences, plus the free functions that convert among them.
//
// Mirrors the value-type idiom used throughout this module (private
// fields, plural/From-style constructors, plain accessor methods): there is
// exactly one concrete representation per direction of a conversion, so
// conversions are free functions rather than interface methods.
package rotation

import "math"

const epsNorm = 1e-9

// Quaternion is a unit quaternion in Hamilton convention, x,y,z,w ordering.
// The scalar part w is canonicalized non-negative so that q and -q (which
// represent the same rotation) have a unique representative.
type Quaternion struct {
	x, y, z, w float64
}

// NewQuaternion builds a Quaternion from raw components, normalizing and
// canonicalizing the scalar-part sign. Panics with NonFiniteRotation-style
// behavior deferred to the caller: a zero-magnitude input would divide by
// zero, so callers should not pass one.
func NewQuaternion(x, y, z, w float64) Quaternion {
	if w < 0 {
		x, y, z, w = -x, -y, -z, -w
	}
	n := math.Sqrt(x*x + y*y + z*z + w*w)
	return Quaternion{x / n, y / n, z / n, w / n}
}

// QuaternionIdentity returns the no-rotation quaternion.
func QuaternionIdentity() Quaternion {
	return Quaternion{0, 0, 0, 1}
}

// XYZW returns the raw components in (x, y, z, w) order.
func (q Quaternion) XYZW() (x, y, z, w float64) { return q.x, q.y, q.z, q.w }

// Norm returns the quaternion's magnitude, which should be 1 within ε for
// any value produced by this package's constructors.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.x*q.x + q.y*q.y + q.z*q.z + q.w*q.w)
}

// Normalized returns q divided by its own norm. Returns the identity
// quaternion and false if the norm is below ε (NonFiniteRotation per §4.A).
func (q Quaternion) Normalized() (Quaternion, bool) {
	n := q.Norm()
	if n < epsNorm {
		return QuaternionIdentity(), false
	}
	return NewQuaternion(q.x/n, q.y/n, q.z/n, q.w/n), true
}

// Inverse returns the conjugate, which is the inverse for a unit quaternion.
func (q Quaternion) Inverse() Quaternion {
	return Quaternion{-q.x, -q.y, -q.z, q.w}
}

// Compose returns q then r, i.e. the quaternion representing "rotate by q,
// then by r" under Hamilton convention (r.Compose applied as r*q... see
// Mul for the underlying product). Compose(q, r) = r ⋅ q.
func Compose(q, r Quaternion) Quaternion {
	return NewQuaternion(
		r.w*q.x+r.x*q.w+r.y*q.z-r.z*q.y,
		r.w*q.y-r.x*q.z+r.y*q.w+r.z*q.x,
		r.w*q.z+r.x*q.y-r.y*q.x+r.z*q.w,
		r.w*q.w-r.x*q.x-r.y*q.y-r.z*q.z,
	)
}

// Rotate applies the active rotation represented by q to v: the vector is
// moved, the frame stays fixed.
func (q Quaternion) Rotate(v [3]float64) [3]float64 {
	return sandwich(q, q.Inverse(), v)
}

// Transform applies the passive rotation represented by q to v: the frame
// is changed, the vector (as a physical arrow) stays fixed.
func (q Quaternion) Transform(v [3]float64) [3]float64 {
	return sandwich(q.Inverse(), q, v)
}

func sandwich(left, right Quaternion, v [3]float64) [3]float64 {
	vMag := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if vMag < epsNorm {
		return [3]float64{0, 0, 0}
	}
	// v as a pure quaternion, unnormalized by construction, so build the
	// product directly rather than through NewQuaternion (which would
	// normalize away the magnitude we need to restore afterward).
	vx, vy, vz := v[0]/vMag, v[1]/vMag, v[2]/vMag
	t := rawMul(left, rawQuat(vx, vy, vz, 0))
	t = rawMul(t, right)
	return [3]float64{vMag * t.x, vMag * t.y, vMag * t.z}
}

func rawQuat(x, y, z, w float64) Quaternion { return Quaternion{x, y, z, w} }

func rawMul(a, b Quaternion) Quaternion {
	return Quaternion{
		a.w*b.x + a.x*b.w + a.y*b.z - a.z*b.y,
		a.w*b.y - a.x*b.z + a.y*b.w + a.z*b.x,
		a.w*b.z + a.x*b.y - a.y*b.x + a.z*b.w,
		a.w*b.w - a.x*b.x - a.y*b.y - a.z*b.z,
	}
}

// Matrix3 is a row-major 3x3 rotation matrix.
type Matrix3 struct {
	e11, e12, e13 float64
	e21, e22, e23 float64
	e31, e32, e33 float64
}

// NewMatrix3 builds a Matrix3 from its nine entries in row-major order.
func NewMatrix3(e11, e12, e13, e21, e22, e23, e31, e32, e33 float64) Matrix3 {
	return Matrix3{e11, e12, e13, e21, e22, e23, e31, e32, e33}
}

// Matrix3Identity returns the identity rotation matrix.
func Matrix3Identity() Matrix3 {
	return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Rows returns the three rows of the matrix.
func (m Matrix3) Rows() (r0, r1, r2 [3]float64) {
	return [3]float64{m.e11, m.e12, m.e13},
		[3]float64{m.e21, m.e22, m.e23},
		[3]float64{m.e31, m.e32, m.e33}
}

// Transpose returns the matrix transpose, which for a rotation matrix is
// also its inverse.
func (m Matrix3) Transpose() Matrix3 {
	return Matrix3{
		m.e11, m.e21, m.e31,
		m.e12, m.e22, m.e32,
		m.e13, m.e23, m.e33,
	}
}

// MulVector applies the matrix to a column vector.
func (m Matrix3) MulVector(v [3]float64) [3]float64 {
	return [3]float64{
		m.e11*v[0] + m.e12*v[1] + m.e13*v[2],
		m.e21*v[0] + m.e22*v[1] + m.e23*v[2],
		m.e31*v[0] + m.e32*v[1] + m.e33*v[2],
	}
}

// Mul composes two matrices: (m ⋅ n) applied to v equals m applied to (n
// applied to v).
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	return Matrix3{
		m.e11*n.e11 + m.e12*n.e21 + m.e13*n.e31,
		m.e11*n.e12 + m.e12*n.e22 + m.e13*n.e32,
		m.e11*n.e13 + m.e12*n.e23 + m.e13*n.e33,

		m.e21*n.e11 + m.e22*n.e21 + m.e23*n.e31,
		m.e21*n.e12 + m.e22*n.e22 + m.e23*n.e32,
		m.e21*n.e13 + m.e22*n.e23 + m.e23*n.e33,

		m.e31*n.e11 + m.e32*n.e21 + m.e33*n.e31,
		m.e31*n.e12 + m.e32*n.e22 + m.e33*n.e32,
		m.e31*n.e13 + m.e32*n.e23 + m.e33*n.e33,
	}
}

// EulerSequence enumerates the 12 rotation sequences used by this module:
// the 6 Tait-Bryan (all-distinct-axis) and 6 proper (repeated first/last
// axis) conventions.
type EulerSequence int

const (
	XYZ EulerSequence = iota
	XZY
	YXZ
	YZX
	ZXY
	ZYX
	XYX
	XZX
	YXY
	YZY
	ZXZ
	ZYZ
)

// EulerAngles is a rotation expressed as three angles (radians) under a
// named sequence: intrinsic rotation by a about the sequence's first axis,
// then b about the (rotated) second axis, then c about the (twice-rotated)
// third axis.
type EulerAngles struct {
	sequence EulerSequence
	a, b, c  float64
}

// NewEulerAngles builds an EulerAngles value.
func NewEulerAngles(sequence EulerSequence, a, b, c float64) EulerAngles {
	return EulerAngles{sequence, a, b, c}
}

// Sequence returns the rotation's sequence tag.
func (e EulerAngles) Sequence() EulerSequence { return e.sequence }

// Angles returns the three angles in (a, b, c) order.
func (e EulerAngles) Angles() (a, b, c float64) { return e.a, e.b, e.c }

// QuaternionFromEuler converts Euler angles to a quaternion using half-angle
// formulae branched by sequence (Tait-Bryan vs proper Euler).
func QuaternionFromEuler(e EulerAngles) Quaternion {
	phi, theta, psi := e.a, e.b, e.c
	cPhi, cTheta, cPsi := math.Cos(phi/2), math.Cos(theta/2), math.Cos(psi/2)
	sPhi, sTheta, sPsi := math.Sin(phi/2), math.Sin(theta/2), math.Sin(psi/2)

	switch e.sequence {
	case XYZ:
		return NewQuaternion(
			sPhi*cTheta*cPsi+cPhi*sTheta*sPsi,
			cPhi*sTheta*cPsi-sPhi*cTheta*sPsi,
			cPhi*cTheta*sPsi+sPhi*sTheta*cPsi,
			cPhi*cTheta*cPsi-sPhi*sTheta*sPsi,
		)
	case XZY:
		return NewQuaternion(
			sPhi*cTheta*cPsi-cPhi*sTheta*sPsi,
			cPhi*cTheta*sPsi-sPhi*sTheta*cPsi,
			cPhi*cTheta*sPsi+sPhi*sTheta*cPsi,
			cPhi*cTheta*cPsi+sPhi*sTheta*sPsi,
		)
	case YXZ:
		return NewQuaternion(
			cPhi*sTheta*cPsi+sPhi*cTheta*sPsi,
			sPhi*cTheta*cPsi-cPhi*sTheta*sPsi,
			cPhi*cTheta*sPsi-sPhi*sTheta*cPsi,
			cPhi*cTheta*cPsi+sPhi*sTheta*sPsi,
		)
	case YZX:
		return NewQuaternion(
			cPhi*cTheta*sPsi+sPhi*sTheta*cPsi,
			sPhi*cTheta*cPsi+cPhi*sTheta*sPsi,
			cPhi*sTheta*cPsi-sPhi*cTheta*sPsi,
			cPhi*cTheta*cPsi-sPhi*sTheta*sPsi,
		)
	case ZXY:
		return NewQuaternion(
			cPhi*sTheta*cPsi-sPhi*cTheta*sPsi,
			cPhi*cTheta*sPsi+sPhi*sTheta*cPsi,
			cPhi*sTheta*sPsi+sPhi*cTheta*cPsi,
			cPhi*cTheta*cPsi-sPhi*sTheta*sPsi,
		)
	case ZYX:
		return NewQuaternion(
			cPhi*cTheta*sPsi-sPhi*sTheta*cPsi,
			cPhi*sTheta*cPsi+sPhi*cTheta*sPsi,
			sPhi*cTheta*cPsi-cPhi*sTheta*sPsi,
			cPhi*cTheta*cPsi+sPhi*sTheta*sPsi,
		)
	case XYX:
		return NewQuaternion(
			cTheta*(sPhi+sPsi),
			sTheta*(cPhi-cPsi),
			sTheta*(sPhi-sPsi),
			cTheta*(cPhi+cPsi),
		)
	case XZX:
		return NewQuaternion(
			cTheta*(sPhi+sPsi),
			sTheta*(sPsi-sPhi),
			sTheta*(cPsi-cPhi),
			cTheta*(cPhi+cPsi),
		)
	case YXY:
		return NewQuaternion(
			sTheta*(cPsi-cPhi),
			cTheta*(sPhi+sPsi),
			sTheta*(sPsi-sPhi),
			cTheta*(cPhi+cPsi),
		)
	case YZY:
		return NewQuaternion(
			sTheta*(sPhi-sPsi),
			cTheta*(sPhi+cPsi),
			sTheta*(cPhi-cPsi),
			cTheta*(cPhi+cPsi),
		)
	case ZXZ:
		return NewQuaternion(
			sTheta*(cPhi-sPsi),
			sTheta*(sPhi-cPsi),
			cTheta*(sPhi+sPsi),
			cTheta*(cPhi+cPsi),
		)
	case ZYZ:
		return NewQuaternion(
			sTheta*(sPsi-sPhi),
			sTheta*(cPsi-cPhi),
			cTheta*(sPhi+sPsi),
			cTheta*(cPhi+cPsi),
		)
	default:
		return QuaternionIdentity()
	}
}

// MatrixFromQuaternion converts a quaternion to its equivalent rotation
// matrix via the standard closed-form expansion.
func MatrixFromQuaternion(q Quaternion) Matrix3 {
	x, y, z, w := q.x, q.y, q.z, q.w
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Matrix3{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy),
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx),
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy),
	}
}

// QuaternionFromMatrix converts a rotation matrix to a quaternion following
// the trace-largest-diagonal discriminator, which avoids cancellation near
// any single axis.
func QuaternionFromMatrix(m Matrix3) Quaternion {
	trace := m.e11 + m.e22 + m.e33

	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		return NewQuaternion(
			(m.e32-m.e23)/s,
			(m.e13-m.e31)/s,
			(m.e21-m.e12)/s,
			0.25*s,
		)
	case m.e11 > m.e22 && m.e11 > m.e33:
		s := math.Sqrt(1+m.e11-m.e22-m.e33) * 2
		return NewQuaternion(
			0.25*s,
			(m.e12+m.e21)/s,
			(m.e13+m.e31)/s,
			(m.e32-m.e23)/s,
		)
	case m.e22 > m.e33:
		s := math.Sqrt(1+m.e22-m.e11-m.e33) * 2
		return NewQuaternion(
			(m.e12+m.e21)/s,
			0.25*s,
			(m.e23+m.e32)/s,
			(m.e13-m.e31)/s,
		)
	default:
		s := math.Sqrt(1+m.e33-m.e11-m.e22) * 2
		return NewQuaternion(
			(m.e13+m.e31)/s,
			(m.e23+m.e32)/s,
			0.25*s,
			(m.e21-m.e12)/s,
		)
	}
}

// MatrixFromEuler builds the rotation matrix for the given sequence by
// composing three elementary axis rotations, rather than a per-sequence
// closed form: M = R_first(a) · R_second(b) · R_third(c).
func MatrixFromEuler(e EulerAngles) Matrix3 {
	axes := sequenceAxes(e.sequence)
	m1 := elementary(axes[0], e.a)
	m2 := elementary(axes[1], e.b)
	m3 := elementary(axes[2], e.c)
	return m1.Mul(m2).Mul(m3)
}

// axis identifies one of the three coordinate axes for elementary().
type axis int

const (
	axisX axis = iota
	axisY
	axisZ
)

func sequenceAxes(seq EulerSequence) [3]axis {
	switch seq {
	case XYZ:
		return [3]axis{axisX, axisY, axisZ}
	case XZY:
		return [3]axis{axisX, axisZ, axisY}
	case YXZ:
		return [3]axis{axisY, axisX, axisZ}
	case YZX:
		return [3]axis{axisY, axisZ, axisX}
	case ZXY:
		return [3]axis{axisZ, axisX, axisY}
	case ZYX:
		return [3]axis{axisZ, axisY, axisX}
	case XYX:
		return [3]axis{axisX, axisY, axisX}
	case XZX:
		return [3]axis{axisX, axisZ, axisX}
	case YXY:
		return [3]axis{axisY, axisX, axisY}
	case YZY:
		return [3]axis{axisY, axisZ, axisY}
	case ZXZ:
		return [3]axis{axisZ, axisX, axisZ}
	default: // ZYZ
		return [3]axis{axisZ, axisY, axisZ}
	}
}

func elementary(a axis, t float64) Matrix3 {
	c, s := math.Cos(t), math.Sin(t)
	switch a {
	case axisX:
		return Matrix3{1, 0, 0, 0, c, -s, 0, s, c}
	case axisY:
		return Matrix3{c, 0, s, 0, 1, 0, -s, 0, c}
	default: // axisZ
		return Matrix3{c, -s, 0, s, c, 0, 0, 0, 1}
	}
}

// EulerFromMatrix extracts the angles of the given sequence from a rotation
// matrix. Tait-Bryan sequences use an asin/atan2 extraction; proper
// (repeated-axis) sequences use an acos/atan2 extraction. At a gimbal-lock
// singularity (cos(b) ≈ 0 for Tait-Bryan or sin(b) ≈ 0 for proper, i.e.
// b at the range boundary) the decomposition between a and c is not unique;
// this picks the canonical representative with c = 0.
func EulerFromMatrix(seq EulerSequence, m Matrix3) EulerAngles {
	clamp := func(x float64) float64 {
		if x > 1 {
			return 1
		}
		if x < -1 {
			return -1
		}
		return x
	}

	const gimbalEps = 1e-9

	switch seq {
	case XYZ:
		b := math.Asin(clamp(m.e13))
		if math.Abs(m.e13) > 1-gimbalEps {
			return EulerAngles{seq, math.Atan2(m.e32, m.e22), b, 0}
		}
		return EulerAngles{seq, math.Atan2(-m.e23, m.e33), b, math.Atan2(-m.e12, m.e11)}
	case XZY:
		b := math.Asin(clamp(-m.e12))
		if math.Abs(m.e12) > 1-gimbalEps {
			return EulerAngles{seq, math.Atan2(-m.e23, m.e33), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e32, m.e22), b, math.Atan2(m.e13, m.e11)}
	case YXZ:
		b := math.Asin(clamp(-m.e23))
		if math.Abs(m.e23) > 1-gimbalEps {
			return EulerAngles{seq, math.Atan2(-m.e31, m.e11), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e13, m.e33), b, math.Atan2(m.e21, m.e22)}
	case YZX:
		b := math.Asin(clamp(m.e21))
		if math.Abs(m.e21) > 1-gimbalEps {
			return EulerAngles{seq, math.Atan2(m.e13, m.e33), b, 0}
		}
		return EulerAngles{seq, math.Atan2(-m.e31, m.e11), b, math.Atan2(-m.e23, m.e22)}
	case ZXY:
		b := math.Asin(clamp(m.e32))
		if math.Abs(m.e32) > 1-gimbalEps {
			return EulerAngles{seq, math.Atan2(m.e21, m.e11), b, 0}
		}
		return EulerAngles{seq, math.Atan2(-m.e12, m.e22), b, math.Atan2(-m.e31, m.e33)}
	case ZYX:
		b := math.Asin(clamp(-m.e31))
		if math.Abs(m.e31) > 1-gimbalEps {
			return EulerAngles{seq, math.Atan2(-m.e12, m.e22), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e21, m.e11), b, math.Atan2(m.e32, m.e33)}

	case XYX:
		b := math.Acos(clamp(m.e11))
		if math.Abs(m.e11) > 1-gimbalEps {
			if m.e11 > 0 {
				return EulerAngles{seq, math.Atan2(m.e32, m.e22), b, 0}
			}
			return EulerAngles{seq, math.Atan2(m.e23, m.e22), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e21, -m.e31), b, math.Atan2(m.e12, m.e13)}
	case XZX:
		b := math.Acos(clamp(m.e11))
		if math.Abs(m.e11) > 1-gimbalEps {
			if m.e11 > 0 {
				return EulerAngles{seq, math.Atan2(m.e32, m.e22), b, 0}
			}
			return EulerAngles{seq, math.Atan2(-m.e23, -m.e22), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e31, m.e21), b, math.Atan2(m.e13, -m.e12)}
	case YXY:
		b := math.Acos(clamp(m.e22))
		if math.Abs(m.e22) > 1-gimbalEps {
			if m.e22 > 0 {
				return EulerAngles{seq, math.Atan2(m.e13, m.e11), b, 0}
			}
			return EulerAngles{seq, math.Atan2(-m.e13, m.e11), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e12, m.e32), b, math.Atan2(m.e21, -m.e23)}
	case YZY:
		b := math.Acos(clamp(m.e22))
		if math.Abs(m.e22) > 1-gimbalEps {
			if m.e22 > 0 {
				return EulerAngles{seq, math.Atan2(m.e13, m.e11), b, 0}
			}
			return EulerAngles{seq, math.Atan2(m.e13, -m.e11), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e32, -m.e12), b, math.Atan2(m.e23, m.e21)}
	case ZXZ:
		b := math.Acos(clamp(m.e33))
		if math.Abs(m.e33) > 1-gimbalEps {
			if m.e33 > 0 {
				return EulerAngles{seq, math.Atan2(m.e21, m.e11), b, 0}
			}
			return EulerAngles{seq, math.Atan2(m.e12, m.e11), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e13, -m.e23), b, math.Atan2(m.e31, m.e32)}
	default: // ZYZ
		b := math.Acos(clamp(m.e33))
		if math.Abs(m.e33) > 1-gimbalEps {
			if m.e33 > 0 {
				return EulerAngles{seq, math.Atan2(m.e21, m.e11), b, 0}
			}
			return EulerAngles{seq, math.Atan2(-m.e12, -m.e11), b, 0}
		}
		return EulerAngles{seq, math.Atan2(m.e23, m.e13), b, math.Atan2(m.e32, -m.e31)}
	}
}

// EulerFromQuaternion converts a quaternion to Euler angles of the given
// sequence by routing through the rotation matrix.
func EulerFromQuaternion(seq EulerSequence, q Quaternion) EulerAngles {
	return EulerFromMatrix(seq, MatrixFromQuaternion(q))
}
