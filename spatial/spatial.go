// Package spatial implements Featherstone-style spatial vector algebra:
// 6-dimensional motion and force vectors, Plucker coordinate transforms
// between body frames, and the spatial inertia tensor, represented so
// that its symmetry cannot be broken by the frame-transform update.
package spatial

import (
	"gonum.org/v1/gonum/mat"

	"github.com/anupshinde/multibody-sim/rotation"
)

// MotionVector is a spatial velocity/acceleration: (angular; linear).
type MotionVector struct {
	angular [3]float64
	linear  [3]float64
}

// NewMotionVector builds a motion vector from its angular and linear halves.
func NewMotionVector(angular, linear [3]float64) MotionVector {
	return MotionVector{angular: angular, linear: linear}
}

func (v MotionVector) Angular() [3]float64 { return v.angular }
func (v MotionVector) Linear() [3]float64  { return v.linear }

func (v MotionVector) Add(u MotionVector) MotionVector {
	return MotionVector{add3(v.angular, u.angular), add3(v.linear, u.linear)}
}

func (v MotionVector) Scale(s float64) MotionVector {
	return MotionVector{scale3(s, v.angular), scale3(s, v.linear)}
}

// ForceVector is a spatial force/momentum: (torque; force).
type ForceVector struct {
	torque [3]float64
	force  [3]float64
}

func NewForceVector(torque, force [3]float64) ForceVector {
	return ForceVector{torque: torque, force: force}
}

func (f ForceVector) Torque() [3]float64 { return f.torque }
func (f ForceVector) Force() [3]float64  { return f.force }

func (f ForceVector) Add(g ForceVector) ForceVector {
	return ForceVector{add3(f.torque, g.torque), add3(f.force, g.force)}
}

func (f ForceVector) Scale(s float64) ForceVector {
	return ForceVector{scale3(s, f.torque), scale3(s, f.force)}
}

// Dot is the spatial scalar product between a motion vector and a force
// vector, i.e. the power ω·τ + v·F.
func Dot(v MotionVector, f ForceVector) float64 {
	return dot3(v.angular, f.torque) + dot3(v.linear, f.force)
}

// CrossMotion is the spatial motion-on-motion cross product v ×m u:
// {ω×ωᵤ ; ω×vᵤ + v×ωᵤ}.
func CrossMotion(v, u MotionVector) MotionVector {
	return MotionVector{
		angular: cross3(v.angular, u.angular),
		linear:  add3(cross3(v.angular, u.linear), cross3(v.linear, u.angular)),
	}
}

// CrossForce is the spatial motion-on-force cross product v ×f f:
// {ω×τ + v×F ; ω×F}.
func CrossForce(v MotionVector, f ForceVector) ForceVector {
	return ForceVector{
		torque: add3(cross3(v.angular, f.torque), cross3(v.linear, f.force)),
		force:  cross3(v.angular, f.force),
	}
}

func add3(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func sub3(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func scale3(s float64, a [3]float64) [3]float64 {
	return [3]float64{s * a[0], s * a[1], s * a[2]}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Transform is a Plucker coordinate transform between two body frames,
// B <- A, carrying the rotation taking A-frame coordinates to B-frame
// coordinates and the translation from B's origin to A's origin,
// expressed in B coordinates.
type Transform struct {
	rot   rotation.Matrix3
	trans [3]float64
}

// NewTransform builds a frame transform from a rotation and translation.
func NewTransform(rot rotation.Matrix3, trans [3]float64) Transform {
	return Transform{rot: rot, trans: trans}
}

func (x Transform) Rotation() rotation.Matrix3 { return x.rot }
func (x Transform) Translation() [3]float64    { return x.trans }

// Inverse computes X_A<-B from X_B<-A as (Rᵀ, −Rᵀt), recomputed on demand:
// at 3x3 scale this is cheaper than caching and invalidating a cache.
func (x Transform) Inverse() Transform {
	rt := x.rot.Transpose()
	return Transform{rot: rt, trans: scale3(-1, rt.MulVector(x.trans))}
}

// Compose returns X_C<-A given x = X_B<-A and y = X_C<-B, i.e. y.Compose(x).
func (y Transform) Compose(x Transform) Transform {
	return Transform{
		rot:   y.rot.Mul(x.rot),
		trans: add3(y.trans, y.rot.MulVector(x.trans)),
	}
}

// Motion applies the transform to a motion vector, with t the
// translation above: X(motion) = {{R, 0}; {[t]×R, R}}.
func (x Transform) Motion(v MotionVector) MotionVector {
	angular := x.rot.MulVector(v.angular)
	linear := add3(x.rot.MulVector(v.linear), cross3(x.trans, angular))
	return MotionVector{angular: angular, linear: linear}
}

// Force applies the transform to a force vector, the dual of Motion:
// X(force) = {{R, [t]×R}; {0, R}}.
func (x Transform) Force(f ForceVector) ForceVector {
	force := x.rot.MulVector(f.force)
	torque := add3(x.rot.MulVector(f.torque), cross3(x.trans, force))
	return ForceVector{torque: torque, force: force}
}

// SpatialInertia holds the six independent scalars of a 6x6 spatial
// inertia block (mass, center of mass, and the six unique entries of
// the rotational inertia tensor about the center of mass) rather than a
// dense matrix, so the frame-transform update cannot break symmetry.
type SpatialInertia struct {
	mass          float64
	cx, cy, cz    float64
	ixx, iyy, izz float64
	ixy, ixz, iyz float64
}

// NewSpatialInertia builds a spatial inertia from mass, center of mass
// (in body-origin coordinates) and the rotational inertia tensor about
// the center of mass. The body-origin block used by Apply and Dense is
// derived from this via the parallel-axis theorem.
func NewSpatialInertia(mass float64, com [3]float64, ixx, iyy, izz, ixy, ixz, iyz float64) SpatialInertia {
	return SpatialInertia{
		mass: mass,
		cx:   com[0], cy: com[1], cz: com[2],
		ixx: ixx, iyy: iyy, izz: izz,
		ixy: ixy, ixz: ixz, iyz: iyz,
	}
}

func (s SpatialInertia) Mass() float64          { return s.mass }
func (s SpatialInertia) CenterOfMass() [3]float64 { return [3]float64{s.cx, s.cy, s.cz} }

// Apply computes I·v as a spatial force, using the block structure
// {{Ī, m[c]×}; {−m[c]×, m·1}} directly rather than a dense multiply.
// Ī is the stored center-of-mass tensor corrected to the body origin via
// the parallel-axis theorem: Ī = Ic + m·[c]×·[c]×ᵀ = Ic − m·[c]×·[c]×.
func (s SpatialInertia) Apply(v MotionVector) ForceVector {
	com := s.CenterOfMass()
	ic := [3][3]float64{
		{s.ixx, s.ixy, s.ixz},
		{s.ixy, s.iyy, s.iyz},
		{s.ixz, s.iyz, s.izz},
	}
	ibar := parallelAxisToOrigin(ic, s.mass, com)
	ibarOmega := mulMat3Vec(ibar, v.angular)
	torque := add3(ibarOmega, cross3(scale3(s.mass, com), v.linear))
	force := sub3(scale3(s.mass, v.linear), cross3(scale3(s.mass, com), v.angular))
	return ForceVector{torque: torque, force: force}
}

// parallelAxisToOrigin shifts a center-of-mass inertia tensor ic to the
// body origin given the center of mass offset com, using the identity
// Ī = Ic + m·skewTerm(com) (equivalently Ic − m·[c]×·[c]×).
func parallelAxisToOrigin(ic [3][3]float64, mass float64, com [3]float64) [3][3]float64 {
	var out [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			out[a][b] = ic[a][b] + mass*skewTerm(com, a, b)
		}
	}
	return out
}

func mulMat3Vec(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Transform produces the spatial inertia as seen from a new frame, given
// the transform from the new frame to this inertia's frame, using the
// closed-form (m, c, I) update rather than the Xᵀ·I·X matrix product so
// that symmetry is preserved to machine precision.
func (s SpatialInertia) Transform(x Transform) SpatialInertia {
	com := s.CenterOfMass()
	rotatedCOM := x.rot.MulVector(com)
	newCOM := add3(rotatedCOM, x.trans)

	ibar := [3][3]float64{
		{s.ixx, s.ixy, s.ixz},
		{s.ixy, s.iyy, s.iyz},
		{s.ixz, s.iyz, s.izz},
	}
	rotated := rotateInertia(ibar, x.rot)

	// The stored tensor is about the center of mass, so a change of frame
	// only rotates it; the translation moves the center of mass alone.
	shifted := rotated

	return SpatialInertia{
		mass: s.mass,
		cx:   newCOM[0], cy: newCOM[1], cz: newCOM[2],
		ixx: shifted[0][0], iyy: shifted[1][1], izz: shifted[2][2],
		ixy: shifted[0][1], ixz: shifted[0][2], iyz: shifted[1][2],
	}
}

func rotateInertia(i [3][3]float64, r rotation.Matrix3) [3][3]float64 {
	r0, r1, r2 := r.Rows()
	rows := [3][3]float64{r0, r1, r2}
	var tmp, out [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rows[a][k] * i[k][b]
			}
			tmp[a][b] = sum
		}
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += tmp[a][k] * rows[b][k]
			}
			out[a][b] = sum
		}
	}
	return out
}

// parallelAxisShift moves an inertia tensor (about oldCOM, in the new
// frame's orientation, relative to the new origin) to be about newCOM,
// using the standard parallel-axis correction for a mass m displaced by
// d = newCOM - oldCOM.
func parallelAxisShift(i [3][3]float64, mass float64, oldCOM, newCOM [3]float64) [3][3]float64 {
	dOld := oldCOM
	dNew := newCOM
	var out [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			out[a][b] = i[a][b] - mass*(skewTerm(dOld, a, b)-skewTerm(dNew, a, b))
		}
	}
	return out
}

// skewTerm returns the (a,b) entry of [d]×[d]× = dᵀd·I − d⊗d, the
// parallel-axis contribution of a point mass offset by d.
func skewTerm(d [3]float64, a, b int) float64 {
	delta := 0.0
	if a == b {
		delta = 1.0
	}
	dd := d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
	return dd*delta - d[a]*d[b]
}

// Dense materializes the full 6x6 symmetric spatial inertia matrix,
// ordered (angular; linear), for use with gonum's dense linear algebra
// (the floating-root D⁻¹ solve and composite-rigid-body assembly).
func (s SpatialInertia) Dense() *mat.SymDense {
	com := s.CenterOfMass()
	cx := skewMatrix(com)
	m := mat.NewSymDense(6, nil)
	ic := [3][3]float64{
		{s.ixx, s.ixy, s.ixz},
		{s.ixy, s.iyy, s.iyz},
		{s.ixz, s.iyz, s.izz},
	}
	ibar := parallelAxisToOrigin(ic, s.mass, com)
	for a := 0; a < 3; a++ {
		for b := a; b < 3; b++ {
			m.SetSym(a, b, ibar[a][b])
			m.SetSym(a+3, b+3, boolFloat(a == b)*s.mass)
		}
	}
	mc := scaleMat3(s.mass, cx)
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			m.SetSym(a, b+3, mc[a][b])
		}
	}
	return m
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func skewMatrix(d [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -d[2], d[1]},
		{d[2], 0, -d[0]},
		{-d[1], d[0], 0},
	}
}

func scaleMat3(s float64, m [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			out[a][b] = s * m[a][b]
		}
	}
	return out
}
