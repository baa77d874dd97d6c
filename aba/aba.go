// Package aba implements the three-pass Articulated Body Algorithm over
// a multibody topology: an outward velocity pass, an inward
// articulated-inertia pass, and a final outward acceleration pass,
// yielding each joint's generalized acceleration. Every joint type
// (Revolute, Prismatic, Floating) is handled through the same uniform
// 6x6 dense-matrix operations rather than per-type fast paths, since a
// Floating joint's 6-DOF motion subspace is the full identity and
// cannot be reduced to the column-indexing shortcuts a 1-DOF joint
// allows.
package aba

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/anupshinde/multibody-sim/multibody"
	"github.com/anupshinde/multibody-sim/rotation"
	"github.com/anupshinde/multibody-sim/spatial"
)

// Scratch holds one joint's per-step articulated-body working set: the
// articulated inertia Iᴬ, the projected quantities U/D⁻¹/u, and the
// resulting generalized acceleration. It is the general 6x6 matrix
// counterpart of multibody.JointCache's spatial-vector fields, kept
// separate because Iᴬ accumulates rank updates that spatial.SpatialInertia's
// closed (mass, com, inertia-tensor) form cannot represent once a joint
// has picked up its children's contributions.
type Scratch struct {
	IA    *mat.Dense // 6x6 articulated inertia, this joint's output frame
	S     *mat.Dense // 6xD motion subspace
	U     *mat.Dense // 6xD
	Dinv  *mat.Dense // DxD
	u     []float64  // D
	c     spatial.MotionVector
	pA    spatial.ForceVector
	qddot []float64 // D, the generalized acceleration resolved by the third pass
}

// Solver runs the three ABA passes over a fixed multibody.System,
// reusing one Scratch slot per joint across steps.
type Solver struct {
	sys     *multibody.System
	scratch []*Scratch
}

// NewSolver allocates the per-joint scratch for sys. The system's
// topology (joint count, DOF, parent indices) must not change after
// this call; rebuild the Solver if it does.
func NewSolver(sys *multibody.System) *Solver {
	scratch := make([]*Scratch, len(sys.Joints))
	for i, j := range sys.Joints {
		dof := j.Type.DOF()
		scratch[i] = &Scratch{
			S:    motionSubspaceMatrix(j.Type),
			U:    mat.NewDense(6, dof, nil),
			Dinv: mat.NewDense(dof, dof, nil),
			u:    make([]float64, dof),
		}
	}
	return &Solver{sys: sys, scratch: scratch}
}

// motionSubspaceMatrix builds the 6xD motion subspace S: a single
// column for Revolute/Prismatic (the joint's fixed axis), or the full
// 6x6 identity for Floating.
func motionSubspaceMatrix(t multibody.JointType) *mat.Dense {
	if t == multibody.Floating {
		return mat.NewDense(6, 6, identity36())
	}
	s := t.MotionSubspace()
	col := mat.NewDense(6, 1, motionVectorTo6(s))
	return col
}

func identity36() []float64 {
	out := make([]float64, 36)
	for i := 0; i < 6; i++ {
		out[i*6+i] = 1
	}
	return out
}

func motionVectorTo6(v spatial.MotionVector) []float64 {
	ang, lin := v.Angular(), v.Linear()
	return []float64{ang[0], ang[1], ang[2], lin[0], lin[1], lin[2]}
}

func forceVectorTo6(f spatial.ForceVector) []float64 {
	torque, force := f.Torque(), f.Force()
	return []float64{torque[0], torque[1], torque[2], force[0], force[1], force[2]}
}

func motionVectorFrom6(v []float64) spatial.MotionVector {
	return spatial.NewMotionVector([3]float64{v[0], v[1], v[2]}, [3]float64{v[3], v[4], v[5]})
}

func forceVectorFrom6(f []float64) spatial.ForceVector {
	return spatial.NewForceVector([3]float64{f[0], f[1], f[2]}, [3]float64{f[3], f[4], f[5]})
}

// motionMatrix materializes a spatial.Transform's action on motion
// vectors as a dense 6x6 matrix, by applying it to the six standard
// basis vectors.
func motionMatrix(x spatial.Transform) *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for col := 0; col < 6; col++ {
		basis := make([]float64, 6)
		basis[col] = 1
		out := motionVectorTo6(x.Motion(motionVectorFrom6(basis)))
		for row := 0; row < 6; row++ {
			m.Set(row, col, out[row])
		}
	}
	return m
}

// forceMatrix materializes a spatial.Transform's action on force
// vectors as a dense 6x6 matrix.
func forceMatrix(x spatial.Transform) *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for col := 0; col < 6; col++ {
		basis := make([]float64, 6)
		basis[col] = 1
		out := forceVectorTo6(x.Force(forceVectorFrom6(basis)))
		for row := 0; row < 6; row++ {
			m.Set(row, col, out[row])
		}
	}
	return m
}

// transformInertia expresses an articulated inertia Iᴬ given in the
// frame x maps from (X_to<-from = x) into the "to" frame: I' = Xf · Iᴬ · Xm⁻¹,
// the spatial-algebra dual-transform sandwich that keeps I' symmetric
// whenever Iᴬ is.
func transformInertia(x spatial.Transform, ia *mat.Dense) *mat.Dense {
	xf := forceMatrix(x)
	xmInv := motionMatrix(x.Inverse())
	var tmp, out mat.Dense
	tmp.Mul(ia, xmInv)
	out.Mul(xf, &tmp)
	return &out
}

func symDenseToDense(s *mat.SymDense) *mat.Dense {
	n, _ := s.Dims()
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d.Set(i, j, s.At(i, j))
		}
	}
	return d
}

// CalculateTau evaluates a joint's generalized force from its
// spring/damper/constant-force parameters and current generalized
// position/velocity: tau_k = constantForce_k - springConstant_k*(q_k -
// equilibrium_k) - damping_k*qdot_k, written into j.Cache.Tau.
func CalculateTau(j *multibody.Joint) {
	switch j.Type {
	case multibody.Revolute, multibody.Prismatic:
		p := j.Parameters[0]
		tau := p.ConstantForce - p.SpringConstant*(j.State.Position-p.Equilibrium) - p.Damping*j.State.Velocity
		j.Cache.Tau = []float64{tau}
	default: // Floating
		rates := []float64{j.State.AngularRate[0], j.State.AngularRate[1], j.State.AngularRate[2],
			j.State.LinearVelocity[0], j.State.LinearVelocity[1], j.State.LinearVelocity[2]}
		positions := eulerAndPosition(j)
		tau := make([]float64, 6)
		for k := 0; k < 6; k++ {
			p := j.Parameters[k]
			tau[k] = p.ConstantForce - p.SpringConstant*(positions[k]-p.Equilibrium) - p.Damping*rates[k]
		}
		j.Cache.Tau = tau
	}
}

// eulerAndPosition extracts the 6 generalized positions a Floating
// joint's spring terms act on: a ZYX Tait-Bryan angle triple from the
// joint's attitude quaternion, followed by its Cartesian position.
func eulerAndPosition(j *multibody.Joint) []float64 {
	angles := rotation.EulerFromQuaternion(rotation.ZYX, j.State.Attitude)
	a, b, c := angles.Angles()
	p := j.State.BodyPosition
	return []float64{a, b, c, p[0], p[1], p[2]}
}

// Solve runs the three ABA passes in place: first pass computes each
// joint's velocity, velocity-product term c, and bias force pA; second
// pass (root to leaf order assumed already reversed by the caller's
// topology — here walked tip to root via the slice's reverse order)
// projects out each joint's own DOF and folds its contribution into its
// parent's Iᴬ/pA; third pass propagates accelerations back down and
// reads off qddot. externalForceOB supplies, per joint index, the
// external spatial force (actuator + environment) acting on that
// joint's outer body, expressed in the body's OB frame.
func (s *Solver) Solve(externalForceOB []spatial.ForceVector) error {
	joints := s.sys.Joints
	if len(externalForceOB) != len(joints) {
		return fmt.Errorf("aba: need one external force per joint, got %d want %d", len(externalForceOB), len(joints))
	}

	// First pass: outward, root to leaf.
	for i, j := range joints {
		sc := s.scratch[i]
		var vij spatial.MotionVector
		if j.ParentJointIndex >= 0 {
			vij = joints[j.ParentJointIndex].Cache.V
		}
		vj := jointSpaceVelocity(j)
		j.Cache.VJ = vj
		j.Cache.V = j.Transforms.JOFFromIJJOF.Motion(vij).Add(vj)
		sc.c = spatial.CrossMotion(j.Cache.V, vj)

		sc.IA = symDenseToDense(j.OuterBody.MassProperties.Dense())
		fIv := j.OuterBody.MassProperties.Apply(j.Cache.V)
		fOB := j.Transforms.JOFFromOB.Force(externalForceOB[i]).Scale(-1)
		sc.pA = spatial.CrossForce(j.Cache.V, fIv).Add(fOB)
	}

	// Second pass: inward, leaf to root, accumulating into each
	// joint's parent before the parent is itself processed.
	parentIA := make([]*mat.Dense, len(joints))
	parentPA := make([]spatial.ForceVector, len(joints))
	for i := range joints {
		parentIA[i] = mat.NewDense(6, 6, nil)
	}

	for i := len(joints) - 1; i >= 0; i-- {
		j := joints[i]
		sc := s.scratch[i]

		ia := mat.NewDense(6, 6, nil)
		ia.Add(sc.IA, parentIA[i])
		pA := sc.pA.Add(parentPA[i])

		dof := j.Type.DOF()
		sc.U.Mul(ia, sc.S)

		var d mat.Dense
		var sT mat.Dense
		sT.CloneFrom(sc.S.T())
		d.Mul(&sT, sc.U)
		dinv := mat.NewDense(dof, dof, nil)
		if err := dinv.Inverse(&d); err != nil {
			return fmt.Errorf("aba: joint %q has a singular D (check mass properties along its motion subspace): %w", j.Name, err)
		}
		sc.Dinv = dinv

		pAVec := mat.NewVecDense(6, forceVectorTo6(pA))
		var sTpA mat.VecDense
		sTpA.MulVec(&sT, pAVec)
		tauVec := mat.NewVecDense(dof, j.Cache.Tau)
		var uVec mat.VecDense
		uVec.SubVec(tauVec, &sTpA)
		sc.u = make([]float64, dof)
		for k := 0; k < dof; k++ {
			sc.u[k] = uVec.AtVec(k)
		}

		if j.ParentJointIndex < 0 {
			continue
		}

		var uDinv mat.Dense
		uDinv.Mul(sc.U, sc.Dinv)

		var uDinvUT, iaPrime mat.Dense
		uDinvUT.Mul(&uDinv, sc.U.T())
		iaPrime.Sub(ia, &uDinvUT)

		cVec := mat.NewVecDense(6, motionVectorTo6(sc.c))
		var iaPrimeC mat.VecDense
		iaPrimeC.MulVec(&iaPrime, cVec)

		uDinvU := mat.NewVecDense(dof, sc.u)
		var uTerm mat.VecDense
		uTerm.MulVec(&uDinv, uDinvU)

		var paPrimeVec mat.VecDense
		paPrimeVec.AddVec(&iaPrimeC, &uTerm)
		paPrime := pA.Add(forceVectorFrom6(paPrimeVec.RawVector().Data))

		toParent := j.Transforms.JOFFromIJJOF.Inverse()
		transformedIA := transformInertia(toParent, &iaPrime)
		transformedPA := toParent.Force(paPrime)

		parentIA[j.ParentJointIndex].Add(parentIA[j.ParentJointIndex], transformedIA)
		parentPA[j.ParentJointIndex] = parentPA[j.ParentJointIndex].Add(transformedPA)

		sc.pA = pA
	}

	// Third pass: outward, root to leaf.
	for i, j := range joints {
		sc := s.scratch[i]
		var aij spatial.MotionVector
		if j.ParentJointIndex >= 0 {
			aij = joints[j.ParentJointIndex].Cache.A
		}
		aPrime := j.Transforms.JOFFromIJJOF.Motion(aij).Add(sc.c)

		dof := j.Type.DOF()
		uTaPrime := mat.NewVecDense(dof, nil)
		var uT mat.Dense
		uT.CloneFrom(sc.U.T())
		uTaPrime.MulVec(&uT, mat.NewVecDense(6, motionVectorTo6(aPrime)))

		qddot := make([]float64, dof)
		uMinus := mat.NewVecDense(dof, nil)
		uMinus.SubVec(mat.NewVecDense(dof, sc.u), uTaPrime)
		var qddotVec mat.VecDense
		qddotVec.MulVec(sc.Dinv, uMinus)
		for k := 0; k < dof; k++ {
			qddot[k] = qddotVec.AtVec(k)
		}

		sVec := mat.NewDense(6, dof, nil)
		sVec.Mul(sc.S, mat.NewVecDense(dof, qddot))
		sq := make([]float64, 6)
		for r := 0; r < 6; r++ {
			sq[r] = sVec.At(r, 0)
		}
		j.Cache.A = aPrime.Add(motionVectorFrom6(sq))
		sc.qddot = qddot
	}

	return nil
}

// QDDot returns the generalized acceleration Solve computed for the
// joint at the given index in s's topology, most recent call only:
// length 1 for Revolute/Prismatic, length 6 (angular, then linear) for
// Floating.
func (s *Solver) QDDot(jointIndex int) []float64 {
	return s.scratch[jointIndex].qddot
}

// jointSpaceVelocity mirrors multibody's own (unexported) helper: vⱼ =
// S·q̇ for 1-DOF joints, or the direct angular/linear state for a
// Floating joint.
func jointSpaceVelocity(j *multibody.Joint) spatial.MotionVector {
	if j.Type == multibody.Floating {
		return spatial.NewMotionVector(j.State.AngularRate, j.State.LinearVelocity)
	}
	return j.Type.MotionSubspace().Scale(j.State.Velocity)
}

