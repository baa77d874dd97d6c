package aba

import (
	"gonum.org/v1/gonum/mat"

	"github.com/anupshinde/multibody-sim/multibody"
	"github.com/anupshinde/multibody-sim/spatial"
)

// CompositeRigidBody computes the generalized mass matrix H and bias
// force vector C for sys at its current state, via the O(n²)
// composite-rigid-body algorithm rather than Solve's O(n) articulated
// recursion. It exists purely as an independent cross-check of Solve's
// Iᴬ/D⁻¹ path (§8 scenario 6: H·q̈ + C = τ + Sᵀ·X·f_ext, with q̈ from
// Solve), never on the dynamics hot path.
//
// The algorithm runs two backward (leaf-to-root) sweeps over the same
// joint order Solve uses:
//   - a zero-acceleration inverse-dynamics pass (RNEA with q̈=0 and no
//     external force) accumulates each joint's own spatial inertia and
//     velocity/transport-coupling bias force with its subtree's, giving
//     the composite inertia Ic_i and composite bias force P_i used
//     below;
//   - H is then assembled by projecting Ic_i·S_i through every ancestor
//     joint's motion subspace, and C by projecting P_i through its own.
//
// H and C are indexed by the same flat per-joint-DOF layout the caller
// must combine with q̈ (e.g. the concatenation of Solver.QDDot(i) in
// joint order) and with the generalized projection of any external
// force the caller wants to include on the right-hand side.
func CompositeRigidBody(sys *multibody.System) (h *mat.Dense, c []float64) {
	joints := sys.Joints
	n := len(joints)

	s := make([]*mat.Dense, n)
	dof := make([]int, n)
	offset := make([]int, n)
	total := 0
	for i, j := range joints {
		s[i] = motionSubspaceMatrix(j.Type)
		dof[i] = j.Type.DOF()
		offset[i] = total
		total += dof[i]
	}

	// Zero-acceleration kinematics pass (root to leaf): v_i is the
	// joint's real spatial velocity; a_i is the acceleration it would
	// see if every joint's q̈ were zero and the base were inertial --
	// purely the velocity-coupling transport term, mirroring Solve's
	// own sc.c.
	v := make([]spatial.MotionVector, n)
	a := make([]spatial.MotionVector, n)
	for i, j := range joints {
		var vij, aij spatial.MotionVector
		if j.ParentJointIndex >= 0 {
			vij = v[j.ParentJointIndex]
			aij = a[j.ParentJointIndex]
		}
		vj := jointSpaceVelocity(j)
		v[i] = j.Transforms.JOFFromIJJOF.Motion(vij).Add(vj)
		cI := spatial.CrossMotion(v[i], vj)
		a[i] = j.Transforms.JOFFromIJJOF.Motion(aij).Add(cI)
	}

	// Composite inertia and composite bias force (leaf to root).
	ic := make([]*mat.Dense, n)
	pComposite := make([]spatial.ForceVector, n)
	childIC := make([]*mat.Dense, n)
	childP := make([]spatial.ForceVector, n)
	for i := range joints {
		childIC[i] = mat.NewDense(6, 6, nil)
	}

	for i := n - 1; i >= 0; i-- {
		j := joints[i]

		own := symDenseToDense(j.OuterBody.MassProperties.Dense())
		ic[i] = mat.NewDense(6, 6, nil)
		ic[i].Add(own, childIC[i])

		fIa := j.OuterBody.MassProperties.Apply(a[i])
		fIv := j.OuterBody.MassProperties.Apply(v[i])
		velocityProduct := spatial.CrossForce(v[i], fIv)
		pComposite[i] = fIa.Add(velocityProduct).Add(childP[i])

		if j.ParentJointIndex < 0 {
			continue
		}
		toParent := j.Transforms.JOFFromIJJOF.Inverse()
		transformedIC := transformInertia(toParent, ic[i])
		transformedP := toParent.Force(pComposite[i])
		childIC[j.ParentJointIndex].Add(childIC[j.ParentJointIndex], transformedIC)
		childP[j.ParentJointIndex] = childP[j.ParentJointIndex].Add(transformedP)
	}

	h = mat.NewDense(total, total, nil)
	c = make([]float64, total)

	for i := n - 1; i >= 0; i-- {
		j := joints[i]
		d := dof[i]

		var sT mat.Dense
		sT.CloneFrom(s[i].T())

		f := mat.NewDense(6, d, nil)
		f.Mul(ic[i], s[i])

		var diag mat.Dense
		diag.Mul(&sT, f)
		setBlock(h, offset[i], offset[i], &diag)

		pVec := mat.NewVecDense(6, forceVectorTo6(pComposite[i]))
		var cBlock mat.VecDense
		cBlock.MulVec(&sT, pVec)
		for r := 0; r < d; r++ {
			c[offset[i]+r] = cBlock.AtVec(r)
		}

		// Walk up to the root, transforming F=Ic_i·S_i one ancestor at
		// a time and projecting it through each ancestor's own motion
		// subspace to fill H's off-diagonal blocks.
		current := f
		for k := i; joints[k].ParentJointIndex >= 0; {
			parent := joints[k].ParentJointIndex
			toParent := joints[k].Transforms.JOFFromIJJOF.Inverse()
			xf := forceMatrix(toParent)
			var transformed mat.Dense
			transformed.Mul(xf, current)
			current = &transformed

			var sParentT mat.Dense
			sParentT.CloneFrom(s[parent].T())
			var block mat.Dense
			block.Mul(&sParentT, current)
			setBlock(h, offset[parent], offset[i], &block)
			var blockT mat.Dense
			blockT.CloneFrom(block.T())
			setBlock(h, offset[i], offset[parent], &blockT)

			k = parent
		}
	}

	return h, c
}

// KineticEnergy computes the system's total kinetic energy for the
// joint-space velocity vector qdot (flat, same per-joint-DOF layout as
// CompositeRigidBody's H/C), via a forward velocity recursion kept
// independent of H. At fixed q, T(qdot) = 0.5*qdotᵀ·H·qdot, so a
// finite-difference gradient of this function cross-checks H as the
// Hessian of kinetic energy without going through CompositeRigidBody's
// own assembly path.
func KineticEnergy(sys *multibody.System, qdot []float64) float64 {
	joints := sys.Joints
	n := len(joints)

	s := make([]*mat.Dense, n)
	offset := make([]int, n)
	total := 0
	for i, j := range joints {
		s[i] = motionSubspaceMatrix(j.Type)
		offset[i] = total
		total += j.Type.DOF()
	}
	if total != len(qdot) {
		panic("aba: KineticEnergy qdot length mismatch")
	}

	v := make([]spatial.MotionVector, n)
	energy := 0.0
	for i, j := range joints {
		d := j.Type.DOF()
		seg := mat.NewVecDense(d, append([]float64(nil), qdot[offset[i]:offset[i]+d]...))
		var vj6 mat.VecDense
		vj6.MulVec(s[i], seg)
		vjArr := make([]float64, 6)
		for r := 0; r < 6; r++ {
			vjArr[r] = vj6.AtVec(r)
		}
		vj := motionVectorFrom6(vjArr)

		var vij spatial.MotionVector
		if j.ParentJointIndex >= 0 {
			vij = v[j.ParentJointIndex]
		}
		v[i] = j.Transforms.JOFFromIJJOF.Motion(vij).Add(vj)

		fIv := j.OuterBody.MassProperties.Apply(v[i])
		energy += 0.5 * spatial.Dot(v[i], fIv)
	}
	return energy
}

func setBlock(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, cN := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < cN; j++ {
			dst.Set(row+i, col+j, src.At(i, j))
		}
	}
}
