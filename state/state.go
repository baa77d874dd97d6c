// Package state packs and unpacks a multibody.System's per-joint state
// into the flat vector an ODE integrator steps, and evaluates that
// vector's time derivative by driving a full kinematics update and ABA
// solve.
package state

import (
	"fmt"
	"math"

	"github.com/anupshinde/multibody-sim/aba"
	"github.com/anupshinde/multibody-sim/multibody"
	"github.com/anupshinde/multibody-sim/rotation"
	"github.com/anupshinde/multibody-sim/spatial"
)

// quaternionNormEps is the minimum raw magnitude a Floating joint's
// packed quaternion components may have before renormalizing is
// considered to have lost the rotation rather than merely drifted.
const quaternionNormEps = 1e-9

// RotationDegenerateError reports that a joint's integrated quaternion
// collapsed to (near) zero magnitude and can no longer be renormalized
// into a meaningful attitude.
type RotationDegenerateError struct {
	JointName string
}

func (e RotationDegenerateError) Error() string {
	return fmt.Sprintf("state: joint %q: quaternion degenerate, cannot renormalize", e.JointName)
}

// jointWidth is the flat vector width a single joint contributes:
// 2 scalars (position, velocity) for Revolute/Prismatic, or 13
// (quaternion x,y,z,w; position x,y,z; angular rate x,y,z; linear
// velocity x,y,z) for Floating.
func jointWidth(t multibody.JointType) int {
	if t == multibody.Floating {
		return 13
	}
	return 2
}

// Len returns the total flat state vector length for sys.
func Len(sys *multibody.System) int {
	n := 0
	for _, j := range sys.Joints {
		n += jointWidth(j.Type)
	}
	return n
}

// Pack writes sys's current per-joint state into a freshly allocated
// flat vector, in joint order.
func Pack(sys *multibody.System) []float64 {
	x := make([]float64, 0, Len(sys))
	for _, j := range sys.Joints {
		x = append(x, packJoint(j)...)
	}
	return x
}

func packJoint(j *multibody.Joint) []float64 {
	if j.Type != multibody.Floating {
		return []float64{j.State.Position, j.State.Velocity}
	}
	qx, qy, qz, qw := j.State.Attitude.XYZW()
	r := j.State.BodyPosition
	w := j.State.AngularRate
	v := j.State.LinearVelocity
	return []float64{qx, qy, qz, qw, r[0], r[1], r[2], w[0], w[1], w[2], v[0], v[1], v[2]}
}

// Unpack writes x back into sys's per-joint state, in joint order. x
// must have length Len(sys).
func Unpack(sys *multibody.System, x []float64) error {
	if len(x) != Len(sys) {
		return fmt.Errorf("state: expected a vector of length %d, got %d", Len(sys), len(x))
	}
	offset := 0
	for _, j := range sys.Joints {
		w := jointWidth(j.Type)
		if err := unpackJoint(j, x[offset:offset+w]); err != nil {
			return err
		}
		offset += w
	}
	return nil
}

func unpackJoint(j *multibody.Joint, x []float64) error {
	if j.Type != multibody.Floating {
		j.State.Position = x[0]
		j.State.Velocity = x[1]
		return nil
	}
	// The quaternion drifts off the unit sphere under integration;
	// renormalize on read rather than carrying the drift into kinematics.
	// A collapsed (near-zero) magnitude can't be renormalized into a
	// meaningful attitude, so it's reported rather than handed to
	// NewQuaternion, which would divide by (near) zero.
	norm := math.Sqrt(x[0]*x[0] + x[1]*x[1] + x[2]*x[2] + x[3]*x[3])
	if norm < quaternionNormEps {
		return RotationDegenerateError{JointName: j.Name}
	}
	q := rotation.NewQuaternion(x[0], x[1], x[2], x[3])
	j.State.Attitude = q
	j.State.BodyPosition = [3]float64{x[4], x[5], x[6]}
	j.State.AngularRate = [3]float64{x[7], x[8], x[9]}
	j.State.LinearVelocity = [3]float64{x[10], x[11], x[12]}
	return nil
}

// Derivative evaluates dx/dt at sys's current state: it runs a full
// kinematics refresh and ABA solve (computing each joint's tau from its
// spring/damper/constant-force parameters along the way), then reads
// off each joint's velocity/acceleration in the same flat layout Pack
// uses. externalForceOB supplies, per joint index, the external spatial
// force acting on that joint's outer body.
func Derivative(sys *multibody.System, solver *aba.Solver, externalForceOB []spatial.ForceVector) ([]float64, error) {
	for _, j := range sys.Joints {
		aba.CalculateTau(j)
	}
	sys.UpdateKinematics()
	if err := solver.Solve(externalForceOB); err != nil {
		return nil, err
	}

	dx := make([]float64, 0, Len(sys))
	for i, j := range sys.Joints {
		dx = append(dx, jointDerivative(j, solver.QDDot(i))...)
	}
	return dx, nil
}

func jointDerivative(j *multibody.Joint, qddot []float64) []float64 {
	if j.Type != multibody.Floating {
		return []float64{j.State.Velocity, qddot[0]}
	}

	dq := quaternionRate(j.State.Attitude, j.State.AngularRate)
	// Position is carried in the same frame as velocity's integral
	// target (the joint-inner frame); rotate the JOF-frame linear
	// velocity into it before integrating the transport-theorem term.
	drBody := j.Transforms.JIFFromJOF.Rotation().MulVector(j.State.LinearVelocity)

	return []float64{
		dq[0], dq[1], dq[2], dq[3],
		drBody[0], drBody[1], drBody[2],
		qddot[0], qddot[1], qddot[2],
		qddot[3], qddot[4], qddot[5],
	}
}

// quaternionRate evaluates the kinematic quaternion differential
// equation dq/dt = 0.5*q⊗(0,w) for a body-frame angular rate w,
// returned as raw (x,y,z,w) components -- this is not itself a unit
// quaternion, so it is never routed through rotation.NewQuaternion's
// normalizing constructor.
func quaternionRate(q rotation.Quaternion, w [3]float64) [4]float64 {
	qx, qy, qz, qw := q.XYZW()
	wx, wy, wz := w[0], w[1], w[2]
	return [4]float64{
		0.5 * (qw*wx - qz*wy + qy*wz),
		0.5 * (qz*wx + qw*wy - qx*wz),
		0.5 * (-qy*wx + qx*wy + qw*wz),
		0.5 * (-qx*wx - qy*wy - qz*wz),
	}
}
