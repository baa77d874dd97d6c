// Package multibody holds the flat, root-first topology of bodies and
// joints that the articulated body algorithm operates over: builder
// validation (unique names, one inner/outer body per joint, no cycles),
// and the per-step kinematic cache update that threads each joint's
// state through its transform chain down to every body's base-frame
// position, attitude, and velocity.
package multibody

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/anupshinde/multibody-sim/rotation"
	"github.com/anupshinde/multibody-sim/spatial"
)

// JointType selects which of the three supported joint kinds a Joint
// represents.
type JointType int

const (
	Revolute JointType = iota
	Prismatic
	Floating
)

// DOF returns the joint's degrees of freedom: 1 for Revolute/Prismatic,
// 6 for Floating.
func (t JointType) DOF() int {
	if t == Floating {
		return 6
	}
	return 1
}

func (t JointType) String() string {
	switch t {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	case Floating:
		return "floating"
	default:
		return "unknown"
	}
}

// MotionSubspace returns the joint motion subspace S for 1-DOF joints: a
// single spatial motion vector that the scalar joint velocity scales to
// produce vⱼ. Floating joints have no single subspace vector (their S
// is the full 6x6 identity) and calling this for Floating panics.
func (t JointType) MotionSubspace() spatial.MotionVector {
	switch t {
	case Revolute:
		return spatial.NewMotionVector([3]float64{0, 0, 1}, [3]float64{0, 0, 0})
	case Prismatic:
		return spatial.NewMotionVector([3]float64{0, 0, 0}, [3]float64{1, 0, 0})
	default:
		panic("multibody: Floating joints have no single motion subspace vector")
	}
}

// DOFParameters are the per-degree-of-freedom spring/damper/bias
// parameters carried by every joint, in the order [xr,yr,zr,xt,yt,zt]
// for Floating (rotation about x/y/z via a ZYX sequence, then
// translation along x/y/z) and a single entry for Revolute/Prismatic.
type DOFParameters struct {
	SpringConstant float64 // >= 0
	Damping        float64 // >= 0
	ConstantForce  float64
	Equilibrium    float64 // equilibrium position or angle
}

// JointState is the generalized position/velocity of a joint. Revolute
// and Prismatic use Position/Velocity; Floating uses Attitude (jof
// relative to jif), BodyPosition (jof's origin expressed in jif
// coordinates), AngularRate and LinearVelocity (both expressed in the
// jof frame) instead.
type JointState struct {
	Position float64
	Velocity float64

	Attitude       rotation.Quaternion
	BodyPosition   [3]float64
	AngularRate    [3]float64
	LinearVelocity [3]float64
}

// NewRevoluteState and NewPrismaticState build the 1-DOF joint state.
func NewRevoluteState(position, velocity float64) JointState {
	return JointState{Position: position, Velocity: velocity}
}

func NewPrismaticState(position, velocity float64) JointState {
	return JointState{Position: position, Velocity: velocity}
}

// NewFloatingState builds the 6-DOF joint state.
func NewFloatingState(q rotation.Quaternion, angularRate, bodyPosition, linearVelocity [3]float64) JointState {
	return JointState{Attitude: q, AngularRate: angularRate, BodyPosition: bodyPosition, LinearVelocity: linearVelocity}
}

// JointTransforms caches the transforms a joint needs per step, named
// X_to<-from per the spatial package's convention. JIFFromIB and
// OBFromJOF are the fixed attachment offsets between a joint's frames
// and its bodies' frames (identity unless the caller sets a nonzero
// mounting offset). JIFFromJOF is the one built directly from the
// joint's state q each step (the output frame's position/attitude
// relative to the input frame, expressed in the input frame);
// JOFFromJIF is its inverse. BaseFromJOF/JOFFromBase locate this
// joint's output frame in the tree root frame, and JOFFromIJJOF
// expresses it relative to the parent joint's output frame ("ij_jof" =
// inner joint's jof), the frame the ABA recursion couples into.
type JointTransforms struct {
	JIFFromIB, IBFromJIF     spatial.Transform
	JOFFromOB, OBFromJOF     spatial.Transform
	JOFFromJIF, JIFFromJOF   spatial.Transform
	JOFFromBase, BaseFromJOF spatial.Transform
	JOFFromIJJOF             spatial.Transform
}

// JointCache holds the per-step scratch the articulated body algorithm
// reads and writes: joint-space velocity vⱼ, body velocity v,
// acceleration a, external force f, velocity-product term c, and the
// generalized force tau. Iᴬ (articulated inertia), U, D⁻¹ and u are
// owned by the aba package, which needs a general symmetric matrix
// representation that the articulated-inertia recursion doesn't keep
// as a physical (mass, com, inertia) triple.
type JointCache struct {
	VJ  spatial.MotionVector
	V   spatial.MotionVector
	A   spatial.MotionVector
	F   spatial.ForceVector
	C   spatial.MotionVector
	Tau []float64
}

// Joint is one degree-of-freedom coupling between an inner (parent) body
// and an outer (child) body.
type Joint struct {
	ID         uuid.UUID
	Name       string
	Type       JointType
	Parameters []DOFParameters // length == Type.DOF()
	State      JointState

	InnerBody *Body
	OuterBody *Body

	// ParentJointIndex is the index, in the owning System's topological
	// order, of the joint whose outer body is this joint's inner body;
	// -1 at the root.
	ParentJointIndex int

	Transforms JointTransforms
	Cache      JointCache
}

// Body is one rigid link in the tree: its mass properties, an optional
// opaque mesh handle, and back/forward references into the joint graph.
type Body struct {
	ID             uuid.UUID
	Name           string
	MassProperties spatial.SpatialInertia
	Mesh           any

	InnerJointIndex int // -1 only for the root (the base)
	OuterJoints     []int

	State BodyState
}

// BodyState is the per-step kinematic result extracted from a body's
// inner joint transform chain, in both inertial ("base") and body
// frames, plus the accumulated forces driving its dynamics.
type BodyState struct {
	PositionBase             [3]float64
	AttitudeBase             rotation.Quaternion
	VelocityBase             [3]float64
	VelocityBody             [3]float64
	AccelerationBase         [3]float64
	AccelerationBody         [3]float64
	AngularRateBody          [3]float64
	AngularAccelBody         [3]float64
	ActuatorForceBody        spatial.ForceVector
	EnvironmentForceBody     spatial.ForceVector
	ExternalSpatialForceBody spatial.ForceVector
}

// System is the flat, root-first multibody topology: joints and bodies
// in topological order, with each joint's parent recorded by index.
type System struct {
	Joints []*Joint
	Bodies []*Body
}

// BodyByID returns the body with the given identity, or nil if none
// matches.
func (s *System) BodyByID(id uuid.UUID) *Body {
	for _, b := range s.Bodies {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// BuildError reports a topology violation caught by Build.
type BuildError struct {
	Reason string
}

func (e BuildError) Error() string { return "multibody: " + e.Reason }

// Build validates and freezes a topology from an unordered set of
// joints and bodies: names must be unique and non-empty, every joint
// needs exactly one inner and one outer body, the graph must be a
// single tree (no cycles) rooted at the distinguished base, and the
// returned System lists joints in topological (root-first) order.
func Build(joints []*Joint, bodies []*Body, base *Body) (*System, error) {
	seen := map[string]bool{}
	for _, b := range bodies {
		if b.Name == "" {
			return nil, BuildError{"body name cannot be empty"}
		}
		if seen[b.Name] {
			return nil, BuildError{fmt.Sprintf("duplicate body name %q", b.Name)}
		}
		seen[b.Name] = true
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
	}
	seen = map[string]bool{}
	for _, j := range joints {
		if j.Name == "" {
			return nil, BuildError{"joint name cannot be empty"}
		}
		if seen[j.Name] {
			return nil, BuildError{fmt.Sprintf("duplicate joint name %q", j.Name)}
		}
		seen[j.Name] = true
		if j.InnerBody == nil || j.OuterBody == nil {
			return nil, BuildError{fmt.Sprintf("joint %q needs exactly one inner and one outer body", j.Name)}
		}
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
	}

	order, err := topologicalOrder(joints, base)
	if err != nil {
		return nil, err
	}

	return &System{Joints: order, Bodies: bodies}, nil
}

// topologicalOrder runs a DFS from base's outer joints, failing with a
// BuildError if a joint is revisited before its subtree completes
// (a cycle), and assigns each joint's ParentJointIndex along the way.
func topologicalOrder(joints []*Joint, base *Body) ([]*Joint, error) {
	byInnerBody := map[*Body][]*Joint{}
	for _, j := range joints {
		byInnerBody[j.InnerBody] = append(byInnerBody[j.InnerBody], j)
	}

	var order []*Joint
	visiting := map[*Joint]bool{}
	done := map[*Joint]bool{}

	var visit func(j *Joint, parentIdx int) error
	visit = func(j *Joint, parentIdx int) error {
		if done[j] {
			return nil
		}
		if visiting[j] {
			return BuildError{fmt.Sprintf("cycle detected at joint %q", j.Name)}
		}
		visiting[j] = true
		j.ParentJointIndex = parentIdx
		order = append(order, j)
		myIdx := len(order) - 1
		for _, child := range byInnerBody[j.OuterBody] {
			if err := visit(child, myIdx); err != nil {
				return err
			}
		}
		visiting[j] = false
		done[j] = true
		return nil
	}

	for _, root := range byInnerBody[base] {
		if err := visit(root, -1); err != nil {
			return nil, err
		}
	}

	if len(order) != len(joints) {
		return nil, BuildError{"every non-root joint's inner body must be some other joint's outer body"}
	}
	return order, nil
}

func identityTransform() spatial.Transform {
	return spatial.NewTransform(rotation.Matrix3Identity(), [3]float64{0, 0, 0})
}

// UpdateKinematics refreshes every joint's transform chain and every
// body's extracted state, in the topological order fixed by Build:
// each joint first computes jof_from_jif from its own state q, then
// locates its output frame in the base (root) frame by composing
// through its inner body's frame and its parent's already-updated
// chain, then extracts its outer body's position, attitude, and
// velocity from that chain.
func (s *System) UpdateKinematics() {
	for _, j := range s.Joints {
		j.Transforms.IBFromJIF = j.Transforms.JIFFromIB.Inverse()
		j.Transforms.JIFFromJOF = jointTransformFromState(j.Type, j.State)
		j.Transforms.JOFFromJIF = j.Transforms.JIFFromJOF.Inverse()
		j.Transforms.JOFFromOB = j.Transforms.OBFromJOF.Inverse()

		var baseFromIB spatial.Transform
		var parentBaseFromJOF spatial.Transform
		if j.ParentJointIndex < 0 {
			baseFromIB = identityTransform()
			parentBaseFromJOF = identityTransform()
		} else {
			parent := s.Joints[j.ParentJointIndex]
			parentBaseFromJOF = parent.Transforms.BaseFromJOF
			baseFromIB = parentBaseFromJOF.Compose(parent.Transforms.JOFFromOB)
		}

		baseFromJIF := baseFromIB.Compose(j.Transforms.IBFromJIF)
		j.Transforms.BaseFromJOF = baseFromJIF.Compose(j.Transforms.JIFFromJOF)
		j.Transforms.JOFFromBase = j.Transforms.BaseFromJOF.Inverse()
		j.Transforms.JOFFromIJJOF = j.Transforms.JOFFromBase.Compose(parentBaseFromJOF)

		extractBodyState(j)
	}
}

// jointTransformFromState builds jif_from_jof: the position of the
// joint's output frame relative to its input frame, expressed in the
// input frame, as a function of the joint's current generalized
// position. jof_from_jif (what the rest of the chain actually composes
// with) is this transform's inverse.
func jointTransformFromState(t JointType, state JointState) spatial.Transform {
	switch t {
	case Revolute:
		return spatial.NewTransform(rotateZ(state.Position), [3]float64{0, 0, 0})
	case Prismatic:
		return spatial.NewTransform(rotation.Matrix3Identity(), [3]float64{state.Position, 0, 0})
	default: // Floating
		rot := rotation.MatrixFromQuaternion(state.Attitude)
		return spatial.NewTransform(rot, state.BodyPosition)
	}
}

func rotateZ(theta float64) rotation.Matrix3 {
	q := rotation.NewQuaternion(0, 0, math.Sin(theta/2), math.Cos(theta/2))
	return rotation.MatrixFromQuaternion(q)
}

// extractBodyState updates this joint's outer body's position,
// attitude, and velocity from the just-refreshed transform chain,
// treating the outer body's frame as coincident with the joint's
// output frame (OBFromJOF carries any fixed mounting offset the caller
// configured beyond that).
func extractBodyState(j *Joint) {
	b := j.OuterBody
	if b == nil {
		return
	}
	baseFromOB := j.Transforms.BaseFromJOF.Compose(j.Transforms.JOFFromOB)

	vJOF := jointSpaceVelocity(j)
	vOB := j.Transforms.OBFromJOF.Motion(vJOF)

	b.State.AngularRateBody = vOB.Angular()
	b.State.VelocityBody = vOB.Linear()
	b.State.VelocityBase = baseFromOB.Rotation().MulVector(vOB.Linear())
	b.State.PositionBase = baseFromOB.Translation()
	b.State.AttitudeBase = rotation.QuaternionFromMatrix(baseFromOB.Rotation())
}

// jointSpaceVelocity reconstructs the joint's current spatial velocity
// from its generalized state: vⱼ = S·q̇ for 1-DOF joints, or the direct
// angular/linear state for a Floating joint.
func jointSpaceVelocity(j *Joint) spatial.MotionVector {
	switch j.Type {
	case Revolute, Prismatic:
		return j.Type.MotionSubspace().Scale(j.State.Velocity)
	default:
		return spatial.NewMotionVector(j.State.AngularRate, j.State.LinearVelocity)
	}
}
