package rotation

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestQuaternionIdentityRotatesNothing(t *testing.T) {
	q := QuaternionIdentity()
	v := [3]float64{1, 2, 3}
	got := q.Rotate(v)
	for i := range v {
		if !approxEqual(got[i], v[i], 1e-12) {
			t.Fatalf("identity rotate: got %v want %v", got, v)
		}
	}
}

func TestQuaternionNormCloseToOne(t *testing.T) {
	q := NewQuaternion(1, 2, 3, 4)
	if !approxEqual(q.Norm(), 1, 1e-12) {
		t.Fatalf("norm = %v, want ~1", q.Norm())
	}
}

func TestQuaternionCanonicalSign(t *testing.T) {
	q := NewQuaternion(1, 0, 0, -1)
	_, _, _, w := q.XYZW()
	if w < 0 {
		t.Fatalf("scalar part should be canonicalized non-negative, got %v", w)
	}
}

func TestQuaternionInverseUndoesRotation(t *testing.T) {
	q := QuaternionFromEuler(NewEulerAngles(ZYX, 0.3, -0.4, 0.8))
	v := [3]float64{1, -2, 0.5}
	rotated := q.Rotate(v)
	back := q.Inverse().Rotate(rotated)
	for i := range v {
		if !approxEqual(back[i], v[i], 1e-9) {
			t.Fatalf("inverse round trip: got %v want %v", back, v)
		}
	}
}

func TestTransformIsPassiveInverseOfRotate(t *testing.T) {
	q := QuaternionFromEuler(NewEulerAngles(XYZ, 0.2, 0.1, -0.3))
	v := [3]float64{2, -1, 4}
	active := q.Rotate(v)
	passive := q.Transform(active)
	for i := range v {
		if !approxEqual(passive[i], v[i], 1e-9) {
			t.Fatalf("transform/rotate duality: got %v want %v", passive, v)
		}
	}
}

func TestMatrixQuaternionRoundTrip(t *testing.T) {
	q := QuaternionFromEuler(NewEulerAngles(ZXZ, 0.4, 0.9, -1.1))
	m := MatrixFromQuaternion(q)
	q2 := QuaternionFromMatrix(m)
	x1, y1, z1, w1 := q.XYZW()
	x2, y2, z2, w2 := q2.XYZW()
	if !approxEqual(x1, x2, 1e-9) || !approxEqual(y1, y2, 1e-9) ||
		!approxEqual(z1, z2, 1e-9) || !approxEqual(w1, w2, 1e-9) {
		t.Fatalf("quat->matrix->quat mismatch: %v vs %v", q, q2)
	}
}

func TestMatrixIdentityRoundTrip(t *testing.T) {
	m := Matrix3Identity()
	q := QuaternionFromMatrix(m)
	if q != QuaternionIdentity() {
		t.Fatalf("identity matrix should give identity quaternion, got %v", q)
	}
}

func TestMatrixTransposeIsInverse(t *testing.T) {
	m := MatrixFromEuler(NewEulerAngles(YZX, 0.3, 0.6, -0.2))
	prod := m.Mul(m.Transpose())
	id := Matrix3Identity()
	r0, r1, r2 := prod.Rows()
	idr0, idr1, idr2 := id.Rows()
	rows := [][3]float64{r0, r1, r2}
	idRows := [][3]float64{idr0, idr1, idr2}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !approxEqual(rows[i][j], idRows[i][j], 1e-9) {
				t.Fatalf("M * M^T should be identity, got row %d = %v", i, rows[i])
			}
		}
	}
}

// gridAngles avoids gimbal lock for Tait-Bryan (b near ±π/2) and proper
// Euler (b near 0 or π) sequences alike.
var gridAngles = []float64{-2.1, -0.9, -0.3, 0.15, 0.7, 1.3, 2.4}

func allSequences() []EulerSequence {
	return []EulerSequence{XYZ, XZY, YXZ, YZX, ZXY, ZYX, XYX, XZX, YXY, YZY, ZXZ, ZYZ}
}

func isProper(seq EulerSequence) bool {
	switch seq {
	case XYX, XZX, YXY, YZY, ZXZ, ZYZ:
		return true
	}
	return false
}

func TestEulerQuaternionMatrixRoundTrip(t *testing.T) {
	for _, seq := range allSequences() {
		for _, a := range gridAngles {
			for _, c := range gridAngles {
				var bRange []float64
				if isProper(seq) {
					bRange = []float64{0.4, 1.2, 2.0, 2.7}
				} else {
					bRange = []float64{-1.2, -0.5, 0.3, 1.0}
				}
				for _, b := range bRange {
					e := NewEulerAngles(seq, a, b, c)
					q := QuaternionFromEuler(e)
					m := MatrixFromQuaternion(q)
					e2 := EulerFromMatrix(seq, m)
					m2 := MatrixFromEuler(e2)
					r0, r1, r2 := m.Rows()
					r0b, r1b, r2b := m2.Rows()
					rows := [][3]float64{r0, r1, r2}
					rowsB := [][3]float64{r0b, r1b, r2b}
					for i := 0; i < 3; i++ {
						for j := 0; j < 3; j++ {
							if !approxEqual(rows[i][j], rowsB[i][j], 1e-9) {
								t.Fatalf("seq %v a=%v b=%v c=%v: matrix mismatch after Euler round trip, row %d: %v vs %v",
									seq, a, b, c, i, rows[i], rowsB[i])
							}
						}
					}
				}
			}
		}
	}
}

func TestEulerFromQuaternionMatchesMatrixPath(t *testing.T) {
	for _, seq := range allSequences() {
		e := NewEulerAngles(seq, 0.4, 1.1, -0.6)
		if isProper(seq) {
			e = NewEulerAngles(seq, 0.4, 1.1, -0.6)
		}
		q := QuaternionFromEuler(e)
		viaQuat := EulerFromQuaternion(seq, q)
		viaMatrix := EulerFromMatrix(seq, MatrixFromQuaternion(q))
		a1, b1, c1 := viaQuat.Angles()
		a2, b2, c2 := viaMatrix.Angles()
		if a1 != a2 || b1 != b2 || c1 != c2 {
			t.Fatalf("seq %v: EulerFromQuaternion %v,%v,%v != EulerFromMatrix %v,%v,%v", seq, a1, b1, c1, a2, b2, c2)
		}
	}
}

func TestZYXKnownMatrix(t *testing.T) {
	m := MatrixFromEuler(NewEulerAngles(ZYX, 0.1, 0.2, 0.3))
	want := [3][3]float64{
		{0.975170327201816, -0.036957013524625076, 0.21835066314633442},
		{0.09784339500725571, 0.9564250858492325, -0.2750958473182437},
		{-0.19866933079506122, 0.28962947762551555, 0.9362933635841992},
	}
	r0, r1, r2 := m.Rows()
	got := [3][3]float64{r0, r1, r2}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !approxEqual(got[i][j], want[i][j], 1e-12) {
				t.Fatalf("row %d: got %v want %v", i, got[i], want[i])
			}
		}
	}
}

func TestGimbalLockCanonicalRepresentative(t *testing.T) {
	// At b = π/2 for XYZ, a and c are not individually recoverable; the
	// canonical choice fixes c = 0 and folds its contribution into a.
	e := NewEulerAngles(XYZ, 0.7, math.Pi/2, 1.3)
	q := QuaternionFromEuler(e)
	m := MatrixFromQuaternion(q)
	e2 := EulerFromMatrix(XYZ, m)
	_, _, c2 := e2.Angles()
	if c2 != 0 {
		t.Fatalf("expected canonical c=0 at gimbal lock, got %v", c2)
	}
	m2 := MatrixFromEuler(e2)
	r0, r1, r2 := m.Rows()
	r0b, r1b, r2b := m2.Rows()
	rows := [][3]float64{r0, r1, r2}
	rowsB := [][3]float64{r0b, r1b, r2b}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !approxEqual(rows[i][j], rowsB[i][j], 1e-9) {
				t.Fatalf("gimbal-lock matrix mismatch at row %d: %v vs %v", i, rows[i], rowsB[i])
			}
		}
	}
}

func TestQuaternionNonFiniteRotationOnNearZeroNorm(t *testing.T) {
	q := Quaternion{0, 0, 0, 0}
	_, ok := q.Normalized()
	if ok {
		t.Fatal("expected normalization failure for zero-magnitude quaternion")
	}
}

func TestComposeMatchesSequentialRotation(t *testing.T) {
	q1 := QuaternionFromEuler(NewEulerAngles(ZYX, 0.2, 0, 0))
	q2 := QuaternionFromEuler(NewEulerAngles(ZYX, 0, 0.3, 0))
	composed := Compose(q1, q2)
	v := [3]float64{1, 0, 0}
	viaCompose := composed.Rotate(v)
	viaSequential := q2.Rotate(q1.Rotate(v))
	for i := range v {
		if !approxEqual(viaCompose[i], viaSequential[i], 1e-9) {
			t.Fatalf("compose mismatch: %v vs %v", viaCompose, viaSequential)
		}
	}
}
