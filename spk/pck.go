package spk

import (
	"fmt"
	"sort"

	"github.com/anupshinde/multibody-sim/rotation"
	"github.com/anupshinde/multibody-sim/timescale"
)

// pckSegment holds one DAF/PCK type 2 orientation segment: three
// Chebyshev series giving a target frame's right ascension,
// declination, and prime-meridian rotation (all radians) as functions
// of TDB. Unlike an SPK segment, a PCK summary names no center body —
// orientation is expressed directly against the base frame.
type pckSegment struct {
	targetFrame int
	frame       int
	dataType    int
	startSec    float64
	endSec      float64
	init        float64
	intLen      float64
	rsize       int
	n           int
	nCoeffs     int
	data        []float64
}

// PCK holds a parsed DAF/PCK file (type 2 orientation segments only).
type PCK struct {
	segments []pckSegment
	segMap   map[int][]*pckSegment // targetFrame → segments, sorted by startSec
}

// OpenPCK reads and parses a binary PCK file.
func OpenPCK(filename string) (*PCK, error) {
	f, nd, ni, fward, err := openDAFFileRecord(filename, "DAF/PCK ")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	summaries, err := walkDAFSummaries(f, fward, nd, ni)
	if err != nil {
		return nil, err
	}

	pck := &PCK{segMap: make(map[int][]*pckSegment)}

	for _, s := range summaries {
		startSec, endSec := s.doubles[0], s.doubles[1]
		targetFrame := int(s.ints[0])
		frame := int(s.ints[1])
		dataType := int(s.ints[2])
		startI := int(s.ints[3])
		endI := int(s.ints[4])

		if dataType != 2 {
			return nil, fmt.Errorf("unsupported PCK type %d (targetFrame=%d)", dataType, targetFrame)
		}

		data, err := readDAFWords(f, startI, endI)
		if err != nil {
			return nil, err
		}
		init, intLen, rsize, n, coeffData := chebyshevRecordMetadata(data)

		seg := pckSegment{
			targetFrame: targetFrame,
			frame:       frame,
			dataType:    dataType,
			startSec:    startSec,
			endSec:      endSec,
			init:        init,
			intLen:      intLen,
			rsize:       rsize,
			n:           n,
			nCoeffs:     (rsize - 2) / 3, // RA, DEC, W share one record
			data:        coeffData,
		}

		pck.segments = append(pck.segments, seg)
		pck.segMap[targetFrame] = append(pck.segMap[targetFrame], &pck.segments[len(pck.segments)-1])
	}

	for _, segs := range pck.segMap {
		sort.Slice(segs, func(i, j int) bool {
			return segs[i].startSec < segs[j].startSec
		})
	}

	return pck, nil
}

// findPCKSegment returns the segment covering the given epoch,
// clamping to the nearest boundary segment when out of range (same
// policy as findSegment for SPK segments).
func findPCKSegment(segs []*pckSegment, seconds float64) *pckSegment {
	if len(segs) == 1 {
		return segs[0]
	}
	for _, seg := range segs {
		if seconds >= seg.startSec && seconds <= seg.endSec {
			return seg
		}
	}
	if seconds < segs[0].startSec {
		return segs[0]
	}
	return segs[len(segs)-1]
}

// eulerAngles evaluates a target frame's right ascension, declination,
// and prime-meridian rotation (radians) at tdbJD.
func (p *PCK) eulerAngles(targetFrame int, tdbJD float64) (ra, dec, w float64) {
	segs := p.segMap[targetFrame]
	if len(segs) == 0 {
		panic(fmt.Sprintf("spk: no orientation segment for frame %d", targetFrame))
	}

	seconds := (tdbJD-j2000JD)*secPerDay + timescale.TDBMinusTT(tdbJD)
	seg := findPCKSegment(segs, seconds)

	idx := int((seconds - seg.init) / seg.intLen)
	if idx < 0 {
		idx = 0
	}
	if idx >= seg.n {
		idx = seg.n - 1
	}

	offset := seconds - seg.init - float64(idx)*seg.intLen
	tc := 2.0*offset/seg.intLen - 1.0

	recStart := idx * seg.rsize
	raStart := recStart + 2
	decStart := raStart + seg.nCoeffs
	wStart := decStart + seg.nCoeffs

	ra = chebyshev(seg.data[raStart:raStart+seg.nCoeffs], tc)
	dec = chebyshev(seg.data[decStart:decStart+seg.nCoeffs], tc)
	w = chebyshev(seg.data[wStart:wStart+seg.nCoeffs], tc)
	return ra, dec, w
}

// Orientation returns the rotation from the base inertial frame to
// targetFrame's body-fixed frame at tdbJD, assembled from right
// ascension, declination, and prime-meridian rotation via the
// ZXZ composition Rz(90°+RA)·Rx(90°−Dec)·Rz(W) of active elementary
// rotations, whose columns are the body-fixed axes in base coordinates.
func (p *PCK) Orientation(targetFrame int, tdbJD float64) rotation.Matrix3 {
	ra, dec, w := p.eulerAngles(targetFrame, tdbJD)
	const halfPi = 1.5707963267948966
	euler := rotation.NewEulerAngles(rotation.ZXZ, halfPi+ra, halfPi-dec, w)
	return rotation.MatrixFromEuler(euler)
}

// OrientationQuaternion is Orientation expressed as a quaternion,
// convenient for joints whose state is quaternion-parameterized.
func (p *PCK) OrientationQuaternion(targetFrame int, tdbJD float64) rotation.Quaternion {
	return rotation.QuaternionFromMatrix(p.Orientation(targetFrame, tdbJD))
}
