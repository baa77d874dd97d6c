// Package gravity evaluates spherical-harmonic gravitational acceleration
// (EGM-family models) in a planet-fixed frame, from normalized associated
// Legendre coefficients read from a coefficient table.
package gravity

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Model holds normalized gravity-coefficient tables (C, S) truncated to
// a configured degree and order, plus the reference body constants the
// coefficients were fit against.
type Model struct {
	degree int
	order  int
	mu     float64 // gravitational parameter, m^3/s^2
	re     float64 // reference (equatorial) radius, m

	c [][]float64
	s [][]float64
}

// NewModel builds a gravity model from already-normalized coefficient
// tables. c and s must each be indexed [n][m] for 0 <= m <= n <= degree.
func NewModel(degree, order int, mu, re float64, c, s [][]float64) *Model {
	return &Model{degree: degree, order: order, mu: mu, re: re, c: c, s: s}
}

// Degree and Order report the truncation the model was constructed with.
func (m *Model) Degree() int { return m.degree }
func (m *Model) Order() int  { return m.order }

// Load reads a whitespace-separated EGM-format coefficient file: columns
// `l m C S sigma_C sigma_S`, truncating to the
// requested degree/order. Coefficients are expected fully normalized on
// read, matching the convention of the standard EGM96/EGM2008
// distributions (see the Open Question this resolves in the design
// notes: the source this model is ported from applied a
// normalize/denormalize round trip with a contradictory comment; this
// reader picks the "file already normalized" convention and does not
// rescale).
func Load(r io.Reader, degree, order int, mu, re float64) (*Model, error) {
	c := make([][]float64, degree+1)
	s := make([][]float64, degree+1)
	for n := range c {
		c[n] = make([]float64, n+1)
		s[n] = make([]float64, n+1)
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("gravity: line %d: expected at least 4 fields, got %d", lineNo, len(fields))
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("gravity: line %d: bad degree %q: %w", lineNo, fields[0], err)
		}
		mIdx, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("gravity: line %d: bad order %q: %w", lineNo, fields[1], err)
		}
		if n > degree || mIdx > n {
			continue
		}
		cVal, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("gravity: line %d: bad C %q: %w", lineNo, fields[2], err)
		}
		sVal, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("gravity: line %d: bad S %q: %w", lineNo, fields[3], err)
		}
		c[n][mIdx] = cVal
		s[n][mIdx] = sVal
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gravity: reading coefficient table: %w", err)
	}
	return NewModel(degree, order, mu, re, c, s), nil
}

// LoadFile opens path and delegates to Load, closing the file on every
// exit path.
func LoadFile(path string, degree, order int, mu, re float64) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gravity: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, degree, order, mu, re)
}

// Acceleration evaluates the gravitational acceleration at posFixed,
// a position expressed in the planet-fixed (e.g. ECEF) frame, in m/s^2,
// also expressed in that frame.
func (m *Model) Acceleration(posFixed [3]float64) [3]float64 {
	px, py, pz := posFixed[0], posFixed[1], posFixed[2]
	r := math.Sqrt(px*px + py*py + pz*pz)
	lat := math.Asin(pz / r)
	lambda := math.Atan2(py, px)

	n := m.degree
	smLambda, cmLambda := lambdaCoeff(n, lambda)
	p, scaleFactor := legendreFunc(lat, n)

	return locGravity(posFixed, n, m.order, p, m.c, m.s, smLambda, cmLambda, r, scaleFactor, m.mu, m.re)
}

// legendreFunc computes normalized associated Legendre polynomials P[n][m]
// via the standard stable recursion, along with the scale factors needed
// to form dU/dphi without re-deriving unnormalized derivatives.
func legendreFunc(phi float64, maxdeg int) (p, scaleFactor [][]float64) {
	size := maxdeg + 3
	p = make([][]float64, size)
	scaleFactor = make([][]float64, size)
	for i := range p {
		p[i] = make([]float64, size)
		scaleFactor[i] = make([]float64, size)
	}

	cphi := math.Cos(math.Pi/2 - phi)
	sphi := math.Sin(math.Pi/2 - phi)
	if math.Abs(cphi) <= 1e-300 {
		cphi = 0
	}
	if math.Abs(sphi) <= 1e-300 {
		sphi = 0
	}

	p[0][0] = 1.0
	p[1][0] = math.Sqrt(3) * cphi
	scaleFactor[0][0] = 0.0
	scaleFactor[1][0] = 1.0
	p[1][1] = math.Sqrt(3) * sphi
	scaleFactor[1][1] = 0.0

	for n := 2; n <= maxdeg+2; n++ {
		k := n
		for mIdx := 0; mIdx <= n; mIdx++ {
			nf := float64(n)
			switch {
			case n == mIdx:
				p[k][k] = math.Sqrt(2*nf+1) / math.Sqrt(2*nf) * sphi * p[k-1][k-1]
				scaleFactor[k][k] = 0.0
			case mIdx == 0:
				p[k][mIdx] = math.Sqrt(2*nf+1) / nf * (math.Sqrt(2*nf-1)*cphi*p[k-1][mIdx] -
					(nf-1)/math.Sqrt(2*nf-3)*p[k-2][mIdx])
				scaleFactor[k][mIdx] = math.Sqrt((nf + 1) * nf / 2)
			default:
				mf := float64(mIdx)
				p[k][mIdx] = math.Sqrt(2*nf+1) / math.Sqrt(nf+mf) / math.Sqrt(nf-mf) *
					(math.Sqrt(2*nf-1)*cphi*p[k-1][mIdx] -
						math.Sqrt(nf+mf-1)*math.Sqrt(nf-mf-1)/math.Sqrt(2*nf-3)*p[k-2][mIdx])
				scaleFactor[k][mIdx] = math.Sqrt((nf + mf + 1) * (nf - mf))
			}
		}
	}
	return p, scaleFactor
}

// lambdaCoeff returns sin(m*lambda) and cos(m*lambda) for m=0..maxDeg via
// the Chebyshev-like recurrence, avoiding maxDeg separate trig calls.
func lambdaCoeff(maxDeg int, lambda float64) (smLambda, cmLambda []float64) {
	smLambda = make([]float64, maxDeg+1)
	cmLambda = make([]float64, maxDeg+1)

	slambda := math.Sin(lambda)
	clambda := math.Cos(lambda)
	smLambda[0] = 0.0
	cmLambda[0] = 1.0
	if maxDeg >= 1 {
		smLambda[1] = slambda
		cmLambda[1] = clambda
	}
	for m := 2; m <= maxDeg; m++ {
		smLambda[m] = 2*clambda*smLambda[m-1] - smLambda[m-2]
		cmLambda[m] = 2*clambda*cmLambda[m-1] - cmLambda[m-2]
	}
	return smLambda, cmLambda
}

// locGravity sums the spherical-harmonic series in spherical coordinates
// and converts the result to the planet-fixed Cartesian frame, with the
// polar singularity handled as a special case.
func locGravity(pos [3]float64, maxdeg, maxord int, p, c, s [][]float64, smLambda, cmLambda []float64, r float64, scaleFactor [][]float64, mu, re float64) [3]float64 {
	rRatio := re / r
	rRatioN := rRatio

	duDrSumN := 1.0
	duDphiSumN := 0.0
	duDlambdaSumN := 0.0

	for n := 2; n <= maxdeg; n++ {
		k := n
		rRatioN *= rRatio
		duDrSumM := 0.0
		duDphiSumM := 0.0
		duDlambdaSumM := 0.0

		mMax := n
		if maxord < mMax {
			mMax = maxord
		}
		for mIdx := 0; mIdx <= mMax; mIdx++ {
			cc := c[k][mIdx]
			ss := s[k][mIdx]
			term := cc*cmLambda[mIdx] + ss*smLambda[mIdx]
			duDrSumM += p[k][mIdx] * term
			duDphiSumM += (p[k][mIdx+1]*scaleFactor[k][mIdx] -
				pos[2]/math.Sqrt(pos[0]*pos[0]+pos[1]*pos[1])*float64(mIdx)*p[k][mIdx]) * term
			duDlambdaSumM += float64(mIdx) * p[k][mIdx] * (ss*cmLambda[mIdx] - cc*smLambda[mIdx])
		}
		duDrSumN += duDrSumM * rRatioN * (float64(k) + 1.0)
		duDphiSumN += duDphiSumM * rRatioN
		duDlambdaSumN += duDlambdaSumM * rRatioN
	}

	duDr := -mu / (r * r) * duDrSumN
	duDphi := mu / r * duDphiSumN
	duDlambda := mu / r * duDlambdaSumN

	rho := math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1])

	atPole := math.Abs(math.Atan2(pos[2], rho)) == math.Pi/2
	if atPole {
		return [3]float64{0, 0, 1 / r * duDr * pos[2]}
	}

	gx := (1/r*duDr-pos[2]/(r*r*rho)*duDphi)*pos[0] - (duDlambda/(rho*rho))*pos[1]
	gy := (1/r*duDr-pos[2]/(r*r*rho)*duDphi)*pos[1] + (duDlambda/(rho*rho))*pos[0]
	gz := 1/r*duDr*pos[2] + (rho/(r*r))*duDphi

	return [3]float64{gx, gy, gz}
}

// Newtonian is a point-mass gravity model: acceleration -mu*r/|r|^3,
// independent of frame orientation. It's the fallback field for bodies
// without a fitted spherical-harmonic expansion. Model.Acceleration
// already includes this same central term.
type Newtonian struct {
	mu float64
}

// NewNewtonian builds a point-mass model from a gravitational parameter.
func NewNewtonian(mu float64) *Newtonian {
	return &Newtonian{mu: mu}
}

// Acceleration returns the point-mass gravitational acceleration at pos.
func (n *Newtonian) Acceleration(pos [3]float64) [3]float64 {
	r := math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2])
	scale := -n.mu / (r * r * r)
	return [3]float64{scale * pos[0], scale * pos[1], scale * pos[2]}
}
