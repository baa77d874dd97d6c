// Package magnetics evaluates the IGRF geomagnetic field model: a
// spherical-harmonic expansion in Schmidt quasi-normalized associated
// Legendre functions, with Gauss coefficients that are either
// interpolated between published five-year epochs or linearly
// extrapolated from the latest epoch using its secular-variation terms.
package magnetics

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// EarthRadius is the reference (mean) Earth radius the IGRF coefficients
// are fit against.
const EarthRadius = 6.3712e6

// Model holds interpolable Gauss coefficient tables (g, h) across a set
// of published epochs, plus their secular-variation rates for
// extrapolation beyond the last epoch.
type Model struct {
	degree int
	order  int
	re     float64

	epochs []float64
	g      [][][]float64 // [epochIndex][n][m]
	h      [][][]float64
	svg    [][]float64 // [n][m]
	svh    [][]float64
}

// NewModel builds a model from already-parsed coefficient tables.
func NewModel(degree, order int, re float64, epochs []float64, g, h [][][]float64, svg, svh [][]float64) *Model {
	return &Model{degree: degree, order: order, re: re, epochs: epochs, g: g, h: h, svg: svg, svh: svh}
}

func (m *Model) Degree() int { return m.degree }
func (m *Model) Order() int  { return m.order }

// Load parses the NOAA igrfNNcoeffs.txt format: three header lines
// followed by an epoch header (`g/h  n  m  <epoch> ... SV`) and then one
// row per (type, n, m) triple with one coefficient value per epoch and a
// trailing secular-variation rate.
func Load(r io.Reader, degree, order int, re float64) (*Model, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for i := 0; i < 3; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("magnetics: truncated header")
		}
		lineNo++
	}
	if !scanner.Scan() {
		return nil, fmt.Errorf("magnetics: missing epoch header line")
	}
	lineNo++
	headerFields := strings.Fields(scanner.Text())
	if len(headerFields) < 5 {
		return nil, fmt.Errorf("magnetics: line %d: malformed epoch header", lineNo)
	}
	epochFields := headerFields[3 : len(headerFields)-1]
	epochs := make([]float64, len(epochFields))
	for i, f := range epochFields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("magnetics: line %d: bad epoch %q: %w", lineNo, f, err)
		}
		epochs[i] = v
	}

	g := make([][][]float64, len(epochs))
	h := make([][][]float64, len(epochs))
	for y := range g {
		g[y] = zeroTable(degree, order)
		h[y] = zeroTable(degree, order)
	}
	svg := zeroTable(degree, order)
	svh := zeroTable(degree, order)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("magnetics: line %d: expected at least 4 fields, got %d", lineNo, len(fields))
		}
		kind := fields[0]
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("magnetics: line %d: bad degree %q: %w", lineNo, fields[1], err)
		}
		mIdx, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("magnetics: line %d: bad order %q: %w", lineNo, fields[2], err)
		}
		rest := fields[3:]
		if len(rest) != len(epochs)+1 {
			return nil, fmt.Errorf("magnetics: line %d: expected %d coefficient columns plus SV, got %d", lineNo, len(epochs), len(rest)-1)
		}
		values := make([]float64, len(rest))
		for i, f := range rest {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("magnetics: line %d: bad coefficient %q: %w", lineNo, f, err)
			}
			values[i] = v
		}
		sv := values[len(values)-1]
		coeffs := values[:len(values)-1]

		if n > degree || mIdx > order {
			continue
		}
		switch kind {
		case "g":
			for y := range epochs {
				g[y][n][mIdx] = coeffs[y]
			}
			svg[n][mIdx] = sv
		case "h":
			for y := range epochs {
				h[y][n][mIdx] = coeffs[y]
			}
			svh[n][mIdx] = sv
		default:
			return nil, fmt.Errorf("magnetics: line %d: unexpected coefficient type %q", lineNo, kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("magnetics: reading coefficient table: %w", err)
	}
	return NewModel(degree, order, re, epochs, g, h, svg, svh), nil
}

// LoadFile opens path and delegates to Load, closing the file on every
// exit path.
func LoadFile(path string, degree, order int, re float64) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("magnetics: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, degree, order, re)
}

func zeroTable(degree, order int) [][]float64 {
	out := make([][]float64, degree+1)
	for n := range out {
		cols := order
		if cols > n {
			cols = n
		}
		out[n] = make([]float64, cols+1)
	}
	return out
}

// ExtrapolationWarning reports a decimal year more than 5 years past the
// model's latest published epoch, at which point secular-variation
// extrapolation is no longer considered reliable. Callers should surface
// this once per condition, per the warn-and-continue handling of
// out-of-range epochs.
type ExtrapolationWarning struct {
	DecimalYear float64
	LatestEpoch float64
}

func (w ExtrapolationWarning) Error() string {
	return fmt.Sprintf("magnetics: decimal year %.3f is %.1f years past the latest IGRF epoch %.1f", w.DecimalYear, w.DecimalYear-w.LatestEpoch, w.LatestEpoch)
}

// EpochTooEarlyError reports a decimal year before the model's earliest
// published epoch, a hard construction-time data error.
type EpochTooEarlyError struct {
	DecimalYear float64
	FirstEpoch  float64
}

func (e EpochTooEarlyError) Error() string {
	return fmt.Sprintf("magnetics: decimal year %.3f is before the earliest IGRF epoch %.1f", e.DecimalYear, e.FirstEpoch)
}

// coefficients resolves g/h tables at decimalYear, interpolating between
// bracketing epochs or linearly extrapolating past the latest epoch using
// its secular-variation rates. A non-nil warning is returned alongside
// valid coefficients when extrapolating more than 5 years past the
// latest epoch; it is never a fatal error.
func (m *Model) coefficients(decimalYear float64) (g, h [][]float64, warn error, err error) {
	if decimalYear < m.epochs[0] {
		return nil, nil, nil, EpochTooEarlyError{DecimalYear: decimalYear, FirstEpoch: m.epochs[0]}
	}
	index := 0
	for index < len(m.epochs)-1 && decimalYear >= m.epochs[index+1] {
		index++
	}

	g = zeroTable(m.degree, m.order)
	h = zeroTable(m.degree, m.order)

	if index == len(m.epochs)-1 {
		dt := decimalYear - m.epochs[index]
		if dt > 5.0 {
			warn = ExtrapolationWarning{DecimalYear: decimalYear, LatestEpoch: m.epochs[index]}
		}
		for n := range g {
			for mIdx := range g[n] {
				g[n][mIdx] = m.g[index][n][mIdx] + m.svg[n][mIdx]*dt
				h[n][mIdx] = m.h[index][n][mIdx] + m.svh[n][mIdx]*dt
			}
		}
		return g, h, warn, nil
	}

	factor := (decimalYear - m.epochs[index]) / (m.epochs[index+1] - m.epochs[index])
	for n := range g {
		for mIdx := range g[n] {
			g0, g1 := m.g[index][n][mIdx], m.g[index+1][n][mIdx]
			h0, h1 := m.h[index][n][mIdx], m.h[index+1][n][mIdx]
			g[n][mIdx] = (g1-g0)*factor + g0
			h[n][mIdx] = (h1-h0)*factor + h0
		}
	}
	return g, h, nil, nil
}

// DecimalYear converts a calendar year and zero-based day-of-year into a
// fractional year, per the IGRF convention of linear interpolation
// across the calendar year.
func DecimalYear(year, dayOfYear0 int, isLeap bool) float64 {
	daysInYear := 365.0
	if isLeap {
		daysInYear = 366.0
	}
	return float64(year) + float64(dayOfYear0)/daysInYear
}

// Field evaluates the geomagnetic field at posFixed (planet-fixed frame,
// meters) and decimalYear, returning B in the same Cartesian frame
// (tesla, when coefficients are given in nanotesla the caller should
// rescale). A non-nil warning accompanies a valid result when
// extrapolating more than 5 years past the model's latest epoch.
func (m *Model) Field(posFixed [3]float64, decimalYear float64) (b [3]float64, warn error, err error) {
	g, h, warn, err := m.coefficients(decimalYear)
	if err != nil {
		return [3]float64{}, nil, err
	}

	x, y, z := posFixed[0], posFixed[1], posFixed[2]
	r := math.Sqrt(x*x + y*y + z*z)
	xy := math.Sqrt(x*x + y*y)
	rer := m.re / r

	latgc := math.Asin(z / r)
	var lon float64
	if xy < 1e-9 {
		lon = math.Copysign(math.Pi/2, y)
	} else {
		lon = math.Atan2(y, x)
	}
	lon = math.Mod(lon, 2*math.Pi)

	p := schmidtLegendre(math.Sin(latgc), m.degree)

	var partialR, partialLat, partialLon float64
	for n := 1; n <= m.degree; n++ {
		mMax := n
		if mMax > m.order {
			mMax = m.order
		}
		for mIdx := 0; mIdx <= mMax; mIdx++ {
			mf := float64(mIdx)
			clm := math.Cos(mf * lon)
			slm := math.Sin(mf * lon)
			gh := g[n][mIdx]*clm + h[n][mIdx]*slm

			rerN2 := math.Pow(rer, float64(n)+2)
			rerN1 := math.Pow(rer, float64(n)+1)

			partialR += rerN2 * (float64(n) + 1.0) * p[n][mIdx] * gh
			partialLat += -rerN1 * (p[n][mIdx+1] - mf*math.Tan(latgc)*p[n][mIdx]) * gh
			partialLon += -rerN1 * mf * p[n][mIdx] * (h[n][mIdx]*clm - g[n][mIdx]*slm)
		}
	}
	partialR *= m.re
	partialLat *= m.re
	partialLon *= m.re

	tmp1 := partialR/r - z*partialLat/(r*r*xy)
	tmp2 := partialLon / (xy * xy)

	bx := tmp1*x - tmp2*y
	by := tmp1*y + tmp2*x
	bz := partialR*z/r + xy*partialLat/(r*r)

	return [3]float64{bx, by, bz}, warn, nil
}

// schmidtLegendre computes Schmidt quasi-normalized associated Legendre
// functions P[n][m] for sin(latitude) = sinLat, up to order+1 so that the
// dP/dlat term (which needs P[n][m+1]) is available at the highest
// requested order. Built from the same normalized-Legendre recursion
// used for gravity evaluation; Schmidt quasi-normalized values are the
// 4pi-normalized ones divided by sqrt(2n+1), a standard identity between
// the two normalization conventions.
func schmidtLegendre(sinLat float64, maxOrder int) [][]float64 {
	size := maxOrder + 3
	p := make([][]float64, size)
	for i := range p {
		p[i] = make([]float64, size)
	}
	cphi := sinLat
	sphi := math.Sqrt(math.Max(0, 1-sinLat*sinLat))

	p[0][0] = 1.0
	p[1][0] = math.Sqrt(3) * cphi
	p[1][1] = math.Sqrt(3) * sphi

	for n := 2; n < size; n++ {
		for mIdx := 0; mIdx <= n; mIdx++ {
			nf := float64(n)
			switch {
			case n == mIdx:
				p[n][n] = math.Sqrt(2*nf+1) / math.Sqrt(2*nf) * sphi * p[n-1][n-1]
			case mIdx == 0:
				p[n][mIdx] = math.Sqrt(2*nf+1) / nf * (math.Sqrt(2*nf-1)*cphi*p[n-1][mIdx] -
					(nf-1)/math.Sqrt(2*nf-3)*p[n-2][mIdx])
			default:
				mf := float64(mIdx)
				p[n][mIdx] = math.Sqrt(2*nf+1) / math.Sqrt(nf+mf) / math.Sqrt(nf-mf) *
					(math.Sqrt(2*nf-1)*cphi*p[n-1][mIdx] -
						math.Sqrt(nf+mf-1)*math.Sqrt(nf-mf-1)/math.Sqrt(2*nf-3)*p[n-2][mIdx])
			}
		}
	}

	for n := range p {
		norm := math.Sqrt(2*float64(n) + 1)
		for mIdx := range p[n] {
			p[n][mIdx] /= norm
		}
	}
	return p
}

// Dipole is a centered tilted magnetic dipole: the generic planetary
// field model used for bodies whose magnetic survey doesn't support a
// full spherical-harmonic expansion like IGRF. The dipole axis pierces
// the body-fixed sphere at (colat, lon); moment is the equatorial field
// strength at the reference radius (on the axis, at the same radius,
// the field is twice as strong).
type Dipole struct {
	radius float64
	moment float64
	mhat   [3]float64 // unit vector along the dipole axis, body-fixed
}

// NewDipole builds a dipole model from GSFC-style planetary fact-sheet
// parameters: reference radius, moment (field strength at that radius),
// and the axis's colatitude/longitude in degrees.
func NewDipole(radius, moment, colatDeg, lonDeg float64) *Dipole {
	colat := colatDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	return &Dipole{
		radius: radius,
		moment: moment,
		mhat:   [3]float64{math.Sin(colat) * math.Cos(lon), math.Sin(colat) * math.Sin(lon), math.Cos(colat)},
	}
}

// Field evaluates the dipole field in body-fixed Cartesian coordinates.
// decimalYear is accepted to satisfy the same calling convention as the
// epoch-varying IGRF model but is unused: the dipole carries no secular
// variation.
func (d *Dipole) Field(posFixed [3]float64, decimalYear float64) ([3]float64, error) {
	_ = decimalYear
	r := math.Sqrt(posFixed[0]*posFixed[0] + posFixed[1]*posFixed[1] + posFixed[2]*posFixed[2])
	rhat := [3]float64{posFixed[0] / r, posFixed[1] / r, posFixed[2] / r}
	mdotr := d.mhat[0]*rhat[0] + d.mhat[1]*rhat[1] + d.mhat[2]*rhat[2]
	scale := d.moment * math.Pow(d.radius/r, 3)
	var b [3]float64
	for i := 0; i < 3; i++ {
		b[i] = scale * (3*mdotr*rhat[i] - d.mhat[i])
	}
	return b, nil
}
