// Package celestial maintains the set of active planetary bodies, each
// carrying an inertial position/orientation and an optional gravity and
// magnetic-field model, and sums their field contributions at a point
// expressed in the inertial (J2000/GCRF) frame.
package celestial

import (
	"fmt"
	"math"

	"github.com/anupshinde/multibody-sim/coord"
	"github.com/anupshinde/multibody-sim/gravity"
	"github.com/anupshinde/multibody-sim/magnetics"
	"github.com/anupshinde/multibody-sim/rotation"
	"github.com/anupshinde/multibody-sim/spk"
	"github.com/anupshinde/multibody-sim/timescale"
	"github.com/rs/zerolog"
)

// BodyID names one of the planetary identities a System can track.
type BodyID int

const (
	Earth BodyID = iota
	Jupiter
	Mars
	Mercury
	Moon
	Neptune
	Pluto
	Saturn
	Sun
	Uranus
	Venus
)

func (b BodyID) String() string {
	switch b {
	case Earth:
		return "earth"
	case Jupiter:
		return "jupiter"
	case Mars:
		return "mars"
	case Mercury:
		return "mercury"
	case Moon:
		return "moon"
	case Neptune:
		return "neptune"
	case Pluto:
		return "pluto"
	case Saturn:
		return "saturn"
	case Sun:
		return "sun"
	case Uranus:
		return "uranus"
	case Venus:
		return "venus"
	default:
		return "unknown"
	}
}

// naifID maps a BodyID to the NAIF identifier used by the spk package's
// ephemeris chains. Mercury, Earth, the Moon and the Sun map to their
// own body IDs; Venus, Mars, the outer planets and Pluto map to their
// system barycenters.
func (b BodyID) naifID() int {
	switch b {
	case Earth:
		return spk.Earth
	case Jupiter:
		return spk.JupiterBarycenter
	case Mars:
		return spk.MarsBarycenter
	case Mercury:
		return spk.Mercury
	case Moon:
		return spk.Moon
	case Neptune:
		return spk.NeptuneBarycenter
	case Pluto:
		return spk.PlutoBarycenter
	case Saturn:
		return spk.SaturnBarycenter
	case Sun:
		return spk.Sun
	case Uranus:
		return spk.UranusBarycenter
	case Venus:
		return spk.VenusBarycenter
	default:
		return spk.SSB
	}
}

// Mu returns the gravitational parameter of the body, in m^3/s^2.
func (b BodyID) Mu() float64 {
	switch b {
	case Earth:
		return 3.986004415e14 // WGS84
	case Jupiter:
		return 1.26686534e17
	case Mars:
		return 4.282837e13
	case Mercury:
		return 2.2032e13
	case Moon:
		return 4.9048695e12
	case Neptune:
		return 6.836529e15
	case Pluto:
		return 8.71e11
	case Saturn:
		return 3.7931187e16
	case Sun:
		return 1.32712440018e20
	case Uranus:
		return 5.793939e15
	case Venus:
		return 3.24859e14
	default:
		return 0
	}
}

// Radius returns the volumetric (mean of polar and equatorial) radius of
// the body, in meters.
func (b BodyID) Radius() float64 {
	switch b {
	case Earth:
		return 6.3781363e6 // WGS84
	case Jupiter:
		return 69911000.0
	case Mars:
		return 3389500.0
	case Mercury:
		return 2439700.0
	case Moon:
		return 1737400.0
	case Neptune:
		return 24622000.0
	case Pluto:
		return 1188000.0
	case Saturn:
		return 58232000.0
	case Sun:
		return 695700000.0
	case Uranus:
		return 25362000.0
	case Venus:
		return 6051800.0
	default:
		return 0
	}
}

// Dipole returns the body's generic tilted-dipole magnetic field model,
// from GSFC planetary fact-sheet parameters, or nil for bodies with no
// surveyed dipole (Mars, Moon, Pluto, Venus) or no model at all (Sun: the
// fact sheet carries no dipole entry for it).
func (b BodyID) Dipole() *magnetics.Dipole {
	switch b {
	case Earth:
		return magnetics.NewDipole(6.378e6, 0.306, 80.65, -72.68)
	case Jupiter:
		return magnetics.NewDipole(71.398e6, 4.30, 90.0-9.4, 200.1)
	case Mercury:
		return magnetics.NewDipole(2.44e6, 0.002, 90.0, 0.0)
	case Neptune:
		return magnetics.NewDipole(24.765e6, 0.142, 90.0-46.9, 288.0)
	case Saturn:
		return magnetics.NewDipole(60.33e6, 0.215, 90.0, 0.0)
	case Uranus:
		return magnetics.NewDipole(25.6e6, 0.228, 90.0-58.6, 53.6)
	default:
		return nil
	}
}

// GravityModel is any field evaluator consuming a body-fixed Cartesian
// position and returning an acceleration in the same frame.
type GravityModel interface {
	Acceleration(posFixed [3]float64) [3]float64
}

// MagneticModel is any field evaluator consuming a body-fixed Cartesian
// position and a decimal-year epoch and returning a field vector in the
// same frame.
type MagneticModel interface {
	Field(posFixed [3]float64, decimalYear float64) ([3]float64, error)
}

// igrfModel adapts *magnetics.Model's three-return Field (value,
// extrapolation warning, hard error) to the two-return MagneticModel
// interface, routing the warning through a logger instead of a return
// value, per the WarnAndContinue error-handling convention.
type igrfModel struct {
	model  *magnetics.Model
	logger zerolog.Logger
}

func (m igrfModel) Field(posFixed [3]float64, decimalYear float64) ([3]float64, error) {
	b, warn, err := m.model.Field(posFixed, decimalYear)
	if warn != nil {
		m.logger.Warn().Err(warn).Msg("magnetic field extrapolation beyond secular-variation validity")
	}
	return b, err
}

// Body is one celestial body's current inertial state and optional
// environment models.
type Body struct {
	ID          BodyID
	Position    [3]float64 // inertial (GCRF/J2000), meters
	Orientation rotation.Quaternion
	Gravity     GravityModel
	Magnetic    MagneticModel
}

// NewBody constructs a body at the origin with identity orientation and
// no field models attached.
func NewBody(id BodyID) *Body {
	return &Body{ID: id, Orientation: rotation.QuaternionIdentity()}
}

// WithNewtonianGravity attaches a point-mass gravity model using the
// body's catalog mu.
func (b *Body) WithNewtonianGravity() *Body {
	b.Gravity = gravity.NewNewtonian(b.ID.Mu())
	return b
}

// WithGravity attaches an arbitrary gravity model (e.g. a spherical
// harmonic expansion loaded from a coefficient file).
func (b *Body) WithGravity(g GravityModel) *Body {
	b.Gravity = g
	return b
}

// WithDipole attaches the body's catalog dipole magnetic model, if one
// exists; bodies with no surveyed dipole are left with no magnetic model.
func (b *Body) WithDipole() *Body {
	if d := b.ID.Dipole(); d != nil {
		b.Magnetic = d
	}
	return b
}

// WithMagneticField attaches an arbitrary magnetic field model, such as
// an IGRF expansion loaded via the magnetics package.
func (b *Body) WithMagneticField(m MagneticModel) *Body {
	b.Magnetic = m
	return b
}

// WithIGRF attaches an IGRF-family model, logging extrapolation
// warnings rather than surfacing them as errors.
func (b *Body) WithIGRF(m *magnetics.Model, logger zerolog.Logger) *Body {
	b.Magnetic = igrfModel{model: m, logger: logger}
	return b
}

// System is the set of tracked celestial bodies sharing a common epoch
// and ephemeris source.
type System struct {
	Epoch   timescale.Epoch
	Bodies  []*Body
	ephem   *spk.SPK
	moonPCK *spk.PCK
	logger  zerolog.Logger
}

// moonBodyFixedFrame is the target-frame id a binary PCK file's lunar
// orientation segment is filed under (the NAIF IAU_MOON convention).
const moonBodyFixedFrame = 31007

// WithOrientationKernel attaches a binary PCK file supplying the
// Moon's body-fixed orientation (librations), replacing Update's
// identity fallback for the Moon with the kernel's actual attitude.
func (s *System) WithOrientationKernel(path string) error {
	pck, err := spk.OpenPCK(path)
	if err != nil {
		return fmt.Errorf("celestial: opening orientation kernel: %w", err)
	}
	s.moonPCK = pck
	return nil
}

// NewSystem starts a system at the given epoch, loading ephemeris data
// from an SPK file. A Sun body with Newtonian gravity is always present,
// matching the minimum needed for solar-system-scale animation.
func NewSystem(epoch timescale.Epoch, ephemPath string, logger zerolog.Logger) (*System, error) {
	ephem, err := spk.Open(ephemPath)
	if err != nil {
		return nil, fmt.Errorf("celestial: opening ephemeris: %w", err)
	}
	sun := NewBody(Sun).WithNewtonianGravity()
	return &System{Epoch: epoch, Bodies: []*Body{sun}, ephem: ephem, logger: logger}, nil
}

// BodyAlreadyExistsError is returned by AddBody when the system already
// tracks the given identity.
type BodyAlreadyExistsError struct{ ID BodyID }

func (e BodyAlreadyExistsError) Error() string {
	return fmt.Sprintf("celestial: body %s already exists in the system", e.ID)
}

// AddBody registers a new body, rejecting a duplicate identity.
func (s *System) AddBody(b *Body) error {
	for _, existing := range s.Bodies {
		if existing.ID == b.ID {
			return BodyAlreadyExistsError{ID: b.ID}
		}
	}
	s.Bodies = append(s.Bodies, b)
	return nil
}

// RemoveBody drops a tracked body by identity, if present.
func (s *System) RemoveBody(id BodyID) {
	kept := s.Bodies[:0]
	for _, b := range s.Bodies {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	s.Bodies = kept
}

// Update refreshes every tracked body's inertial position (from the
// ephemeris) and orientation (analytic fact-sheet formula, or the
// dominant-frame Earth rotation) at simulation time t seconds past the
// system epoch.
func (s *System) Update(t float64) {
	current := timescale.NewEpoch(s.Epoch.System(), s.Epoch.SecondsJ2000()+t).ToSystem(timescale.TDB)
	tdbJD := current.JD()

	utc := current.ToSystem(timescale.UTC)
	jdc := (utc.JD() - timescale.J2000JD) / 36525.0
	secJ2K := utc.SecondsJ2000()

	for _, b := range s.Bodies {
		b.Position = kmToM(s.ephem.GeocentricPosition(b.ID.naifID(), tdbJD))
		b.Orientation = b.ID.orientation(utc.JD(), jdc, secJ2K, tdbJD, s.moonPCK, s.logger)
	}
}

func kmToM(v [3]float64) [3]float64 {
	return [3]float64{v[0] * 1000, v[1] * 1000, v[2] * 1000}
}

// orientation resolves the inertial-to-body-fixed rotation for the given
// body at the given epoch. jdUT1 drives Earth's sidereal rotation; jdc
// (Julian centuries past J2000) and secJ2K (seconds past J2000, UTC)
// drive the GSFC fact-sheet formulas for the other planets.
func (b BodyID) orientation(jdUT1, jdc, secJ2K, tdbJD float64, moonPCK *spk.PCK, logger zerolog.Logger) rotation.Quaternion {
	switch b {
	case Earth:
		return earthOrientation(jdUT1)
	case Jupiter:
		return fromPlanetFactSheet(268.057, -0.006, 64.495, 0.002, 9.9250, jdc, secJ2K)
	case Mars:
		return fromPlanetFactSheet(317.681, -0.106, 52.887, -0.061, 24.6229, jdc, secJ2K)
	case Mercury:
		return fromPlanetFactSheet(281.01, -0.033, 61.414, -0.005, 1407.6, jdc, secJ2K)
	case Neptune:
		return fromPlanetFactSheetNeptune(jdc, secJ2K)
	case Saturn:
		return fromPlanetFactSheet(40.589, -0.036, 83.537, -0.004, 10.656, jdc, secJ2K)
	case Uranus:
		return fromPlanetFactSheet(257.311, 0.0, -15.175, 0.0, -17.24, jdc, secJ2K)
	case Venus:
		return fromPlanetFactSheet(272.76, 0.0, 61.414, 0.0, -5832.6, jdc, secJ2K)
	case Moon:
		if moonPCK != nil {
			return moonPCK.OrientationQuaternion(moonBodyFixedFrame, tdbJD)
		}
		logger.Warn().Str("body", b.String()).Msg("no orientation kernel loaded, defaulting to identity")
		return rotation.QuaternionIdentity()
	default:
		// Sun/Pluto carry no rotation state in the GSFC fact sheet.
		logger.Warn().Str("body", b.String()).Msg("no orientation model available, defaulting to identity")
		return rotation.QuaternionIdentity()
	}
}

// earthOrientation returns the ICRF-to-Earth-fixed rotation at jdUT1 as a
// rotation about the pole by the Greenwich apparent sidereal angle. This
// omits polar motion (sub-arcsecond) and is adequate for gravity/magnetic
// field evaluation; a PCK-sourced orientation would be needed for
// sub-meter surface positioning.
func earthOrientation(jdUT1 float64) rotation.Quaternion {
	gast := coord.GAST(jdUT1) * math.Pi / 180.0
	return rotation.NewQuaternion(0, 0, math.Sin(gast/2), math.Cos(gast/2))
}

// fromPlanetFactSheet builds a planet's inertial orientation from its
// GSFC fact-sheet J2000 pole right ascension/declination (ra0/dec0, plus
// secular drift ra1/dec1 per Julian century) and sidereal rotation period
// (hrsInDay), composing the current spin with the J2000 pole attitude.
func fromPlanetFactSheet(ra0, ra1, dec0, dec1, hrsInDay, julianCenturies, secJ2K float64) rotation.Quaternion {
	ra := (ra0 + ra1*julianCenturies) * math.Pi / 180.0
	dec := (dec0 + dec1*julianCenturies) * math.Pi / 180.0
	initial := rotation.QuaternionFromEuler(rotation.NewEulerAngles(rotation.ZYX, ra, dec, 0.0))

	day := hrsInDay * 3600.0
	rotationRate := 2.0 * math.Pi / day
	spin := rotationRate * secJ2K
	spinQ := rotation.QuaternionFromEuler(rotation.NewEulerAngles(rotation.ZYX, spin, 0.0, 0.0))

	return rotation.Compose(initial, spinQ)
}

// fromPlanetFactSheetNeptune is Neptune's special case: its pole
// precesses with the orbital-longitude-like argument n.
func fromPlanetFactSheetNeptune(julianCenturies, secJ2K float64) rotation.Quaternion {
	n := (357.85 + 52.316*julianCenturies) * math.Pi / 180.0
	ra := (299.36 + 0.70*math.Sin(n)) * math.Pi / 180.0
	dec := (43.46 - 0.51*math.Cos(n)) * math.Pi / 180.0
	initial := rotation.QuaternionFromEuler(rotation.NewEulerAngles(rotation.ZYX, ra, dec, 0.0))

	day := 16.11 * 3600.0
	rotationRate := 2.0 * math.Pi / day
	spin := rotationRate * secJ2K
	spinQ := rotation.QuaternionFromEuler(rotation.NewEulerAngles(rotation.ZYX, spin, 0.0, 0.0))

	return rotation.Compose(initial, spinQ)
}

// CalculateGravity sums gravitational acceleration from every tracked
// body with a gravity model, at an inertial-frame position.
func (s *System) CalculateGravity(position [3]float64) [3]float64 {
	var total [3]float64
	for _, b := range s.Bodies {
		if b.Gravity == nil {
			continue
		}
		rf := s.toBodyFixed(b, position)
		g := b.Gravity.Acceleration(rf)
		gInertial := b.Orientation.Rotate(g)
		total[0] += gInertial[0]
		total[1] += gInertial[1]
		total[2] += gInertial[2]
	}
	return total
}

// CalculateMagneticField sums magnetic field contributions from every
// tracked body with a magnetic model, at an inertial-frame position.
func (s *System) CalculateMagneticField(position [3]float64) [3]float64 {
	decimalYear := decimalYearOf(s.Epoch)
	var total [3]float64
	for _, b := range s.Bodies {
		if b.Magnetic == nil {
			continue
		}
		rf := s.toBodyFixed(b, position)
		field, err := b.Magnetic.Field(rf, decimalYear)
		if err != nil {
			s.logger.Warn().Err(err).Str("body", b.ID.String()).Msg("skipping magnetic field contribution")
			continue
		}
		fieldInertial := b.Orientation.Rotate(field)
		total[0] += fieldInertial[0]
		total[1] += fieldInertial[1]
		total[2] += fieldInertial[2]
	}
	return total
}

// toBodyFixed converts an inertial-frame position into the body-fixed
// frame of b: Earth is the dominant reference frame and needs no
// recentering, every other body is recentered on its own inertial
// position first.
func (s *System) toBodyFixed(b *Body, position [3]float64) [3]float64 {
	if b.ID == Earth {
		return b.Orientation.Transform(position)
	}
	relative := [3]float64{position[0] - b.Position[0], position[1] - b.Position[1], position[2] - b.Position[2]}
	return b.Orientation.Transform(relative)
}

// decimalYearOf approximates the IGRF-style decimal year (year plus
// fraction elapsed) from an Epoch, using the Julian-year length of
// 365.25 days rather than tracking calendar leap years exactly: IGRF
// interpolation only needs day-scale precision.
func decimalYearOf(e timescale.Epoch) float64 {
	jd := e.ToSystem(timescale.UTC).JD()
	return 2000.0 + (jd-timescale.J2000JD)/365.25
}
