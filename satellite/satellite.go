// Package satellite wraps SGP4 TLE propagation for seeding a body's initial
// orbit state when no SPK ephemeris coverage exists for it.
package satellite

import (
	"math"

	gosatellite "github.com/joshuaferrara/go-satellite"

	"github.com/anupshinde/multibody-sim/coord"
	"github.com/anupshinde/multibody-sim/timescale"
)

// Sat holds a named satellite for SGP4 propagation.
type Sat struct {
	Name string
	Sat  gosatellite.Satellite
}

// NewSat creates a Sat from TLE lines using the WGS84 gravity model.
func NewSat(name, line1, line2 string) Sat {
	return Sat{
		Name: name,
		Sat:  gosatellite.TLEToSat(line1, line2, gosatellite.GravityWGS84),
	}
}

// PositionVelocityICRF propagates the satellite to the given TT Julian date
// and returns position (km) and velocity (km/s) in the ICRF/GCRF frame.
func PositionVelocityICRF(s Sat, ttJD float64) (posKm, velKmS [3]float64) {
	jdUT1 := timescale.TTToUT1(ttJD)
	y, mo, d, h, mi, sec := jdToCalendar(jdUT1)

	pos, vel := gosatellite.Propagate(s.Sat, y, mo, d, h, mi, sec)

	posTEME := [3]float64{pos.X, pos.Y, pos.Z}
	posICRF := coord.TEMEToICRF(posTEME, jdUT1)

	// Velocity rotates the same way as position to first order; SGP4 velocity
	// is output in km/s TEME. A small-step finite difference isn't needed here
	// since the frame rotation (precession+nutation) is the dominant effect
	// and is quasi-static over a propagation step; rotate directly.
	velTEME := [3]float64{vel.X, vel.Y, vel.Z}
	velICRF := coord.TEMEToICRF(velTEME, jdUT1)

	return posICRF, velICRF
}

// SubPoint returns the sub-satellite geographic point (lat/lon in degrees)
// at the given TT Julian date.
func SubPoint(s Sat, ttJD float64) (latDeg, lonDeg float64) {
	jdUT1 := timescale.TTToUT1(ttJD)
	y, mo, d, h, mi, sec := jdToCalendar(jdUT1)

	pos, _ := gosatellite.Propagate(s.Sat, y, mo, d, h, mi, sec)
	jd := gosatellite.JDay(y, mo, d, h, mi, sec)
	gmst := gosatellite.ThetaG_JD(jd)

	_, _, latLong := gosatellite.ECIToLLA(pos, gmst)
	ll := gosatellite.LatLongDeg(latLong)

	lonDeg = math.Mod(ll.Longitude+360.0, 360.0)
	return ll.Latitude, lonDeg
}

// jdToCalendar converts a Julian date to calendar components.
func jdToCalendar(jd float64) (year, month, day, hour, min, sec int) {
	jd += 0.5
	z := math.Floor(jd)
	f := jd - z

	var a float64
	if z < 2299161 {
		a = z
	} else {
		alpha := math.Floor((z - 1867216.25) / 36524.25)
		a = z + 1 + alpha - math.Floor(alpha/4)
	}

	b := a + 1524
	c := math.Floor((b - 122.1) / 365.25)
	d := math.Floor(365.25 * c)
	e := math.Floor((b - d) / 30.6001)

	dayFrac := b - d - math.Floor(30.6001*e) + f
	day = int(dayFrac)
	fracDay := dayFrac - float64(day)

	if e < 14 {
		month = int(e) - 1
	} else {
		month = int(e) - 13
	}
	if month > 2 {
		year = int(c) - 4716
	} else {
		year = int(c) - 4715
	}

	totalSec := fracDay * 86400.0
	hour = int(totalSec / 3600.0)
	totalSec -= float64(hour) * 3600.0
	min = int(totalSec / 60.0)
	sec = int(totalSec - float64(min)*60.0)

	return
}
