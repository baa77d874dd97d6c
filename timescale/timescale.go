// Package timescale converts epochs among UTC, TAI, GPS, TT, TDB, and UT1,
// and provides Julian-date helpers shared by the rest of the module.
//
// Every conversion routes through TAI (§4.C): UTC and GPS are offsets from
// TAI by a whole number of leap seconds (for UTC) or a fixed 19s (for GPS),
// and TT is TAI+32.184s exactly. UT1 is not a uniform timescale — it tracks
// Earth's rotation — so converting TT→UT1 uses the tabulated/interpolated
// ΔT = TT−UT1 rather than a fixed offset.
package timescale

import (
	"math"
	"time"
)

// SecPerDay is the number of SI seconds in a day.
const SecPerDay = 86400.0

// J2000JD is the Julian date of the J2000.0 epoch (2000-01-01 12:00 TT).
const J2000JD = 2451545.0

// LeapSecondEntry pairs a cumulative leap-second count with the UTC Julian
// date at which it took effect.
type LeapSecondEntry struct {
	JDUTC  float64
	Offset float64 // TAI-UTC in seconds
}

// leapSeconds is the table of TAI-UTC offsets, ported from the IERS/NAIF
// leap-second kernel. JDUTC values are the UTC Julian date of each leap
// second's effective date at 00:00 UTC.
var leapSeconds = []LeapSecondEntry{
	{2441317.5, 10}, // 1972-01-01
	{2441499.5, 11}, // 1972-07-01
	{2441683.5, 12}, // 1973-01-01
	{2442048.5, 13}, // 1974-01-01
	{2442413.5, 14}, // 1975-01-01
	{2442778.5, 15}, // 1976-01-01
	{2443144.5, 16}, // 1977-01-01
	{2443509.5, 17}, // 1978-01-01
	{2443874.5, 18}, // 1979-01-01
	{2444239.5, 19}, // 1980-01-01
	{2444786.5, 20}, // 1981-07-01
	{2445151.5, 21}, // 1982-07-01
	{2445516.5, 22}, // 1983-07-01
	{2446247.5, 23}, // 1985-07-01
	{2447161.5, 24}, // 1988-01-01
	{2447892.5, 25}, // 1990-01-01
	{2448257.5, 26}, // 1991-01-01
	{2448804.5, 27}, // 1992-07-01
	{2449169.5, 28}, // 1993-07-01
	{2449534.5, 29}, // 1994-07-01
	{2450083.5, 30}, // 1996-01-01
	{2450630.5, 31}, // 1997-07-01
	{2451179.5, 32}, // 1999-01-01
	{2453736.5, 33}, // 2006-01-01
	{2454832.5, 34}, // 2009-01-01
	{2456109.5, 35}, // 2012-07-01
	{2457204.5, 36}, // 2015-07-01
	{2457754.5, 37}, // 2017-01-01
}

// LeapSecondOffset returns TAI-UTC in seconds for the given UTC Julian date,
// by binary search over the leap-second table. Epochs before the first
// tabulated entry return the table's initial offset (10s) rather than
// failing, since pre-1972 UTC was not yet defined by whole-second leaps.
func LeapSecondOffset(jdUTC float64) float64 {
	lo, hi := 0, len(leapSeconds)
	for lo < hi {
		mid := (lo + hi) / 2
		if leapSeconds[mid].JDUTC <= jdUTC {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return leapSeconds[0].Offset
	}
	return leapSeconds[lo-1].Offset
}

// deltaTEntry is one (year, ΔT) pair in the historical ΔT = TT-UT1 table.
type deltaTEntry struct {
	year float64
	dt   float64 // seconds
}

// deltaTTable holds historical and tabulated ΔT values (seconds), at
// 20-year steps from 1800 to 1960, decadal to 2000, every 2-5 years to
// 2020, then projections for 2100, 2150 and 2200, per Espenak
// & Meeus "Polynomial Expressions for Delta T". Values beyond the last
// entry are held constant (implementations needing sub-second accuracy
// decades into the future should supply updated IERS bulletins).
var deltaTTable = []deltaTEntry{
	{1800, 18.3670}, {1820, 11.44}, {1840, 6.71}, {1860, 7.64},
	{1880, -5.17}, {1900, -2.79}, {1920, 21.20}, {1940, 24.35},
	{1960, 33.15}, {1970, 40.18}, {1980, 50.54}, {1990, 56.86},
	{2000, 63.829}, {2005, 64.69}, {2010, 66.07}, {2015, 67.64},
	{2017, 68.10}, {2020, 69.36}, {2100, 96.0}, {2150, 141.0}, {2200, 185.0},
}

// DeltaT returns ΔT = TT-UT1 in seconds for a decimal year, by piecewise
// linear interpolation over the historical table, clamped to the table's
// endpoints outside its range.
func DeltaT(year float64) float64 {
	n := len(deltaTTable)
	if year <= deltaTTable[0].year {
		return deltaTTable[0].dt
	}
	if year >= deltaTTable[n-1].year {
		return deltaTTable[n-1].dt
	}
	idx := 0
	for idx < n-2 && deltaTTable[idx+1].year <= year {
		idx++
	}
	a, b := deltaTTable[idx], deltaTTable[idx+1]
	frac := (year - a.year) / (b.year - a.year)
	return a.dt + frac*(b.dt-a.dt)
}

// TimeToJDUTC converts a time.Time (interpreted in UTC) to a UTC Julian date.
func TimeToJDUTC(t time.Time) float64 {
	t = t.UTC()
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	ns := t.Nanosecond()
	return CalendarToJDUTC(y, int(mo), d, h, mi, float64(s)+float64(ns)*1e-9)
}

// CalendarToJDUTC converts a UTC calendar date/time to a Julian date.
// second may carry a fractional part.
func CalendarToJDUTC(year, month, day, hour, minute int, second float64) float64 {
	y, m := float64(year), float64(month)
	if m <= 2 {
		y--
		m += 12
	}
	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) +
		float64(day) + b - 1524.5
	dayFrac := (float64(hour) + float64(minute)/60.0 + second/3600.0) / 24.0
	return jd + dayFrac
}

// UTCToTT converts a UTC Julian date to a TT Julian date:
// TT = UTC + (leap seconds + 32.184s), routing through TAI per §4.C.
func UTCToTT(jdUTC float64) float64 {
	offsetSec := LeapSecondOffset(jdUTC) + 32.184
	return jdUTC + offsetSec/SecPerDay
}

// CalendarToTAI converts a UTC calendar date/time directly to a TAI Julian
// date. It exists alongside CalendarToJDUTC+LeapSecondOffset because the
// inserted leap second (second == 60, e.g. 2016-12-31T23:59:60) collapses
// to the exact same floating-point Julian date as the following midnight,
// so a plain LeapSecondOffset(jdUTC) lookup at that instant would pick up
// the new offset a second early. During the leap second itself, the
// offset in effect is still the one from just before midnight.
func CalendarToTAI(year, month, day, hour, minute int, second float64) float64 {
	jdUTC := CalendarToJDUTC(year, month, day, hour, minute, second)
	offset := LeapSecondOffset(jdUTC)
	if second >= 60.0 {
		offset = LeapSecondOffset(jdUTC - 0.5)
	}
	return jdUTC + offset/SecPerDay
}

// TTToUTC converts a TT Julian date back to a UTC Julian date. Since the
// leap-second offset is itself indexed by UTC, this first estimates UTC
// using the current offset and refines once (leap seconds only change on
// day boundaries, so a single correction is exact away from a leap-second
// instant).
func TTToUTC(jdTT float64) float64 {
	approxUTC := jdTT - 32.184/SecPerDay
	offsetSec := LeapSecondOffset(approxUTC) + 32.184
	return jdTT - offsetSec/SecPerDay
}

// TTToUT1 converts a TT Julian date to a UT1 Julian date using the
// tabulated/interpolated ΔT = TT-UT1.
func TTToUT1(jdTT float64) float64 {
	year := 2000.0 + (jdTT-J2000JD)/365.25
	dt := DeltaT(year)
	return jdTT - dt/SecPerDay
}

// UT1ToTT converts a UT1 Julian date to TT, inverse of TTToUT1. ΔT varies
// slowly enough that a single pass (evaluating ΔT at the UT1 epoch) is
// accurate to microseconds.
func UT1ToTT(jdUT1 float64) float64 {
	year := 2000.0 + (jdUT1-J2000JD)/365.25
	dt := DeltaT(year)
	return jdUT1 + dt/SecPerDay
}

// TDBMinusTT returns TDB-TT in seconds for a given Julian date (TT or TDB;
// the distinction is below the series' own precision).
// Fairhead & Bretagnon approximation (USNO Circular 179 eq. 2.6).
func TDBMinusTT(jd float64) float64 {
	t := (jd - J2000JD) / 36525.0
	return 0.001657*math.Sin(628.3076*t+6.2401) +
		0.000022*math.Sin(575.3385*t+4.2970) +
		0.000014*math.Sin(1256.6152*t+6.1969) +
		0.000005*math.Sin(606.9777*t+4.0212) +
		0.000005*math.Sin(52.9691*t+0.4444) +
		0.000002*math.Sin(21.3299*t+5.5431) +
		0.000010*t*math.Sin(628.3076*t+4.2490)
}

// TTToTDB converts a TT Julian date to TDB.
func TTToTDB(jdTT float64) float64 {
	return jdTT + TDBMinusTT(jdTT)/SecPerDay
}

// TDBToTT converts a TDB Julian date to TT.
func TDBToTT(jdTDB float64) float64 {
	return jdTDB - TDBMinusTT(jdTDB)/SecPerDay
}

// System identifies one of the five time scales tracked by Epoch.
type System int

const (
	UTC System = iota
	TAI
	GPS
	TT
	TDB
)

// Epoch pairs a time system with seconds since J2000 in that system,
// matching the data model in §3 ("Time"): a single f64 plus a system tag,
// with cross-system conversion always routing through TAI.
type Epoch struct {
	system System
	value  float64 // seconds since J2000 in system
}

// NewEpoch constructs an Epoch directly from seconds since J2000.
func NewEpoch(system System, secondsJ2000 float64) Epoch {
	return Epoch{system: system, value: secondsJ2000}
}

// EpochFromJD constructs an Epoch from a Julian date in the given system.
func EpochFromJD(system System, jd float64) Epoch {
	return Epoch{system: system, value: (jd - J2000JD) * SecPerDay}
}

// System returns the epoch's time system.
func (e Epoch) System() System { return e.system }

// SecondsJ2000 returns the raw seconds-since-J2000 value in the epoch's
// own system.
func (e Epoch) SecondsJ2000() float64 { return e.value }

// JD returns the Julian date of the epoch in its own system.
func (e Epoch) JD() float64 { return e.value/SecPerDay + J2000JD }

// ToSystem converts the epoch to another time system, routing through TAI.
// TDB involves the Fairhead-Bretagnon series rather than a fixed offset;
// all other conversions are exact additions of constant or leap-second
// offsets.
func (e Epoch) ToSystem(target System) Epoch {
	if e.system == target {
		return e
	}

	jd := e.JD()

	var jdTAI float64
	switch e.system {
	case UTC:
		jdTAI = jd + LeapSecondOffset(jd)/SecPerDay
	case GPS:
		jdTAI = jd + 19.0/SecPerDay
	case TT:
		jdTAI = jd - 32.184/SecPerDay
	case TDB:
		jdTAI = TDBToTT(jd) - 32.184/SecPerDay
	case TAI:
		jdTAI = jd
	}

	var jdTarget float64
	switch target {
	case UTC:
		// leap offset indexed by UTC; one correction pass is exact off a leap instant
		approxUTC := jdTAI - 37.0/SecPerDay
		jdTarget = jdTAI - LeapSecondOffset(approxUTC)/SecPerDay
	case GPS:
		jdTarget = jdTAI - 19.0/SecPerDay
	case TT:
		jdTarget = jdTAI + 32.184/SecPerDay
	case TDB:
		jdTarget = TTToTDB(jdTAI + 32.184/SecPerDay)
	case TAI:
		jdTarget = jdTAI
	}

	return EpochFromJD(target, jdTarget)
}
