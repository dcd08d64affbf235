// Package geo implements the relative-geometry kernel used for tactical calls.
//
// All distances use a spherical Earth (R = 6371 km) via the haversine formula.
// At typical engagement ranges (tens of nautical miles) the error versus an
// ellipsoidal model is well below the rounding applied to spoken calls.
package geo

import "math"

// Conversion factors and Earth model constants.
const (
	MetersPerNM   = 1852.0  // Meters per nautical mile
	FeetPerMeter  = 3.28084 // Feet per meter
	earthRadiusM  = 6371000.0
	coLocatedMinM = 10.0 // below this horizontal separation, geometry is degenerate
)

// MetersToNM converts meters to nautical miles
func MetersToNM(meters float64) float64 {
	return meters / MetersPerNM
}

// NMToMeters converts nautical miles to meters
func NMToMeters(nm float64) float64 {
	return nm * MetersPerNM
}

// MetersToFeet converts meters to feet
func MetersToFeet(meters float64) float64 {
	return meters * FeetPerMeter
}

// FeetToMeters converts feet to meters
func FeetToMeters(feet float64) float64 {
	return feet / FeetPerMeter
}

// NormalizeDeg normalizes an angle in degrees to [0, 360).
func NormalizeDeg(deg float64) float64 {
	d := math.Mod(deg, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}

// HaversineMeters calculates the great-circle distance in meters between two
// lat/lon points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180.0

	lat1Rad := lat1 * rad
	lat2Rad := lat2 * rad
	dlat := (lat2 - lat1) * rad
	dlon := (lon2 - lon1) * rad

	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// RangeNM calculates the horizontal range in nautical miles between two
// lat/lon points.
func RangeNM(lat1, lon1, lat2, lon2 float64) float64 {
	return MetersToNM(HaversineMeters(lat1, lon1, lat2, lon2))
}

// Bearing calculates the initial great-circle bearing in degrees from point 1
// to point 2. Returns a value in [0, 360) with 0 = north, 90 = east.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180.0

	lat1Rad := lat1 * rad
	lat2Rad := lat2 * rad
	dlon := (lon2 - lon1) * rad

	y := math.Sin(dlon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(dlon)
	bearing := math.Atan2(y, x) / rad

	return NormalizeDeg(bearing)
}

// Aspect describes the target's heading relative to the line connecting it to
// the observer.
type Aspect int

// Aspect buckets, from closing head-on to moving away.
const (
	AspectHot Aspect = iota
	AspectFlanking
	AspectBeaming
	AspectCold
)

// String returns the spoken form of the aspect.
func (a Aspect) String() string {
	switch a {
	case AspectHot:
		return "hot"
	case AspectFlanking:
		return "flanking"
	case AspectBeaming:
		return "beaming"
	case AspectCold:
		return "cold"
	default:
		return "unknown"
	}
}

// Aspect bucket thresholds on the aspect angle (degrees off the reciprocal
// bearing). Convention fixed here and asserted by the fixture tests:
// hot <= 30, flanking <= 70, beaming <= 110, cold otherwise.
const (
	hotMaxDeg      = 30.0
	flankingMaxDeg = 70.0
	beamingMaxDeg  = 110.0
)

// AspectOf buckets the target's aspect given the bearing from observer to
// target and the target's heading. The aspect angle is the absolute angular
// distance between the target's heading and the bearing reciprocal (the
// direction from target back to observer): 0 means nose-on (hot), 180 means
// tail-on (cold).
func AspectOf(bearingDeg, targetHeadingDeg float64) Aspect {
	reciprocal := NormalizeDeg(bearingDeg + 180.0)
	diff := NormalizeDeg(targetHeadingDeg - reciprocal)
	if diff > 180.0 {
		diff = 360.0 - diff
	}

	switch {
	case diff <= hotMaxDeg:
		return AspectHot
	case diff <= flankingMaxDeg:
		return AspectFlanking
	case diff <= beamingMaxDeg:
		return AspectBeaming
	default:
		return AspectCold
	}
}

// CardinalPoint returns the spoken cardinal direction for a heading in
// degrees ("north", "north east", ...).
func CardinalPoint(headingDeg float64) string {
	points := []string{
		"north", "north east", "east", "south east",
		"south", "south west", "west", "north west",
	}
	idx := int(math.Round(NormalizeDeg(headingDeg)/45.0)) % len(points)
	return points[idx]
}

// Relative describes the geometry of a target as seen from an observer.
type Relative struct {
	BearingDeg      float64 // initial bearing observer -> target, [0, 360)
	RangeNM         float64 // horizontal range, >= 0
	AltitudeDeltaFt float64 // target altitude minus observer altitude
	Aspect          Aspect
	CoLocated       bool // degenerate geometry, bearing/aspect not meaningful
}

// Compute returns the full relative geometry between an observer and a target.
// Altitudes are in meters, headings in degrees. Degenerate (co-located) inputs
// yield a defined zero-range result instead of NaN propagation.
func Compute(obsLat, obsLon, obsAltM, tgtLat, tgtLon, tgtAltM, tgtHeadingDeg float64) Relative {
	distM := HaversineMeters(obsLat, obsLon, tgtLat, tgtLon)
	altDeltaFt := MetersToFeet(tgtAltM - obsAltM)

	if distM < coLocatedMinM {
		return Relative{
			BearingDeg:      0,
			RangeNM:         0,
			AltitudeDeltaFt: altDeltaFt,
			Aspect:          AspectHot,
			CoLocated:       true,
		}
	}

	bearing := Bearing(obsLat, obsLon, tgtLat, tgtLon)
	return Relative{
		BearingDeg:      bearing,
		RangeNM:         MetersToNM(distM),
		AltitudeDeltaFt: altDeltaFt,
		Aspect:          AspectOf(bearing, tgtHeadingDeg),
	}
}
