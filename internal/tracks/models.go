package tracks

import (
	"math"
	"time"

	"github.com/yegors/co-gci/internal/geo"
)

// Side is the coalition classification of a track relative to the bot.
type Side int

// Side values. Unknown is the zero value so an unclassified telemetry record
// is treated as a potential threat rather than a friendly.
const (
	SideUnknown Side = iota
	SideFriendly
	SideHostile
)

// String returns the lowercase name of the side.
func (s Side) String() string {
	switch s {
	case SideFriendly:
		return "friendly"
	case SideHostile:
		return "hostile"
	default:
		return "unknown"
	}
}

// Position is an immutable kinematic snapshot of an aircraft.
type Position struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltMeters  float64 `json:"alt_meters"`
	HeadingDeg float64 `json:"heading_deg"`
	GSKnots    float64 `json:"gs_knots"`
}

// Track is the last known state of one aircraft, keyed by its telemetry ID.
type Track struct {
	ID        string    `json:"id"`
	Callsign  string    `json:"callsign"`
	TypeName  string    `json:"type_name"`
	Side      Side      `json:"-"`
	Pos       Position  `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionAt dead-reckons the track forward from its last update to the given
// time, stepping along the current heading at ground speed. A flat-earth step
// is fine here: extrapolation spans seconds, not minutes (stale tracks are
// evicted long before the approximation matters).
func (t Track) PositionAt(now time.Time) Position {
	dt := now.Sub(t.Timestamp)
	if dt <= 0 || t.Pos.GSKnots <= 0 {
		return t.Pos
	}

	distNM := t.Pos.GSKnots * dt.Hours()
	headingRad := t.Pos.HeadingDeg * math.Pi / 180.0

	pos := t.Pos
	pos.Lat += (distNM / 60.0) * math.Cos(headingRad)
	cosLat := math.Cos(pos.Lat * math.Pi / 180.0)
	if math.Abs(cosLat) > 1e-6 {
		pos.Lon += (distNM / 60.0) * math.Sin(headingRad) / cosLat
	}
	pos.Lon = normalizeLon(pos.Lon)
	return pos
}

// AltFeet returns the track's last known altitude in feet.
func (t Track) AltFeet() float64 {
	return geo.MetersToFeet(t.Pos.AltMeters)
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
