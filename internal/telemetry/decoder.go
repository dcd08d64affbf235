// Package telemetry ingests the real-time ACMI telemetry stream and applies
// it to the track store.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Update is one decoded telemetry record. Identity properties are sparse: a
// record carries only the ones present on its line. Kinematics come out fully
// resolved against the object's last-known state, with Has* flags marking
// which values are known at all. Positions are absolute (reference offsets
// already applied).
type Update struct {
	ID      string
	Removed bool
	Time    time.Time

	HasPos    bool
	Lat       float64
	Lon       float64
	AltMeters float64

	HasHeading bool
	HeadingDeg float64

	HasTAS   bool
	TASKnots float64

	Name      string
	Pilot     string
	Coalition string
	Type      string
}

const metersPerSecToKnots = 1.943844

// Decoder decodes the line-oriented ACMI real-time telemetry protocol. It is
// stateful: reference latitude/longitude/time and the current frame offset
// arrive as global records and apply to every following object update.
type Decoder struct {
	refTime     time.Time
	refLat      float64
	refLon      float64
	frameOffset time.Duration

	// objects holds the last resolved kinematics per object ID so sparse
	// records decode into fully populated updates.
	objects map[string]*objectState

	// now supplies record timestamps when the stream never declared a
	// reference time; injectable for tests.
	now func() time.Time
}

// objectState is the last-known kinematic state of one object. A transform
// with empty segments means those values are unchanged, so the decoder merges
// each record into this state and emits the merged result.
type objectState struct {
	hasLat, hasLon bool
	lat, lon       float64
	altMeters      float64
	hasHeading     bool
	headingDeg     float64
	hasTAS         bool
	tasKnots       float64
}

// NewDecoder creates a decoder with wall-clock fallback timestamps.
func NewDecoder() *Decoder {
	return &Decoder{
		objects: make(map[string]*objectState),
		now:     time.Now,
	}
}

func (d *Decoder) stateFor(id string) *objectState {
	state, ok := d.objects[id]
	if !ok {
		state = &objectState{}
		d.objects[id] = state
	}
	return state
}

// recordTime returns the timestamp for the current frame.
func (d *Decoder) recordTime() time.Time {
	if d.refTime.IsZero() {
		return d.now().UTC()
	}
	return d.refTime.Add(d.frameOffset)
}

// DecodeLine decodes one line of the stream. It returns a non-nil Update for
// object updates and removals, nil for frame markers, global properties and
// header lines, and an error for lines it cannot make sense of.
func (d *Decoder) DecodeLine(line string) (*Update, error) {
	line = strings.TrimRight(line, "\r\n\x00")
	if line == "" {
		return nil, nil
	}

	// Header lines at stream start.
	if strings.HasPrefix(line, "FileType=") || strings.HasPrefix(line, "FileVersion=") {
		return nil, nil
	}

	// Frame marker: "#<seconds since reference time>".
	if strings.HasPrefix(line, "#") {
		secs, err := strconv.ParseFloat(line[1:], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed frame marker %q: %w", line, err)
		}
		d.frameOffset = time.Duration(secs * float64(time.Second))
		return nil, nil
	}

	// Removal: "-<id>".
	if strings.HasPrefix(line, "-") {
		id := strings.TrimSpace(line[1:])
		if id == "" {
			return nil, fmt.Errorf("malformed removal record %q", line)
		}
		delete(d.objects, id)
		return &Update{ID: id, Removed: true, Time: d.recordTime()}, nil
	}

	fields := splitFields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("malformed record %q: no properties", line)
	}

	id := fields[0]
	if id == "0" {
		return nil, d.decodeGlobal(fields[1:])
	}

	update := &Update{ID: id, Time: d.recordTime()}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("malformed property %q in record %q", field, line)
		}
		if err := d.applyProperty(update, key, value); err != nil {
			return nil, fmt.Errorf("record %q: %w", line, err)
		}
	}
	return update, nil
}

func (d *Decoder) decodeGlobal(fields []string) error {
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("malformed global property %q", field)
		}
		switch key {
		case "ReferenceTime":
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return fmt.Errorf("malformed ReferenceTime %q: %w", value, err)
			}
			d.refTime = t.UTC()
		case "ReferenceLatitude":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("malformed ReferenceLatitude %q: %w", value, err)
			}
			d.refLat = v
		case "ReferenceLongitude":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("malformed ReferenceLongitude %q: %w", value, err)
			}
			d.refLon = v
		default:
			// Mission name, author, and other global properties are not used.
		}
	}
	return nil
}

func (d *Decoder) applyProperty(update *Update, key, value string) error {
	switch key {
	case "T":
		return d.applyTransform(update, value)
	case "Name":
		update.Name = value
	case "Pilot":
		update.Pilot = value
	case "Coalition":
		update.Coalition = value
	case "Type":
		update.Type = value
	case "TAS":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("malformed TAS %q: %w", value, err)
		}
		state := d.stateFor(update.ID)
		state.hasTAS = true
		state.tasKnots = v * metersPerSecToKnots
		update.HasTAS = true
		update.TASKnots = state.tasKnots
	default:
		// Plenty of properties (Group, Color, IAS, ...) are irrelevant here.
	}
	return nil
}

// applyTransform parses the "T=" spherical transform. The pipe-separated
// forms carry 3, 5, 6 or 9 values; position is always the first three
// (lon offset | lat offset | altitude meters) and heading, when present, is
// the last of nine. Empty segments mean "unchanged since last record", so
// present values merge into the object's last-known state and the update is
// emitted fully resolved.
func (d *Decoder) applyTransform(update *Update, value string) error {
	parts := strings.Split(value, "|")
	if len(parts) < 3 {
		return fmt.Errorf("malformed transform %q", value)
	}

	parse := func(s string) (float64, bool, error) {
		if s == "" {
			return 0, false, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	}

	lon, hasLon, err := parse(parts[0])
	if err != nil {
		return fmt.Errorf("malformed transform longitude %q: %w", parts[0], err)
	}
	lat, hasLat, err := parse(parts[1])
	if err != nil {
		return fmt.Errorf("malformed transform latitude %q: %w", parts[1], err)
	}
	alt, hasAlt, err := parse(parts[2])
	if err != nil {
		return fmt.Errorf("malformed transform altitude %q: %w", parts[2], err)
	}

	state := d.stateFor(update.ID)
	if hasLon {
		state.hasLon = true
		state.lon = d.refLon + lon
	}
	if hasLat {
		state.hasLat = true
		state.lat = d.refLat + lat
	}
	if hasAlt {
		state.altMeters = alt
	}

	if len(parts) == 9 {
		heading, has, err := parse(parts[8])
		if err != nil {
			return fmt.Errorf("malformed transform heading %q: %w", parts[8], err)
		}
		if has {
			state.hasHeading = true
			state.headingDeg = heading
		}
	}

	if state.hasLat && state.hasLon {
		update.HasPos = true
		update.Lat = state.lat
		update.Lon = state.lon
		update.AltMeters = state.altMeters
	}
	if state.hasHeading {
		update.HasHeading = true
		update.HeadingDeg = state.headingDeg
	}
	if state.hasTAS && !update.HasTAS {
		update.HasTAS = true
		update.TASKnots = state.tasKnots
	}
	return nil
}

// splitFields splits a record line on commas, honoring the protocol's "\,"
// escape inside property values.
func splitFields(line string) []string {
	var (
		fields  []string
		current strings.Builder
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			if r != ',' {
				current.WriteRune('\\')
			}
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	fields = append(fields, current.String())
	return fields
}
