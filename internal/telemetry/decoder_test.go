package telemetry

import (
	"math"
	"testing"
	"time"
)

func newTestDecoder() *Decoder {
	d := NewDecoder()
	d.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func decodeAll(t *testing.T, d *Decoder, lines []string) []*Update {
	t.Helper()
	var updates []*Update
	for _, line := range lines {
		update, err := d.DecodeLine(line)
		if err != nil {
			t.Fatalf("DecodeLine(%q) error: %v", line, err)
		}
		if update != nil {
			updates = append(updates, update)
		}
	}
	return updates
}

func TestDecodeObjectUpdate(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{
		"FileType=text/acmi/tacview",
		"FileVersion=2.2",
		"0,ReferenceTime=2026-08-01T12:00:00Z",
		"0,ReferenceLatitude=40.0",
		"0,ReferenceLongitude=30.0",
		"#10.5",
		"a01,T=1.5|2.25|6000.0|||||350.5|90.0,Name=F-16C_50,Pilot=Uzi 1-1,Coalition=Enemies,Type=Air+FixedWing,TAS=200.0",
	})

	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]

	if u.ID != "a01" || u.Removed {
		t.Errorf("unexpected identity: %+v", u)
	}
	if !u.HasPos || u.Lat != 42.25 || u.Lon != 31.5 || u.AltMeters != 6000 {
		t.Errorf("reference offsets not applied: lat=%f lon=%f alt=%f", u.Lat, u.Lon, u.AltMeters)
	}
	if !u.HasHeading || u.HeadingDeg != 90 {
		t.Errorf("heading not parsed from 9-part transform: %+v", u)
	}
	if !u.HasTAS || math.Abs(u.TASKnots-200*metersPerSecToKnots) > 0.01 {
		t.Errorf("TAS not converted to knots: %f", u.TASKnots)
	}
	if u.Name != "F-16C_50" || u.Pilot != "Uzi 1-1" || u.Coalition != "Enemies" {
		t.Errorf("properties not parsed: %+v", u)
	}

	want := time.Date(2026, 8, 1, 12, 0, 10, 500000000, time.UTC)
	if !u.Time.Equal(want) {
		t.Errorf("record time = %v, want %v", u.Time, want)
	}
}

func TestDecodeShortTransform(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{
		"0,ReferenceLatitude=10.0",
		"0,ReferenceLongitude=20.0",
		"b02,T=0.5|0.5|1000",
	})

	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if !u.HasPos || u.Lat != 10.5 || u.Lon != 20.5 || u.AltMeters != 1000 {
		t.Errorf("short transform mis-parsed: %+v", u)
	}
	if u.HasHeading {
		t.Error("3-part transform should not carry heading")
	}
}

func TestDecodeEmptyTransformSegments(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{
		// Altitude-only change: lon/lat empty means "unchanged".
		"b02,T=||2000",
	})

	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if updates[0].HasPos {
		t.Error("transform without lat/lon should not claim a position")
	}
}

func TestDecodeSparseTransformsCarryForward(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{
		"0,ReferenceLatitude=0.0",
		"0,ReferenceLongitude=0.0",
		"a01,T=1.0|2.0|6000|||||350|90,Name=F-16C_50,Pilot=Uzi 1-1,Coalition=Enemies,Type=Air+FixedWing,TAS=250",
		// Level flight: the feed repeats only the moving values.
		"a01,T=1.01|2.0|",
		// Climb reported as altitude alone.
		"a01,T=||7000",
	})

	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}

	level := updates[1]
	if !level.HasPos || level.Lon != 1.01 || level.Lat != 2.0 {
		t.Fatalf("position mis-parsed: %+v", level)
	}
	if level.AltMeters != 6000 {
		t.Errorf("AltMeters = %f, want 6000 carried forward", level.AltMeters)
	}
	if !level.HasHeading || level.HeadingDeg != 90 {
		t.Errorf("HeadingDeg = %f, want 90 carried forward", level.HeadingDeg)
	}
	if !level.HasTAS || math.Abs(level.TASKnots-250*metersPerSecToKnots) > 0.01 {
		t.Errorf("TASKnots = %f, want previous speed carried forward", level.TASKnots)
	}

	climb := updates[2]
	if !climb.HasPos || climb.Lon != 1.01 || climb.Lat != 2.0 {
		t.Errorf("altitude-only transform lost the position: %+v", climb)
	}
	if climb.AltMeters != 7000 {
		t.Errorf("AltMeters = %f, want 7000", climb.AltMeters)
	}
}

func TestDecodeRemovalClearsObjectState(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{
		"a01,T=1|2|6000",
		"-a01",
		// A reused ID starts from scratch; stale kinematics must not leak.
		"a01,T=||3000",
	})
	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}
	if updates[2].HasPos {
		t.Errorf("removed object's position leaked into new update: %+v", updates[2])
	}
}

func TestDecodeRemoval(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{"-a01"})
	if len(updates) != 1 || !updates[0].Removed || updates[0].ID != "a01" {
		t.Fatalf("removal mis-parsed: %+v", updates)
	}
}

func TestDecodeEscapedComma(t *testing.T) {
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{
		`c03,T=1|1|100,Pilot=Dodge 1-1 \, lead`,
	})
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if updates[0].Pilot != "Dodge 1-1 , lead" {
		t.Errorf("escaped comma mis-parsed: %q", updates[0].Pilot)
	}
}

func TestDecodeMalformedLines(t *testing.T) {
	malformed := []string{
		"#notanumber",
		"-",
		"a01,T=1|2",
		"a01,T=abc|2|3",
		"a01,NoEqualsSign",
		"a01,TAS=fast",
		"0,ReferenceLatitude=north",
	}
	for _, line := range malformed {
		d := newTestDecoder()
		if _, err := d.DecodeLine(line); err == nil {
			t.Errorf("DecodeLine(%q) = nil error, want malformed-record error", line)
		}
	}
}

func TestDecodeWallClockFallback(t *testing.T) {
	// Without a ReferenceTime the decoder stamps records with the clock.
	d := newTestDecoder()
	updates := decodeAll(t, d, []string{"a01,T=1|1|100"})
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	if !updates[0].Time.Equal(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("fallback timestamp = %v", updates[0].Time)
	}
}
