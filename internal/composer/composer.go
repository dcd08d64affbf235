package composer

import (
	"math"
	"sort"
	"time"

	"github.com/yegors/co-gci/internal/geo"
	"github.com/yegors/co-gci/internal/tracks"
	"github.com/yegors/co-gci/pkg/logger"
)

// Composer answers classified pilot requests from a point-in-time snapshot of
// the track store. HandleRequest is a pure query; it is safe to run
// concurrently for any number of pilots.
type Composer struct {
	store          *tracks.Store
	botCallsign    string
	searchRadiusNM float64
	logger         *logger.Logger
}

// New creates a call composer.
func New(store *tracks.Store, botCallsign string, searchRadiusNM float64, log *logger.Logger) *Composer {
	return &Composer{
		store:          store,
		botCallsign:    botCallsign,
		searchRadiusNM: searchRadiusNM,
		logger:         log.Named("composer"),
	}
}

// HandleRequest resolves a request into a spoken reply. Every outcome gets a
// script; the error return carries the taxonomy value for logging and the
// call log, never a reason to abort the session.
func (c *Composer) HandleRequest(now time.Time, req RadioRequest) (Reply, error) {
	switch req.Kind {
	case RequestBogeyDope:
		return c.bogeyDope(now, req)
	case RequestRadioCheck:
		return Reply{
			Outcome: OutcomeRadioCheck,
			Script:  renderScript("radio_check", c.scriptData(req.Pilot)),
		}, nil
	case RequestUnknown:
		return Reply{
			Outcome: OutcomeUnrecognized,
			Script:  renderScript("say_again", c.scriptData(req.Pilot)),
		}, ErrUnrecognizedRequest
	default:
		// RequestKind is a closed set; reaching here means a new kind was
		// added without a composer branch.
		return Reply{
			Outcome: OutcomeUnrecognized,
			Script:  renderScript("say_again", c.scriptData(req.Pilot)),
		}, ErrUnrecognizedRequest
	}
}

// bogeyDope finds the nearest hostile or unknown contact to the requester and
// renders the call.
func (c *Composer) bogeyDope(now time.Time, req RadioRequest) (Reply, error) {
	requester, ok := c.store.FindByCallsign(now, req.Pilot)
	if !ok {
		c.logger.Debug("Requester not on scope", logger.String("pilot", req.Pilot))
		return Reply{
			Outcome: OutcomeNoTrack,
			Script:  renderScript("no_track", c.scriptData(req.Pilot)),
		}, ErrRequesterNotFound
	}

	if requester.Side == tracks.SideHostile {
		c.logger.Warn("Request from opposite coalition",
			logger.String("pilot", req.Pilot),
			logger.String("side", requester.Side.String()))
		return Reply{
			Outcome: OutcomeWrongCoalition,
			Script:  renderScript("wrong_coalition", c.scriptData(req.Pilot)),
		}, ErrWrongCoalition
	}

	requesterPos := requester.PositionAt(now)
	contact, rel, found := c.nearestThreat(now, requester.ID, requesterPos)
	if !found {
		return Reply{
			Outcome: OutcomeClean,
			Script:  renderScript("clean", c.scriptData(req.Pilot)),
			Result:  &CallResult{Clean: true},
		}, nil
	}

	result := &CallResult{
		BearingDeg: roundBearing(rel.BearingDeg),
		RangeNM:    int(math.Round(rel.RangeNM)),
		AltitudeFt: roundAltitudeFt(contact.pos.AltMeters),
		Aspect:     rel.Aspect,
		Cardinal:   geo.CardinalPoint(contact.pos.HeadingDeg),
		Side:       contact.track.Side,
		TypeName:   ReportingName(contact.track.TypeName),
		ContactID:  contact.track.ID,
	}

	data := c.scriptData(req.Pilot)
	data.BearingDigits = spokenBearing(result.BearingDeg)
	data.RangeNM = result.RangeNM
	data.Altitude = spokenAltitude(result.AltitudeFt)
	data.Aspect = result.Aspect.String()
	data.Type = result.TypeName
	if result.Aspect != geo.AspectHot {
		// On a hot contact the heading is implied; otherwise speak the
		// cardinal direction the bandit is moving.
		data.Cardinal = result.Cardinal
	}

	return Reply{
		Outcome: OutcomeBogeyDope,
		Script:  renderScript("bogey_dope", data),
		Result:  result,
	}, nil
}

// candidate pairs a qualifying track with its dead-reckoned position.
type candidate struct {
	track tracks.Track
	pos   tracks.Position
	rng   float64
}

// nearestThreat scans a snapshot for hostile/unknown tracks within the search
// radius, excluding the requester, and returns the nearest by range with ties
// broken by lower track ID for determinism.
func (c *Composer) nearestThreat(now time.Time, requesterID string, requesterPos tracks.Position) (candidate, geo.Relative, bool) {
	snapshot := c.store.Snapshot(now)

	var candidates []candidate
	for _, track := range snapshot {
		if track.ID == requesterID || track.Side == tracks.SideFriendly {
			continue
		}
		pos := track.PositionAt(now)
		rng := geo.RangeNM(requesterPos.Lat, requesterPos.Lon, pos.Lat, pos.Lon)
		if rng > c.searchRadiusNM {
			continue
		}
		candidates = append(candidates, candidate{track: track, pos: pos, rng: rng})
	}
	if len(candidates) == 0 {
		return candidate{}, geo.Relative{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rng != candidates[j].rng {
			return candidates[i].rng < candidates[j].rng
		}
		return candidates[i].track.ID < candidates[j].track.ID
	})

	nearest := candidates[0]
	rel := geo.Compute(
		requesterPos.Lat, requesterPos.Lon, requesterPos.AltMeters,
		nearest.pos.Lat, nearest.pos.Lon, nearest.pos.AltMeters,
		nearest.pos.HeadingDeg,
	)
	return nearest, rel, true
}

func (c *Composer) scriptData(pilot string) scriptData {
	return scriptData{To: pilot, From: c.botCallsign}
}

// roundBearing rounds to the nearest 10 degrees per controller convention,
// keeping the result in [0, 360).
func roundBearing(bearingDeg float64) int {
	rounded := int(math.Round(bearingDeg/10.0)) * 10
	return ((rounded % 360) + 360) % 360
}

// roundAltitudeFt rounds a metric altitude to the nearest thousand feet.
func roundAltitudeFt(altMeters float64) int {
	return int(math.Round(geo.MetersToFeet(altMeters)/1000.0)) * 1000
}
