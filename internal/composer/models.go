// Package composer turns classified pilot requests into tactical call
// scripts using the track store and the geometry kernel.
package composer

import (
	"errors"
	"time"

	"github.com/yegors/co-gci/internal/geo"
	"github.com/yegors/co-gci/internal/tracks"
)

// RequestKind is the closed set of radio request types. The composer switches
// over it exhaustively, so adding a request type is a compiler-checked
// extension point.
type RequestKind int

const (
	// RequestUnknown is anything the classifier could not recognize.
	RequestUnknown RequestKind = iota
	// RequestBogeyDope asks for the nearest hostile/unknown contact.
	RequestBogeyDope
	// RequestRadioCheck asks for a signal quality report.
	RequestRadioCheck
)

// String returns a stable name for logs and the call log.
func (k RequestKind) String() string {
	switch k {
	case RequestBogeyDope:
		return "bogey_dope"
	case RequestRadioCheck:
		return "radio_check"
	default:
		return "unknown"
	}
}

// RadioRequest is one classified pilot transmission.
type RadioRequest struct {
	Pilot string      // requesting pilot's callsign, from the radio transport
	Kind  RequestKind
	Time  time.Time // transmission start
}

// CallResult is the structured data behind a bogey dope reply. Rounding
// follows controller convention: bearing to the nearest 10 degrees, range to
// the nearest nautical mile, altitude to the nearest thousand feet.
type CallResult struct {
	Clean      bool        `json:"clean"`
	BearingDeg int         `json:"bearing_deg,omitempty"`
	RangeNM    int         `json:"range_nm,omitempty"`
	AltitudeFt int         `json:"altitude_ft,omitempty"`
	Aspect     geo.Aspect  `json:"-"`
	Cardinal   string      `json:"cardinal,omitempty"`
	Side       tracks.Side `json:"-"`
	TypeName   string      `json:"type_name,omitempty"`
	ContactID  string      `json:"contact_id,omitempty"`
}

// Outcome labels how a request was resolved, for the call log and tests.
type Outcome string

// Outcome values.
const (
	OutcomeBogeyDope      Outcome = "bogey_dope"
	OutcomeClean          Outcome = "clean"
	OutcomeRadioCheck     Outcome = "radio_check"
	OutcomeNoTrack        Outcome = "no_track"
	OutcomeUnrecognized   Outcome = "unrecognized"
	OutcomeWrongCoalition Outcome = "wrong_coalition"
)

// Reply is what the composer hands back to a radio session: a ready-to-speak
// script plus the structured result it was rendered from.
type Reply struct {
	Outcome Outcome
	Script  string
	Result  *CallResult // nil unless Outcome is bogey_dope or clean
}

// Error taxonomy for request handling. These never terminate the process; a
// session maps them to spoken replies.
var (
	// ErrRequesterNotFound means the bot has no telemetry track for the
	// requesting pilot.
	ErrRequesterNotFound = errors.New("requester not found on scope")
	// ErrUnrecognizedRequest means the transcript carried no known intent.
	ErrUnrecognizedRequest = errors.New("unrecognized request")
	// ErrWrongCoalition means the requester is not on the bot's coalition.
	ErrWrongCoalition = errors.New("requester is not on the bot's coalition")
)
