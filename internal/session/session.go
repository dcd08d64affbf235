// Package session runs the per-pilot radio exchange state machines and the
// dispatcher that owns them. Each inbound transmission moves one session
// through receive, transcribe, compose, synthesize and transmit; a single
// event loop goroutine owns all session state, so no session field needs its
// own lock.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/yegors/co-gci/internal/composer"
)

// State is the lifecycle phase of a radio session.
type State int

const (
	StateIdle State = iota
	StateReceiving
	StateTranscribing
	StateComposing
	StateSynthesizing
	StateTransmitting
	StateAborted
)

// String returns the state name for logs and the status API.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateTranscribing:
		return "transcribing"
	case StateComposing:
		return "composing"
	case StateSynthesizing:
		return "synthesizing"
	case StateTransmitting:
		return "transmitting"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Session is one pilot exchange in flight. All fields are owned by the
// dispatcher loop.
type Session struct {
	ID        string
	Pilot     string
	Frequency string
	State     State
	StartedAt time.Time

	// Deadline bounds the current state. Zero means no deadline.
	Deadline time.Time

	// waitingTx marks a session whose reply audio is ready but whose
	// frequency is held by another session.
	waitingTx bool

	audio      []byte
	transcript string
	request    composer.RadioRequest
	reply      composer.Reply
	pcm        []byte
}

func newSession(pilot, frequency string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Pilot:     pilot,
		Frequency: frequency,
		State:     StateReceiving,
		StartedAt: now,
	}
}

// Info is a read-only snapshot of a session for the status API.
type Info struct {
	ID        string    `json:"id"`
	Pilot     string    `json:"pilot"`
	Frequency string    `json:"frequency"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

func (s *Session) info() Info {
	return Info{
		ID:        s.ID,
		Pilot:     s.Pilot,
		Frequency: s.Frequency,
		State:     s.State.String(),
		StartedAt: s.StartedAt,
	}
}
