// Package radio is the voice-network transport: push-to-talk signaling and
// raw PCM frames over a websocket connection.
package radio

import (
	"errors"
	"time"
)

// ErrTransportDisconnected marks an operation attempted while the radio link
// is down. The client reconnects on its own; sessions abort the current
// exchange.
var ErrTransportDisconnected = errors.New("radio transport disconnected")

// EventType discriminates radio events.
type EventType string

// Radio event types. A transmission is a tx_start, zero or more audio frames,
// and a tx_end, all carrying the same pilot and frequency.
const (
	EventTxStart EventType = "tx_start"
	EventAudio   EventType = "audio"
	EventTxEnd   EventType = "tx_end"
)

// Event is one radio network message in either direction. Audio is raw PCM16
// (base64 on the wire via JSON encoding).
type Event struct {
	Type      EventType `json:"type"`
	Pilot     string    `json:"pilot"`
	Frequency string    `json:"frequency"`
	Audio     []byte    `json:"audio,omitempty"`
	Time      time.Time `json:"time"`
}
