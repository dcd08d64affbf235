// Package speech wraps the external speech-to-text and text-to-speech
// collaborators behind small interfaces the session layer depends on.
package speech

import (
	"context"
	"errors"
)

// ErrCollaboratorFailure marks a speech collaborator call that failed after
// its single internal retry. The session aborts the exchange; the pilot can
// retransmit.
var ErrCollaboratorFailure = errors.New("speech collaborator failure")

// Transcriber converts a buffered PCM16 transmission to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Synthesizer renders a reply script to PCM16 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
