// Package audio holds the PCM plumbing between the radio transport and the
// speech collaborators. Everything on the voice channel is 16 kHz mono PCM16.
package audio

import "bytes"

// Channel audio format constants.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2 // PCM16
	FrameMs        = 20
)

// FrameBytes is the size of one radio frame's worth of PCM.
const FrameBytes = SampleRate * Channels * BytesPerSample * FrameMs / 1000

// MaxTransmissionBytes bounds a single buffered transmission (30 seconds of
// channel audio). Anything longer is a stuck key, not a request.
const MaxTransmissionBytes = SampleRate * Channels * BytesPerSample * 30

// FrameChunker splits a PCM stream into fixed-duration radio frames.
type FrameChunker struct {
	buffer     bytes.Buffer
	frameBytes int
}

// NewFrameChunker creates a chunker for the given frame duration.
func NewFrameChunker(sampleRate, channels, frameMs int) *FrameChunker {
	bytesPerMs := sampleRate * channels * BytesPerSample / 1000
	return &FrameChunker{frameBytes: frameMs * bytesPerMs}
}

// Write buffers PCM data and returns all complete frames now available.
func (c *FrameChunker) Write(data []byte) [][]byte {
	c.buffer.Write(data)

	var frames [][]byte
	for c.buffer.Len() >= c.frameBytes {
		frame := make([]byte, c.frameBytes)
		c.buffer.Read(frame)
		frames = append(frames, frame)
	}
	return frames
}

// Flush returns the trailing partial frame zero-padded to full length, or nil
// if the buffer is empty.
func (c *FrameChunker) Flush() []byte {
	if c.buffer.Len() == 0 {
		return nil
	}
	frame := make([]byte, c.frameBytes)
	c.buffer.Read(frame)
	c.buffer.Reset()
	return frame
}

// Reset discards any buffered data.
func (c *FrameChunker) Reset() {
	c.buffer.Reset()
}
