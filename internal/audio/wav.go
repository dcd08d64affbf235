package audio

import "encoding/binary"

const wavHeaderLen = 44

// EncodeWAV wraps raw PCM16 data in a RIFF/WAV container so it can be handed
// to the speech-to-text collaborator as a file upload.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bitsPerSample := uint16(BytesPerSample * 8)
	byteRate := uint32(sampleRate * channels * BytesPerSample)
	blockAlign := uint16(channels * BytesPerSample)
	dataSize := uint32(len(pcm))

	out := make([]byte, wavHeaderLen+len(pcm))

	// RIFF chunk descriptor
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")

	// "fmt " sub-chunk
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	// "data" sub-chunk
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)

	copy(out[wavHeaderLen:], pcm)
	return out
}
