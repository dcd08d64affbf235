package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yegors/co-gci/internal/audio"
	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/pkg/logger"
)

// Client implements both collaborators against the OpenAI API. Each call gets
// exactly one internal retry; persistent failures surface as
// ErrCollaboratorFailure and abort only the current exchange.
type Client struct {
	api    openai.Client
	cfg    config.OpenAIConfig
	logger *logger.Logger
}

// Interface guards.
var (
	_ Transcriber = (*Client)(nil)
	_ Synthesizer = (*Client)(nil)
)

// NewClient creates the OpenAI speech client.
func NewClient(cfg config.OpenAIConfig, log *logger.Logger) *Client {
	return &Client{
		api: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithRequestTimeout(cfg.Timeout()),
		),
		cfg:    cfg,
		logger: log.Named("speech"),
	}
}

// Transcribe runs speech-to-text on a buffered transmission. The PCM is
// wrapped in a WAV container because the API wants a file upload.
func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	wav := audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
			Model:    openai.AudioModel(c.cfg.STTModel),
			File:     openai.File(bytes.NewReader(wav), "transmission.wav", "audio/wav"),
			Language: openai.String(c.cfg.Language),
		})
		if err == nil {
			c.logger.Debug("Transcription complete",
				logger.Int("pcm_bytes", len(pcm)),
				logger.String("text", resp.Text))
			return resp.Text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("Transcription attempt failed, retrying once", logger.Error(err))
	}

	return "", fmt.Errorf("%w: transcription: %s", ErrCollaboratorFailure, lastErr)
}

// Synthesize renders a script to PCM16 audio at the channel sample rate.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(c.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
		Speed:          openai.Float(c.cfg.SpeechSpeed),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.api.Audio.Speech.New(ctx, params)
		if err == nil {
			pcm, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil {
				c.logger.Debug("Synthesis complete",
					logger.Int("text_len", len(text)),
					logger.Int("pcm_bytes", len(pcm)))
				return pcm, nil
			}
			err = readErr
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("Synthesis attempt failed, retrying once", logger.Error(err))
	}

	return nil, fmt.Errorf("%w: synthesis: %s", ErrCollaboratorFailure, lastErr)
}
