package radio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yegors/co-gci/internal/audio"
	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/pkg/logger"
)

// Client maintains the websocket connection to the voice network. Incoming
// events stream out of Events(); Transmit sends a complete transmission with
// real-time frame pacing so the far end can play it as it arrives.
type Client struct {
	cfg         config.RadioConfig
	botCallsign string
	logger      *logger.Logger
	events      chan Event

	mu   sync.Mutex // guards conn across Transmit and the read loop
	conn *websocket.Conn
}

// NewClient creates a radio client for the configured channel.
func NewClient(cfg config.RadioConfig, botCallsign string, log *logger.Logger) *Client {
	return &Client{
		cfg:         cfg,
		botCallsign: botCallsign,
		logger:      log.Named("radio"),
		events:      make(chan Event, 64),
	}
}

// Events returns the stream of inbound radio events. The channel closes when
// Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run connects to the voice network and pumps inbound events until the
// context is cancelled, reconnecting with capped backoff on failure.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	backoff := time.Duration(c.cfg.ReconnectInitialMs) * time.Millisecond
	maxBackoff := time.Duration(c.cfg.ReconnectMaxMs) * time.Millisecond

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Error("Radio connection failed",
				logger.Error(err),
				logger.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Duration(c.cfg.ReconnectInitialMs) * time.Millisecond
		c.setConn(conn)
		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("Radio link lost, reconnecting", logger.Error(err))
		if !sleepCtx(ctx, backoff) {
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to voice network at %s: %w", c.cfg.URL, err)
	}
	c.logger.Info("Connected to voice network",
		logger.String("url", c.cfg.URL),
		logger.String("frequency", c.cfg.Frequency()))
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock the blocking read when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}
		if event.Pilot == c.botCallsign {
			// Our own transmissions echo back on some networks.
			continue
		}
		select {
		case c.events <- event:
		default:
			c.logger.Warn("Dropping radio event, consumer is behind",
				logger.String("type", string(event.Type)),
				logger.String("pilot", event.Pilot))
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrTransportDisconnected
	}
	if err := c.conn.WriteJSON(event); err != nil {
		return fmt.Errorf("failed to send radio event: %w", err)
	}
	return nil
}

// Transmit keys up on the given frequency, sends the PCM as paced
// fixed-duration frames, and keys down. Pacing uses one frame interval per
// token so frames go out at playback speed rather than as a burst. The
// frequency comes from the transmission being answered so the reply airs on
// the channel the pilot keyed.
func (c *Client) Transmit(ctx context.Context, frequency string, pcm []byte) error {
	now := func() time.Time { return time.Now().UTC() }

	if err := c.send(Event{
		Type:      EventTxStart,
		Pilot:     c.botCallsign,
		Frequency: frequency,
		Time:      now(),
	}); err != nil {
		return err
	}

	chunker := audio.NewFrameChunker(audio.SampleRate, audio.Channels, audio.FrameMs)
	frames := chunker.Write(pcm)
	if tail := chunker.Flush(); tail != nil {
		frames = append(frames, tail)
	}

	limiter := rate.NewLimiter(rate.Every(audio.FrameMs*time.Millisecond), 1)
	for _, frame := range frames {
		if err := limiter.Wait(ctx); err != nil {
			// Still key down so the channel is not left open.
			c.keyDown(frequency, now())
			return fmt.Errorf("transmission cancelled: %w", err)
		}
		if err := c.send(Event{
			Type:      EventAudio,
			Pilot:     c.botCallsign,
			Frequency: frequency,
			Audio:     frame,
			Time:      now(),
		}); err != nil {
			return err
		}
	}

	return c.keyDown(frequency, now())
}

func (c *Client) keyDown(frequency string, at time.Time) error {
	return c.send(Event{
		Type:      EventTxEnd,
		Pilot:     c.botCallsign,
		Frequency: frequency,
		Time:      at,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
