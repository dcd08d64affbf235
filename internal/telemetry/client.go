package telemetry

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/pkg/logger"
)

// Protocol handshake constants for the real-time telemetry stream.
const (
	streamProtocol    = "XtraLib.Stream.0"
	telemetryProtocol = "Tacview.RealTimeTelemetry.0"
	handshakeTimeout  = 10 * time.Second
)

// Client is one live connection to the telemetry source. It performs the
// handshake on dial and then yields raw protocol lines.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *logger.Logger
}

// Dial connects to the telemetry source and completes the protocol handshake.
func Dial(ctx context.Context, cfg config.TelemetryConfig, log *logger.Logger) (*Client, error) {
	dialer := net.Dialer{Timeout: handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telemetry source at %s: %w", cfg.Addr(), err)
	}

	client := &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: log.Named("telemetry-cli"),
	}

	if err := client.handshake(cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("telemetry handshake failed: %w", err)
	}

	client.logger.Info("Connected to telemetry source",
		logger.String("addr", cfg.Addr()),
		logger.String("username", cfg.Username))
	return client, nil
}

// handshake exchanges the null-terminated protocol headers. The password
// travels as an MD5 digest, which is what the wire protocol specifies; it is
// an identification token, not a security boundary.
func (c *Client) handshake(cfg config.TelemetryConfig) error {
	deadline := time.Now().Add(handshakeTimeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set handshake deadline: %w", err)
	}

	// Read the server's handshake block first.
	header, err := c.reader.ReadString('\x00')
	if err != nil {
		return fmt.Errorf("failed to read server handshake: %w", err)
	}
	if !strings.Contains(header, streamProtocol) {
		return fmt.Errorf("unexpected server handshake %q", strings.TrimSpace(header))
	}

	var password string
	if cfg.Password != "" {
		sum := md5.Sum([]byte(cfg.Password))
		password = hex.EncodeToString(sum[:])
	}

	request := fmt.Sprintf("%s\n%s\n%s\n%s\x00", streamProtocol, telemetryProtocol, cfg.Username, password)
	if _, err := c.conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("failed to send client handshake: %w", err)
	}

	// Clear the handshake deadline; the stream is long-lived.
	return c.conn.SetDeadline(time.Time{})
}

// ReadLine returns the next raw protocol line, blocking until one arrives or
// the connection fails.
func (c *Client) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
