package telemetry

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yegors/co-gci/internal/config"
	"github.com/yegors/co-gci/internal/tracks"
	"github.com/yegors/co-gci/pkg/logger"
)

// Coalition labels as they appear on the telemetry feed. The exporter labels
// the blue coalition "Enemies" and the red coalition "Allies" for legacy
// reasons; the mapping here undoes that.
const (
	coalitionLabelBlue = "Enemies"
	coalitionLabelRed  = "Allies"
)

// Stats are the ingestor's health counters.
type Stats struct {
	Records    uint64    `json:"records"`
	Malformed  uint64    `json:"malformed"`
	Reconnects uint64    `json:"reconnects"`
	LastRecord time.Time `json:"last_record"`
}

// Service owns the telemetry connection and is the track store's only writer.
// It reconnects with capped backoff forever; the telemetry source is
// long-lived infrastructure and the store ages out naturally between
// connections rather than being wiped.
type Service struct {
	cfg    config.TelemetryConfig
	store  *tracks.Store
	logger *logger.Logger

	friendlyLabel string

	records    atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
	lastRecord atomic.Int64 // unix nanos

	// Object IDs seen with a non-air Type; their updates are skipped.
	grounded map[string]bool
}

// NewService creates the telemetry ingestor. botCoalition is "blue" or "red".
func NewService(cfg config.TelemetryConfig, botCoalition string, store *tracks.Store, log *logger.Logger) *Service {
	friendlyLabel := coalitionLabelBlue
	if strings.EqualFold(botCoalition, "red") {
		friendlyLabel = coalitionLabelRed
	}
	return &Service{
		cfg:           cfg,
		store:         store,
		logger:        log.Named("telemetry"),
		friendlyLabel: friendlyLabel,
		grounded:      make(map[string]bool),
	}
}

// Run streams telemetry into the track store until the context is cancelled.
// It also drives the periodic staleness eviction cycle.
func (s *Service) Run(ctx context.Context) error {
	evictionDone := make(chan struct{})
	go func() {
		defer close(evictionDone)
		s.runEviction(ctx)
	}()
	defer func() { <-evictionDone }()

	backoff := time.Duration(s.cfg.ReconnectInitialMs) * time.Millisecond
	maxBackoff := time.Duration(s.cfg.ReconnectMaxMs) * time.Millisecond

	for {
		if ctx.Err() != nil {
			return nil
		}

		client, err := Dial(ctx, s.cfg, s.logger)
		if err != nil {
			s.logger.Error("Telemetry connection failed",
				logger.Error(err),
				logger.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			s.reconnects.Add(1)
			continue
		}

		backoff = time.Duration(s.cfg.ReconnectInitialMs) * time.Millisecond
		err = s.stream(ctx, client)
		client.Close()
		if ctx.Err() != nil {
			return nil
		}

		s.logger.Warn("Telemetry stream disconnected, reconnecting",
			logger.Error(err),
			logger.Duration("retry_in", backoff))
		s.reconnects.Add(1)
		if !sleepCtx(ctx, backoff) {
			return nil
		}
	}
}

// stream consumes one connection until it fails. Malformed records are
// counted and skipped, never fatal to the stream.
func (s *Service) stream(ctx context.Context, client *Client) error {
	// Unblock the blocking read when the context is cancelled.
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-readerDone:
		}
	}()

	decoder := NewDecoder()
	for {
		line, err := client.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("telemetry source closed the stream")
			}
			return err
		}

		update, err := decoder.DecodeLine(line)
		if err != nil {
			s.malformed.Add(1)
			s.logger.Debug("Skipping malformed telemetry record", logger.Error(err))
			continue
		}
		if update == nil {
			continue
		}
		s.apply(update)
	}
}

// apply maps one decoded update onto the track store.
func (s *Service) apply(update *Update) {
	s.records.Add(1)
	s.lastRecord.Store(update.Time.UnixNano())

	if update.Removed {
		s.store.Remove(update.ID)
		delete(s.grounded, update.ID)
		return
	}

	if update.Type != "" {
		isAir := strings.Contains(update.Type, "Air")
		s.grounded[update.ID] = !isAir
	}
	if s.grounded[update.ID] {
		return
	}
	if !update.HasPos {
		// Property-only updates (renames, coalition changes) ride along with
		// the next positional record via the store's sparse-field merge.
		return
	}

	track := tracks.Track{
		ID:        update.ID,
		Callsign:  update.Pilot,
		TypeName:  update.Name,
		Side:      s.sideFor(update.Coalition),
		Timestamp: update.Time,
		Pos: tracks.Position{
			Lat:       update.Lat,
			Lon:       update.Lon,
			AltMeters: update.AltMeters,
		},
	}
	if update.HasHeading {
		track.Pos.HeadingDeg = update.HeadingDeg
	}
	if update.HasTAS {
		track.Pos.GSKnots = update.TASKnots
	}
	s.store.Upsert(track)
}

// sideFor classifies a telemetry coalition label relative to the bot's own
// coalition.
func (s *Service) sideFor(coalition string) tracks.Side {
	switch coalition {
	case "":
		return tracks.SideUnknown
	case s.friendlyLabel:
		return tracks.SideFriendly
	case coalitionLabelBlue, coalitionLabelRed:
		return tracks.SideHostile
	default:
		// Neutrals and anything unrecognized.
		return tracks.SideUnknown
	}
}

// runEviction is the ingestor's maintenance cycle.
func (s *Service) runEviction(ctx context.Context) {
	interval := s.cfg.EvictionInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.store.EvictStale(now.UTC())
		}
	}
}

// Stats returns the ingestor's counters for the health endpoint.
func (s *Service) Stats() Stats {
	stats := Stats{
		Records:    s.records.Load(),
		Malformed:  s.malformed.Load(),
		Reconnects: s.reconnects.Load(),
	}
	if nanos := s.lastRecord.Load(); nanos > 0 {
		stats.LastRecord = time.Unix(0, nanos).UTC()
	}
	return stats
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
