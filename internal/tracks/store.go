package tracks

import (
	"strings"
	"sync"
	"time"

	"github.com/yegors/co-gci/pkg/logger"
)

// Store is the shared aircraft model. The telemetry ingestor is the only
// writer; radio sessions read concurrently through Snapshot, which returns a
// point-in-time copy so readers never observe a torn track record.
type Store struct {
	mu        sync.RWMutex
	tracks    map[string]Track
	staleness time.Duration
	logger    *logger.Logger
}

// NewStore creates a track store with the given staleness window.
func NewStore(staleness time.Duration, log *logger.Logger) *Store {
	return &Store{
		tracks:    make(map[string]Track),
		staleness: staleness,
		logger:    log.Named("track-store"),
	}
}

// Upsert applies a track update if its timestamp is newer than the stored
// entry for the same ID. Older or equal-timestamp updates are a no-op, which
// makes the operation idempotent and safe against out-of-order telemetry.
// Returns true if the update was applied.
func (s *Store) Upsert(track Track) bool {
	if track.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tracks[track.ID]; ok {
		if !track.Timestamp.After(existing.Timestamp) {
			return false
		}
		// Sparse telemetry updates may omit fields the previous record had.
		if track.Callsign == "" {
			track.Callsign = existing.Callsign
		}
		if track.TypeName == "" {
			track.TypeName = existing.TypeName
		}
		if track.Side == SideUnknown && existing.Side != SideUnknown {
			track.Side = existing.Side
		}
	}

	s.tracks[track.ID] = track
	return true
}

// Get returns the track with the given ID, if present and fresh.
func (s *Store) Get(now time.Time, id string) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	track, ok := s.tracks[id]
	if !ok || s.isStale(now, track) {
		return Track{}, false
	}
	return track, true
}

// Snapshot returns a consistent copy of all non-stale tracks. The copy is
// safe to read while the ingestor keeps writing.
func (s *Store) Snapshot(now time.Time) []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Track, 0, len(s.tracks))
	for _, track := range s.tracks {
		if s.isStale(now, track) {
			continue
		}
		out = append(out, track)
	}
	return out
}

// FindByCallsign returns the freshest non-stale track whose callsign matches
// (case-insensitive). Radio requests identify pilots by spoken callsign, not
// telemetry ID.
func (s *Store) FindByCallsign(now time.Time, callsign string) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  Track
		found bool
	)
	for _, track := range s.tracks {
		if s.isStale(now, track) || !strings.EqualFold(track.Callsign, callsign) {
			continue
		}
		if !found || track.Timestamp.After(best.Timestamp) {
			best = track
			found = true
		}
	}
	return best, found
}

// Remove deletes a track, typically on an explicit telemetry removal record.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, id)
}

// EvictStale removes exactly the tracks whose last update predates
// now - staleness window. Returns the number of tracks evicted.
func (s *Store) EvictStale(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, track := range s.tracks {
		if s.isStale(now, track) {
			delete(s.tracks, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("Evicted stale tracks",
			logger.Int("count", evicted),
			logger.Int("remaining", len(s.tracks)))
	}
	return evicted
}

// Len returns the number of tracks currently held, stale or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

func (s *Store) isStale(now time.Time, track Track) bool {
	return now.Sub(track.Timestamp) > s.staleness
}

