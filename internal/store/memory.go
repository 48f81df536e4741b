package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/wunderground-weather/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshots are available for a station.
	ErrNotFound = errors.New("no observations for station")
)

// stationHistory holds the time-ordered snapshots and the last cycle status of a station.
type stationHistory struct {
	snapshots []weather.Snapshot
	status    weather.Status
}

// MemoryStore is a concurrency-safe in-memory implementation of the observation store.
// The latest snapshot is replaced as a whole, so readers never see a partial write.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station id
	data map[string]*stationHistory

	// retention configuration
	maxHistory int           // max number of snapshots per station
	maxAge     time.Duration // optional max age for snapshots

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*stationHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (s *MemoryStore) history(stationID string) *stationHistory {
	h, ok := s.data[stationID]
	if !ok {
		h = &stationHistory{}
		s.data[stationID] = h
	}
	return h
}

// SaveSnapshot appends a snapshot, marks the station healthy and enforces retention.
func (s *MemoryStore) SaveSnapshot(snapshot weather.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history(snapshot.StationID)
	h.snapshots = append(h.snapshots, snapshot)
	h.status = weather.Status{
		Healthy:     true,
		LastAttempt: snapshot.FetchedAt,
		LastSuccess: snapshot.FetchedAt,
	}

	// Enforce retention by count.
	if s.maxHistory > 0 && len(h.snapshots) > s.maxHistory {
		over := len(h.snapshots) - s.maxHistory
		h.snapshots = h.snapshots[over:]
	}

	// Enforce retention by age. The newest snapshot always survives.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(h.snapshots)-1; i++ {
			if !h.snapshots[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		h.snapshots = h.snapshots[i:]
	}
}

// RecordFailure marks the station unhealthy. Stored snapshots are kept.
func (s *MemoryStore) RecordFailure(stationID string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history(stationID)
	h.status.Healthy = false
	h.status.LastAttempt = at
	if err != nil {
		h.status.LastError = err.Error()
	}
}

// State returns the latest snapshot (if any) and the last cycle status.
func (s *MemoryStore) State(stationID string) weather.StationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[stationID]
	if !ok {
		return weather.StationState{}
	}
	st := weather.StationState{Status: h.status}
	if n := len(h.snapshots); n > 0 {
		latest := h.snapshots[n-1]
		st.Latest = &latest
	}
	return st
}

// GetLatest returns the most recent snapshot for a station.
func (s *MemoryStore) GetLatest(stationID string) (weather.Snapshot, error) {
	st := s.State(stationID)
	if st.Latest == nil {
		return weather.Snapshot{}, ErrNotFound
	}
	return *st.Latest, nil
}

// GetRange returns all snapshots for a station between from and to (inclusive).
func (s *MemoryStore) GetRange(stationID string, from, to time.Time) ([]weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[stationID]
	if !ok || len(h.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Snapshot
	for _, snap := range h.snapshots {
		if !snap.FetchedAt.Before(from) && !snap.FetchedAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
