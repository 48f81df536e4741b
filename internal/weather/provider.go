package weather

import (
	"context"
	"time"
)

// Provider acquires the raw observation document for a station.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, stationID string) (RawObservation, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	StateReader
	SaveSnapshot(snapshot Snapshot)
	RecordFailure(stationID string, at time.Time, err error)
	GetRange(stationID string, from, to time.Time) ([]Snapshot, error)
}

// Sink receives a station's state after every refresh cycle.
type Sink interface {
	Publish(ctx context.Context, station Station, state StationState) error
}
