package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service runs refresh cycles for the configured stations and owns the
// entity views over their latest state.
type Service struct {
	store    Store
	provider Provider
	sinks    []Sink
	logger   *slog.Logger

	stations []Station
	weather  map[string]*WeatherEntity
	sensors  map[string][]*SensorEntity

	now func() time.Time
}

// NewService creates a new Service and builds the entity views for every station.
func NewService(store Store, provider Provider, stations []Station, logger *slog.Logger, sinks ...Sink) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		sinks:    sinks,
		logger:   logger.With("component", "weather"),
		stations: stations,
		weather:  make(map[string]*WeatherEntity, len(stations)),
		sensors:  make(map[string][]*SensorEntity, len(stations)),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, st := range stations {
		s.weather[st.ID] = NewWeatherEntity(st, store)
		views := make([]*SensorEntity, 0, len(SensorTypes))
		for _, desc := range SensorTypes {
			views = append(views, NewSensorEntity(st, desc, store))
		}
		s.sensors[st.ID] = views
	}
	return s
}

// Stations returns the configured stations in configuration order.
func (s *Service) Stations() []Station {
	return s.stations
}

func (s *Service) station(id string) (Station, error) {
	for _, st := range s.stations {
		if st.ID == id {
			return st, nil
		}
	}
	return Station{}, fmt.Errorf("%w: %s", ErrUnknownStation, id)
}

// Refresh runs one observation cycle for a station: fetch, normalize, store
// the snapshot as the latest value and notify sinks. On failure the previous
// snapshot is kept, the failure is recorded and the error is returned.
func (s *Service) Refresh(ctx context.Context, stationID string) error {
	st, err := s.station(stationID)
	if err != nil {
		return err
	}

	cycleID := uuid.NewString()
	logger := s.logger.With("station", st.ID, "cycle", cycleID)
	logger.Debug("refresh started", "provider", s.provider.Name())

	raw, err := s.provider.Fetch(ctx, st.ID)
	if err != nil {
		s.store.RecordFailure(st.ID, s.now(), err)
		s.publish(ctx, logger, st)
		return fmt.Errorf("refresh %s: %w", st.ID, err)
	}

	if _, shapeErr := raw.Record(); shapeErr != nil {
		logger.Warn("observation document has unexpected shape; fields degrade to absent", "error", shapeErr)
	}

	snapshot := Snapshot{
		StationID:   st.ID,
		CycleID:     cycleID,
		FetchedAt:   s.now(),
		Observation: Normalize(raw),
	}
	s.store.SaveSnapshot(snapshot)
	s.publish(ctx, logger, st)

	logger.Info("refresh completed", "condition", Classify(snapshot.Observation))
	return nil
}

func (s *Service) publish(ctx context.Context, logger *slog.Logger, st Station) {
	if len(s.sinks) == 0 {
		return
	}
	state := s.store.State(st.ID)
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, st, state); err != nil {
			logger.Warn("publish failed", "error", err)
		}
	}
}

// State returns the latest state of a station.
func (s *Service) State(stationID string) (StationState, error) {
	if _, err := s.station(stationID); err != nil {
		return StationState{}, err
	}
	return s.store.State(stationID), nil
}

// Weather returns the weather entity of a station.
func (s *Service) Weather(stationID string) (*WeatherEntity, error) {
	e, ok := s.weather[stationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, stationID)
	}
	return e, nil
}

// Sensors returns all sensor entities of a station in registry order.
func (s *Service) Sensors(stationID string) ([]*SensorEntity, error) {
	views, ok := s.sensors[stationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, stationID)
	}
	return views, nil
}

// Sensor returns one sensor entity of a station.
func (s *Service) Sensor(stationID string, kind SensorKind) (*SensorEntity, error) {
	views, err := s.Sensors(stationID)
	if err != nil {
		return nil, err
	}
	if _, ok := LookupSensor(kind); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSensor, kind)
	}
	for _, v := range views {
		if v.Description().Kind == kind {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSensor, kind)
}

// History returns the snapshots of a station between from and to (inclusive).
func (s *Service) History(stationID string, from, to time.Time) ([]Snapshot, error) {
	if _, err := s.station(stationID); err != nil {
		return nil, err
	}
	return s.store.GetRange(stationID, from, to)
}
