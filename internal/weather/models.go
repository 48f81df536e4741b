package weather

import (
	"time"
)

// Condition is a qualitative weather label understood by Home Assistant iconography.
type Condition string

const (
	ConditionSnowyRainy   Condition = "snowy-rainy"
	ConditionSnowy        Condition = "snowy"
	ConditionPouring      Condition = "pouring"
	ConditionRainy        Condition = "rainy"
	ConditionSunny        Condition = "sunny"
	ConditionPartlyCloudy Condition = "partlycloudy"
	ConditionFog          Condition = "fog"
	ConditionWindyVariant Condition = "windy-variant"
	ConditionWindy        Condition = "windy"
	ConditionClearNight   Condition = "clear-night"
	ConditionCloudy       Condition = "cloudy"
	ConditionExceptional  Condition = "exceptional"
)

// Station identifies a personal weather station we poll.
// ID is required and immutable once configured.
type Station struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name"`
}

// DisplayName returns Name, or "Station {id}" when no name was configured.
func (s Station) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return "Station " + s.ID
}

// KeyBundle holds the transient API key scraped from the dashboard page.
// It lives for a single refresh cycle.
type KeyBundle struct {
	APIKey string
}

// Metric groups the unit-bearing fields of an observation (metric units).
type Metric struct {
	TemperatureC  *float64 `json:"temp,omitempty"`
	DewPointC     *float64 `json:"dewpt,omitempty"`
	WindSpeedKmh  *float64 `json:"windSpeed,omitempty"`
	WindGustKmh   *float64 `json:"windGust,omitempty"`
	PressureHPa   *float64 `json:"pressure,omitempty"`
	PrecipRateMmH *float64 `json:"precipRate,omitempty"`
	PrecipTotalMm *float64 `json:"precipTotal,omitempty"`
}

// Observation is the flat, normalized view of one station observation.
// A nil field means the provider did not report a usable value.
type Observation struct {
	HumidityPercent      *float64 `json:"humidity,omitempty"`
	WindDirectionDegrees *float64 `json:"winddir,omitempty"`
	SolarRadiationWm2    *float64 `json:"solarRadiation,omitempty"`
	UVIndex              *float64 `json:"uv,omitempty"`
	ObservationTimeLocal *string  `json:"obsTimeLocal,omitempty"` // "YYYY-MM-DD HH:MM:SS"
	Metric               Metric   `json:"metric"`
}

// Snapshot is one successful refresh cycle's result for a station.
type Snapshot struct {
	StationID   string      `json:"stationId"`
	CycleID     string      `json:"cycleId"`
	FetchedAt   time.Time   `json:"fetchedAt"` // always UTC
	Observation Observation `json:"observation"`
}

// Status describes the outcome of the most recent refresh cycle for a station.
type Status struct {
	Healthy     bool      `json:"healthy"`
	LastAttempt time.Time `json:"lastAttempt,omitempty"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// StationState is what entity views read: the last good snapshot (if any)
// and the status of the most recent cycle.
type StationState struct {
	Latest *Snapshot `json:"latest,omitempty"`
	Status Status    `json:"status"`
}

// Available reports whether entities should present values.
func (s StationState) Available() bool {
	return s.Latest != nil && s.Status.Healthy
}
