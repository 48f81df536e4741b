package weather

import (
	"fmt"
	"strconv"
	"time"
)

// SensorKind names one normalized field exposed as a sensor entity.
type SensorKind string

const (
	SensorTemperature    SensorKind = "temperature"
	SensorHumidity       SensorKind = "humidity"
	SensorPressure       SensorKind = "pressure"
	SensorWindSpeed      SensorKind = "wind_speed"
	SensorWindGust       SensorKind = "wind_gust"
	SensorWindBearing    SensorKind = "wind_bearing"
	SensorDewPoint       SensorKind = "dew_point"
	SensorSolarRadiation SensorKind = "solar_radiation"
	SensorUV             SensorKind = "uv"
	SensorPrecipRate     SensorKind = "precip_rate"
	SensorPrecipTotal    SensorKind = "precip_total"
)

const (
	stateUnavailable = "unavailable"
	stateUnknown     = "unknown"
)

// SensorDescription is the static display metadata for one sensor kind.
type SensorDescription struct {
	Kind        SensorKind `json:"kind"`
	Name        string     `json:"name"`
	Unit        string     `json:"unit"`
	Icon        string     `json:"icon"`
	DeviceClass string     `json:"deviceClass,omitempty"`
	StateClass  string     `json:"stateClass,omitempty"`

	value func(Observation) *float64
}

// Value extracts this sensor's reading from an observation.
func (d SensorDescription) Value(obs Observation) *float64 {
	return d.value(obs)
}

// SensorTypes is the sensor registry, in display order.
var SensorTypes = []SensorDescription{
	{Kind: SensorTemperature, Name: "Temperature", Unit: "°C", Icon: "mdi:thermometer", DeviceClass: "temperature", StateClass: "measurement",
		value: func(o Observation) *float64 { return o.Metric.TemperatureC }},
	{Kind: SensorHumidity, Name: "Humidity", Unit: "%", Icon: "mdi:water-percent", DeviceClass: "humidity", StateClass: "measurement",
		value: func(o Observation) *float64 { return o.HumidityPercent }},
	{Kind: SensorPressure, Name: "Pressure", Unit: "hPa", Icon: "mdi:gauge", DeviceClass: "pressure", StateClass: "measurement",
		value: func(o Observation) *float64 { return o.Metric.PressureHPa }},
	{Kind: SensorWindSpeed, Name: "Wind Speed", Unit: "km/h", Icon: "mdi:weather-windy",
		value: func(o Observation) *float64 { return o.Metric.WindSpeedKmh }},
	{Kind: SensorWindGust, Name: "Wind Gust", Unit: "km/h", Icon: "mdi:weather-windy",
		value: func(o Observation) *float64 { return o.Metric.WindGustKmh }},
	{Kind: SensorWindBearing, Name: "Wind Bearing", Unit: "°", Icon: "mdi:compass",
		value: func(o Observation) *float64 { return o.WindDirectionDegrees }},
	{Kind: SensorDewPoint, Name: "Dew Point", Unit: "°C", Icon: "mdi:water",
		value: func(o Observation) *float64 { return o.Metric.DewPointC }},
	{Kind: SensorSolarRadiation, Name: "Solar Radiation", Unit: "W/m²", Icon: "mdi:white-balance-sunny",
		value: func(o Observation) *float64 { return o.SolarRadiationWm2 }},
	{Kind: SensorUV, Name: "UV Index", Unit: "", Icon: "mdi:weather-sunny",
		value: func(o Observation) *float64 { return o.UVIndex }},
	{Kind: SensorPrecipRate, Name: "Precipitation Rate", Unit: "mm/h", Icon: "mdi:water",
		value: func(o Observation) *float64 { return o.Metric.PrecipRateMmH }},
	{Kind: SensorPrecipTotal, Name: "Precipitation Total", Unit: "mm", Icon: "mdi:water",
		value: func(o Observation) *float64 { return o.Metric.PrecipTotalMm }},
}

// LookupSensor returns the registry entry for kind.
func LookupSensor(kind SensorKind) (SensorDescription, bool) {
	for _, d := range SensorTypes {
		if d.Kind == kind {
			return d, true
		}
	}
	return SensorDescription{}, false
}

// StateReader gives entity views read-only access to a station's latest state.
type StateReader interface {
	State(stationID string) StationState
}

// WeatherEntity is the read-only weather view of one station.
type WeatherEntity struct {
	station Station
	reader  StateReader
}

func NewWeatherEntity(station Station, reader StateReader) *WeatherEntity {
	return &WeatherEntity{station: station, reader: reader}
}

// WeatherState is the rendered weather entity.
type WeatherState struct {
	Name            string    `json:"name"`
	StationID       string    `json:"stationId"`
	Available       bool      `json:"available"`
	Condition       Condition `json:"condition,omitempty"`
	Temperature     *float64  `json:"temperature"`
	TemperatureUnit string    `json:"temperatureUnit"`
	Humidity        *float64  `json:"humidity"`
	WindSpeed       *float64  `json:"windSpeed"`
	WindGust        *float64  `json:"windGust"`
	WindBearing     *float64  `json:"windBearing"`
	WindSpeedUnit   string    `json:"windSpeedUnit"`
	Pressure        *float64  `json:"pressure"`
	PressureUnit    string    `json:"pressureUnit"`
	DewPoint        *float64  `json:"dewPoint"`
	UVIndex         *float64  `json:"uvIndex"`
	ObservedAt      string    `json:"observedAt,omitempty"`
	FetchedAt       time.Time `json:"fetchedAt,omitempty"`
}

func (e *WeatherEntity) Name() string {
	return "Wunderground Weather " + e.station.ID
}

// State renders the entity from the station's latest state. The condition is
// recomputed on every call.
func (e *WeatherEntity) State() WeatherState {
	st := e.reader.State(e.station.ID)
	out := WeatherState{
		Name:            e.Name(),
		StationID:       e.station.ID,
		Available:       st.Available(),
		TemperatureUnit: "°C",
		WindSpeedUnit:   "km/h",
		PressureUnit:    "hPa",
	}
	if !out.Available {
		return out
	}

	obs := st.Latest.Observation
	out.Condition = Classify(obs)
	out.Temperature = obs.Metric.TemperatureC
	out.Humidity = obs.HumidityPercent
	out.WindSpeed = obs.Metric.WindSpeedKmh
	out.WindGust = obs.Metric.WindGustKmh
	out.WindBearing = obs.WindDirectionDegrees
	out.Pressure = obs.Metric.PressureHPa
	out.DewPoint = obs.Metric.DewPointC
	out.UVIndex = obs.UVIndex
	if obs.ObservationTimeLocal != nil {
		out.ObservedAt = *obs.ObservationTimeLocal
	}
	out.FetchedAt = st.Latest.FetchedAt
	return out
}

// SensorEntity is the read-only view of a single field of one station.
type SensorEntity struct {
	station Station
	desc    SensorDescription
	reader  StateReader
}

func NewSensorEntity(station Station, desc SensorDescription, reader StateReader) *SensorEntity {
	return &SensorEntity{station: station, desc: desc, reader: reader}
}

// SensorState is the rendered sensor entity. State is the formatted value,
// "unknown" when the field is absent, or "unavailable" when the last cycle failed.
type SensorState struct {
	UniqueID    string     `json:"uniqueId"`
	Name        string     `json:"name"`
	Kind        SensorKind `json:"kind"`
	State       string     `json:"state"`
	Value       *float64   `json:"value"`
	Unit        string     `json:"unit"`
	Icon        string     `json:"icon"`
	DeviceClass string     `json:"deviceClass,omitempty"`
	StateClass  string     `json:"stateClass,omitempty"`
}

func (e *SensorEntity) UniqueID() string {
	return fmt.Sprintf("%s_%s", e.station.ID, e.desc.Kind)
}

func (e *SensorEntity) Name() string {
	return fmt.Sprintf("%s %s", e.desc.Name, e.station.ID)
}

func (e *SensorEntity) Description() SensorDescription {
	return e.desc
}

func (e *SensorEntity) State() SensorState {
	out := SensorState{
		UniqueID:    e.UniqueID(),
		Name:        e.Name(),
		Kind:        e.desc.Kind,
		Unit:        e.desc.Unit,
		Icon:        e.desc.Icon,
		DeviceClass: e.desc.DeviceClass,
		StateClass:  e.desc.StateClass,
	}

	st := e.reader.State(e.station.ID)
	if !st.Available() {
		out.State = stateUnavailable
		return out
	}
	out.Value = e.desc.Value(st.Latest.Observation)
	if out.Value == nil {
		out.State = stateUnknown
		return out
	}
	out.State = strconv.FormatFloat(*out.Value, 'f', -1, 64)
	return out
}
