package weather

import (
	"strconv"
	"strings"
)

// Thresholds for inferring a condition from station measurements.
const (
	// Precipitation rate (mm/h) above which freezing precipitation counts as mixed.
	SnowyRainyPrecipRate = 0.1
	// Precipitation rate (mm/h) above which rain counts as pouring.
	PouringPrecipRate = 5.0
	// Solar radiation (W/m²) above which daytime sky is treated as sunlit.
	SunlitSolarRadiation = 50.0
	// Solar radiation (W/m²) below which the sky is treated as dark.
	DarkSolarRadiation = 10.0
	// Humidity (%) below which a sunlit sky is sunny rather than partly cloudy.
	ClearSkyHumidity = 70.0
	// Humidity (%) at or above which a dark sky is foggy.
	FogHumidity = 95.0
	// Wind speed (km/h) above which it is windy.
	WindySpeed = 20.0

	dayStartHour = 6
	dayEndHour   = 18
)

// Classify derives a condition label from an observation. Absent numeric
// fields count as zero. The first matching rule wins.
func Classify(obs Observation) Condition {
	precip := valueOrZero(obs.Metric.PrecipRateMmH)
	temp := valueOrZero(obs.Metric.TemperatureC)
	solar := valueOrZero(obs.SolarRadiationWm2)
	humidity := valueOrZero(obs.HumidityPercent)
	wind := valueOrZero(obs.Metric.WindSpeedKmh)
	day := IsDaytime(obs.ObservationTimeLocal)

	switch {
	case precip > 0:
		if temp <= 0 {
			if precip > SnowyRainyPrecipRate {
				return ConditionSnowyRainy
			}
			return ConditionSnowy
		}
		if precip > PouringPrecipRate {
			return ConditionPouring
		}
		return ConditionRainy
	case solar > SunlitSolarRadiation && day:
		if humidity < ClearSkyHumidity {
			return ConditionSunny
		}
		return ConditionPartlyCloudy
	case humidity >= FogHumidity && solar < DarkSolarRadiation:
		return ConditionFog
	case wind > WindySpeed:
		if solar < SunlitSolarRadiation {
			return ConditionWindyVariant
		}
		return ConditionWindy
	case solar < DarkSolarRadiation && !day:
		return ConditionClearNight
	case solar < SunlitSolarRadiation:
		return ConditionCloudy
	default:
		return ConditionExceptional
	}
}

// IsDaytime reports whether a local observation time ("YYYY-MM-DD HH:MM:SS")
// falls in [06:00, 18:00). A missing or unparsable time counts as day.
func IsDaytime(obsTimeLocal *string) bool {
	if obsTimeLocal == nil {
		return true
	}
	_, clock, ok := strings.Cut(*obsTimeLocal, " ")
	if !ok {
		return true
	}
	hourStr, _, _ := strings.Cut(clock, ":")
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return true
	}
	return hour >= dayStartHour && hour < dayEndHour
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
