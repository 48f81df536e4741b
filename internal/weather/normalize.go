package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawObservation is the observation document exactly as the API returned it.
// The document is either a flat record or {"observations": [record, ...]}.
type RawObservation struct {
	Document any
}

// Record resolves the document to the single record it carries.
// For the wrapped form the first list element wins. When the document matches
// neither form an empty record is returned together with an ErrShape error.
func (r RawObservation) Record() (map[string]any, error) {
	doc, ok := r.Document.(map[string]any)
	if !ok {
		return map[string]any{}, fmt.Errorf("%w: document is %T", ErrShape, r.Document)
	}

	list, ok := doc["observations"].([]any)
	if !ok || len(list) == 0 {
		return doc, nil
	}

	rec, ok := list[0].(map[string]any)
	if !ok {
		return map[string]any{}, fmt.Errorf("%w: observations[0] is %T", ErrShape, list[0])
	}
	return rec, nil
}

// Normalize flattens a raw observation. It never fails: any field that is
// missing, null, non-numeric or non-finite is left absent.
func Normalize(raw RawObservation) Observation {
	rec, _ := raw.Record()
	metric, _ := rec["metric"].(map[string]any)

	return Observation{
		HumidityPercent:      numberField(rec, "humidity"),
		WindDirectionDegrees: numberField(rec, "winddir"),
		SolarRadiationWm2:    numberField(rec, "solarRadiation"),
		UVIndex:              numberField(rec, "uv"),
		ObservationTimeLocal: stringField(rec, "obsTimeLocal"),
		Metric: Metric{
			TemperatureC:  numberField(metric, "temp"),
			DewPointC:     numberField(metric, "dewpt"),
			WindSpeedKmh:  numberField(metric, "windSpeed"),
			WindGustKmh:   numberField(metric, "windGust"),
			PressureHPa:   numberField(metric, "pressure"),
			PrecipRateMmH: numberField(metric, "precipRate"),
			PrecipTotalMm: numberField(metric, "precipTotal"),
		},
	}
}

// Raw renders the observation back into the flat document shape, so that
// Normalize(o.Raw()) == o.
func (o Observation) Raw() RawObservation {
	doc := map[string]any{}
	putNumber(doc, "humidity", o.HumidityPercent)
	putNumber(doc, "winddir", o.WindDirectionDegrees)
	putNumber(doc, "solarRadiation", o.SolarRadiationWm2)
	putNumber(doc, "uv", o.UVIndex)
	if o.ObservationTimeLocal != nil {
		doc["obsTimeLocal"] = *o.ObservationTimeLocal
	}

	metric := map[string]any{}
	putNumber(metric, "temp", o.Metric.TemperatureC)
	putNumber(metric, "dewpt", o.Metric.DewPointC)
	putNumber(metric, "windSpeed", o.Metric.WindSpeedKmh)
	putNumber(metric, "windGust", o.Metric.WindGustKmh)
	putNumber(metric, "pressure", o.Metric.PressureHPa)
	putNumber(metric, "precipRate", o.Metric.PrecipRateMmH)
	putNumber(metric, "precipTotal", o.Metric.PrecipTotalMm)
	doc["metric"] = metric

	return RawObservation{Document: doc}
}

func putNumber(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func numberField(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return ParseNumber(v)
}

func stringField(m map[string]any, key string) *string {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &s
}

// ParseNumber coerces a decoded JSON value to a finite float.
// Numeric strings are accepted; booleans, objects, lists, null and
// anything that does not parse yield nil.
func ParseNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
