package weather

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) RawObservation {
	t.Helper()
	var v any
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v))
	return RawObservation{Document: v}
}

const fullObservation = `{
	"stationID": "KCASANFR1",
	"obsTimeLocal": "2024-12-22 14:04:08",
	"solarRadiation": 80.5,
	"uv": 1.0,
	"winddir": 225,
	"humidity": 60,
	"metric": {
		"temp": 12.3,
		"dewpt": 4.6,
		"windSpeed": 7.2,
		"windGust": 11.5,
		"pressure": 1013.55,
		"precipRate": 0.0,
		"precipTotal": 1.27
	}
}`

func TestNormalize_WrappedObservation(t *testing.T) {
	raw := decode(t, `{"observations": [{"humidity": 86, "metric": {"temp": -0.6}}]}`)

	obs := Normalize(raw)

	require.NotNil(t, obs.HumidityPercent)
	assert.Equal(t, 86.0, *obs.HumidityPercent)
	require.NotNil(t, obs.Metric.TemperatureC)
	assert.Equal(t, -0.6, *obs.Metric.TemperatureC)

	assert.Nil(t, obs.WindDirectionDegrees)
	assert.Nil(t, obs.SolarRadiationWm2)
	assert.Nil(t, obs.UVIndex)
	assert.Nil(t, obs.ObservationTimeLocal)
	assert.Nil(t, obs.Metric.DewPointC)
	assert.Nil(t, obs.Metric.WindSpeedKmh)
	assert.Nil(t, obs.Metric.WindGustKmh)
	assert.Nil(t, obs.Metric.PressureHPa)
	assert.Nil(t, obs.Metric.PrecipRateMmH)
	assert.Nil(t, obs.Metric.PrecipTotalMm)
}

func TestNormalize_FlatAndWrappedAgree(t *testing.T) {
	flat := Normalize(decode(t, fullObservation))
	wrapped := Normalize(decode(t, `{"observations": [`+fullObservation+`]}`))

	assert.Equal(t, flat, wrapped)
	require.NotNil(t, flat.Metric.PressureHPa)
	assert.Equal(t, 1013.55, *flat.Metric.PressureHPa)
	require.NotNil(t, flat.ObservationTimeLocal)
	assert.Equal(t, "2024-12-22 14:04:08", *flat.ObservationTimeLocal)
	require.NotNil(t, flat.WindDirectionDegrees)
	assert.Equal(t, 225.0, *flat.WindDirectionDegrees)
}

func TestNormalize_FirstObservationWins(t *testing.T) {
	obs := Normalize(decode(t, `{"observations": [{"humidity": 40}, {"humidity": 90}]}`))

	require.NotNil(t, obs.HumidityPercent)
	assert.Equal(t, 40.0, *obs.HumidityPercent)
}

func TestNormalize_IsIdempotentOnFlatShape(t *testing.T) {
	docs := []string{
		fullObservation,
		`{"observations": [{"humidity": 86, "metric": {"temp": -0.6}}]}`,
		`{"humidity": "abc", "uv": null, "metric": {"pressure": "1009.2"}}`,
		`{}`,
	}
	for _, doc := range docs {
		once := Normalize(decode(t, doc))
		twice := Normalize(once.Raw())
		assert.Equal(t, once, twice, doc)
	}
}

func TestNormalize_NeverFailsOnAdversarialInput(t *testing.T) {
	docs := []string{
		`null`,
		`[]`,
		`[{"humidity": 50}]`,
		`"observations"`,
		`42`,
		`{"observations": []}`,
		`{"observations": [null]}`,
		`{"observations": ["x"]}`,
		`{"observations": {"humidity": 10}}`,
		`{"metric": null}`,
		`{"metric": []}`,
		`{"metric": "12"}`,
		`{"humidity": true, "winddir": {}, "uv": [], "solarRadiation": null, "obsTimeLocal": 5}`,
		`{"metric": {"temp": "warm", "dewpt": false, "windSpeed": {"v": 1}, "pressure": "NaN", "precipRate": "Inf"}}`,
	}
	for _, doc := range docs {
		obs := Normalize(decode(t, doc))
		assert.Equal(t, Observation{}, obs, doc)
	}
}

func TestNormalize_NumericStringsAreCoerced(t *testing.T) {
	obs := Normalize(decode(t, `{"humidity": " 71 ", "metric": {"temp": "-3.5"}}`))

	require.NotNil(t, obs.HumidityPercent)
	assert.Equal(t, 71.0, *obs.HumidityPercent)
	require.NotNil(t, obs.Metric.TemperatureC)
	assert.Equal(t, -3.5, *obs.Metric.TemperatureC)
}

func TestRawObservation_Record(t *testing.T) {
	tests := []struct {
		name      string
		doc       any
		wantShape bool
		wantKeys  int
	}{
		{name: "flat", doc: map[string]any{"humidity": 1.0}, wantKeys: 1},
		{name: "wrapped", doc: map[string]any{"observations": []any{map[string]any{"uv": 2.0, "winddir": 3.0}}}, wantKeys: 2},
		{name: "empty list falls back to document", doc: map[string]any{"observations": []any{}}, wantKeys: 1},
		{name: "nil document", doc: nil, wantShape: true},
		{name: "list document", doc: []any{map[string]any{}}, wantShape: true},
		{name: "non-object element", doc: map[string]any{"observations": []any{"x"}}, wantShape: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := RawObservation{Document: tt.doc}.Record()
			if tt.wantShape {
				assert.True(t, errors.Is(err, ErrShape))
				assert.Empty(t, rec)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rec, tt.wantKeys)
		})
	}
}

func TestParseNumber(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{name: "float", in: 1.5, want: f(1.5)},
		{name: "int", in: 3, want: f(3)},
		{name: "json number", in: json.Number("12.25"), want: f(12.25)},
		{name: "bad json number", in: json.Number("x"), want: nil},
		{name: "numeric string", in: "7", want: f(7)},
		{name: "text", in: "n/a", want: nil},
		{name: "empty string", in: "", want: nil},
		{name: "nan string", in: "NaN", want: nil},
		{name: "bool", in: true, want: nil},
		{name: "nil", in: nil, want: nil},
		{name: "map", in: map[string]any{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.in))
		})
	}
}
