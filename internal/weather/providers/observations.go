package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wunderground-weather/internal/weather"
)

const DefaultAPIBaseURL = "https://api.weather.com"

const observationsPath = "/v2/pws/observations/current"

// ObservationClient calls the current-observation endpoint with a scraped key.
type ObservationClient struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewObservationClient(baseURL string, httpCfg HTTPClientConfig, logger *slog.Logger) *ObservationClient {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &ObservationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: httpCfg,
		circuit: newBreaker("weather-api", httpCfg.Breaker, logger.With("component", "observations")),
	}
}

// ObservationURL builds the request URL for a station.
func (c *ObservationClient) ObservationURL(apiKey, stationID string) string {
	values := url.Values{}
	values.Set("apiKey", apiKey)
	values.Set("stationId", stationID)
	values.Set("numericPrecision", "decimal")
	values.Set("format", "json")
	values.Set("units", "m")
	return fmt.Sprintf("%s%s?%s", c.baseURL, observationsPath, values.Encode())
}

// FetchObservation returns the decoded response body as-is. Its shape is not
// checked here. An empty body (the API answers 204 for offline stations)
// yields a nil document.
func (c *ObservationClient) FetchObservation(ctx context.Context, apiKey, stationID string) (weather.RawObservation, error) {
	req, err := http.NewRequest(http.MethodGet, c.ObservationURL(apiKey, stationID), nil)
	if err != nil {
		return weather.RawObservation{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doRequest(ctx, c.httpCfg, c.circuit, req)
	if err != nil {
		return weather.RawObservation{}, err
	}
	defer resp.Body.Close()

	var doc any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return weather.RawObservation{}, fmt.Errorf("decode observation: %w", err)
	}

	return weather.RawObservation{Document: doc}, nil
}
