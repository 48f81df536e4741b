package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingMarker is returned when the dashboard page has no app state script
	// element, or the element is empty.
	ErrMissingMarker = errors.New("app state script element missing or empty")

	// ErrMalformedPayload is returned when the embedded app state is not valid JSON.
	ErrMalformedPayload = errors.New("embedded app state is not valid JSON")

	// ErrMissingKey is returned when the app state carries no API key.
	ErrMissingKey = errors.New("api key not found in app state")

	// ErrShape marks an observation document that is neither a flat record nor
	// a non-empty observations list. Normalization degrades it to absent fields.
	ErrShape = errors.New("unexpected observation document shape")

	// ErrCircuitOpen is returned when an outbound call is short-circuited.
	ErrCircuitOpen = errors.New("circuit breaker open")

	ErrUnknownStation = errors.New("station is not configured")
	ErrUnknownSensor  = errors.New("unknown sensor kind")
)

// HTTPError reports a non-success status from one of the remote calls.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}
