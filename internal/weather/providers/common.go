package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wunderground-weather/internal/common"
	"github.com/i474232898/wunderground-weather/internal/weather"
)

const (
	// The dashboard blocks requests that do not look like a browser.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	acceptLanguage   = "en-US,en;q=0.9"
)

// BreakerConfig controls when an upstream is short-circuited.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	// Zero disables tripping.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before a trial request.
	Cooldown time.Duration
}

// HTTPClientConfig bundles HTTP client and breaker settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Breaker BreakerConfig
}

var errNoHTTPClient = errors.New("http client not configured")

func newBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// countsAsHealthy reports whether err leaves the upstream healthy from the
// breaker's point of view. Client errors other than 429 are caused by the
// request (e.g. an unknown station id), so one bad station cannot trip the
// breaker shared by all of them.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var httpErr *weather.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
			httpErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// doRequest executes one attempt of the request through the circuit breaker.
// Non-2xx responses are closed and reported as *weather.HTTPError.
// There are no retries: the next refresh cycle is the retry.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	req *http.Request,
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}

	// Ensure the request obeys context cancellation.
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			var urlErr *url.Error
			if errors.As(execErr, &urlErr) {
				urlErr.URL = common.MaskQuery(urlErr.URL, "apiKey")
			}
			return nil, execErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			httpErr := &weather.HTTPError{
				URL:        common.MaskQuery(req.URL.String(), "apiKey"),
				StatusCode: resp.StatusCode,
			}
			if countsAsHealthy(httpErr) {
				// Returned as a value so the breaker records a success.
				return httpErr, nil
			}
			return nil, httpErr
		}

		return resp, nil
	})
	if err != nil {
		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", weather.ErrCircuitOpen, cb.Name(), err)
		}
		return nil, err
	}

	switch v := result.(type) {
	case *http.Response:
		return v, nil
	case *weather.HTTPError:
		return nil, v
	default:
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
}
