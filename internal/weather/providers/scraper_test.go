package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wunderground-weather/internal/weather"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHTTPConfig() HTTPClientConfig {
	return HTTPClientConfig{Client: &http.Client{}}
}

// dashboardPage renders a page the way the dashboard embeds its app state.
func dashboardPage(state string) string {
	return `<!DOCTYPE html><html><head><title>PWS</title>
<script type="application/json">{"other": true}</script>
<script id="app-root-state" type="application/json">` + state + `</script>
</head><body><div id="app"></div></body></html>`
}

// seenRequest is what a fake upstream observed about a request.
type seenRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

func record(r *http.Request) seenRequest {
	return seenRequest{Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()}
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, "&q;")
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		wantKey string
		wantErr error
	}{
		{
			name:    "escaped state",
			page:    dashboardPage(escape(`{"process.env":{"SUN_API_KEY":"e1f10a1e78da46f5b10a1e78da96f525","OTHER":"x"},"k":[1,2]}`)),
			wantKey: "e1f10a1e78da46f5b10a1e78da96f525",
		},
		{
			name:    "unescaped state also parses",
			page:    dashboardPage(`{"process.env":{"SUN_API_KEY":"abc123"}}`),
			wantKey: "abc123",
		},
		{
			name:    "surrounding whitespace",
			page:    dashboardPage("\n  " + escape(`{"process.env":{"SUN_API_KEY":"k"}}`) + "\n"),
			wantKey: "k",
		},
		{
			name:    "no marker",
			page:    `<html><head><script type="application/json">{}</script></head></html>`,
			wantErr: weather.ErrMissingMarker,
		},
		{
			name:    "marker with wrong type",
			page:    `<html><script id="app-root-state" type="text/javascript">{}</script></html>`,
			wantErr: weather.ErrMissingMarker,
		},
		{
			name:    "empty marker",
			page:    dashboardPage(""),
			wantErr: weather.ErrMissingMarker,
		},
		{
			name:    "whitespace marker",
			page:    dashboardPage(" \n\t "),
			wantErr: weather.ErrMissingMarker,
		},
		{
			name:    "not json",
			page:    dashboardPage("window.state = {}"),
			wantErr: weather.ErrMalformedPayload,
		},
		{
			name:    "json array",
			page:    dashboardPage("[1,2]"),
			wantErr: weather.ErrMalformedPayload,
		},
		{
			name:    "empty env",
			page:    dashboardPage(escape(`{"process.env": {}}`)),
			wantErr: weather.ErrMissingKey,
		},
		{
			name:    "no env",
			page:    dashboardPage(escape(`{"config": {}}`)),
			wantErr: weather.ErrMissingKey,
		},
		{
			name:    "env is not an object",
			page:    dashboardPage(escape(`{"process.env": "SUN_API_KEY"}`)),
			wantErr: weather.ErrMissingKey,
		},
		{
			name:    "empty key",
			page:    dashboardPage(escape(`{"process.env": {"SUN_API_KEY": ""}}`)),
			wantErr: weather.ErrMissingKey,
		},
		{
			name:    "non-string key",
			page:    dashboardPage(escape(`{"process.env": {"SUN_API_KEY": 12}}`)),
			wantErr: weather.ErrMissingKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAPIKey(tt.page)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, got.APIKey)
		})
	}
}

func TestPageScraper_ScrapeAPIKey(t *testing.T) {
	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- record(r)
		_, _ = io.WriteString(w, dashboardPage(escape(`{"process.env":{"SUN_API_KEY":"secret-key"}}`)))
	}))
	defer srv.Close()

	s := NewPageScraper(srv.URL, testHTTPConfig(), discardLogger())
	bundle, err := s.ScrapeAPIKey(context.Background(), "KCASANFR1")
	require.NoError(t, err)

	req := <-seen
	assert.Equal(t, "secret-key", bundle.APIKey)
	assert.Equal(t, "/dashboard/pws/KCASANFR1", req.Path)
	assert.Contains(t, req.Header.Get("User-Agent"), "Mozilla/5.0")
	assert.Equal(t, "en-US,en;q=0.9", req.Header.Get("Accept-Language"))
}

func TestPageScraper_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewPageScraper(srv.URL, testHTTPConfig(), discardLogger())
	_, err := s.ScrapeAPIKey(context.Background(), "KCASANFR1")

	var httpErr *weather.HTTPError
	require.True(t, errors.As(err, &httpErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
}

func TestPageScraper_MissingMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><body>Please solve the captcha</body></html>")
	}))
	defer srv.Close()

	s := NewPageScraper(srv.URL, testHTTPConfig(), discardLogger())
	_, err := s.ScrapeAPIKey(context.Background(), "KCASANFR1")
	assert.True(t, errors.Is(err, weather.ErrMissingMarker))
}

func TestPageScraper_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testHTTPConfig()
	cfg.Breaker = BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}
	s := NewPageScraper(srv.URL, cfg, discardLogger())

	for i := 0; i < 2; i++ {
		_, err := s.ScrapeAPIKey(context.Background(), "KCASANFR1")
		var httpErr *weather.HTTPError
		require.True(t, errors.As(err, &httpErr))
	}

	_, err := s.ScrapeAPIKey(context.Background(), "KCASANFR1")
	assert.True(t, errors.Is(err, weather.ErrCircuitOpen), "got %v", err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPageScraper_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasSuffix(r.URL.Path, "/KBOGUS") {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, dashboardPage(escape(`{"process.env":{"SUN_API_KEY":"k"}}`)))
	}))
	defer srv.Close()

	cfg := testHTTPConfig()
	cfg.Breaker = BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}
	s := NewPageScraper(srv.URL, cfg, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := s.ScrapeAPIKey(context.Background(), "KBOGUS")
		var httpErr *weather.HTTPError
		require.True(t, errors.As(err, &httpErr), "got %v", err)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	}

	bundle, err := s.ScrapeAPIKey(context.Background(), "KCASANFR1")
	require.NoError(t, err)
	assert.Equal(t, "k", bundle.APIKey)
	assert.Equal(t, int32(4), hits.Load())
}

func TestCountsAsHealthy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{&weather.HTTPError{StatusCode: http.StatusNotFound}, true},
		{&weather.HTTPError{StatusCode: http.StatusUnauthorized}, true},
		{&weather.HTTPError{StatusCode: http.StatusTooManyRequests}, false},
		{&weather.HTTPError{StatusCode: http.StatusBadGateway}, false},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countsAsHealthy(tt.err), "%v", tt.err)
	}
}

func TestPageScraper_PageURLEscapesStation(t *testing.T) {
	s := NewPageScraper("https://example.test/", testHTTPConfig(), discardLogger())
	assert.Equal(t, "https://example.test/dashboard/pws/a%2Fb", s.PageURL("a/b"))

	d := NewPageScraper("", testHTTPConfig(), discardLogger())
	assert.Equal(t, DefaultPageBaseURL+"/dashboard/pws/KCASANFR1", d.PageURL("KCASANFR1"))
}
