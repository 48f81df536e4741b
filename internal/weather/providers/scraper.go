package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html"

	"github.com/i474232898/wunderground-weather/internal/common"
	"github.com/i474232898/wunderground-weather/internal/weather"
)

const (
	DefaultPageBaseURL = "https://www.wunderground.com"

	appStateScriptID   = "app-root-state"
	appStateScriptType = "application/json"

	// The app state escapes double quotes with this entity.
	escapedQuote = "&q;"

	envField    = "process.env"
	apiKeyField = "SUN_API_KEY"
)

// PageScraper recovers the transient API key embedded in a station's dashboard page.
type PageScraper struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewPageScraper(baseURL string, httpCfg HTTPClientConfig, logger *slog.Logger) *PageScraper {
	if baseURL == "" {
		baseURL = DefaultPageBaseURL
	}
	logger = logger.With("component", "scraper")
	return &PageScraper{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: httpCfg,
		circuit: newBreaker("wunderground-dashboard", httpCfg.Breaker, logger),
		logger:  logger,
	}
}

// PageURL returns the dashboard URL of a station.
func (s *PageScraper) PageURL(stationID string) string {
	return s.baseURL + "/dashboard/pws/" + url.PathEscape(stationID)
}

// ScrapeAPIKey fetches the dashboard page of a station and extracts the API key.
func (s *PageScraper) ScrapeAPIKey(ctx context.Context, stationID string) (weather.KeyBundle, error) {
	req, err := http.NewRequest(http.MethodGet, s.PageURL(stationID), nil)
	if err != nil {
		return weather.KeyBundle{}, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := doRequest(ctx, s.httpCfg, s.circuit, req)
	if err != nil {
		return weather.KeyBundle{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.KeyBundle{}, fmt.Errorf("read dashboard page: %w", err)
	}

	bundle, err := ExtractAPIKey(string(body))
	if err != nil {
		if common.HasAny(string(body), "captcha", "Access Denied") {
			s.logger.Warn("dashboard page looks like a bot challenge", "station", stationID)
		}
		return weather.KeyBundle{}, err
	}
	return bundle, nil
}

// ExtractAPIKey locates the app state script element in page, un-escapes it,
// parses it as JSON and returns the key at process.env.SUN_API_KEY.
func ExtractAPIKey(page string) (weather.KeyBundle, error) {
	text, err := appStateText(page)
	if err != nil {
		return weather.KeyBundle{}, err
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(strings.ReplaceAll(text, escapedQuote, `"`)), &state); err != nil {
		return weather.KeyBundle{}, fmt.Errorf("%w: %v", weather.ErrMalformedPayload, err)
	}

	return apiKeyFromState(state)
}

func apiKeyFromState(state map[string]any) (weather.KeyBundle, error) {
	env, ok := state[envField].(map[string]any)
	if !ok {
		return weather.KeyBundle{}, fmt.Errorf("%w: no %q object", weather.ErrMissingKey, envField)
	}
	key, ok := env[apiKeyField].(string)
	if !ok || key == "" {
		return weather.KeyBundle{}, fmt.Errorf("%w: no %s.%s", weather.ErrMissingKey, envField, apiKeyField)
	}
	return weather.KeyBundle{APIKey: key}, nil
}

// appStateText returns the raw text of the app state script element.
func appStateText(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", weather.ErrMissingMarker, err)
	}

	node := findElement(doc, func(n *html.Node) bool {
		return n.Data == "script" &&
			attr(n, "id") == appStateScriptID &&
			attr(n, "type") == appStateScriptType
	})
	if node == nil {
		return "", fmt.Errorf("%w: no script#%s", weather.ErrMissingMarker, appStateScriptID)
	}

	var b strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: script#%s is empty", weather.ErrMissingMarker, appStateScriptID)
	}
	return text, nil
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
