package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/wunderground-weather/internal/weather"
)

// WundergroundProvider implements the weather.Provider interface by scraping
// a fresh API key from the dashboard page and then calling the observation API.
// The key is never reused across cycles.
type WundergroundProvider struct {
	name    string
	scraper *PageScraper
	client  *ObservationClient
	logger  *slog.Logger
}

func NewWundergroundProvider(scraper *PageScraper, client *ObservationClient, logger *slog.Logger) *WundergroundProvider {
	return &WundergroundProvider{
		name:    "wunderground",
		scraper: scraper,
		client:  client,
		logger:  logger.With("provider", "wunderground"),
	}
}

func (p *WundergroundProvider) Name() string {
	return p.name
}

func (p *WundergroundProvider) Fetch(ctx context.Context, stationID string) (weather.RawObservation, error) {
	bundle, err := p.scraper.ScrapeAPIKey(ctx, stationID)
	if err != nil {
		return weather.RawObservation{}, fmt.Errorf("scrape api key: %w", err)
	}
	p.logger.Debug("api key scraped", "station", stationID)

	raw, err := p.client.FetchObservation(ctx, bundle.APIKey, stationID)
	if err != nil {
		return weather.RawObservation{}, fmt.Errorf("fetch observation: %w", err)
	}
	return raw, nil
}
