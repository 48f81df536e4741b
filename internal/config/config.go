package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/wunderground-weather/internal/weather"
)

const (
	DefaultUpdateInterval = 60
	MinUpdateInterval     = 30
	MaxUpdateInterval     = 3600
)

var validate = validator.New()

type AppConfig struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel slog.Level

	// Stations to poll.
	Stations []weather.Station `validate:"required,min=1,dive"`

	// UpdateInterval is the refresh period in seconds.
	UpdateInterval int `validate:"min=30,max=3600"`

	HTTPTimeout time.Duration `validate:"gte=0"`

	// Upstream base URLs; overridable for testing against local fakes.
	PageBaseURL string `validate:"required,url"`
	APIBaseURL  string `validate:"required,url"`

	BreakerFailureThreshold uint32
	BreakerCooldown         time.Duration `validate:"gte=0"`

	// In-memory store retention; zero means unlimited.
	StoreMaxHistory int           `validate:"gte=0"`
	StoreMaxAge     time.Duration `validate:"gte=0"`

	Port string `validate:"required,numeric"`

	MQTT MQTTConfig
}

// MQTTConfig configures the optional MQTT publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker          string
	Port            int    `validate:"min=1,max=65535"`
	ClientID        string `validate:"required"`
	Username        string
	Password        string
	DiscoveryPrefix string `validate:"required"`
	TopicPrefix     string `validate:"required"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// UpdateEvery returns the refresh period.
func (c *AppConfig) UpdateEvery() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Second
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	stations, err := loadStations()
	if err != nil {
		return nil, err
	}
	cfg.Stations = stations

	interval, err := strconv.Atoi(getenvDefault("UPDATE_INTERVAL", strconv.Itoa(DefaultUpdateInterval)))
	if err != nil {
		return nil, fmt.Errorf("invalid UPDATE_INTERVAL: %w", err)
	}
	cfg.UpdateInterval = interval

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.PageBaseURL = getenvDefault("WU_PAGE_BASE_URL", "https://www.wunderground.com")
	cfg.APIBaseURL = getenvDefault("WU_API_BASE_URL", "https://api.weather.com")

	threshold, err := getenvInt("BREAKER_FAILURE_THRESHOLD", 5)
	if err != nil {
		return nil, err
	}
	if threshold < 0 {
		return nil, fmt.Errorf("invalid BREAKER_FAILURE_THRESHOLD: must not be negative, got %d", threshold)
	}
	cfg.BreakerFailureThreshold = uint32(threshold)
	if cfg.BreakerCooldown, err = getenvDuration("BREAKER_COOLDOWN", "2m"); err != nil {
		return nil, err
	}

	// Store retention; 1440 snapshots is 24h at the default interval.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 1440); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	mqttPort, err := getenvInt("MQTT_PORT", 1883)
	if err != nil {
		return nil, err
	}
	cfg.MQTT = MQTTConfig{
		Broker:          os.Getenv("MQTT_BROKER"),
		Port:            mqttPort,
		ClientID:        getenvDefault("MQTT_CLIENT_ID", "wunderground-weather"),
		Username:        os.Getenv("MQTT_USERNAME"),
		Password:        os.Getenv("MQTT_PASSWORD"),
		DiscoveryPrefix: getenvDefault("MQTT_DISCOVERY_PREFIX", "homeassistant"),
		TopicPrefix:     getenvDefault("MQTT_TOPIC_PREFIX", "wunderground"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadStations pairs STATION_IDS with the optional STATION_NAMES.
func loadStations() ([]weather.Station, error) {
	ids := splitList(os.Getenv("STATION_IDS"))
	if len(ids) == 0 {
		return nil, fmt.Errorf("STATION_IDS is required")
	}
	names := splitList(os.Getenv("STATION_NAMES"))
	if len(names) > 0 && len(names) != len(ids) {
		return nil, fmt.Errorf("number of station ids and station names must be the same")
	}

	seen := make(map[string]bool, len(ids))
	stations := make([]weather.Station, 0, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("invalid station id at position %d", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("station %s already configured", id)
		}
		seen[id] = true

		st := weather.Station{ID: id}
		if len(names) > 0 {
			st.Name = names[i]
		}
		if st.Name == "" {
			st.Name = st.DisplayName()
		}
		stations = append(stations, st)
	}
	return stations, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
