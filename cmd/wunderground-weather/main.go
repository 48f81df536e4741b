package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/i474232898/wunderground-weather/internal/api/http"
	"github.com/i474232898/wunderground-weather/internal/config"
	"github.com/i474232898/wunderground-weather/internal/logging"
	"github.com/i474232898/wunderground-weather/internal/mqtt"
	"github.com/i474232898/wunderground-weather/internal/scheduler"
	"github.com/i474232898/wunderground-weather/internal/store"
	"github.com/i474232898/wunderground-weather/internal/weather"
	"github.com/i474232898/wunderground-weather/internal/weather/providers"
)

const appName = "wunderground-weather"

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logging.New(cfg, version, appName)

	// Shared HTTP client for outbound calls.
	httpCfg := providers.HTTPClientConfig{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Breaker: providers.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Cooldown:         cfg.BreakerCooldown,
		},
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	provider := providers.NewWundergroundProvider(
		providers.NewPageScraper(cfg.PageBaseURL, httpCfg, lg),
		providers.NewObservationClient(cfg.APIBaseURL, httpCfg, lg),
		lg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sinks []weather.Sink
	if cfg.MQTT.Enabled() {
		pub := mqtt.NewPublisher(cfg.MQTT, lg)
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			lg.Error("mqtt connect failed; continuing without mqtt", "error", err)
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	// Core service orchestrating acquisition, store and entity views.
	service := weather.NewService(memStore, provider, cfg.Stations, lg, sinks...)

	// Scheduler that periodically refreshes every station.
	// A cycle makes two sequential calls.
	cycleTimeout := cfg.HTTPTimeout * 2
	sched := scheduler.New(cfg.Stations, cfg.UpdateEvery(), cycleTimeout, service, lg)
	if err := sched.Start(); err != nil {
		lg.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, cycleTimeout)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Error("fiber server stopped", "error", err)
		}
	}()
	lg.Info("listening", "port", cfg.Port, "stations", len(cfg.Stations))

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", "error", err)
	}
}
