package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/wunderground-weather/internal/store"
	"github.com/i474232898/wunderground-weather/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
// refreshTimeout bounds an on-demand refresh cycle, like a scheduled one.
func RegisterRoutes(app *fiber.App, service *weather.Service, refreshTimeout time.Duration) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		type stationView struct {
			weather.Station
			Status weather.Status `json:"status"`
		}
		stations := service.Stations()
		out := make([]stationView, 0, len(stations))
		for _, st := range stations {
			state, err := service.State(st.ID)
			if err != nil {
				return mapError(err)
			}
			out = append(out, stationView{Station: st, Status: state.Status})
		}
		return c.JSON(out)
	})

	v1.Get("/stations/:station/weather", func(c *fiber.Ctx) error {
		entity, err := service.Weather(c.Params("station"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(entity.State())
	})

	v1.Get("/stations/:station/sensors", func(c *fiber.Ctx) error {
		entities, err := service.Sensors(c.Params("station"))
		if err != nil {
			return mapError(err)
		}
		out := make([]weather.SensorState, 0, len(entities))
		for _, e := range entities {
			out = append(out, e.State())
		}
		return c.JSON(out)
	})

	v1.Get("/stations/:station/sensors/:kind", func(c *fiber.Ctx) error {
		entity, err := service.Sensor(c.Params("station"), weather.SensorKind(c.Params("kind")))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(entity.State())
	})

	v1.Get("/stations/:station/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := service.History(req.Station, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observations for requested range")
			}
			return mapError(err)
		}

		return c.JSON(fiber.Map{
			"station":   req.Station,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Post("/stations/:station/refresh", func(c *fiber.Ctx) error {
		stationID := c.Params("station")

		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()

		if err := service.Refresh(ctx, stationID); err != nil {
			if errors.Is(err, weather.ErrUnknownStation) {
				return mapError(err)
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		entity, err := service.Weather(stationID)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(entity.State())
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, weather.ErrUnknownStation):
		return fiber.NewError(fiber.StatusNotFound, "station is not configured")
	case errors.Is(err, weather.ErrUnknownSensor):
		return fiber.NewError(fiber.StatusNotFound, "unknown sensor kind")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read station state")
	}
}

// historyQuery holds path and query parameters for the history endpoint.
type historyQuery struct {
	Station string    `validate:"required"`
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Station = c.Params("station")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
