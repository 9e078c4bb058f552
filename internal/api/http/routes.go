package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/city-temps/internal/store"
	"github.com/i474232898/city-temps/internal/weather"
)

var validate = validator.New()

// suggestLimit caps the number of autocomplete suggestions.
const suggestLimit = 20

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, st store.Store, svc *weather.Service) {
	h := &handlers{store: st, service: svc}

	app.Get("/fetch_weather/", h.fetchWeather)
	app.Get("/export_csv/", h.exportCSV)

	api := app.Group("/api/citytemps")
	api.Get("/", h.list)
	api.Post("/", h.create)
	// by_city must precede the :id routes.
	api.Get("/by_city/", h.suggest)
	api.Get("/:id/", h.get)
	api.Put("/:id/", h.update)
	api.Patch("/:id/", h.update)
	api.Delete("/:id/", h.remove)
}

type handlers struct {
	store   store.Store
	service *weather.Service
}

func (h *handlers) list(c *fiber.Ctx) error {
	records, err := h.store.List(c.UserContext(), c.Query("search"))
	if err != nil {
		return storageError(err)
	}
	return c.JSON(recordsJSON(records))
}

// createPayload is the create body. Temperature is optional.
type createPayload struct {
	CityName    string   `json:"city_name" validate:"required"`
	Temperature *float64 `json:"temperature"`
}

func (h *handlers) create(c *fiber.Ctx) error {
	var payload createPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	record, err := h.store.Create(c.UserContext(), payload.CityName, payload.Temperature)
	if err != nil {
		return storageError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *handlers) get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	record, err := h.store.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.ErrNotFound
		}
		return storageError(err)
	}
	return c.JSON(record)
}

// updatePayload distinguishes an absent temperature field (leave it alone)
// from an explicit null (clear it).
type updatePayload struct {
	CityName    *string         `json:"city_name"`
	Temperature json.RawMessage `json:"temperature"`
}

func (h *handlers) update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var payload updatePayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	// PUT is a full update: city_name is required. PATCH is partial.
	if c.Method() == fiber.MethodPut {
		if payload.CityName == nil {
			return fiber.NewError(fiber.StatusBadRequest, "city_name is required")
		}
	}
	if payload.CityName != nil && strings.TrimSpace(*payload.CityName) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "city_name must not be blank")
	}

	fields := store.UpdateFields{CityName: payload.CityName}
	if len(payload.Temperature) > 0 {
		fields.SetTemperature = true
		if string(payload.Temperature) != "null" {
			var temp float64
			if err := json.Unmarshal(payload.Temperature, &temp); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "temperature must be a number or null")
			}
			fields.Temperature = &temp
		}
	}

	record, err := h.store.Update(c.UserContext(), id, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.ErrNotFound
		}
		return storageError(err)
	}
	return c.JSON(record)
}

func (h *handlers) remove(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.ErrNotFound
		}
		return storageError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) suggest(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		return c.JSON([]store.CityTemp{})
	}
	records, err := h.store.Suggest(c.UserContext(), name, suggestLimit)
	if err != nil {
		return storageError(err)
	}
	return c.JSON(recordsJSON(records))
}

func (h *handlers) fetchWeather(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "City parameter is required",
		})
	}
	units := c.Query("units")

	record, obs, created, err := h.service.FetchAndSave(c.UserContext(), city, units)
	if err != nil {
		return fetchErrorResponse(c, city, err)
	}

	return c.JSON(fiber.Map{
		"city_name":   record.CityName,
		"temperature": record.Temperature,
		"created":     created,
		"id":          record.ID,
		"raw": fiber.Map{
			"description": obs.Description,
			"humidity":    obs.Humidity,
			"pressure":    obs.Pressure,
		},
	})
}

// fetchErrorResponse translates the fetcher's error taxonomy into the
// response contract of /fetch_weather/.
func fetchErrorResponse(c *fiber.Ctx, city string, err error) error {
	var (
		apiErr       *weather.APIError
		transportErr *weather.TransportError
	)

	switch {
	case errors.Is(err, weather.ErrNotConfigured):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "OpenWeatherMap API key not configured",
			"details": "Please set OPENWEATHER_API_KEY in .env file",
		})

	case errors.Is(err, weather.ErrCityNotFound):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       fmt.Sprintf("City %q not found", city),
			"details":     err.Error(),
			"status_code": fiber.StatusNotFound,
		})

	case errors.Is(err, weather.ErrUnauthorized):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       "Invalid API key",
			"details":     err.Error(),
			"status_code": fiber.StatusUnauthorized,
		})

	case errors.As(err, &apiErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       "Weather API error",
			"details":     apiErr.Message,
			"status_code": apiErr.StatusCode,
		})

	case errors.As(err, &transportErr):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "Failed to connect to weather service",
			"details": err.Error(),
		})

	default:
		zap.L().Error("fetch_weather failed", zap.String("city", city), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Unexpected error occurred",
			"details": err.Error(),
		})
	}
}

// parseID reads the :id path parameter. A non-numeric id is a 404, matching
// resource-not-found semantics rather than a malformed-request error.
func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.ErrNotFound
	}
	return id, nil
}

func storageError(err error) error {
	zap.L().Error("storage operation failed", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "storage unavailable")
}

// recordsJSON guarantees an empty JSON array instead of null for no rows.
func recordsJSON(records []store.CityTemp) []store.CityTemp {
	if records == nil {
		return []store.CityTemp{}
	}
	return records
}
