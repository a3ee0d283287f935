package httpapi

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	openweather "github.com/i474232898/openweather-sdk"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, client *openweather.Client) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		req := currentQuery{City: c.Query("city")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		payload, err := client.WeatherByCity(c.UserContext(), req.City)
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(payload)
	})

	v1.Get("/cache/size", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"size": client.CacheSize(),
		})
	})

	v1.Delete("/cache/:city", func(c *fiber.Ctx) error {
		city, err := url.PathUnescape(c.Params("city"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid city parameter")
		}
		if err := client.DeleteCity(city); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		client.ClearCache()
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// currentQuery holds query parameters for the current weather lookup.
type currentQuery struct {
	City string `validate:"required"`
}

// statusFor maps SDK errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, openweather.ErrInvalidCity):
		return fiber.StatusBadRequest
	case errors.Is(err, openweather.ErrCityNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, openweather.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadGateway
	}
}
