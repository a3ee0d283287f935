package openweather

import (
	"errors"

	"github.com/i474232898/openweather-sdk/internal/owm"
)

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidAPIKey is returned when the API key is empty.
	ErrInvalidAPIKey = errors.New("api key must not be empty")

	// ErrInvalidCity is returned when the city name is blank.
	ErrInvalidCity = errors.New("city name must not be empty")

	// ErrClosed is returned by any operation on a closed client.
	ErrClosed = errors.New("client is closed")
)

// Remote-call classification, re-exported so callers can test against the
// errors returned by WeatherByCity with errors.Is.
var (
	// ErrCityNotFound means geocoding returned no candidates for the name.
	ErrCityNotFound = owm.ErrCityNotFound

	// ErrClientRequest marks a 4xx from either remote endpoint. Permanent.
	ErrClientRequest = owm.ErrClientRequest

	// ErrTransient marks a 5xx or transport failure that survived the retry
	// budget. WeatherByCity wraps it with an "I/O error" prefix.
	ErrTransient = owm.ErrTransient
)
