package owm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCityNotFound means the geocoding lookup returned no candidates.
	ErrCityNotFound = errors.New("no city found")

	// ErrClientRequest marks a 4xx response. Permanent; never retried.
	ErrClientRequest = errors.New("client error from OpenWeather API")

	// ErrTransient marks a 5xx response or a transport-level failure.
	// Retried up to the backoff budget, then surfaced.
	ErrTransient = errors.New("transient error from OpenWeather API")
)

const (
	defaultGeocodingURL = "https://api.openweathermap.org/geo/1.0/direct"
	defaultWeatherURL   = "https://api.openweathermap.org/data/2.5/weather"

	// Response bodies carried in error messages are cut to this length.
	maxBodyExcerpt = 512
)

// BackoffConfig controls the retry loop around each remote call.
type BackoffConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

// Client performs the two-step OpenWeatherMap lookup: resolve a city name to
// coordinates, then fetch current weather for those coordinates. Each remote
// call runs through a shared retry wrapper and a per-endpoint circuit breaker.
type Client struct {
	apiKey       string
	geocodingURL string
	weatherURL   string
	httpClient   *http.Client
	backoff      BackoffConfig

	geoCircuit     *gobreaker.CircuitBreaker
	weatherCircuit *gobreaker.CircuitBreaker
}

// New creates a Client for the given API key. The http.Client is shared with
// the caller and should carry a request timeout.
func New(httpClient *http.Client, apiKey string) *Client {
	newCircuit := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
	}

	return &Client{
		apiKey:       apiKey,
		geocodingURL: defaultGeocodingURL,
		weatherURL:   defaultWeatherURL,
		httpClient:   httpClient,
		backoff: BackoffConfig{
			MaxAttempts:     3,
			InitialInterval: 1 * time.Second,
		},
		geoCircuit:     newCircuit("owm-geocoding"),
		weatherCircuit: newCircuit("owm-weather"),
	}
}

// Fetch resolves cityName to coordinates and returns the normalized current
// weather payload as a JSON string.
func (c *Client) Fetch(ctx context.Context, cityName string) (string, error) {
	city, err := c.geocode(ctx, cityName)
	if err != nil {
		return "", err
	}
	return c.currentWeather(ctx, city.Lat, city.Lon)
}

func (c *Client) geocode(ctx context.Context, cityName string) (cityInfo, error) {
	values := url.Values{}
	values.Set("q", cityName)
	values.Set("limit", "1")
	values.Set("appid", c.apiKey)

	body, err := c.do(ctx, c.geoCircuit, fmt.Sprintf("%s?%s", c.geocodingURL, values.Encode()), "/geo/1.0/direct")
	if err != nil {
		return cityInfo{}, err
	}

	cities, err := decodeCityInfo(body)
	if err != nil {
		return cityInfo{}, err
	}
	if len(cities) == 0 {
		return cityInfo{}, fmt.Errorf("%w: %q", ErrCityNotFound, cityName)
	}
	return cities[0], nil
}

func (c *Client) currentWeather(ctx context.Context, lat, lon float64) (string, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("appid", c.apiKey)

	body, err := c.do(ctx, c.weatherCircuit, fmt.Sprintf("%s?%s", c.weatherURL, values.Encode()), "/data/2.5/weather")
	if err != nil {
		return "", err
	}

	resp, err := decodeWeather(body)
	if err != nil {
		return "", err
	}
	return encodePayload(resp)
}

// do executes one remote call with retries, exponential backoff, and a
// circuit breaker. Client errors (4xx) fail immediately; server errors (5xx)
// and transport failures are retried with a 1s, 2s backoff before giving up
// after the third attempt.
func (c *Client) do(ctx context.Context, cb *gobreaker.CircuitBreaker, reqURL, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.backoff.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := cb.Execute(func() (interface{}, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if reqErr != nil {
				return nil, reqErr
			}

			resp, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrTransient, doErr)
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, fmt.Errorf("%w: reading response body: %v", ErrTransient, readErr)
			}

			code := resp.StatusCode
			switch {
			case code >= 400 && code < 500:
				return nil, fmt.Errorf("%w: status %d for %s: %s", ErrClientRequest, code, endpoint, truncate(body))
			case code >= 500:
				return nil, fmt.Errorf("%w: status %d for %s: %s", ErrTransient, code, endpoint, truncate(body))
			case code < 200 || code >= 300:
				return nil, fmt.Errorf("%w: unexpected status %d for %s: %s", ErrTransient, code, endpoint, truncate(body))
			}

			return body, nil
		})

		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// Context cancellation observed during the request surfaces as-is.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Permanent failures are never retried.
		if errors.Is(err, ErrClientRequest) {
			return nil, err
		}

		// The breaker rejecting calls means the endpoint is known bad;
		// retrying inside this call would only burn the backoff budget.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open for %s: %v", ErrTransient, endpoint, err)
		}

		lastErr = err
		if attempt+1 >= c.backoff.MaxAttempts {
			break
		}

		delay := c.backoff.InitialInterval << uint(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

func truncate(body []byte) string {
	if len(body) <= maxBodyExcerpt {
		return string(body)
	}
	return string(body[:maxBodyExcerpt]) + "..."
}
