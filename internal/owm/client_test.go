package owm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const geoBody = `[{"name":"London","lat":51.5074,"lon":-0.1278,"country":"GB"}]`

const weatherBody = `{
	"weather":[{"main":"Clouds","description":"scattered clouds"}],
	"main":{"temp":279.32,"feels_like":276.1},
	"visibility":10000,
	"wind":{"speed":4.1},
	"dt":1700000000,
	"sys":{"sunrise":1699990000,"sunset":1700020000},
	"timezone":0,
	"name":"London"
}`

// newTestClient points a Client at stub servers and shrinks the backoff so
// retry tests stay fast.
func newTestClient(geoURL, weatherURL string) *Client {
	c := New(&http.Client{Timeout: 5 * time.Second}, "test-key")
	c.geocodingURL = geoURL
	c.weatherURL = weatherURL
	c.backoff.InitialInterval = 10 * time.Millisecond
	return c
}

func TestFetchSuccess(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "London" {
			t.Errorf("expected q=London, got %q", got)
		}
		if got := r.URL.Query().Get("appid"); got != "test-key" {
			t.Errorf("expected appid=test-key, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("expected limit=1, got %q", got)
		}
		w.Write([]byte(geoBody))
	}))
	defer geo.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
			t.Error("expected lat/lon query parameters")
		}
		w.Write([]byte(weatherBody))
	}))
	defer weather.Close()

	c := newTestClient(geo.URL, weather.URL)

	payload, err := c.Fetch(context.Background(), "London")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	for _, field := range []string{"weather", "temperature", "visibility", "wind", "datetime", "sys", "timezone", "name"} {
		if _, ok := out[field]; !ok {
			t.Errorf("payload missing field %q", field)
		}
	}
	if !strings.Contains(payload, `"main":"Clouds"`) {
		t.Errorf("payload missing weather condition: %s", payload)
	}
	if !strings.Contains(payload, `"feels_like":276.1`) {
		t.Errorf("payload missing feels_like: %s", payload)
	}
}

func TestFetchOmitsAbsentBlocks(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geoBody))
	}))
	defer geo.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"visibility":10000,"dt":1700000000,"timezone":0,"name":"London"}`))
	}))
	defer weather.Close()

	c := newTestClient(geo.URL, weather.URL)

	payload, err := c.Fetch(context.Background(), "London")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{"weather", "temperature", "wind", "sys"} {
		if strings.Contains(payload, `"`+field+`"`) {
			t.Errorf("payload should omit absent block %q: %s", field, payload)
		}
	}
}

func TestCityNotFound(t *testing.T) {
	weatherCalls := 0

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer geo.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weatherCalls++
		w.Write([]byte(weatherBody))
	}))
	defer weather.Close()

	c := newTestClient(geo.URL, weather.URL)

	_, err := c.Fetch(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrCityNotFound) {
		t.Fatalf("expected ErrCityNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "Nowhereville") {
		t.Errorf("error should name the city: %v", err)
	}
	if weatherCalls != 0 {
		t.Errorf("weather endpoint should not be called, got %d calls", weatherCalls)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	attempts := 0

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer geo.Close()

	c := newTestClient(geo.URL, geo.URL)

	_, err := c.Fetch(context.Background(), "London")
	if !errors.Is(err, ErrClientRequest) {
		t.Fatalf("expected ErrClientRequest, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", attempts)
	}
	if !strings.Contains(err.Error(), "Invalid API key") {
		t.Errorf("error should carry the response excerpt: %v", err)
	}
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(geoBody))
	}))
	defer geo.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(weatherBody))
	}))
	defer weather.Close()

	c := newTestClient(geo.URL, weather.URL)

	start := time.Now()
	payload, err := c.Fetch(context.Background(), "London")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed < c.backoff.InitialInterval {
		t.Fatalf("expected at least one backoff delay, elapsed %v", elapsed)
	}
	if !strings.Contains(payload, `"name":"London"`) {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestTransientExhaustsRetries(t *testing.T) {
	attempts := 0

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"cod":500,"message":"upstream down"}`))
	}))
	defer geo.Close()

	c := newTestClient(geo.URL, geo.URL)

	_, err := c.Fetch(context.Background(), "London")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("error should carry the last response excerpt: %v", err)
	}
}

func TestBodyExcerptTruncated(t *testing.T) {
	long := strings.Repeat("x", 600)

	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(long))
	}))
	defer geo.Close()

	c := newTestClient(geo.URL, geo.URL)

	_, err := c.Fetch(context.Background(), "London")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), strings.Repeat("x", 513)) {
		t.Fatalf("excerpt not truncated to 512 characters: %d-char message", len(err.Error()))
	}
	if !strings.Contains(err.Error(), strings.Repeat("x", 512)+"...") {
		t.Fatalf("expected truncated excerpt with ellipsis: %v", err)
	}
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer geo.Close()

	c := newTestClient(geo.URL, geo.URL)
	c.backoff.InitialInterval = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Fetch(ctx, "London")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancellation not observed promptly, elapsed %v", elapsed)
	}
}
