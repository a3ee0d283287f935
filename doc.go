// Package openweather is an embeddable client for the OpenWeatherMap API.
// It hides the service's two-step lookup (geocode a city name, then fetch
// weather for the coordinates) behind a single call, caches results in a
// bounded TTL-aware LRU cache, retries transient failures with exponential
// backoff, and can keep cached cities fresh with a background polling loop.
//
// Clients are obtained through the registry, which guarantees at most one
// live client per API key:
//
//	client, err := openweather.Create(apiKey)
//	if err != nil {
//		// ...
//	}
//	defer client.Close()
//
//	weather, err := client.WeatherByCity(ctx, "London")
package openweather
