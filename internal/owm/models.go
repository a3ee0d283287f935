package owm

import (
	"encoding/json"
	"fmt"
)

// cityInfo is one candidate record from the geocoding endpoint.
type cityInfo struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
}

// weatherResponse mirrors the fields of the current-weather endpoint we care
// about. Optional sub-objects decode into pointers so their absence can be
// reflected in the output payload.
type weatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt  int64 `json:"dt"`
	Sys *struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int    `json:"timezone"`
	Name     string `json:"name"`
}

// payload is the normalized shape returned to SDK callers. Blocks whose
// source sub-object is absent are omitted.
type payload struct {
	Weather     *payloadWeather     `json:"weather,omitempty"`
	Temperature *payloadTemperature `json:"temperature,omitempty"`
	Visibility  int                 `json:"visibility"`
	Wind        *payloadWind        `json:"wind,omitempty"`
	Datetime    int64               `json:"datetime"`
	Sys         *payloadSys         `json:"sys,omitempty"`
	Timezone    int                 `json:"timezone"`
	Name        string              `json:"name"`
}

type payloadWeather struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type payloadTemperature struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
}

type payloadWind struct {
	Speed float64 `json:"speed"`
}

type payloadSys struct {
	Sunrise int64 `json:"sunrise"`
	Sunset  int64 `json:"sunset"`
}

func decodeCityInfo(body []byte) ([]cityInfo, error) {
	var cities []cityInfo
	if err := json.Unmarshal(body, &cities); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	return cities, nil
}

func decodeWeather(body []byte) (weatherResponse, error) {
	var resp weatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return weatherResponse{}, fmt.Errorf("decoding weather response: %w", err)
	}
	return resp, nil
}

// encodePayload re-shapes the remote weather response into the fixed output
// field set served to callers.
func encodePayload(resp weatherResponse) (string, error) {
	out := payload{
		Visibility: resp.Visibility,
		Datetime:   resp.Dt,
		Timezone:   resp.Timezone,
		Name:       resp.Name,
	}

	if len(resp.Weather) > 0 {
		out.Weather = &payloadWeather{
			Main:        resp.Weather[0].Main,
			Description: resp.Weather[0].Description,
		}
	}
	if resp.Main != nil {
		out.Temperature = &payloadTemperature{
			Temp:      resp.Main.Temp,
			FeelsLike: resp.Main.FeelsLike,
		}
	}
	if resp.Wind != nil {
		out.Wind = &payloadWind{Speed: resp.Wind.Speed}
	}
	if resp.Sys != nil {
		out.Sys = &payloadSys{Sunrise: resp.Sys.Sunrise, Sunset: resp.Sys.Sunset}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding weather payload: %w", err)
	}
	return string(encoded), nil
}
