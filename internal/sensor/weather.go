package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultOWMBaseURL is the OpenWeatherMap current weather endpoint.
const DefaultOWMBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherMap fetches current conditions by coordinates.
type OpenWeatherMap struct {
	BaseURL string
	Client  *http.Client
}

// NewOpenWeatherMap returns a client with a bounded request timeout.
func NewOpenWeatherMap() *OpenWeatherMap {
	return &OpenWeatherMap{
		BaseURL: DefaultOWMBaseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// owmResponse is the subset of the current weather payload we use.
type owmResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Message string `json:"message"`
}

// Fetch returns the outdoor temperature (°C) and humidity at q.
func (o *OpenWeatherMap) Fetch(ctx context.Context, q Query) (Reading, error) {
	if q.APIKey == "" {
		return Reading{}, fmt.Errorf("owm: empty api key")
	}

	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	v.Set("units", "metric")
	v.Set("appid", q.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"?"+v.Encode(), nil)
	if err != nil {
		return Reading{}, fmt.Errorf("owm: build request: %w", err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("owm: request: %w", err)
	}
	defer resp.Body.Close()

	var body owmResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Reading{}, fmt.Errorf("owm: unauthorized, check owm_api_key: %s", body.Message)
	case resp.StatusCode != http.StatusOK:
		return Reading{}, fmt.Errorf("owm: server responded with %d: %s", resp.StatusCode, body.Message)
	case decodeErr != nil:
		return Reading{}, fmt.Errorf("owm: decode response: %w", decodeErr)
	case body.Main == nil || body.Main.Temp == nil || body.Main.Humidity == nil:
		return Reading{}, fmt.Errorf("owm: response missing main.temp or main.humidity")
	}

	return Reading{Temperature: *body.Main.Temp, Humidity: *body.Main.Humidity}, nil
}
