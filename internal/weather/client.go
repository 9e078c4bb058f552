package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the OpenWeatherMap API root used when no override is configured.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Observation is a normalized current-weather reading for a city.
type Observation struct {
	// CityName is the canonical name echoed by the provider, which may
	// differ in case or spelling from the queried name. Callers must
	// persist this name, not their input.
	CityName    string
	Temperature *float64 // nil when the payload carries no temperature
	Description string
	Humidity    *int
	Pressure    *int
}

// Client calls the OpenWeatherMap current-weather endpoint.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a Client. baseURL falls back to DefaultBaseURL when empty.
// The http.Client's timeout bounds the single outbound attempt; there are no
// retries. The circuit breaker only short-circuits calls while the provider
// is persistently failing.
func NewClient(client *http.Client, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		circuit: cb,
	}
}

// Current fetches the current weather for a city. units defaults to "metric"
// when blank. Failures are reported through the package error taxonomy:
// ErrNotConfigured, ErrCityNotFound, ErrUnauthorized, *APIError and
// *TransportError.
func (c *Client) Current(ctx context.Context, city, units string) (Observation, error) {
	if c.apiKey == "" {
		return Observation{}, ErrNotConfigured
	}
	if units == "" {
		units = "metric"
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", c.apiKey)
	values.Set("units", units)

	u := fmt.Sprintf("%s/weather?%s", c.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Observation{}, err
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.client.Do(req)
	})
	if err != nil {
		return Observation{}, &TransportError{Err: err}
	}
	resp := result.(*http.Response)
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return Observation{}, ErrCityNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		drain(resp.Body)
		return Observation{}, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Observation{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiMessage(resp.Body),
		}
	}

	var payload struct {
		Name string `json:"name"`
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *int     `json:"humidity"`
			Pressure *int     `json:"pressure"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Observation{}, &TransportError{Err: err}
	}

	obs := Observation{
		CityName:    payload.Name,
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
	}
	if obs.CityName == "" {
		obs.CityName = city
	}
	if len(payload.Weather) > 0 {
		obs.Description = payload.Weather[0].Description
	}
	return obs, nil
}

// apiMessage extracts the provider's error message, falling back to the raw body.
func apiMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

func drain(body io.Reader) {
	io.Copy(io.Discard, io.LimitReader(body, 4096)) //nolint:errcheck
}
