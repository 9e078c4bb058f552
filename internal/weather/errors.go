package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no API key is set. It is reported
	// before any network I/O so operators can tell a missing credential
	// apart from a provider outage.
	ErrNotConfigured = errors.New("openweathermap api key is not configured")

	// ErrCityNotFound is returned when the provider does not know the city.
	ErrCityNotFound = errors.New("city not found")

	// ErrUnauthorized is returned when the provider rejects the API key.
	ErrUnauthorized = errors.New("invalid api key")
)

// APIError is any other non-success response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("weather api error: status %d: %s", e.StatusCode, e.Message)
}

// TransportError means the provider was unreachable, timed out, or the
// circuit breaker is open: no HTTP status was obtained.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to reach weather service: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
