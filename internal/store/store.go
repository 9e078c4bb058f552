package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a given id.
	ErrNotFound = errors.New("city temperature record not found")
)

// CityTemp is a persisted temperature reading for a city.
// Temperature is nil when the provider returned no temperature value.
type CityTemp struct {
	ID          int64     `json:"id"`
	CityName    string    `json:"city_name"`
	Temperature *float64  `json:"temperature"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpdateFields carries a partial update. Nil fields are left untouched.
// SetTemperature distinguishes "clear the temperature" from "leave it alone".
type UpdateFields struct {
	CityName       *string
	Temperature    *float64
	SetTemperature bool
}

// Store is the persistence contract for CityTemp records.
type Store interface {
	Create(ctx context.Context, cityName string, temperature *float64) (CityTemp, error)
	Get(ctx context.Context, id int64) (CityTemp, error)
	Update(ctx context.Context, id int64, fields UpdateFields) (CityTemp, error)
	Delete(ctx context.Context, id int64) error

	// List returns all records ordered by updated_at descending. A non-empty
	// search narrows the result to records whose city name contains the
	// search string, case-insensitively, preserving the ordering.
	List(ctx context.Context, search string) ([]CityTemp, error)

	// Suggest returns up to limit records whose city name contains name
	// case-insensitively, ordered alphabetically by city name.
	Suggest(ctx context.Context, name string, limit int) ([]CityTemp, error)

	// FindByCity returns the record whose city name equals name
	// case-insensitively. When several rows match, the most recently
	// updated one wins. The bool reports whether a record was found.
	FindByCity(ctx context.Context, name string) (CityTemp, bool, error)

	// UpsertByCity updates the record matching cityName case-insensitively,
	// overwriting its name and temperature, or inserts a new record when no
	// match exists. The bool reports whether a new record was created.
	UpsertByCity(ctx context.Context, cityName string, temperature *float64) (CityTemp, bool, error)

	Migrate(ctx context.Context) error
	Close() error
}
