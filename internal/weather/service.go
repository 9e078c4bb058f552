package weather

import (
	"context"

	"go.uber.org/zap"

	"github.com/i474232898/city-temps/internal/store"
)

// Fetcher abstracts the provider client so the service can be tested with stubs.
type Fetcher interface {
	Current(ctx context.Context, city, units string) (Observation, error)
}

// Service orchestrates fetching current weather and reconciling it with the store.
type Service struct {
	store   store.Store
	fetcher Fetcher
}

// NewService creates a new Service.
func NewService(st store.Store, fetcher Fetcher) *Service {
	return &Service{store: st, fetcher: fetcher}
}

// FetchAndSave fetches the current weather for city and upserts the result.
//
// Reconciliation is keyed by the provider's resolved city name, matched
// case-insensitively: an existing record is overwritten with the resolved
// casing and fresh temperature, otherwise a new record is created. Two
// distinct real-world cities sharing a name therefore collapse into one
// record; that is a documented limitation of the matching policy.
func (s *Service) FetchAndSave(ctx context.Context, city, units string) (store.CityTemp, Observation, bool, error) {
	obs, err := s.fetcher.Current(ctx, city, units)
	if err != nil {
		return store.CityTemp{}, Observation{}, false, err
	}

	record, created, err := s.store.UpsertByCity(ctx, obs.CityName, obs.Temperature)
	if err != nil {
		return store.CityTemp{}, Observation{}, false, err
	}

	zap.L().Info("weather fetched",
		zap.String("city", record.CityName),
		zap.Bool("created", created),
	)
	return record, obs, created, nil
}
