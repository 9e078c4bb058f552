package weather

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-temps/internal/store"
)

type stubFetcher struct {
	obs   Observation
	err   error
	calls int
}

func (f *stubFetcher) Current(ctx context.Context, city, units string) (Observation, error) {
	f.calls++
	if f.err != nil {
		return Observation{}, f.err
	}
	return f.obs, nil
}

func newTestService(t *testing.T, fetcher Fetcher) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewService(st, fetcher), st
}

func temp(v float64) *float64 { return &v }

func TestService_FetchAndSave_RepeatedFetchUpdatesSameRecord(t *testing.T) {
	fetcher := &stubFetcher{obs: Observation{CityName: "Lima", Temperature: temp(21.5)}}
	svc, st := newTestService(t, fetcher)
	ctx := context.Background()

	first, _, created, err := svc.FetchAndSave(ctx, "lima", "")
	require.NoError(t, err)
	assert.True(t, created)

	second, _, created, err := svc.FetchAndSave(ctx, "lima", "")
	require.NoError(t, err)
	assert.False(t, created, "identical fetch must update, not duplicate")
	assert.Equal(t, first.ID, second.ID)

	all, err := st.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_FetchAndSave_MergesCaseInsensitively(t *testing.T) {
	fetcher := &stubFetcher{obs: Observation{CityName: "paris", Temperature: temp(12.0)}}
	svc, st := newTestService(t, fetcher)
	ctx := context.Background()

	seeded, err := st.Create(ctx, "Paris", temp(10.0))
	require.NoError(t, err)

	record, _, created, err := svc.FetchAndSave(ctx, "paris", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, seeded.ID, record.ID)
	assert.Equal(t, "paris", record.CityName, "resolved casing wins")

	all, err := st.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_FetchAndSave_PersistsResolvedName(t *testing.T) {
	// The provider normalizes "lima" to "Lima"; the resolved name is stored.
	fetcher := &stubFetcher{obs: Observation{CityName: "Lima", Temperature: temp(20.0)}}
	svc, st := newTestService(t, fetcher)
	ctx := context.Background()

	record, obs, created, err := svc.FetchAndSave(ctx, "lima", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Lima", record.CityName)
	assert.Equal(t, "Lima", obs.CityName)

	_, found, err := st.FindByCity(ctx, "Lima")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestService_FetchAndSave_FetchErrorPassesThrough(t *testing.T) {
	fetcher := &stubFetcher{err: ErrCityNotFound}
	svc, st := newTestService(t, fetcher)
	ctx := context.Background()

	_, _, _, err := svc.FetchAndSave(ctx, "Nowheresville", "")
	assert.ErrorIs(t, err, ErrCityNotFound)

	all, err := st.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all, "no record is written on fetch failure")
}
