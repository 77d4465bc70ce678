package weather_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambientwx/ambientwx/internal/weather"
)

const testMAC = "00:11:22:33:44:55"

func observationAt(ts time.Time, tempF float64) *weather.Observation {
	return &weather.Observation{
		Date:       ts,
		DateUTC:    ts.UnixMilli(),
		Quantities: map[string]weather.Quantity{"tempf": {Magnitude: tempF, Unit: weather.UnitDegreeFahrenheit}},
		Extra:      map[string]any{},
	}
}

func TestInMemoryRepository_SaveIsIdempotent(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := []*weather.Observation{
		observationAt(base, 50),
		observationAt(base.Add(5*time.Minute), 51),
	}

	stored, err := repo.Save(ctx, testMAC, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	stored, err = repo.Save(ctx, testMAC, append(batch, observationAt(base.Add(10*time.Minute), 52)))
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	items, err := repo.List(ctx, testMAC, weather.HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestInMemoryRepository_ListNewestFirstWithRange(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var batch []*weather.Observation
	for i := 0; i < 10; i++ {
		batch = append(batch, observationAt(base.Add(time.Duration(i)*time.Hour), float64(40+i)))
	}
	_, err := repo.Save(ctx, testMAC, batch)
	require.NoError(t, err)

	items, err := repo.List(ctx, testMAC, weather.HistoryQuery{
		From:  base.Add(2 * time.Hour),
		To:    base.Add(6 * time.Hour),
		Limit: 3,
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, base.Add(6*time.Hour), items[0].Date)
	assert.Equal(t, base.Add(5*time.Hour), items[1].Date)
	assert.Equal(t, base.Add(4*time.Hour), items[2].Date)

	other, err := repo.List(ctx, "66:77:88:99:AA:BB", weather.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInMemoryRepository_Latest(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.Latest(ctx, testMAC)
	assert.ErrorIs(t, err, weather.ErrNoObservations)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = repo.Save(ctx, testMAC, []*weather.Observation{
		observationAt(base.Add(time.Hour), 60),
		observationAt(base, 55),
	})
	require.NoError(t, err)

	latest, err := repo.Latest(ctx, testMAC)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), latest.Date)
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()
	obs := observationAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50)

	_, err := repo.Save(ctx, testMAC, []*weather.Observation{obs})
	require.NoError(t, err)

	obs.Quantities["tempf"] = weather.Quantity{Magnitude: 99, Unit: weather.UnitDegreeFahrenheit}

	latest, err := repo.Latest(ctx, testMAC)
	require.NoError(t, err)
	assert.Equal(t, 50.0, latest.Quantities["tempf"].Magnitude)
}

func TestInMemoryRepository_OrdersByStationEpoch(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// The second reading carries an earlier Date but a later epoch.
	first := observationAt(base, 50)
	second := observationAt(base.Add(time.Minute), 51)
	second.Date = base.Add(-time.Hour)
	_, err := repo.Save(ctx, testMAC, []*weather.Observation{first, second})
	require.NoError(t, err)

	items, err := repo.List(ctx, testMAC, weather.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.DateUTC, items[0].DateUTC)

	latest, err := repo.Latest(ctx, testMAC)
	require.NoError(t, err)
	assert.Equal(t, second.DateUTC, latest.DateUTC)
}
