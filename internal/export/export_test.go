package export_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambientwx/ambientwx/internal/export"
	"github.com/ambientwx/ambientwx/internal/weather"
)

func observation(ts time.Time, quantities map[string]weather.Quantity, extra map[string]any) *weather.Observation {
	if extra == nil {
		extra = map[string]any{}
	}
	return &weather.Observation{Date: ts, DateUTC: ts.UnixMilli(), Quantities: quantities, Extra: extra}
}

func twoObservations() []*weather.Observation {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []*weather.Observation{
		observation(base, map[string]weather.Quantity{
			"tempf":    {Magnitude: 70, Unit: weather.UnitDegreeFahrenheit},
			"humidity": {Magnitude: 40, Unit: weather.UnitPercent},
		}, nil),
		observation(base.Add(5*time.Minute), map[string]weather.Quantity{
			"tempf": {Magnitude: 71, Unit: weather.UnitDegreeFahrenheit},
		}, nil),
	}
}

func TestToTable(t *testing.T) {
	table := export.ToTable(twoObservations())

	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, []string{"date", "dateutc", "humidity", "tempf"}, table.Columns)

	temps, ok := table.Column("tempf")
	require.True(t, ok)
	assert.Equal(t, []any{70.0, 71.0}, temps)

	humidity, ok := table.Column("humidity")
	require.True(t, ok)
	assert.Equal(t, []any{40.0, nil}, humidity)

	_, ok = table.Column("windspeedmph")
	assert.False(t, ok)
}

func TestToTable_Empty(t *testing.T) {
	table := export.ToTable(nil)
	assert.Equal(t, 0, table.NumRows())
	assert.Equal(t, 0, table.NumColumns())

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, table))
	assert.Empty(t, buf.String())
}

func TestToTable_PassthroughFields(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	table := export.ToTable([]*weather.Observation{
		observation(ts, map[string]weather.Quantity{}, map[string]any{"tz": "Europe/Amsterdam", "uv": 4.0}),
	})

	tz, ok := table.Column("tz")
	require.True(t, ok)
	assert.Equal(t, []any{"Europe/Amsterdam"}, tz)
	assert.Equal(t, 4, table.NumColumns())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, export.ToTable(twoObservations())))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"date", "dateutc", "humidity", "tempf"}, records[0])
	assert.Equal(t, []string{"2024-05-01T10:00:00.000Z", "1714557600000", "40", "70"}, records[1])
	assert.Equal(t, []string{"2024-05-01T10:05:00.000Z", "1714557900000", "", "71"}, records[2])
}

func TestWriteCSVFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.csv")
	require.NoError(t, export.WriteCSVFile(path, twoObservations()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	table, err := export.ReadCSV(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "dateutc", "humidity", "tempf"}, table.Columns)
	require.Equal(t, 2, table.NumRows())

	temps, _ := table.Column("tempf")
	assert.Equal(t, []any{"70", "71"}, temps)
	humidity, _ := table.Column("humidity")
	assert.Equal(t, []any{"40", nil}, humidity)
}

func TestWriteCSVFile_BadPath(t *testing.T) {
	err := export.WriteCSVFile(filepath.Join(t.TempDir(), "missing", "out.csv"), twoObservations())
	require.Error(t, err)
}

func TestReadCSV_Empty(t *testing.T) {
	table, err := export.ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, table.NumColumns())
	assert.Equal(t, 0, table.NumRows())
}
