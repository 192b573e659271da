package inputs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileProviderLoadsSnapshot(t *testing.T) {
	path := writeSnapshot(t, `{
		"price_data": [
			{"start_time": "2026-01-05T00:00:00Z", "end_time": "2026-01-05T01:00:00Z", "import_price": 0.25, "export_price": 0.10}
		],
		"forecast_data": [
			{"start_time": "2026-01-05T00:00:00Z", "end_time": "2026-01-05T01:00:00Z", "pv_forecast_kwh": 0, "load_forecast_kwh": 0.4}
		],
		"initial_state": {"battery_soc_percent": 55, "battery_cost_per_kwh": 0.30},
		"daily_temperature_c": {"1": -5}
	}`)

	snap, err := NewFileProvider(path).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Prices, 1)
	assert.Equal(t, 0.25, snap.Prices[0].ImportPrice)
	assert.Equal(t, 55.0, snap.State.BatterySoCPercent)
	assert.Equal(t, -5.0, snap.DailyTemperatureC[1])
}

func TestFileProviderRejectsEmptySeries(t *testing.T) {
	path := writeSnapshot(t, `{"price_data": [], "forecast_data": []}`)
	_, err := NewFileProvider(path).Snapshot(context.Background())
	assert.Error(t, err)
}

func TestFileProviderMissingFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "nope.json")).Snapshot(context.Background())
	assert.Error(t, err)
}

func TestFileProviderHonorsContext(t *testing.T) {
	path := writeSnapshot(t, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileProvider(path).Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
