package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solbatt/solbatt/config"
	"github.com/solbatt/solbatt/internal/eventbus"
)

const testSnapshot = `{
	"price_data": [
		{"start_time": "2026-01-05T00:00:00Z", "end_time": "2026-01-05T01:00:00Z", "import_price": 0.15, "export_price": 0.05},
		{"start_time": "2026-01-05T01:00:00Z", "end_time": "2026-01-05T02:00:00Z", "import_price": 0.20, "export_price": 0.08},
		{"start_time": "2026-01-05T02:00:00Z", "end_time": "2026-01-05T03:00:00Z", "import_price": 1.80, "export_price": 1.20},
		{"start_time": "2026-01-05T03:00:00Z", "end_time": "2026-01-05T04:00:00Z", "import_price": 1.75, "export_price": 1.15}
	],
	"forecast_data": [
		{"start_time": "2026-01-05T00:00:00Z", "end_time": "2026-01-05T01:00:00Z", "pv_forecast_kwh": 0, "load_forecast_kwh": 0.5},
		{"start_time": "2026-01-05T01:00:00Z", "end_time": "2026-01-05T02:00:00Z", "pv_forecast_kwh": 0, "load_forecast_kwh": 0.5},
		{"start_time": "2026-01-05T02:00:00Z", "end_time": "2026-01-05T03:00:00Z", "pv_forecast_kwh": 0, "load_forecast_kwh": 0.5},
		{"start_time": "2026-01-05T03:00:00Z", "end_time": "2026-01-05T04:00:00Z", "pv_forecast_kwh": 0, "load_forecast_kwh": 0.5}
	],
	"initial_state": {"battery_soc_percent": 50, "battery_cost_per_kwh": 0.50}
}`

func newTestService(t *testing.T, snapshot string) *Service {
	t.Helper()
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snapshot.json")
	if snapshot != "" {
		require.NoError(t, os.WriteFile(snapPath, []byte(snapshot), 0o600))
	}

	cfg := &config.Config{}
	cfg.Planner.Timezone = "UTC"
	cfg.Planner.SlotMinutes = 60
	cfg.Planner.HorizonHours = 4
	cfg.Planner.SetDefaults()
	cfg.Service.SnapshotPath = snapPath
	cfg.Service.SetDefaults()

	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestRunOncePublishesAndStoresPlan(t *testing.T) {
	svc := newTestService(t, testSnapshot)
	sub := svc.Bus().Subscribe()

	svc.RunOnce(context.Background())

	plan := svc.Store().Latest()
	require.NotNil(t, plan)
	assert.Len(t, plan.Slots, 4)
	assert.NotEmpty(t, plan.RunID)

	// PlanStarted then PlanGenerated on the bus.
	ev := <-sub
	_, ok := ev.(eventbus.PlanStarted)
	assert.True(t, ok)
	ev = <-sub
	gen, ok := ev.(eventbus.PlanGenerated)
	require.True(t, ok)
	assert.Equal(t, plan.RunID, gen.Plan.RunID)
}

func TestRunOnceReportsFailure(t *testing.T) {
	svc := newTestService(t, "") // no snapshot file
	sub := svc.Bus().Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub {
			if _, ok := ev.(eventbus.PlanFailed); ok {
				return
			}
		}
		t.Error("no PlanFailed event seen")
	}()

	svc.RunOnce(context.Background())
	svc.Bus().Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure event")
	}

	assert.Nil(t, svc.Store().Latest())
}
