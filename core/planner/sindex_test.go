package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solbatt/solbatt/core/model"
)

func sIndexFrame(days int, pvPerSlot, loadPerSlot float64) *frame {
	f := &frame{}
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			start := testStart.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			f.slots = append(f.slots, model.Slot{
				Start:           start,
				End:             start.Add(time.Hour),
				PVForecastKWh:   pvPerSlot,
				LoadForecastKWh: loadPerSlot,
			})
		}
	}
	return f
}

func TestSIndexBaseFactorWhenNoDeficit(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.SIndex = SIndexConfig{BaseFactor: 1.05, MaxFactor: 1.5, PVDeficitWeight: 0.3, HorizonDays: 2}
	})
	f := sIndexFrame(3, 2.0, 1.0) // PV covers the load on every future day

	assert.InDelta(t, 1.05, e.sIndexFactor(f, nil), 1e-9)
}

func TestSIndexGrowsWithPVDeficit(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.SIndex = SIndexConfig{BaseFactor: 1.05, MaxFactor: 1.5, PVDeficitWeight: 0.3, HorizonDays: 2}
	})
	f := sIndexFrame(3, 0.0, 1.0) // nothing but load ahead

	// Full deficit ratio 1.0 adds the whole PV weight.
	assert.InDelta(t, 1.35, e.sIndexFactor(f, nil), 1e-9)
}

func TestSIndexColdWeatherAdjustment(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.SIndex = SIndexConfig{
			BaseFactor: 1.05, MaxFactor: 1.5,
			TempWeight: 0.2, TempBaselineC: 20, TempColdC: -15,
			HorizonDays: 2,
		}
	})
	f := sIndexFrame(3, 2.0, 1.0)

	// At the cold reference the full temperature weight applies.
	cold := e.sIndexFactor(f, map[int]float64{1: -15, 2: -15})
	assert.InDelta(t, 1.25, cold, 1e-9)

	// At or above the baseline it contributes nothing.
	mild := e.sIndexFactor(f, map[int]float64{1: 20, 2: 25})
	assert.InDelta(t, 1.05, mild, 1e-9)
}

func TestSIndexClampedToMaxFactor(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.SIndex = SIndexConfig{
			BaseFactor: 1.05, MaxFactor: 1.3,
			PVDeficitWeight: 0.5, TempWeight: 0.5,
			TempBaselineC: 20, TempColdC: -15, HorizonDays: 2,
		}
	})
	f := sIndexFrame(3, 0.0, 1.0)

	got := e.sIndexFactor(f, map[int]float64{1: -30, 2: -30})
	assert.InDelta(t, 1.3, got, 1e-9)
}
