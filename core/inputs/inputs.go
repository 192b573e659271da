// Package inputs defines the collaborator contracts consumed by a planning
// run: price curves, PV/load forecasts and the current battery state. Data
// acquisition (Nordpool, weather services, home automation) lives behind the
// Provider interface; the planner core only sees a resolved Snapshot.
package inputs

import (
	"context"
	"time"
)

// PriceSlot is one entry of the price curve covering the horizon.
type PriceSlot struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ImportPrice float64   `json:"import_price"`
	ExportPrice float64   `json:"export_price"`
}

// ForecastSlot is one entry of the PV/load forecast covering the horizon.
type ForecastSlot struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	PVForecastKWh   float64   `json:"pv_forecast_kwh"`
	LoadForecastKWh float64   `json:"load_forecast_kwh"`
}

// InitialState is the battery and household state at run start.
type InitialState struct {
	BatterySoCPercent           float64 `json:"battery_soc_percent"`
	BatteryCostPerKWh           float64 `json:"battery_cost_per_kwh"`
	DailyWaterEnergyConsumedKWh float64 `json:"daily_water_energy_consumed_kwh"`
}

// Snapshot is one immutable input set for a planning run.
type Snapshot struct {
	Prices    []PriceSlot    `json:"price_data"`
	Forecasts []ForecastSlot `json:"forecast_data"`
	State     InitialState   `json:"initial_state"`

	// DailyTemperatureC maps day offsets (1 = tomorrow) to the mean forecast
	// temperature, used by the dynamic S-index. Missing entries are treated
	// as no temperature signal.
	DailyTemperatureC map[int]float64 `json:"daily_temperature_c,omitempty"`
}

// Provider delivers a fresh input snapshot. Implementations own retry and
// caching policy; the planner never retries internally.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}
