package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatteryCostAveragesAcrossCharges(t *testing.T) {
	b := NewBatterySimulationState(5.0, 0.50)
	assert.InDelta(t, 0.50, b.CostPerKWh(), 1e-12)

	// Free PV dilutes the average; the stored amount carries no cost.
	b.Store(5.0, 5.0, 0)
	assert.InDelta(t, 0.25, b.CostPerKWh(), 1e-12)

	// Draining at the average keeps the per-kWh cost stable.
	b.Drain(4.0)
	assert.InDelta(t, 0.25, b.CostPerKWh(), 1e-12)
	assert.InDelta(t, 6.0, b.SoCKWh, 1e-12)
}

func TestBatteryDrainNeverGoesNegative(t *testing.T) {
	b := NewBatterySimulationState(1.0, 0.80)
	b.Drain(2.5)
	assert.Zero(t, b.SoCKWh)
	assert.Zero(t, b.TotalCost)
	assert.Zero(t, b.CostPerKWh())
}

func TestBatteryClampPreservesAverageCost(t *testing.T) {
	b := NewBatterySimulationState(12.0, 0.40)
	b.Clamp(1.5, 9.5)
	assert.InDelta(t, 9.5, b.SoCKWh, 1e-12)
	assert.InDelta(t, 0.40, b.CostPerKWh(), 1e-12)
}
