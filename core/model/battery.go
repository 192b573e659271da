package model

// BatterySimulationState is the running state threaded through the baseline
// and finalizing simulations. SoC is tracked in kWh and bounded to the
// configured [min,max] window by the caller; CostPerKWh is the weighted
// average acquisition cost of the stored energy, updated on every charge.
type BatterySimulationState struct {
	SoCKWh    float64
	TotalCost float64

	// Running totals of the grid flows resolved so far, accumulated slot by
	// slot during finalization.
	CumulativeGridImportKWh float64
	CumulativeExportKWh     float64
}

// NewBatterySimulationState initializes the state from the externally
// reported SoC and average cost.
func NewBatterySimulationState(socKWh, costPerKWh float64) BatterySimulationState {
	return BatterySimulationState{SoCKWh: socKWh, TotalCost: socKWh * costPerKWh}
}

// CostPerKWh returns the weighted average acquisition cost of the stored energy.
func (b BatterySimulationState) CostPerKWh() float64 {
	if b.SoCKWh <= 0 {
		return 0
	}
	return b.TotalCost / b.SoCKWh
}

// Store adds energy to the battery at the given source cost. storedKWh is the
// energy after charging losses; sourceKWh and price describe what was paid.
func (b *BatterySimulationState) Store(storedKWh, sourceKWh, price float64) {
	if storedKWh <= 0 {
		return
	}
	b.SoCKWh += storedKWh
	b.TotalCost += sourceKWh * price
}

// Drain removes energy from the battery at the current average cost.
// drainedKWh is the energy removed before discharge losses.
func (b *BatterySimulationState) Drain(drainedKWh float64) {
	if drainedKWh <= 0 {
		return
	}
	avg := b.CostPerKWh()
	b.SoCKWh -= drainedKWh
	b.TotalCost -= avg * drainedKWh
	if b.TotalCost < 0 {
		b.TotalCost = 0
	}
	if b.SoCKWh <= 0 {
		b.SoCKWh = 0
		b.TotalCost = 0
	}
}

// Clamp bounds the SoC to [minKWh, maxKWh], adjusting the cost basis so the
// average cost per kWh is preserved.
func (b *BatterySimulationState) Clamp(minKWh, maxKWh float64) {
	avg := b.CostPerKWh()
	if b.SoCKWh > maxKWh {
		b.SoCKWh = maxKWh
		b.TotalCost = avg * b.SoCKWh
	}
	if b.SoCKWh < minKWh {
		b.SoCKWh = minKWh
		b.TotalCost = avg * b.SoCKWh
	}
}

// SoCPercent converts the stored energy to a percentage of capacity.
func (b BatterySimulationState) SoCPercent(capacityKWh float64) float64 {
	if capacityKWh <= 0 {
		return 0
	}
	return b.SoCKWh / capacityKWh * 100.0
}
