package model

import "time"

// Classification is the primary action assigned to a slot by the planner.
type Classification int

const (
	Hold Classification = iota
	Charge
	Discharge
	Export
	WaterHeating
)

// String returns the wire representation used in the schedule artifact.
// These names are part of the executor contract and must remain stable.
func (c Classification) String() string {
	switch c {
	case Charge:
		return "charge"
	case Discharge:
		return "discharge"
	case Export:
		return "export"
	case WaterHeating:
		return "water_heating"
	default:
		return "hold"
	}
}

// NoWindow marks a slot that does not belong to any charging window.
const NoWindow = -1

// Slot is the smallest planning unit. Start, End, prices and forecasts are
// immutable after frame construction; the remaining fields are planning
// outputs written by the individual passes.
type Slot struct {
	Start time.Time
	End   time.Time

	ImportPrice float64 // currency per kWh
	ExportPrice float64 // currency per kWh

	PVForecastKWh   float64
	LoadForecastKWh float64
	AdjustedPVKWh   float64
	AdjustedLoadKWh float64

	IsCheap           bool
	IsStrategicPeriod bool
	WindowID          int

	// Planning outputs.
	ChargeKW       float64
	DischargeKW    float64
	WaterHeatingKW float64
	ExportKWh      float64
	GridImportKW   float64
	GridExportKW   float64

	SoCTargetPercent           float64
	ProjectedSoCPercent        float64
	ProjectedBatteryCostPerKWh float64

	Classification Classification
}

// Duration returns the slot length.
func (s Slot) Duration() time.Duration { return s.End.Sub(s.Start) }

// Hours returns the slot length in hours, the unit used for kW/kWh conversion.
func (s Slot) Hours() float64 { return s.End.Sub(s.Start).Hours() }

// NetForecastKWh is the adjusted load minus adjusted PV for the slot,
// excluding any scheduled water heating.
func (s Slot) NetForecastKWh() float64 { return s.AdjustedLoadKWh - s.AdjustedPVKWh }

// WaterHeatingKWh is the energy consumed by water heating in this slot.
func (s Slot) WaterHeatingKWh() float64 { return s.WaterHeatingKW * s.Hours() }
