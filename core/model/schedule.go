package model

import "time"

// ScheduleSlot is one record of the schedule artifact. Field names and units
// are the contract with the downstream executor and dashboard; they must
// remain stable across versions.
type ScheduleSlot struct {
	SlotStart                  time.Time `json:"slot_start"`
	SlotEnd                    time.Time `json:"slot_end"`
	Classification             string    `json:"classification"`
	ImportPrice                float64   `json:"import_price"`
	ExportPrice                float64   `json:"export_price"`
	ChargeKW                   float64   `json:"charge_kw"`
	DischargeKW                float64   `json:"discharge_kw"`
	GridImportKW               float64   `json:"grid_import_kw"`
	GridExportKW               float64   `json:"grid_export_kw"`
	WaterHeatingKW             float64   `json:"water_heating_kw"`
	SoCTargetPercent           float64   `json:"soc_target_percent"`
	ProjectedSoCPercent        float64   `json:"projected_soc_percent"`
	ProjectedBatteryCostPerKWh float64   `json:"projected_battery_cost_per_kwh"`
}

// WarningKind identifies a non-fatal planning condition.
type WarningKind string

const (
	// WarnUnattainableResponsibility flags a window whose responsibility
	// exceeds its realistic capacity even after cascading.
	WarnUnattainableResponsibility WarningKind = "unattainable_responsibility"
	// WarnDegenerateWindowSet flags a run where percentile and tolerance
	// produced no cheap windows.
	WarnDegenerateWindowSet WarningKind = "degenerate_window_set"
)

// Warning is a structured, non-fatal planning diagnostic attached to the plan.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	WindowID int         `json:"window_id,omitempty"`
	Message  string      `json:"message"`
	KWh      float64     `json:"kwh,omitempty"`
}

// Plan is the finalized schedule artifact produced by one planning run.
type Plan struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Slots       []ScheduleSlot `json:"schedule"`
	Windows     []Window       `json:"-"`
	Warnings    []Warning      `json:"warnings,omitempty"`
}
