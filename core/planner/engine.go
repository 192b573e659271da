// Package planner implements the multi-pass planning engine. One run
// transforms an input snapshot into a conflict-free per-slot operating plan:
// cheap windows are classified, water heating is reserved, a no-charging
// baseline is simulated, charging responsibility is cascaded backward across
// windows, distributed onto concrete slots and finalized by an authoritative
// forward simulation.
//
// The engine is a pure, single-threaded batch computation: no I/O, no
// retries, deterministic and idempotent for identical inputs.
package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/solbatt/solbatt/core/inputs"
	"github.com/solbatt/solbatt/core/logger"
	"github.com/solbatt/solbatt/core/model"
)

func loadLocation(name string) (*time.Location, error) { return time.LoadLocation(name) }

// Engine executes planning runs against a fixed configuration.
type Engine struct {
	cfg Config
	loc *time.Location
	log logger.Logger

	chargeEff    float64
	dischargeEff float64
}

// New validates the configuration and returns a ready engine.
func New(cfg Config, log logger.Logger) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	eff := cfg.Battery.OneWayEfficiency()
	return &Engine{cfg: cfg, loc: loc, log: log, chargeEff: eff, dischargeEff: eff}, nil
}

// Config returns the engine's resolved configuration.
func (e *Engine) Config() Config { return e.cfg }

// frame is the working state threaded through the passes. Slots and windows
// reference the same arena; each pass writes only its designated fields.
type frame struct {
	slots    []model.Slot
	windows  []model.Window
	warnings []model.Warning

	// unmetKWh records, per slot, baseline deficit energy that could not be
	// served because the SoC floor was reached.
	unmetKWh []float64

	sIndexFactor      float64
	initialSoCPercent float64

	// Set by the hysteresis pass to suppress dynamic actions on re-simulation.
	suppressDischarge []bool
	suppressExport    []bool
}

// GenerateSchedule runs all planning passes over the snapshot and returns
// the finalized plan. The only fatal error is a data gap; every other
// anomaly is attached to the plan as a structured warning.
func (e *Engine) GenerateSchedule(snap *inputs.Snapshot) (*model.Plan, error) {
	started := time.Now()

	f, err := e.buildFrame(snap)
	if err != nil {
		return nil, err
	}
	e.classifyWindows(f)
	e.scheduleWaterHeating(f, snap.State.DailyWaterEnergyConsumedKWh)
	e.simulateBaseline(f, snap.State)
	f.sIndexFactor = e.sIndexFactor(f, snap.DailyTemperatureC)
	e.allocateResponsibilities(f)
	e.distributeCharging(f)
	st := e.finalize(f, snap.State)
	if e.enforceHysteresis(f) {
		// Re-run the authoritative simulation so projections match the
		// smoothed actions.
		st = e.finalize(f, snap.State)
	}
	e.applySoCTargets(f)
	e.log.Debugw("simulation totals", map[string]any{
		"grid_import_kwh":    st.CumulativeGridImportKWh,
		"grid_export_kwh":    st.CumulativeExportKWh,
		"final_cost_per_kwh": st.CostPerKWh(),
	})

	plan := &model.Plan{
		RunID:       uuid.NewString(),
		GeneratedAt: started.UTC(),
		Slots:       e.emit(f),
		Windows:     f.windows,
		Warnings:    f.warnings,
	}
	e.log.Infof("plan generated: %d slots, %d windows, %d warnings in %s",
		len(plan.Slots), len(f.windows), len(f.warnings), time.Since(started).Round(time.Millisecond))
	return plan, nil
}

// emit converts the slot arena into the stable schedule artifact.
func (e *Engine) emit(f *frame) []model.ScheduleSlot {
	out := make([]model.ScheduleSlot, len(f.slots))
	for i, s := range f.slots {
		out[i] = model.ScheduleSlot{
			SlotStart:                  s.Start,
			SlotEnd:                    s.End,
			Classification:             s.Classification.String(),
			ImportPrice:                s.ImportPrice,
			ExportPrice:                s.ExportPrice,
			ChargeKW:                   s.ChargeKW,
			DischargeKW:                s.DischargeKW,
			GridImportKW:               s.GridImportKW,
			GridExportKW:               s.GridExportKW,
			WaterHeatingKW:             s.WaterHeatingKW,
			SoCTargetPercent:           s.SoCTargetPercent,
			ProjectedSoCPercent:        s.ProjectedSoCPercent,
			ProjectedBatteryCostPerKWh: s.ProjectedBatteryCostPerKWh,
		}
	}
	return out
}

func (f *frame) warn(w model.Warning) { f.warnings = append(f.warnings, w) }

// windowOf returns the window the slot index belongs to, or nil.
func (f *frame) windowOf(i int) *model.Window {
	id := f.slots[i].WindowID
	if id == model.NoWindow {
		return nil
	}
	return &f.windows[id]
}
